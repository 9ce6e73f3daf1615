package hc2sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/hc2-project/hc2/pkg/utils"
)

// My returns the per-service dispatcher for serviceName, or a dispatcher
// whose every method call returns HC2_ROUTE_NOT_FOUND if serviceName is
// unknown to the route table. It never returns an error itself — lookup
// failure is deferred to call time, matching the spec's "unknown service
// names yield an error envelope" member-access contract.
func (s *SDK) My(serviceName string) *ServiceDispatcher {
	return &ServiceDispatcher{sdk: s, serviceName: serviceName}
}

// ServiceDispatcher dispatches calls to one named service's instances.
type ServiceDispatcher struct {
	sdk         *SDK
	serviceName string
}

type jsonRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      string      `json:"id"`
}

type jsonRPCResponse struct {
	Result           json.RawMessage `json:"result"`
	Error            *jsonRPCError   `json:"error"`
	ID               string          `json:"id"`
	RetryAfterMillis int64           `json:"retryAfterMillis,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Call dispatches method with params against serviceName's known
// instances, trying each in order until one succeeds.
func (d *ServiceDispatcher) Call(ctx context.Context, method string, params interface{}) Envelope {
	profile, ok := d.sdk.table.lookup(d.serviceName)
	if !ok {
		return failure(d.serviceName, method, SourceSDK, ErrRouteNotFound, "service is not known to the route table", true)
	}

	methodSpec, ok := profile.MethodByName(method)
	if !ok {
		return failure(d.serviceName, method, SourceSDK, ErrMethodNotFound, fmt.Sprintf("method %q is not exposed by %q", method, d.serviceName), false)
	}

	if len(profile.Instances) == 0 {
		return failure(d.serviceName, method, SourceSDK, ErrRouteNotFound, "no live instances for service", true)
	}

	rpcMethod := fmt.Sprintf("%s.%s", d.serviceName, method)

	for _, inst := range profile.Instances {
		result, rpcErr, retryAfter, callErr := d.invoke(ctx, inst.RPCEndpoint, rpcMethod, params)

		if callErr == nil && rpcErr == nil {
			return success(d.serviceName, method, SourceSDK, result)
		}

		if !methodSpec.Retryable {
			if callErr != nil {
				return failure(d.serviceName, method, SourceSDK, ErrRPCError, callErr.Error(), false)
			}
			return failure(d.serviceName, method, SourceSDK, ErrServiceError, rpcErr.Message, false)
		}

		if retryAfter > 0 {
			select {
			case <-ctx.Done():
				return failure(d.serviceName, method, SourceSDK, ErrSDKInternal, ctx.Err().Error(), false)
			case <-time.After(time.Duration(retryAfter) * time.Millisecond):
			}
		}
	}

	return failure(d.serviceName, method, SourceSDK, ErrAllInstancesFailed, "all instances failed", true)
}

// invoke performs one JSON-RPC call, guarded by a per-endpoint circuit
// breaker. A transport-level failure and an RPC-level error member are
// reported separately so Call can decide the right error code.
func (d *ServiceDispatcher) invoke(ctx context.Context, endpoint, method string, params interface{}) (json.RawMessage, *jsonRPCError, int64, error) {
	breaker := d.sdk.breakerFor(endpoint)

	raw, err := breaker.Execute(func() (interface{}, error) {
		return d.doRPC(ctx, endpoint, method, params)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, 0, fmt.Errorf("%s: %w", ErrRPCTimeout, err)
		}
		return nil, nil, 0, err
	}

	resp := raw.(*jsonRPCResponse)
	if resp.Error != nil {
		return nil, resp.Error, resp.RetryAfterMillis, nil
	}
	return resp.Result, nil, 0, nil
}

func (d *ServiceDispatcher) doRPC(ctx context.Context, endpoint, method string, params interface{}) (*jsonRPCResponse, error) {
	callCtx, cancel := utils.ContextWithCustomTimeout(ctx, DefaultCallTimeout)
	defer cancel()

	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", Method: method, Params: params, ID: method})
	if err != nil {
		return nil, fmt.Errorf("failed to encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.sdk.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rpc response: %w", err)
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return nil, fmt.Errorf("malformed rpc response: %w", err)
	}
	return &rpcResp, nil
}
