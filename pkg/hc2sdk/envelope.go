package hc2sdk

import "time"

// Source identifies the layer that produced a result envelope.
type Source string

const (
	SourceSDK     Source = "sdk"
	SourceProxy   Source = "proxy"
	SourceService Source = "service"
)

// ErrorCode is the closed set of error codes an envelope may carry.
type ErrorCode string

const (
	ErrRouteNotFound      ErrorCode = "HC2_ROUTE_NOT_FOUND"
	ErrMethodNotFound     ErrorCode = "HC2_METHOD_NOT_FOUND"
	ErrSDKInternal        ErrorCode = "HC2_SDK_INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "HC2_SERVICE_UNAVAILABLE"
	ErrRPCTimeout         ErrorCode = "HC2_RPC_TIMEOUT"
	ErrRPCError           ErrorCode = "HC2_RPC_ERROR"
	ErrInvalidParams      ErrorCode = "HC2_INVALID_PARAMS"
	ErrServiceError       ErrorCode = "HC2_SERVICE_ERROR"
	ErrAllInstancesFailed ErrorCode = "HC2_ALL_INSTANCES_FAILED"
)

// Metadata identifies the call a result envelope is for.
type Metadata struct {
	Service   string    `json:"service"`
	Method    string    `json:"method"`
	Source    Source    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// EnvelopeError is the error member of a result envelope.
type EnvelopeError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Source    Source    `json:"source"`
	Retryable bool      `json:"retryable"`
}

// Envelope is the canonical, never-throws result shape every dispatch call
// returns.
type Envelope struct {
	Metadata Metadata       `json:"__metadata"`
	HasError bool           `json:"hasError"`
	Data     interface{}    `json:"data"`
	Error    *EnvelopeError `json:"error"`
}

func success(service, method string, source Source, data interface{}) Envelope {
	return Envelope{
		Metadata: Metadata{Service: service, Method: method, Source: source, Timestamp: time.Now()},
		HasError: false,
		Data:     data,
		Error:    nil,
	}
}

func failure(service, method string, source Source, code ErrorCode, message string, retryable bool) Envelope {
	return Envelope{
		Metadata: Metadata{Service: service, Method: method, Source: source, Timestamp: time.Now()},
		HasError: true,
		Data:     nil,
		Error:    &EnvelopeError{Code: code, Message: message, Source: source, Retryable: retryable},
	}
}
