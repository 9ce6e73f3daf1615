// Package hc2demo provides the NOOPService, FeedService, and CacheService
// demonstration modules used to exercise the Sandbox Container and the
// registration/dispatch path end to end.
package hc2demo

import (
	"context"
	"fmt"

	"github.com/hc2-project/hc2/pkg/hc2sandbox"
)

// NOOPService exposes a single "hello" method, matching the registration
// scenario's manifest.
type NOOPService struct {
	view *hc2sandbox.View
}

// NewNOOPService is a hc2sandbox.Factory for NOOPService.
func NewNOOPService(view *hc2sandbox.View) (hc2sandbox.Module, error) {
	return &NOOPService{view: view}, nil
}

// Methods implements hc2sandbox.Module.
func (s *NOOPService) Methods() map[string]hc2sandbox.MethodFunc {
	return map[string]hc2sandbox.MethodFunc{
		"hello": s.hello,
	}
}

func (s *NOOPService) hello(_ context.Context, args []interface{}) (interface{}, error) {
	receiver := "world"
	if len(args) == 1 {
		if m, ok := args[0].(map[string]interface{}); ok {
			if r, ok := m["receiver"].(string); ok {
				receiver = r
			}
		}
	}
	return map[string]interface{}{"greeting": fmt.Sprintf("hello, %s", receiver)}, nil
}
