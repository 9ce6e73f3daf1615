package hc2demo

import (
	"context"
	"fmt"
	"time"

	"github.com/hc2-project/hc2/pkg/hc2sandbox"
	hc2redis "github.com/hc2-project/hc2/pkg/redis"
)

// CacheService demonstrates a module that depends on an external
// collaborator (Redis) rather than a sibling sandbox module.
type CacheService struct {
	view  *hc2sandbox.View
	cache *hc2redis.Cache
}

// NewCacheServiceFactory binds cache so it can be used as a hc2sandbox.Factory.
func NewCacheServiceFactory(cache *hc2redis.Cache) hc2sandbox.Factory {
	return func(view *hc2sandbox.View) (hc2sandbox.Module, error) {
		return &CacheService{view: view, cache: cache}, nil
	}
}

// Methods implements hc2sandbox.Module.
func (s *CacheService) Methods() map[string]hc2sandbox.MethodFunc {
	return map[string]hc2sandbox.MethodFunc{
		"set": s.set,
		"get": s.get,
	}
}

func (s *CacheService) set(ctx context.Context, args []interface{}) (interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("set expects (key, value)")
	}
	key, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("set key must be a string")
	}
	key = hc2redis.NamespaceCache + ":" + key
	if err := s.cache.Set(ctx, key, "", args[1], time.Hour); err != nil {
		return nil, err
	}
	return map[string]interface{}{"ok": true}, nil
}

func (s *CacheService) get(ctx context.Context, args []interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("get expects (key)")
	}
	key, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("get key must be a string")
	}
	key = hc2redis.NamespaceCache + ":" + key

	var value interface{}
	if err := s.cache.Get(ctx, key, "", &value); err != nil {
		return nil, err
	}
	return value, nil
}
