package hc2demo

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hc2-project/hc2/pkg/hc2sandbox"
	hc2redis "github.com/hc2-project/hc2/pkg/redis"
)

const feedKey = hc2redis.NamespaceFeed + ":events"

// FeedService demonstrates a module whose method dispatches onto the
// container's event bus in addition to its Redis-backed collaborator: a
// "publish" call appends to a sorted-set feed and fires a container event
// other modules can listen for.
type FeedService struct {
	view  *hc2sandbox.View
	cache *hc2redis.Cache
}

// NewFeedServiceFactory binds cache so it can be used as a hc2sandbox.Factory.
func NewFeedServiceFactory(cache *hc2redis.Cache) hc2sandbox.Factory {
	return func(view *hc2sandbox.View) (hc2sandbox.Module, error) {
		return &FeedService{view: view, cache: cache}, nil
	}
}

// Methods implements hc2sandbox.Module.
func (s *FeedService) Methods() map[string]hc2sandbox.MethodFunc {
	return map[string]hc2sandbox.MethodFunc{
		"publish": s.publish,
		"recent":  s.recent,
	}
}

func (s *FeedService) publish(ctx context.Context, args []interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("publish expects (message)")
	}
	message, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("publish message must be a string")
	}

	score := float64(time.Now().UnixNano())
	if err := s.cache.ZAdd(ctx, feedKey, &redis.Z{Score: score, Member: message}); err != nil {
		return nil, err
	}

	s.view.Events.DispatchEvent("feed.published", message)
	return map[string]interface{}{"ok": true}, nil
}

func (s *FeedService) recent(ctx context.Context, _ []interface{}) (interface{}, error) {
	members, err := s.cache.ZRange(ctx, feedKey, -10, -1)
	if err != nil {
		return nil, err
	}
	return members, nil
}
