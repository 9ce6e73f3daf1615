// Command hc2-sandbox-demo boots a standalone Sandbox Container hosting the
// demonstration modules and exercises the three plugin interception modes
// against them, printing each call's result.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/hc2-project/hc2/internal/config"
	"github.com/hc2-project/hc2/internal/hc2demo"
	"github.com/hc2-project/hc2/pkg/hc2sandbox"
	hc2logger "github.com/hc2-project/hc2/pkg/logger"
	hc2redis "github.com/hc2-project/hc2/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("hc2-sandbox-demo: %v", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		// The demo only needs Redis for the cache/feed modules; fall back to
		// local defaults rather than requiring the full instance env.
		cfg = &config.Config{RedisHost: "localhost", RedisPort: "6379"}
	}

	lg, err := hc2logger.New(hc2logger.Config{Environment: "development", LogLevel: "info", ServiceName: "hc2-sandbox-demo"})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer lg.Sync() //nolint:errcheck
	log := lg.GetZapLogger()

	cache, err := hc2redis.NewCache(&hc2redis.Options{
		Addr:      fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Namespace: "hc2",
		Context:   "demo",
	}, log)
	if err != nil {
		return fmt.Errorf("failed to connect to durable store: %w", err)
	}
	defer cache.Close() //nolint:errcheck

	container := hc2sandbox.New(log)
	container.Register("noop", hc2demo.NewNOOPService, hc2sandbox.Policy{}, true)
	container.Register("cache", hc2demo.NewCacheServiceFactory(cache), hc2sandbox.Policy{}, true)
	container.Register("feed", hc2demo.NewFeedServiceFactory(cache),
		hc2sandbox.Policy{AllowedAPIs: map[string]bool{"cache": true}}, true)
	container.Start()

	ctx := context.Background()

	noop, err := container.Get("noop")
	if err != nil {
		return fmt.Errorf("failed to resolve noop module: %w", err)
	}

	color.Cyan("calling noop.hello directly")
	result, err := noop.Methods()["hello"](ctx, []interface{}{map[string]interface{}{"receiver": "sandbox"}})
	if err != nil {
		return fmt.Errorf("hello call failed: %w", err)
	}
	fmt.Printf("  -> %v\n", result)

	color.Cyan("wrapping noop.hello with a pre-mode plugin that renames the receiver")
	rewritten := container.Apply(hc2sandbox.Plugin{
		Target: "noop",
		Mode:   hc2sandbox.ModePre,
		Pre: map[string]hc2sandbox.PreHandler{
			"hello": func(_ *hc2sandbox.View, _ context.Context, _ []interface{}) (hc2sandbox.PreResult, error) {
				return hc2sandbox.OptionsPreArg(map[string]interface{}{"receiver": "smelly host"}), nil
			},
		},
	}, noop)
	result, err = rewritten.Methods()["hello"](ctx, []interface{}{map[string]interface{}{"receiver": "ignored"}})
	if err != nil {
		return fmt.Errorf("wrapped hello call failed: %w", err)
	}
	fmt.Printf("  -> %v\n", result)

	color.Cyan("wrapping noop.hello with a post-mode plugin that only observes")
	observed := container.Apply(hc2sandbox.Plugin{
		Target: "noop",
		Mode:   hc2sandbox.ModePost,
		Post: map[string]hc2sandbox.PostHandler{
			"hello": func(_ *hc2sandbox.View, _ context.Context, _ []interface{}, result interface{}) error {
				log.Info("observed hello call", zap.Any("result", result))
				return nil
			},
		},
	}, noop)
	if _, err := observed.Methods()["hello"](ctx, nil); err != nil {
		return fmt.Errorf("observed hello call failed: %w", err)
	}

	color.Cyan("wrapping noop.hello with an override-mode plugin")
	overridden := container.Apply(hc2sandbox.Plugin{
		Target: "noop",
		Mode:   hc2sandbox.ModeOverride,
		Override: map[string]hc2sandbox.OverrideHandler{
			"hello": func(_ *hc2sandbox.View, _ context.Context, _ []interface{}) (interface{}, error) {
				return map[string]interface{}{"greeting": "hello from the override"}, nil
			},
		},
	}, noop)
	result, err = overridden.Methods()["hello"](ctx, nil)
	if err != nil {
		return fmt.Errorf("overridden hello call failed: %w", err)
	}
	fmt.Printf("  -> %v\n", result)

	color.Cyan("publishing through the feed module, which calls back into cache")
	feed, err := container.Get("feed")
	if err != nil {
		return fmt.Errorf("failed to resolve feed module: %w", err)
	}
	if _, err := feed.Methods()["publish"](ctx, []interface{}{"hc2-sandbox-demo started"}); err != nil {
		return fmt.Errorf("publish call failed: %w", err)
	}
	recent, err := feed.Methods()["recent"](ctx, nil)
	if err != nil {
		return fmt.Errorf("recent call failed: %w", err)
	}
	fmt.Printf("  -> recent feed entries: %v\n", recent)

	color.Green("hc2-sandbox-demo completed")
	return nil
}
