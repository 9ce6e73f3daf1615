package hc2sandbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// PluginMode is one of the three wrapping strategies a plugin applies to a
// target method.
type PluginMode int

const (
	ModePre PluginMode = iota
	ModePost
	ModeOverride
)

// PreResultKind tags which of the pre-mode shapes a PreHandler returned.
type PreResultKind int

const (
	// PreForward asks the wrapper to invoke the original with its
	// original arguments unchanged ("returns undefined").
	PreForward PreResultKind = iota
	// PrePositional replaces the call's arguments with Positional.
	PrePositional
	// PreOptions replaces the call's single argument with Options.
	PreOptions
	// PreAbort rejects the call outright instead of invoking the
	// original at all.
	PreAbort
)

// PreResult is a pre-mode handler's typed return value. Use the
// ForwardArgs/PositionalArgs/OptionsArg/AbortCall constructors rather than
// building one by hand.
type PreResult struct {
	Kind       PreResultKind
	Positional []interface{}
	Options    map[string]interface{}
}

// ForwardPreArgs forwards the original call's arguments unchanged.
func ForwardPreArgs() PreResult { return PreResult{Kind: PreForward} }

// PositionalPreArgs replaces the call's arguments with a positional list.
func PositionalPreArgs(args ...interface{}) PreResult {
	return PreResult{Kind: PrePositional, Positional: args}
}

// OptionsPreArg replaces the call's single argument with an options object.
func OptionsPreArg(options map[string]interface{}) PreResult {
	return PreResult{Kind: PreOptions, Options: options}
}

// AbortPreCall rejects the call instead of invoking the original at all.
func AbortPreCall() PreResult { return PreResult{Kind: PreAbort} }

// ErrPluginShapeAborted is returned when a pre-mode handler's returned
// shape does not match the original call's calling convention (spec's
// pre-mode shape rule), or when the handler explicitly aborts.
type ErrPluginShapeAborted struct {
	Target, Method string
}

func (e *ErrPluginShapeAborted) Error() string {
	return fmt.Sprintf("pre plugin for %q.%q aborted the call: incompatible or rejected argument shape", e.Target, e.Method)
}

// PreHandler runs before the original method, with the same restricted
// view the target module itself was constructed with.
type PreHandler func(view *View, ctx context.Context, args []interface{}) (PreResult, error)

// PostHandler runs after the original method with its arguments and
// result. It cannot alter the result; a returned error is only logged.
type PostHandler func(view *View, ctx context.Context, args []interface{}, result interface{}) error

// OverrideHandler replaces the original method entirely. A returned error
// is logged and falls through to the original call with the original
// arguments.
type OverrideHandler func(view *View, ctx context.Context, args []interface{}) (interface{}, error)

// Plugin attaches method-level interceptors to a target module.
type Plugin struct {
	Target string
	Mode   PluginMode

	Pre      map[string]PreHandler
	Post     map[string]PostHandler
	Override map[string]OverrideHandler
}

// Apply wraps target's methods named by plugin's handler map, returning a
// new Module whose Methods() reflects the wrapped behavior. Methods named
// by the plugin that target does not expose produce a warning and are
// skipped. view is the restricted view the plugin instance runs under —
// per the sandbox's plugin-sandboxing invariant it must be the same scope
// (same policy, same My/Core/Events) as plugin.Target's own view, which
// Container.Apply builds for the caller.
func Apply(plugin Plugin, target Module, view *View, log *zap.Logger) Module {
	if log == nil {
		log = zap.NewNop()
	}
	original := target.Methods()
	wrapped := make(map[string]MethodFunc, len(original))
	for name, fn := range original {
		wrapped[name] = fn
	}

	switch plugin.Mode {
	case ModePre:
		for name, handler := range plugin.Pre {
			fn, ok := original[name]
			if !ok {
				log.Warn("pre plugin targets unknown method", zap.String("target", plugin.Target), zap.String("method", name))
				continue
			}
			wrapped[name] = wrapPre(fn, handler, view, log, plugin.Target, name)
		}
	case ModePost:
		for name, handler := range plugin.Post {
			fn, ok := original[name]
			if !ok {
				log.Warn("post plugin targets unknown method", zap.String("target", plugin.Target), zap.String("method", name))
				continue
			}
			wrapped[name] = wrapPost(fn, handler, view, log, plugin.Target, name)
		}
	case ModeOverride:
		for name, handler := range plugin.Override {
			fn, ok := original[name]
			if !ok {
				log.Warn("override plugin targets unknown method", zap.String("target", plugin.Target), zap.String("method", name))
				continue
			}
			wrapped[name] = wrapOverride(fn, handler, view, log, plugin.Target, name)
		}
	}

	return &wrappedModule{methods: wrapped}
}

type wrappedModule struct {
	methods map[string]MethodFunc
}

func (m *wrappedModule) Methods() map[string]MethodFunc { return m.methods }

// isOptionsStyle reports whether args is a single-options-object call:
// exactly one argument, itself a map. Anything else — zero args, multiple
// args, or a single non-map value — is a positional call.
func isOptionsStyle(args []interface{}) bool {
	if len(args) != 1 {
		return false
	}
	_, ok := args[0].(map[string]interface{})
	return ok
}

// wrapPre implements the pre-mode shape-dispatch rule: a handler's
// PreResult must match the original call's own calling convention (an
// options-object call only accepts PreOptions/PreForward; a positional
// call only accepts PrePositional/PreForward); any mismatch, or an
// explicit PreAbort, aborts the call instead of guessing at a shape.
func wrapPre(original MethodFunc, handler PreHandler, view *View, log *zap.Logger, target, method string) MethodFunc {
	return func(ctx context.Context, args []interface{}) (interface{}, error) {
		result, err := handler(view, ctx, args)
		if err != nil {
			log.Warn("pre plugin handler failed, calling original with original args",
				zap.String("target", target), zap.String("method", method), zap.Error(err))
			return original(ctx, args)
		}

		optionsStyle := isOptionsStyle(args)

		switch result.Kind {
		case PreForward:
			return original(ctx, args)
		case PreOptions:
			if !optionsStyle {
				log.Warn("pre plugin returned an options object for a positional call, aborting",
					zap.String("target", target), zap.String("method", method))
				return nil, &ErrPluginShapeAborted{Target: target, Method: method}
			}
			return original(ctx, []interface{}{result.Options})
		case PrePositional:
			if optionsStyle {
				log.Warn("pre plugin returned positional args for an options-object call, aborting",
					zap.String("target", target), zap.String("method", method))
				return nil, &ErrPluginShapeAborted{Target: target, Method: method}
			}
			return original(ctx, result.Positional)
		default:
			log.Warn("pre plugin aborted the call", zap.String("target", target), zap.String("method", method))
			return nil, &ErrPluginShapeAborted{Target: target, Method: method}
		}
	}
}

func wrapPost(original MethodFunc, handler PostHandler, view *View, log *zap.Logger, target, method string) MethodFunc {
	return func(ctx context.Context, args []interface{}) (interface{}, error) {
		result, err := original(ctx, args)
		if err != nil {
			return result, err
		}
		if herr := handler(view, ctx, args, result); herr != nil {
			log.Warn("post plugin handler failed",
				zap.String("target", target), zap.String("method", method), zap.Error(herr))
		}
		return result, nil
	}
}

func wrapOverride(original MethodFunc, handler OverrideHandler, view *View, log *zap.Logger, target, method string) MethodFunc {
	return func(ctx context.Context, args []interface{}) (interface{}, error) {
		result, err := handler(view, ctx, args)
		if err != nil {
			log.Warn("override plugin handler failed, falling through to original",
				zap.String("target", target), zap.String("method", method), zap.Error(err))
			return original(ctx, args)
		}
		return result, nil
	}
}
