package hc2sandbox

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type moduleA struct{ view *View }

func (m *moduleA) Methods() map[string]MethodFunc { return nil }

type moduleB struct{}

func (m *moduleB) Methods() map[string]MethodFunc {
	return map[string]MethodFunc{
		"hello": func(_ context.Context, args []interface{}) (interface{}, error) {
			return args, nil
		},
	}
}

func TestPolicyDenialInsideConstructor(t *testing.T) {
	c := New(nil)
	var constructErr error
	c.Register("A", func(view *View) (Module, error) {
		_, constructErr = view.My.Get("B")
		return &moduleA{view: view}, nil
	}, Policy{AllowedAPIs: map[string]bool{}}, false)
	c.Register("B", func(view *View) (Module, error) { return &moduleB{}, nil }, Policy{}, false)

	_, err := c.Get("A")
	require.NoError(t, err)

	var policyErr *ErrPolicyViolation
	require.ErrorAs(t, constructErr, &policyErr)
}

func TestHostCallbackCanResolveAllowedSibling(t *testing.T) {
	c := New(nil)
	c.Register("A", func(view *View) (Module, error) { return &moduleA{view: view}, nil },
		Policy{AllowedAPIs: map[string]bool{"B": true}}, false)
	c.Register("B", func(view *View) (Module, error) { return &moduleB{}, nil }, Policy{}, false)

	a, err := c.Get("A")
	require.NoError(t, err)
	ma := a.(*moduleA)

	b, err := ma.view.My.Get("B")
	require.NoError(t, err)
	require.NotNil(t, b)
}

func TestLazyConstructionIsAtMostOnce(t *testing.T) {
	var calls int32
	c := New(nil)
	c.Register("B", func(view *View) (Module, error) {
		atomic.AddInt32(&calls, 1)
		return &moduleB{}, nil
	}, Policy{}, false)

	for i := 0; i < 5; i++ {
		_, err := c.Get("B")
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), calls)
}

func TestPluginPreModeForwardsPositionalArgs(t *testing.T) {
	c := New(nil)
	c.Register("NOOPService", func(view *View) (Module, error) { return &moduleB{}, nil }, Policy{}, false)

	target, err := c.Get("NOOPService")
	require.NoError(t, err)

	plugin := Plugin{
		Target: "NOOPService",
		Mode:   ModePre,
		Pre: map[string]PreHandler{
			"hello": func(_ *View, _ context.Context, _ []interface{}) (PreResult, error) {
				return PositionalPreArgs("smelly host", "yo mama"), nil
			},
		},
	}
	wrapped := c.Apply(plugin, target)

	result, err := wrapped.Methods()["hello"](context.Background(), []interface{}{"original"})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"smelly host", "yo mama"}, result)
}

func TestPluginPreModeForwardsOptionsObject(t *testing.T) {
	c := New(nil)
	c.Register("NOOPService", func(view *View) (Module, error) { return &moduleB{}, nil }, Policy{}, false)
	target, err := c.Get("NOOPService")
	require.NoError(t, err)

	plugin := Plugin{
		Target: "NOOPService",
		Mode:   ModePre,
		Pre: map[string]PreHandler{
			"hello": func(_ *View, _ context.Context, _ []interface{}) (PreResult, error) {
				return OptionsPreArg(map[string]interface{}{"receiver": "smelly host"}), nil
			},
		},
	}
	wrapped := c.Apply(plugin, target)

	result, err := wrapped.Methods()["hello"](context.Background(), []interface{}{map[string]interface{}{"receiver": "original"}})
	require.NoError(t, err)
	require.Equal(t, []interface{}{map[string]interface{}{"receiver": "smelly host"}}, result)
}

func TestPluginPreModeAbortsOnIncompatibleShape(t *testing.T) {
	c := New(nil)
	c.Register("NOOPService", func(view *View) (Module, error) { return &moduleB{}, nil }, Policy{}, false)
	target, err := c.Get("NOOPService")
	require.NoError(t, err)

	plugin := Plugin{
		Target: "NOOPService",
		Mode:   ModePre,
		Pre: map[string]PreHandler{
			// Original call is options-style (single map arg); returning
			// positional args for it must abort rather than guess.
			"hello": func(_ *View, _ context.Context, _ []interface{}) (PreResult, error) {
				return PositionalPreArgs("nope"), nil
			},
		},
	}
	wrapped := c.Apply(plugin, target)

	result, err := wrapped.Methods()["hello"](context.Background(), []interface{}{map[string]interface{}{"receiver": "original"}})
	require.Nil(t, result)
	var shapeErr *ErrPluginShapeAborted
	require.ErrorAs(t, err, &shapeErr)
}

func TestPluginPreModeExplicitAbort(t *testing.T) {
	c := New(nil)
	c.Register("NOOPService", func(view *View) (Module, error) { return &moduleB{}, nil }, Policy{}, false)
	target, err := c.Get("NOOPService")
	require.NoError(t, err)

	plugin := Plugin{
		Target: "NOOPService",
		Mode:   ModePre,
		Pre: map[string]PreHandler{
			"hello": func(_ *View, _ context.Context, _ []interface{}) (PreResult, error) {
				return AbortPreCall(), nil
			},
		},
	}
	wrapped := c.Apply(plugin, target)

	_, err = wrapped.Methods()["hello"](context.Background(), nil)
	var shapeErr *ErrPluginShapeAborted
	require.ErrorAs(t, err, &shapeErr)
}

type moduleWithHello struct{}

func (m *moduleWithHello) Methods() map[string]MethodFunc {
	return map[string]MethodFunc{
		"hello": func(_ context.Context, args []interface{}) (interface{}, error) { return args, nil },
	}
}

func TestPluginGetsTargetsOwnRestrictedView(t *testing.T) {
	c := New(nil)
	c.Register("A", func(view *View) (Module, error) { return &moduleWithHello{}, nil },
		Policy{AllowedAPIs: map[string]bool{"B": true}}, false)
	c.Register("B", func(view *View) (Module, error) { return &moduleB{}, nil }, Policy{}, false)

	target, err := c.Get("A")
	require.NoError(t, err)

	var sawSibling bool
	plugin := Plugin{
		Target: "A",
		Mode:   ModePost,
		Post: map[string]PostHandler{
			"hello": func(view *View, _ context.Context, _ []interface{}, _ interface{}) error {
				_, getErr := view.My.Get("B")
				sawSibling = getErr == nil
				return nil
			},
		},
	}
	wrapped := c.Apply(plugin, target)
	_, err = wrapped.Methods()["hello"](context.Background(), nil)
	require.NoError(t, err)
	require.True(t, sawSibling, "plugin view should share target A's policy scope, which allows B")
}

func TestPluginOverrideFallsThroughOnError(t *testing.T) {
	c := New(nil)
	c.Register("NOOPService", func(view *View) (Module, error) { return &moduleB{}, nil }, Policy{}, false)
	target, err := c.Get("NOOPService")
	require.NoError(t, err)

	plugin := Plugin{
		Target: "NOOPService",
		Mode:   ModeOverride,
		Override: map[string]OverrideHandler{
			"hello": func(_ *View, _ context.Context, _ []interface{}) (interface{}, error) {
				return nil, errAlwaysFails
			},
		},
	}
	wrapped := c.Apply(plugin, target)

	result, err := wrapped.Methods()["hello"](context.Background(), []interface{}{"original"})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"original"}, result)
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const errAlwaysFails = sentinelError("always fails")
