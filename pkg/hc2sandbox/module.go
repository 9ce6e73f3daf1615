// Package hc2sandbox implements the Sandbox Container: an in-process module
// registry with lazy construction, a per-module capability-scoped view of
// sibling modules, and a three-mode method interception framework.
package hc2sandbox

import "context"

// MethodFunc is one callable method exposed by a module. The sandbox's
// extension framework wraps methods found this way rather than reaching
// for the host language's dynamic member access — a precompiled
// name-table in place of runtime reflection, per the container's own
// open design note on dynamic member access.
type MethodFunc func(ctx context.Context, args []interface{}) (interface{}, error)

// Module is a constructed sandbox module: a named set of callable methods.
type Module interface {
	Methods() map[string]MethodFunc
}

// Factory constructs a Module given its restricted View. Called at most
// once per module slot.
type Factory func(view *View) (Module, error)

// Policy is a module's capability grant: the set of sibling module names
// it may read through My. An absent policy entry means an empty
// allow-set (default deny).
type Policy struct {
	AllowedAPIs map[string]bool
}

// Allows reports whether name is in the policy's allow-set.
func (p Policy) Allows(name string) bool {
	return p.AllowedAPIs != nil && p.AllowedAPIs[name]
}
