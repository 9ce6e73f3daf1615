package hc2sandbox

import "fmt"

// ErrPolicyViolation is returned when a module reads a sibling it has no
// policy grant for.
type ErrPolicyViolation struct {
	From, To string
}

func (e *ErrPolicyViolation) Error() string {
	return fmt.Sprintf("module %q is not permitted to access %q", e.From, e.To)
}

// ErrModuleNotFound is returned when a module name has no registered
// factory at all.
type ErrModuleNotFound struct {
	Name string
}

func (e *ErrModuleNotFound) Error() string {
	return fmt.Sprintf("module %q is not registered", e.Name)
}

// MyProxy is the capability-scoped view of sibling modules a module M sees
// as My. Access to a sibling is allowed iff it is in M's policy
// allow-set; the proxy itself is the single source of truth for that
// check (a single private field, one accessor — no duplicate getter/field
// pair).
type MyProxy struct {
	container  *Container
	fromModule string
}

func newMyProxy(c *Container, fromModule string) *MyProxy {
	return &MyProxy{container: c, fromModule: fromModule}
}

// Get resolves (constructing if necessary) the sibling module named name,
// enforcing the capability boundary. Writes are not supported by this
// type at all — there is no setter, matching the spec's "writes on My
// are forbidden" invariant.
func (p *MyProxy) Get(name string) (Module, error) {
	if _, registered := p.container.factory(name); !registered {
		return nil, &ErrModuleNotFound{Name: name}
	}
	if !p.container.policyFor(p.fromModule).Allows(name) {
		return nil, &ErrPolicyViolation{From: p.fromModule, To: name}
	}
	return p.container.get(name)
}
