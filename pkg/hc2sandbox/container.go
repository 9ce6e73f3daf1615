package hc2sandbox

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type slotState int

const (
	slotEmpty slotState = iota
	slotConstructing
	slotReady
	slotFailed
)

type slot struct {
	factory   Factory
	policy    Policy
	bootstrap bool

	state    slotState
	instance Module
	err      error
}

// Container hosts a set of named module factories and policy map, building
// each module's restricted view lazily and at most once. Construction is
// not re-entrant: a module whose constructor transitively accesses itself
// gets an under-construction error instead of recursing, matching the
// sandbox's single-threaded cooperative concurrency model.
type Container struct {
	mu     sync.Mutex
	slots  map[string]*slot
	events *EventBus
	log    *zap.Logger
}

// New constructs an empty Container.
func New(log *zap.Logger) *Container {
	if log == nil {
		log = zap.NewNop()
	}
	return &Container{
		slots:  make(map[string]*slot),
		events: newEventBus(),
		log:    log.With(zap.String("module", "hc2sandbox")),
	}
}

// Register declares a module slot. bootstrap modules are constructed
// eagerly by Start, after every slot has been defined.
func (c *Container) Register(name string, factory Factory, policy Policy, bootstrap bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[name] = &slot{factory: factory, policy: policy, bootstrap: bootstrap}
}

// Start constructs every bootstrap module. Failure in one bootstrap
// constructor is logged and does not stop the others, since their
// constructors may safely call into siblings permitted by policy only
// once every slot is defined.
func (c *Container) Start() {
	c.mu.Lock()
	names := make([]string, 0, len(c.slots))
	for name, s := range c.slots {
		if s.bootstrap {
			names = append(names, name)
		}
	}
	c.mu.Unlock()

	for _, name := range names {
		if _, err := c.get(name); err != nil {
			c.log.Error("bootstrap module construction failed", zap.String("module", name), zap.Error(err))
		}
	}
}

// Get resolves (constructing if necessary) the named module from outside
// any module's own restricted view.
func (c *Container) Get(name string) (Module, error) {
	return c.get(name)
}

// Events returns the container-scoped event bus.
func (c *Container) Events() *EventBus {
	return c.events
}

// ViewFor builds the restricted view a module named name would receive
// from its own factory: the same Core, a My proxy scoped to name's own
// policy, and the shared event bus. Used to give a plugin instance the
// same restricted view as the module it targets, per the sandbox's
// plugin-sandboxing invariant.
func (c *Container) ViewFor(name string) *View {
	return &View{
		Core:   newCore(c.log, name),
		My:     newMyProxy(c, name),
		Events: c.events,
	}
}

// Apply wraps target (the module registered as plugin.Target) with
// plugin, giving the plugin instance plugin.Target's own restricted view.
func (c *Container) Apply(plugin Plugin, target Module) Module {
	return Apply(plugin, target, c.ViewFor(plugin.Target), c.log)
}

func (c *Container) factory(name string) (Factory, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[name]
	if !ok {
		return nil, false
	}
	return s.factory, true
}

func (c *Container) policyFor(name string) Policy {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[name]
	if !ok {
		return Policy{}
	}
	return s.policy
}

// get is the one-shot memoized lazy constructor: first access calls the
// factory with a restricted view and caches the result; later accesses
// return the cached instance without reconstructing it.
func (c *Container) get(name string) (Module, error) {
	c.mu.Lock()
	s, ok := c.slots[name]
	if !ok {
		c.mu.Unlock()
		return nil, &ErrModuleNotFound{Name: name}
	}

	switch s.state {
	case slotReady:
		c.mu.Unlock()
		return s.instance, nil
	case slotFailed:
		c.mu.Unlock()
		return nil, s.err
	case slotConstructing:
		c.mu.Unlock()
		return nil, fmt.Errorf("module %q is under construction (re-entrant access)", name)
	}

	s.state = slotConstructing
	c.mu.Unlock()

	view := &View{
		Core:   newCore(c.log, name),
		My:     newMyProxy(c, name),
		Events: c.events,
	}
	instance, err := s.factory(view)

	c.mu.Lock()
	if err != nil {
		s.state = slotFailed
		s.err = err
	} else {
		s.state = slotReady
		s.instance = instance
	}
	c.mu.Unlock()

	return instance, err
}
