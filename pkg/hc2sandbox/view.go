package hc2sandbox

// View is the restricted view a module's factory receives: stable core
// utilities, a capability-scoped proxy to siblings, and the container's
// event bus.
type View struct {
	Core   Core
	My     *MyProxy
	Events *EventBus
}
