// Package statemachine provides a minimal state-function runner in Rob
// Pike's style: states are functions that return the next state. The
// game loop uses it to drive a round through its phases; any state may
// abort the whole run by returning an error.
package statemachine

// StateFn performs one phase on the entity and returns the next phase,
// or nil to finish. A non-nil error stops the run immediately.
type StateFn[T any] func(*T) (StateFn[T], error)

// Machine drives an entity through its state functions. It is owned
// and run by a single goroutine; it has no locking of its own.
type Machine[T any] struct {
	entity *T
	state  StateFn[T]
}

// New creates a machine positioned at the initial state.
func New[T any](entity *T, initial StateFn[T]) *Machine[T] {
	return &Machine[T]{entity: entity, state: initial}
}

// Run executes states until one returns nil or fails.
func (m *Machine[T]) Run() error {
	for m.state != nil {
		next, err := m.state(m.entity)
		if err != nil {
			return err
		}
		m.state = next
	}
	return nil
}

// Step executes exactly one state transition. It reports whether the
// machine can still advance.
func (m *Machine[T]) Step() (bool, error) {
	if m.state == nil {
		return false, nil
	}
	next, err := m.state(m.entity)
	if err != nil {
		return false, err
	}
	m.state = next
	return m.state != nil, nil
}
