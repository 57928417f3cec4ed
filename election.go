package ordinator

import "context"

// Elector decides which coordinator replica is the single writer of the log
type Elector interface {
	// Campaign blocks until leadership is acquired or ctx is done.
	// The returned channel is closed when leadership is lost
	Campaign(ctx context.Context) (<-chan struct{}, error)

	// Resign releases leadership if held
	Resign(ctx context.Context) error
}

// StaticElector is used by single replica deployments.
// It's always the leader
type StaticElector struct{}

// Campaign returns immediately with a channel that is never closed
func (StaticElector) Campaign(ctx context.Context) (<-chan struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return make(chan struct{}), nil
}

// Resign does nothing
func (StaticElector) Resign(context.Context) error {
	return nil
}
