package audit

import "context"

// Publisher is the interface for publishing broker call audit events.
// Publishing is best-effort: the dispatch layer logs failures and never
// fails a call over them.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// NoOpPublisher is a Publisher that does nothing (auditing disabled).
type NoOpPublisher struct{}

// Publish is a no-op.
func (p *NoOpPublisher) Publish(_ context.Context, _ *Event) error {
	return nil
}

// CallbackPublisher is a Publisher that calls a callback function (for
// testing and in-process consumers).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *Event) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *Event) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// Publish calls the callback.
func (p *CallbackPublisher) Publish(ctx context.Context, event *Event) error {
	return p.callback(ctx, event)
}
