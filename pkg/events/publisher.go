package events

import "context"

// EventPublisher is the interface for publishing registry events.
type EventPublisher interface {
	PublishRegistered(ctx context.Context, event *MethodRegisteredEvent) error
	PublishCallCompleted(ctx context.Context, event *CallCompletedEvent) error
	PublishHookFailed(ctx context.Context, event *HookFailedEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (for in-process usage without events).
type NoOpPublisher struct{}

// PublishRegistered is a no-op.
func (p *NoOpPublisher) PublishRegistered(_ context.Context, _ *MethodRegisteredEvent) error {
	return nil
}

// PublishCallCompleted is a no-op.
func (p *NoOpPublisher) PublishCallCompleted(_ context.Context, _ *CallCompletedEvent) error {
	return nil
}

// PublishHookFailed is a no-op.
func (p *NoOpPublisher) PublishHookFailed(_ context.Context, _ *HookFailedEvent) error {
	return nil
}

// Callbacks holds the functions a CallbackPublisher forwards to. Nil entries are skipped.
type Callbacks struct {
	Registered    func(ctx context.Context, event *MethodRegisteredEvent) error
	CallCompleted func(ctx context.Context, event *CallCompletedEvent) error
	HookFailed    func(ctx context.Context, event *HookFailedEvent) error
}

// CallbackPublisher is an EventPublisher that calls callback functions (for testing
// and in-process listeners).
type CallbackPublisher struct {
	callbacks Callbacks
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb Callbacks) *CallbackPublisher {
	return &CallbackPublisher{callbacks: cb}
}

// PublishRegistered calls the Registered callback.
func (p *CallbackPublisher) PublishRegistered(ctx context.Context, event *MethodRegisteredEvent) error {
	if p.callbacks.Registered == nil {
		return nil
	}
	return p.callbacks.Registered(ctx, event)
}

// PublishCallCompleted calls the CallCompleted callback.
func (p *CallbackPublisher) PublishCallCompleted(ctx context.Context, event *CallCompletedEvent) error {
	if p.callbacks.CallCompleted == nil {
		return nil
	}
	return p.callbacks.CallCompleted(ctx, event)
}

// PublishHookFailed calls the HookFailed callback.
func (p *CallbackPublisher) PublishHookFailed(ctx context.Context, event *HookFailedEvent) error {
	if p.callbacks.HookFailed == nil {
		return nil
	}
	return p.callbacks.HookFailed(ctx, event)
}
