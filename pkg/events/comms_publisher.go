package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/castrpc/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// SubjectPrefix overrides the event subject prefix (e.g. from CASTRPC_EVENT_SUBJECT).
	SubjectPrefix string
	// Codec selects the payload encoding; the zero value is JSON.
	Codec commsutil.Codec
}

// CommsPublisher publishes registry events to COMMS subjects of the form
// <prefix>.<kind>.<method>.
type CommsPublisher struct {
	nc            *comms.Conn
	subjectPrefix string
	codec         commsutil.Codec
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	p := &CommsPublisher{nc: nc, subjectPrefix: commsutil.SubjectEventPrefix, codec: commsutil.JSON}
	if opts != nil {
		if opts.SubjectPrefix != "" {
			p.subjectPrefix = opts.SubjectPrefix
		}
		if opts.Codec.Name != "" {
			p.codec = opts.Codec
		}
	}
	return p
}

// PublishRegistered publishes a MethodRegisteredEvent.
func (p *CommsPublisher) PublishRegistered(_ context.Context, event *MethodRegisteredEvent) error {
	return p.publish(commsutil.EventRegistered, event.Method, event)
}

// PublishCallCompleted publishes a CallCompletedEvent.
func (p *CommsPublisher) PublishCallCompleted(_ context.Context, event *CallCompletedEvent) error {
	return p.publish(commsutil.EventCallCompleted, event.Method, event)
}

// PublishHookFailed publishes a HookFailedEvent.
func (p *CommsPublisher) PublishHookFailed(_ context.Context, event *HookFailedEvent) error {
	return p.publish(commsutil.EventHookFailed, event.Method, event)
}

func (p *CommsPublisher) publish(kind, method string, event any) error {
	data, err := p.codec.Encode(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode %s event: %w", commsPublisherLogPrefix, kind, err)
	}

	subject := commsutil.BuildEventSubject(p.subjectPrefix, kind, method)
	msg := comms.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(commsutil.HeaderContentType, p.codec.ContentType)

	if err := p.nc.PublishMsg(msg); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published %s event for %s", commsPublisherLogPrefix, kind, method))
	return nil
}
