package audit

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"
)

const commsPublisherLogPrefix = "audit:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use
// defaults.
type CommsPublisherOpts struct {
	// GlobalSubject overrides the global audit subject (e.g. from
	// AUDIT_SUBJECT).
	GlobalSubject string
}

// CommsPublisher publishes broker audit events to COMMS subjects: the
// global subject plus a per-method granular subject.
type CommsPublisher struct {
	nc            *comms.Conn
	globalSubject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use
// defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	globalSubject := SubjectAudit
	if opts != nil && opts.GlobalSubject != "" {
		globalSubject = opts.GlobalSubject
	}
	return &CommsPublisher{nc: nc, globalSubject: globalSubject}
}

// Publish publishes an Event to both the granular and global audit
// subjects.
func (p *CommsPublisher) Publish(_ context.Context, event *Event) error {
	data, err := event.Encode()
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	granularSubject := BuildMethodSubject(p.globalSubject, event.Method)
	if err := p.nc.Publish(granularSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, granularSubject, err))
		return err
	}

	if err := p.nc.Publish(p.globalSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, p.globalSubject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published audit event for %s (correlation %s)", commsPublisherLogPrefix, event.Method, event.CorrelationID))
	return nil
}
