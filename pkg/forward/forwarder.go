// Package forward implements the session-scoped broker that relays every
// operation to the device broker on the system bus. The forwarder adds
// exactly one piece of information the inbound call did not carry: the
// caller's resolved uid, bridging the session trust context across the bus
// boundary.
package forward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/entraunix/identity-broker/pkg/broker"
)

const logPrefix = "forward:broker"

const defaultCallTimeout = 5 * time.Second

// Peer is the long-lived handle to the device broker's registration.
// Implementations must be safe for concurrent use; the forwarder shares
// one Peer across all in-flight calls.
type Peer interface {
	// Call invokes the named device operation and returns its reply
	// payload.
	Call(ctx context.Context, method, protocolVersion, correlationID, requestJSON string, uid uint32) (string, error)
}

// Options tunes the forwarding broker.
type Options struct {
	// CallTimeout bounds each forwarded call. Zero means 5s.
	CallTimeout time.Duration
}

// Broker is a session broker whose operations are served by the device
// broker behind Peer. The inbound caller is not answered until the peer
// replies or fails; peer failures are mapped reason-preserving.
type Broker struct {
	peer Peer
	opts Options
}

var _ broker.SessionBroker = (*Broker)(nil)

// NewBroker creates a forwarding broker over the given peer handle.
func NewBroker(peer Peer, opts Options) *Broker {
	return &Broker{peer: peer, opts: opts}
}

func (b *Broker) AcquireTokenInteractively(ctx context.Context, req *broker.Request) (string, error) {
	return b.forward(ctx, broker.OpAcquireTokenInteractively, req)
}

func (b *Broker) AcquireTokenSilently(ctx context.Context, req *broker.Request) (string, error) {
	return b.forward(ctx, broker.OpAcquireTokenSilently, req)
}

func (b *Broker) GetAccounts(ctx context.Context, req *broker.Request) (string, error) {
	return b.forward(ctx, broker.OpGetAccounts, req)
}

func (b *Broker) RemoveAccount(ctx context.Context, req *broker.Request) (string, error) {
	return b.forward(ctx, broker.OpRemoveAccount, req)
}

func (b *Broker) AcquirePrtSsoCookie(ctx context.Context, req *broker.Request) (string, error) {
	return b.forward(ctx, broker.OpAcquirePrtSsoCookie, req)
}

func (b *Broker) GenerateSignedHTTPRequest(ctx context.Context, req *broker.Request) (string, error) {
	return b.forward(ctx, broker.OpGenerateSignedHTTPRequest, req)
}

func (b *Broker) CancelInteractiveFlow(ctx context.Context, req *broker.Request) (string, error) {
	return b.forward(ctx, broker.OpCancelInteractiveFlow, req)
}

func (b *Broker) GetLinuxBrokerVersion(ctx context.Context, req *broker.Request) (string, error) {
	return b.forward(ctx, broker.OpGetLinuxBrokerVersion, req)
}

// forward re-issues the inbound call against the peer, passing the
// protocol version, correlation id and payload through unchanged plus the
// resolved caller uid.
func (b *Broker) forward(ctx context.Context, method string, req *broker.Request) (string, error) {
	if b.peer == nil {
		return "", broker.NewError(broker.ReasonPeerUnavailable, "no peer service handle")
	}
	callCtx, cancel := context.WithTimeout(ctx, b.callTimeout())
	defer cancel()

	result, err := b.peer.Call(callCtx, method, req.ProtocolVersion, req.CorrelationID, req.Body, req.UID)
	if err != nil {
		return "", mapPeerError(method, err)
	}
	return result, nil
}

func (b *Broker) callTimeout() time.Duration {
	if b.opts.CallTimeout > 0 {
		return b.opts.CallTimeout
	}
	return defaultCallTimeout
}

// Bus-level error names that mean the peer never answered.
var peerUnavailableNames = map[string]struct{}{
	"org.freedesktop.DBus.Error.ServiceUnknown": {},
	"org.freedesktop.DBus.Error.NameHasNoOwner": {},
	"org.freedesktop.DBus.Error.NoReply":        {},
	"org.freedesktop.DBus.Error.Timeout":        {},
	"org.freedesktop.DBus.Error.Disconnected":   {},
}

// mapPeerError translates a peer failure into a caller-facing failure.
// The peer's reason string survives the crossing: broker-namespace error
// names are stripped back to their reason, foreign names are carried
// whole, and only transport-level failures collapse into the
// peer_unavailable / peer_protocol_error reasons.
func mapPeerError(method string, err error) *broker.Error {
	var berr *broker.Error
	if errors.As(err, &berr) {
		return berr
	}
	var derr dbus.Error
	if errors.As(err, &derr) {
		if _, ok := peerUnavailableNames[derr.Name]; ok {
			return broker.NewError(broker.ReasonPeerUnavailable,
				fmt.Sprintf("%s - peer did not answer %s: %s", logPrefix, method, derr.Name))
		}
		return broker.FromDBusError(derr)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return broker.NewError(broker.ReasonPeerUnavailable,
			fmt.Sprintf("%s - forwarded call %s gave up: %v", logPrefix, method, err))
	}
	return broker.NewError(broker.ReasonPeerProtocolError,
		fmt.Sprintf("%s - forwarded call %s failed: %v", logPrefix, method, err))
}
