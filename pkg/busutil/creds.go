package busutil

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/entraunix/identity-broker/pkg/broker"
)

const credsLogPrefix = "busutil:creds"

// getConnectionUnixUser is the bus daemon's connection-credential query.
const getConnectionUnixUser = "org.freedesktop.DBus.GetConnectionUnixUser"

// busCaller is the slice of dbus.BusObject the resolver needs, narrowed so
// tests can substitute a fake bus daemon.
type busCaller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// UIDResolver resolves the unix uid of a call's sender by asking the bus
// daemon on the connection the call arrived on. Payload content is never
// consulted; the sender address is assigned by the daemon itself.
// The resolver is stateless and safe for concurrent use.
type UIDResolver struct {
	bus busCaller
}

// NewUIDResolver creates a resolver bound to the given bus connection.
func NewUIDResolver(conn *dbus.Conn) *UIDResolver {
	return &UIDResolver{bus: conn.BusObject()}
}

// ResolveUID returns the unix uid of the process behind sender. It fails
// with credential_unavailable when the daemon cannot report credentials
// (sender gone, transport without credential passing); it never falls back
// to uid 0.
func (r *UIDResolver) ResolveUID(ctx context.Context, sender string) (uint32, error) {
	call := r.bus.CallWithContext(ctx, getConnectionUnixUser, 0, sender)
	if call.Err != nil {
		return 0, broker.NewError(broker.ReasonCredentialUnavailable,
			fmt.Sprintf("%s - bus daemon reported no credentials for %s: %v", credsLogPrefix, sender, call.Err))
	}
	var uid uint32
	if err := call.Store(&uid); err != nil {
		return 0, broker.NewError(broker.ReasonCredentialUnavailable,
			fmt.Sprintf("%s - unexpected credential reply for %s: %v", credsLogPrefix, sender, err))
	}
	return uid, nil
}
