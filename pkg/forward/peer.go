package forward

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/entraunix/identity-broker/pkg/broker"
)

// DBusPeer invokes the device broker through a long-lived system bus
// connection. The connection is established once at startup and reused by
// every forwarded call; a call that finds it closed fails fast instead of
// hanging. Reconnection is the service manager's job.
type DBusPeer struct {
	conn  *dbus.Conn
	obj   dbus.BusObject
	iface string
}

var _ Peer = (*DBusPeer)(nil)

// NewDBusPeer creates a peer handle for the device broker registered at
// the given triple on conn.
func NewDBusPeer(conn *dbus.Conn, name string, path dbus.ObjectPath, iface string) *DBusPeer {
	return &DBusPeer{conn: conn, obj: conn.Object(name, path), iface: iface}
}

// Call invokes the named device operation with the caller uid as the
// trailing argument.
func (p *DBusPeer) Call(ctx context.Context, method, protocolVersion, correlationID, requestJSON string, uid uint32) (string, error) {
	if !p.conn.Connected() {
		return "", broker.NewError(broker.ReasonPeerUnavailable, "system bus connection is closed")
	}
	call := p.obj.CallWithContext(ctx, p.iface+"."+method, 0, protocolVersion, correlationID, requestJSON, uid)
	if call.Err != nil {
		return "", call.Err
	}
	var result string
	if err := call.Store(&result); err != nil {
		return "", broker.NewError(broker.ReasonPeerProtocolError,
			fmt.Sprintf("malformed reply to %s: %v", method, err))
	}
	return result, nil
}
