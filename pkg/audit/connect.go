package audit

import (
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"
)

const connectLogPrefix = "audit:connect"

// Audit-stream connection tuning. The stream is best-effort: a broker must
// keep answering token calls while the audit sink is down, so reconnects
// buffer a bounded amount of audit traffic and then drop.
const (
	connectTimeout   = 10 * time.Second
	reconnectWait    = 2 * time.Second
	maxReconnects    = 60
	reconnectBufSize = 1 << 20
)

// Connect creates the COMMS connection behind a CommsPublisher. The
// connection is named after the publishing service so audit traffic is
// attributable on the server side.
func Connect(url, service string) (*comms.Conn, error) {
	slog.Info(fmt.Sprintf("%s - Connecting audit stream to %s as %s", connectLogPrefix, url, service))

	nc, err := comms.Connect(url,
		comms.Name(service+"-audit"),
		comms.Timeout(connectTimeout),
		comms.ReconnectWait(reconnectWait),
		comms.MaxReconnects(maxReconnects),
		comms.ReconnectBufSize(reconnectBufSize),
		comms.DisconnectErrHandler(func(_ *comms.Conn, err error) {
			slog.Warn(fmt.Sprintf("%s - audit stream disconnected: %v", connectLogPrefix, err))
		}),
		comms.ReconnectHandler(func(nc *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - audit stream reconnected to %s", connectLogPrefix, nc.ConnectedUrl()))
		}),
		comms.ClosedHandler(func(nc *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - audit stream closed", connectLogPrefix))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect audit stream: %w", connectLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Audit stream connected to %s", connectLogPrefix, nc.ConnectedUrl()))
	return nc, nil
}
