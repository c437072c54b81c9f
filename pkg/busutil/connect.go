// Package busutil provides D-Bus connection helpers and the peer
// credential resolver.
package busutil

import (
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

const logPrefix = "busutil:connect"

// ConnectSession opens a private connection to the user's session bus.
func ConnectSession() (*dbus.Conn, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to session bus: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Connected to session bus as %s", logPrefix, conn.Names()[0]))
	return conn, nil
}

// ConnectSystem opens a private connection to the system bus.
func ConnectSystem() (*dbus.Conn, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to system bus: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Connected to system bus as %s", logPrefix, conn.Names()[0]))
	return conn, nil
}
