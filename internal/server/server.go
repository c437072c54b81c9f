// Package server orchestrates the broker service: bus connections, the
// forwarding peer, dispatch registration, and the audit publisher.
package server

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/godbus/dbus/v5"
	comms "github.com/nats-io/nats.go"

	"github.com/entraunix/identity-broker/internal/config"
	"github.com/entraunix/identity-broker/pkg/audit"
	"github.com/entraunix/identity-broker/pkg/broker"
	"github.com/entraunix/identity-broker/pkg/busutil"
	"github.com/entraunix/identity-broker/pkg/dispatch"
	"github.com/entraunix/identity-broker/pkg/forward"
	"github.com/entraunix/identity-broker/pkg/protoversion"
)

const logPrefix = "server:server"

// Run starts the session broker forwarding to the configured device
// broker peer, blocks until a shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	return run(cfg, nil)
}

// RunWithBroker serves the session registration with a custom broker
// implementation instead of the built-in forwarder.
func RunWithBroker(impl broker.SessionBroker) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	return run(cfg, impl)
}

// RunWithKeyBroker serves the key-store registration on the system bus
// with the given implementation, blocks until a shutdown signal, then
// cleans up. Key-store implementations own the key material; this module
// contributes the registration, caller authentication and audit plumbing.
func RunWithKeyBroker(impl broker.KeyBroker) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	return runKey(cfg, impl)
}

func run(cfg *config.Config, impl broker.SessionBroker) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel(cfg.LogLevel)})))

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting identity-broker %s", logPrefix, protoversion.BrokerVersion))

	// Step 1: connect to the session bus (the registration surface).
	sessionConn, err := busutil.ConnectSession()
	if err != nil {
		return err
	}
	defer sessionConn.Close()

	// Step 2: with the built-in forwarder, establish the peer handle on
	// the system bus before accepting traffic.
	var systemConn *dbus.Conn
	if impl == nil {
		systemConn, err = busutil.ConnectSystem()
		if err != nil {
			return err
		}
		defer systemConn.Close()
		peer := forward.NewDBusPeer(systemConn, cfg.PeerBusName, dbus.ObjectPath(cfg.PeerObjectPath), cfg.PeerInterface)
		impl = forward.NewBroker(peer, forward.Options{CallTimeout: cfg.PeerCallTimeout})
		slog.Info(fmt.Sprintf("%s - Forwarding to %s at %s (%s)", logPrefix, cfg.PeerBusName, cfg.PeerObjectPath, cfg.PeerInterface))
	}

	// Step 3: audit publisher.
	publisher, nc, err := newAuditPublisher(cfg)
	if err != nil {
		return err
	}
	if nc != nil {
		defer nc.Drain()
	}

	// Step 4: bind and register the dispatch service.
	svc := dispatch.NewSessionService(sessionConn, impl, busutil.NewUIDResolver(sessionConn), dispatch.Options{
		ResolveTimeout: cfg.ResolveTimeout,
		Audit:          publisher,
		ServiceLabel:   cfg.ServiceName,
	})
	if err := svc.Register(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - identity-broker is ready", logPrefix))
	awaitShutdown(svc)
	return nil
}

// runKey serves a key-store implementation at the key-store triple on the
// system bus.
func runKey(cfg *config.Config, impl broker.KeyBroker) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel(cfg.LogLevel)})))

	slog.Info(fmt.Sprintf("%s - Starting key-store broker %s", logPrefix, protoversion.BrokerVersion))

	systemConn, err := busutil.ConnectSystem()
	if err != nil {
		return err
	}
	defer systemConn.Close()

	publisher, nc, err := newAuditPublisher(cfg)
	if err != nil {
		return err
	}
	if nc != nil {
		defer nc.Drain()
	}

	svc := dispatch.NewKeyService(systemConn, impl, busutil.NewUIDResolver(systemConn), dispatch.Options{
		ResolveTimeout: cfg.ResolveTimeout,
		Audit:          publisher,
		ServiceLabel:   cfg.ServiceName + "-keystore",
	})
	if err := svc.Register(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - key-store broker is ready", logPrefix))
	awaitShutdown(svc)
	return nil
}

// awaitShutdown blocks until a shutdown signal, then releases the
// service's registration.
func awaitShutdown(svc *dispatch.Service) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	if err := svc.Shutdown(); err != nil {
		slog.Error(fmt.Sprintf("%s - shutdown: %v", logPrefix, err))
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
}

// newAuditPublisher builds the audit publisher from config: a COMMS
// publisher when AUDIT_COMMS_URL is set, otherwise a no-op. The returned
// connection is nil for the no-op case.
func newAuditPublisher(cfg *config.Config) (audit.Publisher, *comms.Conn, error) {
	if cfg.AuditCOMMSURL == "" {
		return &audit.NoOpPublisher{}, nil, nil
	}
	nc, err := audit.Connect(cfg.AuditCOMMSURL, cfg.ServiceName)
	if err != nil {
		return nil, nil, fmt.Errorf("%s - failed to connect audit publisher: %w", logPrefix, err)
	}
	opts := &audit.CommsPublisherOpts{}
	if cfg.AuditSubject != "" {
		opts.GlobalSubject = cfg.AuditSubject
	}
	return audit.NewCommsPublisher(nc, opts), nc, nil
}

// slogLevel maps the configured level name onto a slog level.
func slogLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
