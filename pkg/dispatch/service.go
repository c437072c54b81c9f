// Package dispatch binds broker implementations to bus registrations and
// routes inbound calls to contract methods. Every call is authenticated
// against the bus daemon's credential query before the implementation
// runs; caller identity never comes from request content.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/entraunix/identity-broker/pkg/audit"
	"github.com/entraunix/identity-broker/pkg/broker"
	"github.com/entraunix/identity-broker/pkg/protoversion"
)

const logPrefix = "dispatch:service"

const defaultResolveTimeout = 5 * time.Second

// CredentialResolver resolves the unix uid of a call's sender.
type CredentialResolver interface {
	ResolveUID(ctx context.Context, sender string) (uint32, error)
}

// BusConn is the slice of *dbus.Conn a Service needs to claim and release
// its registration. Narrowed so the registration lifecycle is testable
// without a live bus.
type BusConn interface {
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)
	ReleaseName(name string) (dbus.ReleaseNameReply, error)
	ExportMethodTable(methods map[string]interface{}, path dbus.ObjectPath, iface string) error
	Export(v interface{}, path dbus.ObjectPath, iface string) error
}

// Binding is the well-known name / object path / interface triple a
// Service claims on its bus.
type Binding struct {
	Name      string
	Path      dbus.ObjectPath
	Interface string
}

// SessionBinding returns the canonical session-scoped triple.
func SessionBinding() Binding {
	return Binding{
		Name:      broker.SessionBusName,
		Path:      dbus.ObjectPath(broker.SessionObjectPath),
		Interface: broker.SessionInterface,
	}
}

// DeviceBinding returns the default device-scoped triple.
func DeviceBinding() Binding {
	return Binding{
		Name:      broker.DefaultDeviceBusName,
		Path:      dbus.ObjectPath(broker.DefaultDeviceObjectPath),
		Interface: broker.DefaultDeviceInterface,
	}
}

// KeyBinding returns the key-store triple.
func KeyBinding() Binding {
	return Binding{
		Name:      broker.KeyBusName,
		Path:      dbus.ObjectPath(broker.KeyObjectPath),
		Interface: broker.KeyInterface,
	}
}

// Options tunes a Service.
type Options struct {
	// ResolveTimeout bounds the per-call credential query round-trip.
	// Zero means 5s.
	ResolveTimeout time.Duration
	// Audit receives one event per completed call. Nil disables auditing.
	Audit audit.Publisher
	// ServiceLabel names this registration in logs and audit events.
	// Empty means the binding's bus name.
	ServiceLabel string
}

type serviceOp struct {
	op broker.Operation
	fn broker.InvokeFunc
}

// Service binds one broker implementation to one bus registration. A
// Service starts unregistered; Register claims the name and exports the
// contract's method table, Shutdown releases both. Calls are dispatched
// concurrently by the transport with no cross-call ordering guarantee.
type Service struct {
	conn     BusConn
	binding  Binding
	resolver CredentialResolver
	opts     Options
	ops      map[string]serviceOp

	mu         sync.Mutex
	registered bool
}

// NewSessionService creates a Service for a session-scoped broker
// implementation bound to the canonical session triple.
func NewSessionService(conn BusConn, impl broker.SessionBroker, resolver CredentialResolver, opts Options) *Service {
	ops := make(map[string]serviceOp, len(broker.SessionOperations))
	for _, op := range broker.SessionOperations {
		fn, ok := broker.SessionInvoker(impl, op.Method)
		if !ok {
			continue
		}
		ops[op.Method] = serviceOp{op: op, fn: fn}
	}
	return newService(conn, SessionBinding(), resolver, opts, ops)
}

// NewDeviceService creates a Service for a device-scoped broker
// implementation bound to the given triple (use DeviceBinding for the
// default).
func NewDeviceService(conn BusConn, impl broker.DeviceBroker, binding Binding, resolver CredentialResolver, opts Options) *Service {
	ops := make(map[string]serviceOp, len(broker.DeviceOperations))
	for _, op := range broker.DeviceOperations {
		fn, ok := broker.DeviceInvoker(impl, op.Method)
		if !ok {
			continue
		}
		ops[op.Method] = serviceOp{op: op, fn: fn}
	}
	return newService(conn, binding, resolver, opts, ops)
}

// NewKeyService creates a Service for a key-store implementation bound to
// the key-store triple on the system bus.
func NewKeyService(conn BusConn, impl broker.KeyBroker, resolver CredentialResolver, opts Options) *Service {
	ops := make(map[string]serviceOp, len(broker.KeyOperations))
	for _, op := range broker.KeyOperations {
		fn, ok := broker.KeyInvoker(impl, op.Method)
		if !ok {
			continue
		}
		ops[op.Method] = serviceOp{op: op, fn: fn}
	}
	return newService(conn, KeyBinding(), resolver, opts, ops)
}

func newService(conn BusConn, binding Binding, resolver CredentialResolver, opts Options, ops map[string]serviceOp) *Service {
	if opts.ServiceLabel == "" {
		opts.ServiceLabel = binding.Name
	}
	return &Service{
		conn:     conn,
		binding:  binding,
		resolver: resolver,
		opts:     opts,
		ops:      ops,
	}
}

// Register exports the contract's method table and claims the well-known
// name. It fails when the name is owned by another service.
func (s *Service) Register() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registered {
		return fmt.Errorf("%s - %s is already registered", logPrefix, s.binding.Name)
	}

	table := make(map[string]interface{}, len(s.ops))
	for method, op := range s.ops {
		switch op.op.Shape {
		case broker.ShapeEnvelopeUID:
			table[method] = s.deviceMethod(method)
		case broker.ShapeKeySession:
			table[method] = s.keyMethod(method)
		default:
			table[method] = s.sessionMethod(method)
		}
	}
	if err := s.conn.ExportMethodTable(table, s.binding.Path, s.binding.Interface); err != nil {
		return fmt.Errorf("%s - failed to export %s at %s: %w", logPrefix, s.binding.Interface, s.binding.Path, err)
	}

	reply, err := s.conn.RequestName(s.binding.Name, dbus.NameFlagDoNotQueue)
	if err != nil {
		s.unexport()
		return fmt.Errorf("%s - failed to request name %s: %w", logPrefix, s.binding.Name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		s.unexport()
		return fmt.Errorf("%s - name %s is owned by another service", logPrefix, s.binding.Name)
	}

	s.registered = true
	slog.Info(fmt.Sprintf("%s - Listening on %s at %s (%s)", logPrefix, s.binding.Name, s.binding.Path, s.binding.Interface))
	return nil
}

// Shutdown releases the well-known name and unexports the method table.
// Shutting down an unregistered Service is a no-op.
func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.registered {
		return nil
	}
	if _, err := s.conn.ReleaseName(s.binding.Name); err != nil {
		return fmt.Errorf("%s - failed to release name %s: %w", logPrefix, s.binding.Name, err)
	}
	if err := s.conn.Export(nil, s.binding.Path, s.binding.Interface); err != nil {
		return fmt.Errorf("%s - failed to unexport %s: %w", logPrefix, s.binding.Path, err)
	}
	s.registered = false
	slog.Info(fmt.Sprintf("%s - Released %s", logPrefix, s.binding.Name))
	return nil
}

// unexport clears the method table after a failed or finished
// registration. Failures are logged, not returned; there is nothing left
// to roll back.
func (s *Service) unexport() {
	if err := s.conn.Export(nil, s.binding.Path, s.binding.Interface); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to unexport %s after registration failure: %v", logPrefix, s.binding.Path, err))
	}
}

// sessionMethod wraps one session-scoped operation for the method table.
// The transport fills in the sender address.
func (s *Service) sessionMethod(method string) func(dbus.Sender, string, string, string) (string, *dbus.Error) {
	return func(sender dbus.Sender, protocolVersion, correlationID, requestJSON string) (string, *dbus.Error) {
		return s.HandleCall(context.Background(), method, string(sender), protocolVersion, correlationID, requestJSON, nil)
	}
}

// deviceMethod wraps one device-scoped operation; the trailing wire
// argument is the uid the caller claims to act for.
func (s *Service) deviceMethod(method string) func(dbus.Sender, string, string, string, uint32) (string, *dbus.Error) {
	return func(sender dbus.Sender, protocolVersion, correlationID, requestJSON string, uid uint32) (string, *dbus.Error) {
		claimed := uid
		return s.HandleCall(context.Background(), method, string(sender), protocolVersion, correlationID, requestJSON, &claimed)
	}
}

// keyMethod wraps one key-store operation, which carries a key-store
// session id instead of the protocol envelope.
func (s *Service) keyMethod(method string) func(dbus.Sender, string, string) (string, *dbus.Error) {
	return func(sender dbus.Sender, sessionID, requestJSON string) (string, *dbus.Error) {
		return s.HandleKeyCall(context.Background(), method, string(sender), sessionID, requestJSON)
	}
}

// HandleCall runs the per-call algorithm: descriptor lookup, credential
// resolution, claimed-uid verification for device-scoped calls, and
// invocation. claimedUID is nil for session-scoped calls. Exactly one
// reply value is produced on every path; broker failures are surfaced
// verbatim.
func (s *Service) HandleCall(ctx context.Context, method, sender, protocolVersion, correlationID, requestJSON string, claimedUID *uint32) (string, *dbus.Error) {
	start := time.Now()
	supported := protoversion.Supported(protocolVersion)

	op, ok := s.ops[method]
	if !ok {
		ferr := broker.NewError(broker.ReasonUnknownMethod,
			fmt.Sprintf("method %q is not part of %s", method, s.binding.Interface))
		s.publishAudit(ctx, method, correlationID, "", 0, false, protocolVersion, supported, start, ferr)
		return "", ferr.DBusError()
	}

	if !supported {
		slog.Warn(fmt.Sprintf("%s - call %s (correlation %s) declares protocol version %q outside %s", logPrefix, method, correlationID, protocolVersion, protoversion.SupportedRange))
	}

	uid, ferr := s.resolveCaller(ctx, method, sender)
	if ferr != nil {
		s.publishAudit(ctx, method, correlationID, "", 0, false, protocolVersion, supported, start, ferr)
		return "", ferr.DBusError()
	}

	callerUID := uid
	if claimedUID != nil {
		// A device-scoped call names the uid it acts for on the wire, but
		// only the resolved identity decides whether that claim stands: a
		// caller may act for itself, and root may act for any uid (the
		// session forwarder runs as the user, the broker daemon as root).
		if uid != 0 && *claimedUID != uid {
			slog.Warn(fmt.Sprintf("%s - rejecting %s: caller uid %d claimed uid %d", logPrefix, method, uid, *claimedUID))
			ferr := broker.NewError(broker.ReasonUnauthorized,
				fmt.Sprintf("caller uid %d may not act for uid %d", uid, *claimedUID))
			s.publishAudit(ctx, method, correlationID, "", uid, true, protocolVersion, supported, start, ferr)
			return "", ferr.DBusError()
		}
		callerUID = *claimedUID
	}

	req := &broker.Request{
		ProtocolVersion: protocolVersion,
		CorrelationID:   correlationID,
		Body:            requestJSON,
		UID:             callerUID,
	}
	result, err := op.fn(ctx, req)
	if err != nil {
		ferr := broker.AsError(err)
		slog.Debug(fmt.Sprintf("%s - %s (correlation %s) failed: %s", logPrefix, method, correlationID, ferr.Reason))
		s.publishAudit(ctx, method, correlationID, "", callerUID, true, protocolVersion, supported, start, ferr)
		return "", ferr.DBusError()
	}

	s.publishAudit(ctx, method, correlationID, "", callerUID, true, protocolVersion, supported, start, nil)
	return result, nil
}

// HandleKeyCall runs the per-call algorithm for key-store operations:
// descriptor lookup, credential resolution, invocation. Key-store calls
// carry no protocol envelope and no wire uid; the resolved caller uid is
// still what implementations see.
func (s *Service) HandleKeyCall(ctx context.Context, method, sender, sessionID, requestJSON string) (string, *dbus.Error) {
	start := time.Now()

	op, ok := s.ops[method]
	if !ok {
		ferr := broker.NewError(broker.ReasonUnknownMethod,
			fmt.Sprintf("method %q is not part of %s", method, s.binding.Interface))
		s.publishAudit(ctx, method, "", sessionID, 0, false, "", true, start, ferr)
		return "", ferr.DBusError()
	}

	uid, ferr := s.resolveCaller(ctx, method, sender)
	if ferr != nil {
		s.publishAudit(ctx, method, "", sessionID, 0, false, "", true, start, ferr)
		return "", ferr.DBusError()
	}

	req := &broker.Request{
		SessionID: sessionID,
		Body:      requestJSON,
		UID:       uid,
	}
	result, err := op.fn(ctx, req)
	if err != nil {
		ferr := broker.AsError(err)
		slog.Debug(fmt.Sprintf("%s - %s (key session %s) failed: %s", logPrefix, method, sessionID, ferr.Reason))
		s.publishAudit(ctx, method, "", sessionID, uid, true, "", true, start, ferr)
		return "", ferr.DBusError()
	}

	s.publishAudit(ctx, method, "", sessionID, uid, true, "", true, start, nil)
	return result, nil
}

// resolveCaller runs the timed credential query for one call. Any failure
// is an unauthorized error; the uid never defaults.
func (s *Service) resolveCaller(ctx context.Context, method, sender string) (uint32, *broker.Error) {
	resolveCtx, cancel := context.WithTimeout(ctx, s.resolveTimeout())
	uid, err := s.resolver.ResolveUID(resolveCtx, sender)
	cancel()
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - rejecting %s from %s: %v", logPrefix, method, sender, err))
		return 0, broker.NewError(broker.ReasonUnauthorized,
			fmt.Sprintf("caller credentials could not be resolved: %v", err))
	}
	return uid, nil
}

func (s *Service) resolveTimeout() time.Duration {
	if s.opts.ResolveTimeout > 0 {
		return s.opts.ResolveTimeout
	}
	return defaultResolveTimeout
}

func (s *Service) publishAudit(ctx context.Context, method, correlationID, sessionID string, uid uint32, authenticated bool, protocolVersion string, supported bool, start time.Time, ferr *broker.Error) {
	if s.opts.Audit == nil {
		return
	}
	event := &audit.Event{
		Service:           s.opts.ServiceLabel,
		Method:            method,
		CorrelationID:     correlationID,
		SessionID:         sessionID,
		UID:               uid,
		Authenticated:     authenticated,
		Outcome:           audit.OutcomeOK,
		ProtocolVersion:   protocolVersion,
		ProtocolSupported: supported,
		DurationMs:        time.Since(start).Milliseconds(),
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	}
	if ferr != nil {
		event.Outcome = audit.OutcomeError
		event.Reason = ferr.Reason
	}
	if err := s.opts.Audit.Publish(ctx, event); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish audit event for %s: %v", logPrefix, method, err))
	}
}
