// Package broker defines the capability contracts an identity broker
// answers over the bus: the session-scoped set served on a user's session
// bus, the device-scoped set served on the system bus, and the key-store
// set backing device credential material. Request and response payloads
// are opaque JSON strings owned by the authentication backend; nothing in
// this module inspects them.
package broker

import "context"

// Session-scoped registration triple. The name imitates the established
// Microsoft broker service so existing clients (browsers, Teams, SSO
// helpers) find this service without changes.
const (
	SessionBusName    = "com.microsoft.identity.broker1"
	SessionObjectPath = "/com/microsoft/identity/broker1"
	SessionInterface  = "com.microsoft.identity.Broker1"
)

// Device-scoped registration triple on the system bus. This is the default
// forwarding target of the session service; deployments may override it.
const (
	DefaultDeviceBusName    = "io.entraunix.DeviceBroker"
	DefaultDeviceObjectPath = "/io/entraunix/devicebroker"
	DefaultDeviceInterface  = "io.entraunix.DeviceBroker1"
)

// Request carries the arguments common to every broker operation.
type Request struct {
	// ProtocolVersion is the caller-declared broker protocol version.
	// Empty on key-store calls, which do not version themselves.
	ProtocolVersion string
	// CorrelationID associates the request with its reply and log trail
	// across service boundaries.
	CorrelationID string
	// SessionID scopes key-store calls to one key-store session. Empty on
	// session- and device-scoped calls.
	SessionID string
	// Body is the opaque request payload.
	Body string
	// UID is the unix uid of the calling process. It is populated by the
	// dispatch layer from the bus daemon's credential query, never from
	// request content, so implementations may rely on it for
	// authorization decisions.
	UID uint32
}

// SessionBroker is the session-scoped capability set. Implementations must
// tolerate concurrent invocation; the dispatch layer does not serialize
// calls.
type SessionBroker interface {
	AcquireTokenInteractively(ctx context.Context, req *Request) (string, error)
	AcquireTokenSilently(ctx context.Context, req *Request) (string, error)
	GetAccounts(ctx context.Context, req *Request) (string, error)
	RemoveAccount(ctx context.Context, req *Request) (string, error)
	AcquirePrtSsoCookie(ctx context.Context, req *Request) (string, error)
	GenerateSignedHTTPRequest(ctx context.Context, req *Request) (string, error)
	CancelInteractiveFlow(ctx context.Context, req *Request) (string, error)
	GetLinuxBrokerVersion(ctx context.Context, req *Request) (string, error)
}

// DeviceBroker is the device-scoped capability set served on the system
// bus, where callers are mutually distrusting. Its wire methods carry the
// authenticated caller uid as an explicit trailing argument; the dispatch
// layer verifies that argument against the resolved caller identity before
// any method here runs.
type DeviceBroker interface {
	AcquireTokenInteractively(ctx context.Context, req *Request) (string, error)
	AcquireTokenSilently(ctx context.Context, req *Request) (string, error)
	GetAccounts(ctx context.Context, req *Request) (string, error)
	RemoveAccount(ctx context.Context, req *Request) (string, error)
	AcquirePrtSsoCookie(ctx context.Context, req *Request) (string, error)
	GenerateSignedHTTPRequest(ctx context.Context, req *Request) (string, error)
	CancelInteractiveFlow(ctx context.Context, req *Request) (string, error)
	GetLinuxBrokerVersion(ctx context.Context, req *Request) (string, error)
}
