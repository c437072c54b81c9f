package broker

import (
	"errors"
	"strings"

	"github.com/godbus/dbus/v5"
)

// ErrorPrefix is the bus error-name namespace for broker failures. The
// final element of a full error name is the machine-stable reason.
const ErrorPrefix = "io.entraunix.IdentityBroker.Error."

// Machine-stable failure reasons used by the dispatch and forwarding
// layers. Broker implementations are free to fail with their own reasons
// (e.g. "invalid_grant"); those are surfaced verbatim.
const (
	ReasonUnknownMethod         = "unknown_method"
	ReasonUnauthorized          = "unauthorized"
	ReasonCredentialUnavailable = "credential_unavailable"
	ReasonPeerUnavailable       = "peer_unavailable"
	ReasonPeerProtocolError     = "peer_protocol_error"
	ReasonBrokerFailure         = "broker_failure"
)

// Error is a structured broker failure: a short machine-stable reason plus
// a human-readable detail.
type Error struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return e.Reason + ": " + e.Detail
}

// NewError creates a structured broker failure.
func NewError(reason, detail string) *Error {
	return &Error{Reason: reason, Detail: detail}
}

// DBusError renders the failure as a bus method error named under
// ErrorPrefix, with the detail as the error body.
func (e *Error) DBusError() *dbus.Error {
	return dbus.NewError(ErrorPrefix+sanitizeReason(e.Reason), []interface{}{e.Detail})
}

// FromDBusError maps a bus-level method error back into a structured
// failure, preserving the reason. Names in the broker namespace are
// stripped back to their reason element; foreign names are carried whole
// so a remote failure stays distinguishable from a local one.
func FromDBusError(derr dbus.Error) *Error {
	reason := derr.Name
	if strings.HasPrefix(reason, ErrorPrefix) {
		reason = strings.TrimPrefix(reason, ErrorPrefix)
	}
	detail := ""
	if len(derr.Body) > 0 {
		if s, ok := derr.Body[0].(string); ok {
			detail = s
		}
	}
	return &Error{Reason: reason, Detail: detail}
}

// AsError coerces any failure returned by a broker implementation into a
// structured Error. Unstructured errors keep their full message as the
// detail under the broker_failure reason.
func AsError(err error) *Error {
	var berr *Error
	if errors.As(err, &berr) {
		return berr
	}
	var derr dbus.Error
	if errors.As(err, &derr) {
		return FromDBusError(derr)
	}
	return &Error{Reason: ReasonBrokerFailure, Detail: err.Error()}
}

// sanitizeReason makes a reason usable as the final element of a bus error
// name. Reasons are normally short identifiers already; anything else is
// mapped rune-by-rune onto the allowed alphabet.
func sanitizeReason(reason string) string {
	if reason == "" {
		return ReasonBrokerFailure
	}
	var b strings.Builder
	for i, r := range reason {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
