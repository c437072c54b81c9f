package busutil

import (
	"context"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/entraunix/identity-broker/pkg/broker"
)

// fakeBusDaemon answers the credential query with a canned call result.
type fakeBusDaemon struct {
	lastMethod string
	lastSender string
	result     *dbus.Call
}

func (f *fakeBusDaemon) CallWithContext(_ context.Context, method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	f.lastMethod = method
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			f.lastSender = s
		}
	}
	return f.result
}

func TestResolveUID_Success(t *testing.T) {
	daemon := &fakeBusDaemon{result: &dbus.Call{Body: []interface{}{uint32(1000)}}}
	r := &UIDResolver{bus: daemon}

	uid, err := r.ResolveUID(context.Background(), ":1.42")
	if err != nil {
		t.Fatalf("busutil:creds_test - unexpected error: %v", err)
	}
	if uid != 1000 {
		t.Errorf("busutil:creds_test - uid = %d, want 1000", uid)
	}
	if daemon.lastMethod != getConnectionUnixUser {
		t.Errorf("busutil:creds_test - queried %q, want %q", daemon.lastMethod, getConnectionUnixUser)
	}
	if daemon.lastSender != ":1.42" {
		t.Errorf("busutil:creds_test - queried sender %q, want :1.42", daemon.lastSender)
	}
}

func TestResolveUID_DaemonError(t *testing.T) {
	daemon := &fakeBusDaemon{result: &dbus.Call{Err: errors.New("name has no owner")}}
	r := &UIDResolver{bus: daemon}

	_, err := r.ResolveUID(context.Background(), ":1.99")
	if err == nil {
		t.Fatal("busutil:creds_test - expected an error for a failed credential query")
	}
	var berr *broker.Error
	if !errors.As(err, &berr) {
		t.Fatalf("busutil:creds_test - error %T is not a broker error", err)
	}
	if berr.Reason != broker.ReasonCredentialUnavailable {
		t.Errorf("busutil:creds_test - Reason = %q, want %q", berr.Reason, broker.ReasonCredentialUnavailable)
	}
}

func TestResolveUID_MalformedReply(t *testing.T) {
	daemon := &fakeBusDaemon{result: &dbus.Call{Body: []interface{}{"not-a-uid"}}}
	r := &UIDResolver{bus: daemon}

	_, err := r.ResolveUID(context.Background(), ":1.7")
	if err == nil {
		t.Fatal("busutil:creds_test - expected an error for a malformed credential reply")
	}
	var berr *broker.Error
	if !errors.As(err, &berr) || berr.Reason != broker.ReasonCredentialUnavailable {
		t.Errorf("busutil:creds_test - got %v, want credential_unavailable", err)
	}
}
