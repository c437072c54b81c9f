package forward

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/entraunix/identity-broker/pkg/broker"
)

// echoPeer replies with the request payload and records what it observed.
type echoPeer struct {
	mu         sync.Mutex
	lastMethod string
	lastUID    uint32
	lastCorr   string
	err        error
	delay      time.Duration
}

func (p *echoPeer) Call(ctx context.Context, method, protocolVersion, correlationID, requestJSON string, uid uint32) (string, error) {
	p.mu.Lock()
	p.lastMethod = method
	p.lastUID = uid
	p.lastCorr = correlationID
	p.mu.Unlock()
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if p.err != nil {
		return "", p.err
	}
	return requestJSON, nil
}

func expectReason(t *testing.T, err error, reason string) *broker.Error {
	t.Helper()
	if err == nil {
		t.Fatal("forward:forwarder_test - expected an error")
	}
	var berr *broker.Error
	if !errors.As(err, &berr) {
		t.Fatalf("forward:forwarder_test - error %T is not a broker error", err)
	}
	if berr.Reason != reason {
		t.Fatalf("forward:forwarder_test - Reason = %q, want %q", berr.Reason, reason)
	}
	return berr
}

func TestForward_EchoPassThrough(t *testing.T) {
	peer := &echoPeer{}
	b := NewBroker(peer, Options{})

	req := &broker.Request{
		ProtocolVersion: "0.0.1",
		CorrelationID:   "corr-echo",
		Body:            `{"clientId":"abc"}`,
		UID:             1000,
	}
	result, err := b.AcquireTokenSilently(context.Background(), req)
	if err != nil {
		t.Fatalf("forward:forwarder_test - unexpected error: %v", err)
	}
	if result != req.Body {
		t.Errorf("forward:forwarder_test - result = %q, want the request payload back", result)
	}
	if peer.lastMethod != broker.OpAcquireTokenSilently {
		t.Errorf("forward:forwarder_test - peer saw method %q", peer.lastMethod)
	}
	if peer.lastUID != 1000 {
		t.Errorf("forward:forwarder_test - peer saw uid %d, want the resolved inbound uid 1000", peer.lastUID)
	}
	if peer.lastCorr != "corr-echo" {
		t.Errorf("forward:forwarder_test - peer saw correlation %q", peer.lastCorr)
	}
}

func TestForward_EveryOperationReachesPeer(t *testing.T) {
	peer := &echoPeer{}
	b := NewBroker(peer, Options{})
	req := &broker.Request{ProtocolVersion: "0.0.1", CorrelationID: "c", UID: 7}

	calls := []struct {
		method string
		fn     broker.InvokeFunc
	}{
		{broker.OpAcquireTokenInteractively, b.AcquireTokenInteractively},
		{broker.OpAcquireTokenSilently, b.AcquireTokenSilently},
		{broker.OpGetAccounts, b.GetAccounts},
		{broker.OpRemoveAccount, b.RemoveAccount},
		{broker.OpAcquirePrtSsoCookie, b.AcquirePrtSsoCookie},
		{broker.OpGenerateSignedHTTPRequest, b.GenerateSignedHTTPRequest},
		{broker.OpCancelInteractiveFlow, b.CancelInteractiveFlow},
		{broker.OpGetLinuxBrokerVersion, b.GetLinuxBrokerVersion},
	}
	for _, c := range calls {
		if _, err := c.fn(context.Background(), req); err != nil {
			t.Fatalf("forward:forwarder_test - %s: %v", c.method, err)
		}
		if peer.lastMethod != c.method {
			t.Errorf("forward:forwarder_test - %s reached peer as %q", c.method, peer.lastMethod)
		}
	}
}

func TestForward_PeerReasonPreserved(t *testing.T) {
	derr := dbus.NewError(broker.ErrorPrefix+"invalid_grant", []interface{}{"AADSTS70000"})
	peer := &echoPeer{err: *derr}
	b := NewBroker(peer, Options{})

	_, err := b.AcquireTokenSilently(context.Background(), &broker.Request{UID: 1000})
	berr := expectReason(t, err, "invalid_grant")
	if berr.Detail != "AADSTS70000" {
		t.Errorf("forward:forwarder_test - Detail = %q, want AADSTS70000", berr.Detail)
	}
}

func TestForward_PeerUnavailableOnServiceUnknown(t *testing.T) {
	derr := dbus.NewError("org.freedesktop.DBus.Error.ServiceUnknown", nil)
	peer := &echoPeer{err: *derr}
	b := NewBroker(peer, Options{})

	_, err := b.GetAccounts(context.Background(), &broker.Request{UID: 1000})
	expectReason(t, err, broker.ReasonPeerUnavailable)
}

func TestForward_NoPeerHandle(t *testing.T) {
	b := NewBroker(nil, Options{})
	_, err := b.GetAccounts(context.Background(), &broker.Request{UID: 1000})
	expectReason(t, err, broker.ReasonPeerUnavailable)
}

func TestForward_CallTimeout(t *testing.T) {
	peer := &echoPeer{delay: 200 * time.Millisecond}
	b := NewBroker(peer, Options{CallTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := b.GetAccounts(context.Background(), &broker.Request{UID: 1000})
	expectReason(t, err, broker.ReasonPeerUnavailable)
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("forward:forwarder_test - timed-out call took %v, want fail-fast", elapsed)
	}
}

func TestForward_ForeignErrorNameCarriedWhole(t *testing.T) {
	derr := dbus.NewError("org.freedesktop.DBus.Error.AccessDenied", []interface{}{"policy"})
	peer := &echoPeer{err: *derr}
	b := NewBroker(peer, Options{})

	_, err := b.RemoveAccount(context.Background(), &broker.Request{UID: 1000})
	expectReason(t, err, "org.freedesktop.DBus.Error.AccessDenied")
}
