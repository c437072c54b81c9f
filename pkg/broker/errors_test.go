package broker

import (
	"errors"
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestError_DBusError_NameAndBody(t *testing.T) {
	err := NewError("invalid_grant", "refresh token expired")
	derr := err.DBusError()

	want := ErrorPrefix + "invalid_grant"
	if derr.Name != want {
		t.Errorf("broker:errors_test - Name = %q, want %q", derr.Name, want)
	}
	if len(derr.Body) != 1 || derr.Body[0] != "refresh token expired" {
		t.Errorf("broker:errors_test - Body = %v, want detail string", derr.Body)
	}
}

func TestError_DBusError_SanitizesReason(t *testing.T) {
	cases := map[string]string{
		"invalid grant":  "invalid_grant",
		"400_bad":        "_400_bad",
		"":               ReasonBrokerFailure,
		"invalid_grant":  "invalid_grant",
		"Peer.Exploded!": "Peer_Exploded_",
	}
	for reason, wantElem := range cases {
		derr := NewError(reason, "").DBusError()
		want := ErrorPrefix + wantElem
		if derr.Name != want {
			t.Errorf("broker:errors_test - reason %q mapped to %q, want %q", reason, derr.Name, want)
		}
	}
}

func TestFromDBusError_StripsBrokerPrefix(t *testing.T) {
	derr := dbus.NewError(ErrorPrefix+"invalid_grant", []interface{}{"AADSTS70000"})
	err := FromDBusError(*derr)
	if err.Reason != "invalid_grant" {
		t.Errorf("broker:errors_test - Reason = %q, want invalid_grant", err.Reason)
	}
	if err.Detail != "AADSTS70000" {
		t.Errorf("broker:errors_test - Detail = %q, want AADSTS70000", err.Detail)
	}
}

func TestFromDBusError_KeepsForeignNameWhole(t *testing.T) {
	derr := dbus.NewError("org.freedesktop.DBus.Error.AccessDenied", []interface{}{"denied"})
	err := FromDBusError(*derr)
	if err.Reason != "org.freedesktop.DBus.Error.AccessDenied" {
		t.Errorf("broker:errors_test - Reason = %q, want the full foreign name", err.Reason)
	}
}

func TestAsError_StructuredPassThrough(t *testing.T) {
	orig := NewError("invalid_grant", "detail")
	got := AsError(fmt.Errorf("wrapped: %w", orig))
	if got != orig {
		t.Errorf("broker:errors_test - AsError did not unwrap to the original *Error")
	}
}

func TestAsError_PlainError(t *testing.T) {
	got := AsError(errors.New("backend exploded"))
	if got.Reason != ReasonBrokerFailure {
		t.Errorf("broker:errors_test - Reason = %q, want %q", got.Reason, ReasonBrokerFailure)
	}
	if got.Detail != "backend exploded" {
		t.Errorf("broker:errors_test - Detail = %q, want original message", got.Detail)
	}
}

func TestAsError_DBusError(t *testing.T) {
	derr := dbus.NewError(ErrorPrefix+"unauthorized", []interface{}{"nope"})
	got := AsError(*derr)
	if got.Reason != ReasonUnauthorized {
		t.Errorf("broker:errors_test - Reason = %q, want %q", got.Reason, ReasonUnauthorized)
	}
}
