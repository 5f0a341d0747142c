package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestHelpersWrapKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
		msg  string
	}{
		{"invalid", Invalid("date %q is malformed", "x"), ErrInvalidInput, `date "x" is malformed`},
		{"unauthorized", Unauthorized("invalid credentials"), ErrUnauthorized, "invalid credentials"},
		{"forbidden", Forbidden("insufficient permissions"), ErrForbidden, "insufficient permissions"},
		{"not found", NotFound("event not found"), ErrNotFound, "event not found"},
		{"conflict", Conflict("already responded"), ErrConflict, "already responded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Fatalf("expected %v to wrap %v", tt.err, tt.kind)
			}
			if got := Message(tt.err); got != tt.msg {
				t.Fatalf("expected message %q, got %q", tt.msg, got)
			}
		})
	}
}

func TestMessageForForeignErrors(t *testing.T) {
	if got := Message(errors.New("boom")); got != "boom" {
		t.Fatalf("expected raw message, got %q", got)
	}
	if got := Message(ErrForbidden); got != "forbidden" {
		t.Fatalf("expected bare kind message, got %q", got)
	}
}

func TestRemoteError(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := fmt.Errorf("sync failed: %w", &RemoteError{Service: "google-calendar", Status: 401, Message: "Invalid Credentials", Err: cause})

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatal("expected RemoteError in chain")
	}
	if remote.Status != 401 {
		t.Fatalf("expected status 401, got %d", remote.Status)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected RemoteError to unwrap to its cause")
	}
	if got := Message(err); got != "Invalid Credentials" {
		t.Fatalf("expected remote message, got %q", got)
	}
}
