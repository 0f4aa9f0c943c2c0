package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("server overloaded"), 503)
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	inner := NewTransientError(errors.New("rate limited"), 429)
	wrapped := fmt.Errorf("nominatim search: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	if IsTransient(errors.New("boundary: no polygon for \"atlantis\"")) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_ConnectionReset(t *testing.T) {
	err := fmt.Errorf("read tcp: %w", syscall.ECONNRESET)
	if !IsTransient(err) {
		t.Error("ECONNRESET should be transient")
	}
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	err := &net.DNSError{IsTimeout: true, Err: "timeout"}
	if !IsTransient(err) {
		t.Error("network timeout should be transient")
	}
}

func TestIsTransient_StringPatterns(t *testing.T) {
	for _, msg := range []string{
		"Get \"https://portal.opentopography.org\": net/http: TLS handshake timeout",
		"read: connection reset by peer",
		"unexpected EOF",
	} {
		if !IsTransient(errors.New(msg)) {
			t.Errorf("expected %q to be transient", msg)
		}
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{429, true},
		{503, true},
		{504, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := StatusError("dem", tt.status)
			if err == nil {
				t.Fatal("expected error")
			}
			if IsTransient(err) != tt.transient {
				t.Errorf("IsTransient(%d) = %v, want %v", tt.status, IsTransient(err), tt.transient)
			}
		})
	}
}
