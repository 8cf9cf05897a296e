package nats

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
)

func TestPublishErrorsMarkedTemporaryOnlyForConnectionState(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		temporary bool
	}{
		{name: "no servers", err: nats.ErrNoServers, temporary: true},
		{name: "flush timeout", err: nats.ErrTimeout, temporary: true},
		{name: "reconnecting", err: nats.ErrConnectionReconnecting, temporary: true},
		{name: "reconnect buffer full", err: nats.ErrReconnectBufExceeded, temporary: true},
		{name: "closed", err: nats.ErrConnectionClosed, temporary: true},
		{name: "payload too large", err: nats.ErrMaxPayload, temporary: false},
		{name: "bad subject", err: nats.ErrBadSubject, temporary: false},
		{name: "cancelled", err: context.Canceled, temporary: false},
		{name: "other", err: errors.New("boom"), temporary: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapTemporaryIfNeeded("nats publish", tt.err)
			if domain.IsKind(got, domain.ErrTemporary) != tt.temporary {
				t.Fatalf("temporary = %v, want %v (err=%v)", !tt.temporary, tt.temporary, got)
			}
			if !errors.Is(got, tt.err) {
				t.Fatalf("expected original error to be preserved, got %v", got)
			}
			if !strings.HasPrefix(got.Error(), "nats publish: ") {
				t.Fatalf("expected operation prefix, got %q", got.Error())
			}
		})
	}
}

func TestWrapTemporaryIgnoresNil(t *testing.T) {
	if err := wrapTemporaryIfNeeded("nats flush", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
