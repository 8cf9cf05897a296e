package nats

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
)

// Connection-state failures; the client reconnects on its own, so the same
// publish may succeed later. Payload and subject errors never will.
var connectionErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionReconnecting,
	nats.ErrReconnectBufExceeded,
	nats.ErrDisconnected,
}

func isTemporary(err error) bool {
	for _, target := range connectionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if isTemporary(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
