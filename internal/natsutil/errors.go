// Package natsutil holds NATS helpers shared by the transport and the cmd.
package natsutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/jacobi/types"
)

// IsConnectivityError checks if an error is caused by connectivity issues.
//
// This includes NATS timeouts, connection refused, disconnections, etc.
//
// Parameters:
//   - err: Error to check
//
// Returns:
//   - bool: true if error indicates connectivity issue
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrConnectionDraining) ||
		errors.Is(err, nats.ErrMaxPayload) ||
		errors.Is(err, nats.ErrSlowConsumer) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "i/o timeout")
}

// Classify wraps NATS failures as ErrCommunication.
//
// Connectivity failures additionally carry ErrConnectivity. Errors already
// carrying a jacobi sentinel pass through unchanged apart from the op prefix.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, types.ErrCommunication) || errors.Is(err, types.ErrAborted) || errors.Is(err, types.ErrClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if IsConnectivityError(err) {
		return fmt.Errorf("%w: %s: %w: %w", types.ErrCommunication, op, types.ErrConnectivity, err)
	}

	return fmt.Errorf("%w: %s: %w", types.ErrCommunication, op, err)
}
