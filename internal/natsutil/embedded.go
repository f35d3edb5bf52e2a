package natsutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedOptions configures an in-process NATS server.
type EmbeddedOptions struct {
	// Host to listen on. Defaults to 127.0.0.1.
	Host string
	// Port to listen on. -1 or 0 picks a random free port.
	Port int
	// StoreDir is the JetStream store. Required.
	StoreDir string
	// ReadyTimeout bounds the wait for client readiness. Defaults to 5s.
	ReadyTimeout time.Duration
	// Logs enables the server's own logging.
	Logs bool
}

// StartEmbedded starts a NATS server with JetStream enabled in this process.
//
// The caller owns the server and must call Shutdown on it.
//
// Returns:
//   - *server.Server: Running server; ClientURL() gives the connect URL
//   - error: Creation failure or readiness timeout
func StartEmbedded(opts EmbeddedOptions) (*server.Server, error) {
	if opts.StoreDir == "" {
		return nil, errors.New("embedded nats: store dir is required")
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.Port == 0 {
		opts.Port = -1
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 5 * time.Second
	}

	ns, err := server.NewServer(&server.Options{
		Host:      opts.Host,
		Port:      opts.Port,
		JetStream: true,
		StoreDir:  opts.StoreDir,
		NoLog:     !opts.Logs,
	})
	if err != nil {
		return nil, fmt.Errorf("embedded nats: %w", err)
	}
	if opts.Logs {
		ns.ConfigureLogger()
	}

	go ns.Start()

	if !ns.ReadyForConnections(opts.ReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats: not ready within %s", opts.ReadyTimeout)
	}

	return ns, nil
}
