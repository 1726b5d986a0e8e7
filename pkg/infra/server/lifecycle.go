package server

import "context"

// Runnable is a server that can be started and stopped.
type Runnable interface {
	// Start starts the server. Must return promptly once listening.
	Start(ctx context.Context) error
	// Stop stops the server gracefully.
	Stop(ctx context.Context) error
	// Name returns the server name for logging.
	Name() string
}
