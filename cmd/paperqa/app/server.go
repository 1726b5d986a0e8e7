// Package app provides the PaperQA server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/paperqa/cmd/paperqa/app/options"
	"github.com/kart-io/paperqa/pkg/infra/app"
)

const (
	// Name is the name of the application.
	Name = "paperqa"

	// commandDesc is the description of the command.
	commandDesc = `PaperQA Service

A stateless streaming question answering service over PDF documents.

This server provides:
  - Five-stage answering pipeline: parse, analyze, retrieve, filter, answer
  - SSE streaming with keepalive frames during long-running stages
  - Per-stage timeouts with degraded fallbacks, the stream never stalls
  - Support for multiple LLM providers (OpenAI-compatible, Ollama)`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	application := app.NewApp(
		app.WithName(Name),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)

	return application
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
