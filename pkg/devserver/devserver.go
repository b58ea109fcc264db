package devserver

import (
	"context"
	"fmt"
)

var (
	ErrNoCommand     = fmt.Errorf("no server command given")
	ErrServerExited  = fmt.Errorf("server exited")
	ErrNotADirectory = fmt.Errorf("not a directory")
)

// Server is a running instance of the application under test
type Server interface {
	// Addr is a human readable location of the server: pid or listening address
	Addr() string

	// Done is closed once the server stopped, for whatever reason
	Done() <-chan struct{}

	// Err reports why the server stopped, valid once Done is closed
	Err() error

	// Stop the server, waiting at most until ctx is done. Safe to call more than once.
	Stop(ctx context.Context) error
}

type Starter interface {
	Start(ctx context.Context) (Server, error)
}

// External is used when the target is served by someone else: nothing to start or to stop
type External struct{}

func (External) Start(context.Context) (Server, error) {
	return externalServer{}, nil
}

type externalServer struct{}

func (externalServer) Addr() string                { return "external" }
func (externalServer) Done() <-chan struct{}       { return nil }
func (externalServer) Err() error                  { return nil }
func (externalServer) Stop(context.Context) error { return nil }
