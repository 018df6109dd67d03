package singleinstance

// Single-instance ownership plus a small line protocol that lets a second
// invocation (for example `toggle` or `status`) drive the resident process.

import (
	"context"
	"errors"
)

// Command is one request line sent by a client.
type Command string

const (
	CommandToggle Command = "TOGGLE"
	CommandStatus Command = "STATUS"
)

// ErrAlreadyRunning is returned by Start when another resident owns the port.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Server owns the TCP endpoint and answers delegated commands.
type Server interface {
	// Start binds the first port of the configured range.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection.
type Conn interface {
	Command() Command
	// RespondSuccess sends SUCCESS followed by body.
	RespondSuccess(body string) error
	// RespondError sends ERROR followed by a human-readable message.
	RespondError(msg string) error
	Close() error
}

// Client delegates commands to a resident server.
type Client interface {
	// Send scans the port range for a resident and delivers cmd.
	// If no resident is found, returns delegated=false, err=nil.
	Send(ctx context.Context, cmd Command) (delegated bool, body string, err error)
}

// Handler answers one command; a returned error is sent as ERROR.
type Handler func(ctx context.Context, cmd Command) (string, error)

// NewServer returns TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns TCP implementation.
func NewClient() Client { return newTcpClient() }

// Serve answers connections from srv with handle until ctx is cancelled.
func Serve(ctx context.Context, srv Server, handle Handler) error {
	for {
		conn, err := srv.Next(ctx)
		if err != nil {
			return err
		}
		go respond(ctx, conn, handle)
	}
}

func respond(ctx context.Context, conn Conn, handle Handler) {
	defer conn.Close()
	body, err := handle(ctx, conn.Command())
	if err != nil {
		_ = conn.RespondError(err.Error())
		return
	}
	_ = conn.RespondSuccess(body)
}
