// Package stream defines the push channel used to follow a running task.
package stream

import (
	"context"
	"errors"

	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

// ErrClosed is returned by Receive after the connection was closed locally
var ErrClosed = errors.New("stream closed")

type (
	// Conn is a push channel scoped to a single task.
	// Receive may be called from one goroutine while Ping/Close are called
	// from another.
	Conn interface {
		Receive(ctx context.Context) (*model.StreamMessage, error)
		Ping(ctx context.Context) error
		Close() error
	}

	Dialer interface {
		Dial(ctx context.Context, taskID string) (Conn, error)
	}

	// DialerFunc adapts a function to Dialer
	DialerFunc func(ctx context.Context, taskID string) (Conn, error)
)

func (f DialerFunc) Dial(ctx context.Context, taskID string) (Conn, error) {
	return f(ctx, taskID)
}
