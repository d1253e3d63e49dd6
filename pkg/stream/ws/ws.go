// Package ws implements the task stream on top of websockets.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
	"github.com/mpapenbr/gforce-sculpture/pkg/stream"
)

type (
	Option func(*Dialer)

	// Dialer opens websocket connections. The url of a task is resolved
	// by urlFunc, e.g. api.Client.StreamURL.
	Dialer struct {
		urlFunc      func(taskID string) string
		ws           *websocket.Dialer
		header       http.Header
		writeTimeout time.Duration
		l            *log.Logger
	}

	conn struct {
		c            *websocket.Conn
		taskID       string
		writeTimeout time.Duration
		wMu          sync.Mutex
		closeOnce    sync.Once
		closed       chan struct{}
		l            *log.Logger
	}
)

var _ stream.Dialer = (*Dialer)(nil)

func WithHandshakeTimeout(d time.Duration) Option {
	return func(dl *Dialer) {
		dl.ws.HandshakeTimeout = d
	}
}

func WithHeader(h http.Header) Option {
	return func(dl *Dialer) {
		dl.header = h
	}
}

func WithLogger(l *log.Logger) Option {
	return func(dl *Dialer) {
		dl.l = l
	}
}

func NewDialer(urlFunc func(taskID string) string, opts ...Option) *Dialer {
	ret := &Dialer{
		urlFunc: urlFunc,
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		writeTimeout: 5 * time.Second,
		l:            log.Default().Named("stream.ws"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (d *Dialer) Dial(ctx context.Context, taskID string) (stream.Conn, error) {
	url := d.urlFunc(taskID)
	c, resp, err := d.ws.DialContext(ctx, url, d.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", model.ErrStream, url, err)
	}
	d.l.Debug("connected", log.String("url", url))
	return &conn{
		c:            c,
		taskID:       taskID,
		writeTimeout: d.writeTimeout,
		closed:       make(chan struct{}),
		l:            d.l,
	}, nil
}

// Receive blocks until the next message arrives. Cancelling ctx closes the
// connection since gorilla reads cannot be interrupted otherwise.
func (c *conn) Receive(ctx context.Context) (*model.StreamMessage, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		case <-c.closed:
		}
	}()
	for {
		_, data, err := c.c.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return nil, stream.ErrClosed
			default:
			}
			return nil, fmt.Errorf("%w: read: %w", model.ErrStream, err)
		}
		var msg model.StreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.l.Warn("ignoring malformed message",
				log.String("taskID", c.taskID), log.ErrorField(err))
			continue
		}
		return &msg, nil
	}
}

func (c *conn) Ping(ctx context.Context) error {
	return c.write(ctx, model.StreamMessage{Type: model.MTPing})
}

func (c *conn) write(ctx context.Context, msg model.StreamMessage) error {
	c.wMu.Lock()
	defer c.wMu.Unlock()
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.c.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.c.WriteJSON(msg); err != nil {
		return fmt.Errorf("%w: write: %w", model.ErrStream, err)
	}
	return nil
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.wMu.Lock()
		// best effort close handshake
		_ = c.c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.wMu.Unlock()
		err = c.c.Close()
		if errors.Is(err, websocket.ErrCloseSent) {
			err = nil
		}
	})
	return err
}
