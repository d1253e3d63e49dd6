// Package natsstream implements the task stream on top of NATS subjects.
// Messages of a task are published as JSON on <prefix>.<taskID>.
package natsstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
	"github.com/mpapenbr/gforce-sculpture/pkg/stream"
)

const DefaultSubjectPrefix = "sculpture.task"

type (
	Option func(*Dialer)

	Dialer struct {
		nc       *nats.Conn
		prefix   string
		capacity int
		l        *log.Logger
	}

	conn struct {
		nc        *nats.Conn
		sub       *nats.Subscription
		ch        chan *nats.Msg
		closeOnce sync.Once
		closed    chan struct{}
		l         *log.Logger
	}

	// Publisher relays stream messages to NATS
	Publisher struct {
		nc     *nats.Conn
		prefix string
	}
)

var _ stream.Dialer = (*Dialer)(nil)

func WithSubjectPrefix(p string) Option {
	return func(d *Dialer) {
		d.prefix = p
	}
}

func WithLogger(l *log.Logger) Option {
	return func(d *Dialer) {
		d.l = l
	}
}

func NewDialer(nc *nats.Conn, opts ...Option) *Dialer {
	ret := &Dialer{
		nc:       nc,
		prefix:   DefaultSubjectPrefix,
		capacity: 64,
		l:        log.Default().Named("stream.nats"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func Subject(prefix, taskID string) string {
	return fmt.Sprintf("%s.%s", prefix, taskID)
}

func (d *Dialer) Dial(ctx context.Context, taskID string) (stream.Conn, error) {
	if !d.nc.IsConnected() {
		return nil, fmt.Errorf("%w: nats not connected (%s)", model.ErrStream, d.nc.Status())
	}
	ch := make(chan *nats.Msg, d.capacity)
	subj := Subject(d.prefix, taskID)
	sub, err := d.nc.ChanSubscribe(subj, ch)
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe %s: %w", model.ErrStream, subj, err)
	}
	// make sure the subscription is registered before the first message
	if err := d.nc.FlushWithContext(ctx); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("%w: flush: %w", model.ErrStream, err)
	}
	d.l.Debug("subscribed", log.String("subject", subj))
	return &conn{
		nc:     d.nc,
		sub:    sub,
		ch:     ch,
		closed: make(chan struct{}),
		l:      d.l,
	}, nil
}

func (c *conn) Receive(ctx context.Context) (*model.StreamMessage, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.closed:
			return nil, stream.ErrClosed
		case m, ok := <-c.ch:
			if !ok || !c.sub.IsValid() {
				return nil, fmt.Errorf("%w: subscription closed", model.ErrStream)
			}
			var msg model.StreamMessage
			if err := json.Unmarshal(m.Data, &msg); err != nil {
				c.l.Warn("ignoring malformed message",
					log.String("subject", m.Subject), log.ErrorField(err))
				continue
			}
			return &msg, nil
		}
	}
}

// Ping performs a round trip to the NATS server
func (c *conn) Ping(ctx context.Context) error {
	if err := c.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", model.ErrStream, err)
	}
	return nil
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.sub.IsValid() {
			err = c.sub.Unsubscribe()
		}
	})
	return err
}

func NewPublisher(nc *nats.Conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{nc: nc, prefix: prefix}
}

func (p *Publisher) Publish(taskID string, msg *model.StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.nc.Publish(Subject(p.prefix, taskID), data)
}
