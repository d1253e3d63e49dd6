package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/gforce-sculpture/log"
)

//nolint:lll // by design
// see https://betterprogramming.pub/how-to-broadcast-messages-in-go-using-channels-b68f42bdf32e

// Server fans out every message of a source channel to all subscribers.
// Slow subscribers miss messages instead of blocking the others.
type Server[T any] interface {
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	Close()
}

type broadcastServer[T any] struct {
	name           string
	source         <-chan T
	listeners      []chan T
	addListener    chan chan T
	removeListener chan (<-chan T)
	ctx            context.Context
	cancel         context.CancelFunc
	sendTimeout    time.Duration
	bufferSize     int
	l              *log.Logger

	mu      sync.Mutex
	numRcv  int
	numSnd  int
	numSkip int
}

type Option[T any] func(*broadcastServer[T])

// WithSendTimeout sets how long a message waits for a single slow subscriber
func WithSendTimeout[T any](d time.Duration) Option[T] {
	return func(b *broadcastServer[T]) {
		b.sendTimeout = d
	}
}

// WithBufferSize sets the channel capacity handed out by Subscribe
func WithBufferSize[T any](n int) Option[T] {
	return func(b *broadcastServer[T]) {
		b.bufferSize = n
	}
}

func WithLogger[T any](l *log.Logger) Option[T] {
	return func(b *broadcastServer[T]) {
		b.l = l
	}
}

//nolint:whitespace // false positive
func NewServer[T any](
	name string,
	source <-chan T,
	opts ...Option[T],
) Server[T] {
	ctx, cancel := context.WithCancel(context.Background())
	b := &broadcastServer[T]{
		name:           name,
		source:         source,
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		sendTimeout:    50 * time.Millisecond,
		l:              log.Default().Named("broadcast"),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.setupMetrics()
	go b.serve()
	return b
}

func (b *broadcastServer[T]) Subscribe() <-chan T {
	ch := make(chan T, b.bufferSize)
	select {
	case b.addListener <- ch:
	case <-b.ctx.Done():
		close(ch)
	}
	return ch
}

func (b *broadcastServer[T]) CancelSubscription(ch <-chan T) {
	select {
	case b.removeListener <- ch:
	case <-b.ctx.Done():
	}
}

func (b *broadcastServer[T]) Close() {
	b.mu.Lock()
	b.l.Debug("closing broadcast server",
		log.String("name", b.name),
		log.Int("rcv", b.numRcv), log.Int("snd", b.numSnd), log.Int("skip", b.numSkip))
	b.mu.Unlock()
	b.cancel()
}

func (b *broadcastServer[T]) counts() (rcv, snd, skip, listeners int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.numRcv, b.numSnd, b.numSkip, len(b.listeners)
}

func (b *broadcastServer[T]) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("gfs.broadcast")
	attrs := metric.WithAttributes(attribute.String("name", b.name))
	register := func(metricName, desc string, value func() int64) {
		if _, err := meter.Int64ObservableGauge(
			metricName,
			metric.WithDescription(desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(value(), attrs)
				return nil
			})); err != nil {
			b.l.Warn("failed to register metric",
				log.String("metric", metricName),
				log.ErrorField(err))
		}
	}
	register("gfs.broadcast.rcv", "Number of received messages", func() int64 {
		rcv, _, _, _ := b.counts()
		return int64(rcv)
	})
	register("gfs.broadcast.snd", "Number of sent messages", func() int64 {
		_, snd, _, _ := b.counts()
		return int64(snd)
	})
	register("gfs.broadcast.skip", "Number of skipped messages", func() int64 {
		_, _, skip, _ := b.counts()
		return int64(skip)
	})
	register("gfs.broadcast.listener", "Number of listeners", func() int64 {
		_, _, _, n := b.counts()
		return int64(n)
	})
	b.l.Debug("metrics registered", log.String("name", b.name))
}

//nolint:cyclop // by design
func (b *broadcastServer[T]) serve() {
	defer func() {
		b.cancel()
		b.mu.Lock()
		defer b.mu.Unlock()
		b.l.Debug("closing listeners", log.String("name", b.name))
		for _, listener := range b.listeners {
			close(listener)
		}
		b.listeners = nil
	}()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ch := <-b.addListener:
			b.mu.Lock()
			b.listeners = append(b.listeners, ch)
			b.mu.Unlock()
		case ch := <-b.removeListener:
			b.mu.Lock()
			for i, listener := range b.listeners {
				if listener == ch {
					b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
					close(listener)
					break
				}
			}
			b.l.Debug("removed listener",
				log.String("name", b.name), log.Int("len", len(b.listeners)))
			b.mu.Unlock()
		case msg, ok := <-b.source:
			if !ok {
				b.l.Debug("source closed", log.String("name", b.name))
				return
			}
			b.dispatch(msg)
		}
	}
}

func (b *broadcastServer[T]) dispatch(msg T) {
	b.mu.Lock()
	listeners := append([]chan T(nil), b.listeners...)
	b.numRcv++
	b.mu.Unlock()

	snd, skip := 0, 0
	for _, listener := range listeners {
		select {
		case listener <- msg:
			snd++
		case <-time.After(b.sendTimeout):
			skip++
		}
	}
	b.mu.Lock()
	b.numSnd += snd
	b.numSkip += skip
	b.mu.Unlock()
}

func (b *broadcastServer[T]) String() string {
	rcv, snd, skip, n := b.counts()
	return fmt.Sprintf("%s(rcv=%d snd=%d skip=%d listeners=%d)", b.name, rcv, snd, skip, n)
}
