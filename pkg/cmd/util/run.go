package util

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/cache"
	"github.com/mpapenbr/gforce-sculpture/pkg/cmd/tui"
	"github.com/mpapenbr/gforce-sculpture/pkg/config"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
	"github.com/mpapenbr/gforce-sculpture/pkg/progress"
	"github.com/mpapenbr/gforce-sculpture/pkg/stream/natsstream"
	"github.com/mpapenbr/gforce-sculpture/pkg/tracker"
)

type RunOptions struct {
	// TUI shows a progress bar instead of log lines
	TUI bool
	// Relay republishes progress on NATS for other viewers
	Relay bool
	// OnView is called for every change of the progress view
	OnView func(progress.View)
}

// RunJob resolves a request through the result cache or a tracked job.
// Cancelling ctx cancels the job.
//
//nolint:funlen,cyclop,whitespace // by design
func (e *Env) RunJob(
	ctx context.Context,
	req model.JobRequest,
	opts RunOptions,
) (*model.JobResult, error) {
	single, isSingle := req.(model.SculptureRequest)
	if isSingle && e.Cache != nil {
		res, err := e.Cache.Get(ctx, cache.Key(single))
		switch {
		case err == nil:
			log.Info("using cached sculpture", log.String("key", cache.Key(single)))
			if opts.OnView != nil {
				opts.OnView(progress.Succeeded(progress.Idle(), true))
			}
			return res, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			log.Warn("result cache unavailable", log.ErrorField(err))
		}
	}

	var (
		mu   sync.Mutex
		view = progress.Idle()
		prog *tui.Program
	)
	trackerOpts := []tracker.Option{tracker.WithPolicy(config.Tracker.Policy())}
	trackerOpts = append(trackerOpts, tracker.WithObserver(func(ev tracker.Event) {
		mu.Lock()
		next := ViewFor(view, ev)
		changed := next != view
		view = next
		mu.Unlock()
		if ev.Kind == tracker.EventReconnectScheduled {
			log.Debug("stream lost, reconnecting",
				log.Int("attempt", ev.Attempt), log.Duration("delay", ev.Delay))
		}
		if !changed {
			return
		}
		if opts.OnView != nil {
			opts.OnView(next)
		}
		if prog != nil {
			prog.Send(next)
		} else {
			log.Info(next.String(), log.String("taskID", ev.TaskID))
		}
	}))
	if opts.Relay {
		if relay := e.relay(); relay != nil {
			trackerOpts = append(trackerOpts, tracker.WithObserver(relay))
		}
	}
	tr := tracker.New(e.Client, e.Dialer, trackerOpts...)
	if opts.TUI {
		prog = tui.Start(os.Stderr, func() { tr.Cancel() })
		defer func() {
			prog.Stop()
			if err := prog.Wait(); err != nil {
				log.Debug("progress view", log.ErrorField(err))
			}
		}()
	}

	if err := tr.Submit(ctx, req); err != nil {
		return nil, err
	}
	go func() {
		select {
		case <-ctx.Done():
			tr.Cancel()
		case <-tr.Done():
		}
	}()
	<-tr.Done()
	res, err := tr.Wait(context.Background())
	if err != nil {
		return nil, err
	}
	if isSingle && e.Cache != nil && !tr.Cached() {
		if err := e.Cache.Put(ctx, cache.Key(single), res); err != nil {
			log.Warn("could not store result", log.ErrorField(err))
		}
	}
	return res, nil
}

func (e *Env) relay() tracker.Observer {
	if e.Nats == nil || config.StreamTransport == TransportNats {
		log.Warn("progress relay needs a NATS connection and websocket transport")
		return nil
	}
	pub := natsstream.NewPublisher(e.Nats, config.NatsSubjectPrefix)
	return func(ev tracker.Event) {
		if ev.TaskID == "" || ev.TaskID == model.CachedTaskID {
			return
		}
		msg := relayMessage(ev)
		if msg == nil {
			return
		}
		if err := pub.Publish(ev.TaskID, msg); err != nil {
			log.Warn("relay publish failed",
				log.String("taskID", ev.TaskID),
				log.String("type", string(msg.Type)),
				log.ErrorField(err))
		}
	}
}
