// Package tracker follows a single sculpture job from submission to its
// terminal state. Progress arrives on a push channel, with exponential
// reconnects and a polling fallback when the channel keeps failing.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
	"github.com/mpapenbr/gforce-sculpture/pkg/stream"
)

var ErrAlreadySubmitted = errors.New("tracker already used")

const cancelTimeout = 10 * time.Second

type (
	// API is the part of the job service used by the tracker
	API interface {
		SubmitSculpture(ctx context.Context, req model.SculptureRequest) (*model.TaskResponse, error)
		SubmitCompare(ctx context.Context, req model.CompareRequest) (*model.TaskResponse, error)
		Status(ctx context.Context, taskID string) (*model.TaskStatus, error)
		Result(ctx context.Context, taskID string) (*model.JobResult, error)
		CachedResult(ctx context.Context, req model.SculptureRequest) (*model.JobResult, error)
		Cancel(ctx context.Context, taskID string) error
	}

	EventKind int

	Event struct {
		Kind     EventKind
		TaskID   string
		State    State
		Prev     State
		Progress model.Progress
		Result   *model.JobResult
		Err      error
		Cached   bool
		Attempt  int
		Delay    time.Duration
	}

	// Observer receives tracker events in order. Observers are called from
	// the tracker goroutine and must not block or call Cancel.
	Observer func(Event)

	Option func(*Tracker)

	Tracker struct {
		api       API
		dialer    stream.Dialer
		policy    Policy
		after     func(time.Duration) <-chan time.Time
		observers []Observer
		l         *log.Logger
		metrics   *trackerMetrics

		mu              sync.Mutex
		state           State
		taskID          string
		cached          bool
		cancelRequested bool
		progress        model.Progress
		result          *model.JobResult
		err             error
		reconnects      int
		polls           int
		start           time.Time

		// owned by the loop goroutine
		gen        int
		conn       stream.Conn
		reconnectC <-chan time.Time
		pollC      <-chan time.Time
		pingC      <-chan time.Time

		ctx         context.Context
		stop        context.CancelFunc
		events      chan loopEvent
		cancelCh    chan struct{}
		done        chan struct{}
		span        trace.Span
		releaseOnce sync.Once
		released    int
	}

	loopEvent interface{}

	connOpened struct {
		gen  int
		conn stream.Conn
	}
	connLost struct {
		gen int
		err error
	}
	streamMessage struct {
		gen int
		msg *model.StreamMessage
	}
	statusFetched struct {
		status *model.TaskStatus
		err    error
	}
	resultFetched struct {
		result *model.JobResult
		err    error
	}
)

const (
	EventTransition EventKind = iota
	EventProgress
	EventReconnectScheduled
	EventPoll
)

func (k EventKind) String() string {
	switch k {
	case EventTransition:
		return "transition"
	case EventProgress:
		return "progress"
	case EventReconnectScheduled:
		return "reconnect"
	case EventPoll:
		return "poll"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

func WithPolicy(p Policy) Option {
	return func(t *Tracker) {
		t.policy = p
	}
}

// WithAfterFunc replaces time.After for all timers of the tracker
func WithAfterFunc(after func(time.Duration) <-chan time.Time) Option {
	return func(t *Tracker) {
		t.after = after
	}
}

func WithObserver(o Observer) Option {
	return func(t *Tracker) {
		t.observers = append(t.observers, o)
	}
}

func WithLogger(l *log.Logger) Option {
	return func(t *Tracker) {
		t.l = l
	}
}

func New(api API, dialer stream.Dialer, opts ...Option) *Tracker {
	ret := &Tracker{
		api:      api,
		dialer:   dialer,
		policy:   DefaultPolicy(),
		after:    time.After,
		l:        log.Default().Named("tracker"),
		events:   make(chan loopEvent),
		cancelCh: make(chan struct{}, 1),
		done:     make(chan struct{}),
		stop:     func() {},
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.metrics = newTrackerMetrics(ret.l)
	return ret
}

// Run submits the request and waits for the outcome. Cancelling ctx cancels
// the job.
//
//nolint:whitespace // editor/linter issue
func Run(
	ctx context.Context,
	api API,
	dialer stream.Dialer,
	req model.JobRequest,
	opts ...Option,
) (*model.JobResult, error) {
	t := New(api, dialer, opts...)
	if err := t.Submit(ctx, req); err != nil {
		return nil, err
	}
	res, err := t.Wait(ctx)
	if ctx.Err() != nil && !t.State().Terminal() {
		t.Cancel()
		return nil, model.ErrCancelled
	}
	return res, err
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) TaskID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.taskID
}

// Progress returns the last reported progress
func (t *Tracker) Progress() model.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

func (t *Tracker) Cached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cached
}

// Done is closed once the tracker reached a terminal state
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the job is terminal and returns its outcome.
func (t *Tracker) Wait(ctx context.Context) (*model.JobResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// Submit issues the job creation request. Submission failures are returned
// and leave the tracker in StateFailure. A cached response completes the job
// synchronously, otherwise the job is followed in the background.
//
//nolint:funlen // by design
func (t *Tracker) Submit(ctx context.Context, req model.JobRequest) error {
	t.mu.Lock()
	if t.state != StateIdle {
		t.mu.Unlock()
		return ErrAlreadySubmitted
	}
	t.start = time.Now()
	t.state = StateSubmitting
	t.mu.Unlock()

	t.ctx, t.stop = context.WithCancel(context.WithoutCancel(ctx))
	t.ctx, t.span = tracer.Start(t.ctx, "track job",
		trace.WithAttributes(attribute.StringSlice("drivers", req.Drivers())))
	t.metrics.inc(t.metrics.submitted)
	t.announce(StateIdle, StateSubmitting)

	resp, err := t.submit(ctx, req)
	if err != nil {
		if !errors.Is(err, model.ErrSubmission) {
			err = fmt.Errorf("%w: %w", model.ErrSubmission, err)
		}
		t.finish(StateFailure, nil, err)
		return err
	}
	t.mu.Lock()
	t.taskID = resp.TaskID
	t.cached = resp.IsCached()
	t.mu.Unlock()
	t.span.SetAttributes(attribute.String("taskID", resp.TaskID))

	if resp.IsCached() {
		if !t.transitionUnlessCancelled(StateCachedHit) {
			t.finish(StateCancelled, nil, model.ErrCancelled)
			return nil
		}
		// a cancel request arriving meanwhile is applied by finish
		res, err := t.cachedResult(ctx, req, resp)
		if err != nil {
			t.finish(StateFailure, nil, fmt.Errorf("cached result: %w", err))
		} else {
			t.finish(StateSuccess, res, nil)
		}
		return nil
	}

	if !t.transitionUnlessCancelled(StateStreamConnecting) {
		t.cancelled(resp.TaskID)
		return nil
	}
	go t.loop()
	return nil
}

// Cancel aborts a non-terminal job and notifies the server in the background.
// Unless the submission is still in flight the tracker is terminal when
// Cancel returns. Returns false if there was nothing to cancel.
func (t *Tracker) Cancel() bool {
	t.mu.Lock()
	switch {
	case t.state == StateIdle || t.state.Terminal():
		t.mu.Unlock()
		return false
	case t.state == StateSubmitting || t.state == StateCachedHit:
		// handled by Submit once the request returned
		t.cancelRequested = true
		t.mu.Unlock()
		return true
	}
	t.mu.Unlock()
	select {
	case t.cancelCh <- struct{}{}:
	default:
	}
	<-t.done
	return t.State() == StateCancelled
}

//nolint:whitespace // editor/linter issue
func (t *Tracker) submit(
	ctx context.Context,
	req model.JobRequest,
) (*model.TaskResponse, error) {
	switch r := req.(type) {
	case model.SculptureRequest:
		return t.api.SubmitSculpture(ctx, r)
	case *model.SculptureRequest:
		return t.api.SubmitSculpture(ctx, *r)
	case model.CompareRequest:
		return t.api.SubmitCompare(ctx, r)
	case *model.CompareRequest:
		return t.api.SubmitCompare(ctx, *r)
	default:
		return nil, fmt.Errorf("%w: unsupported request %T", model.ErrSubmission, req)
	}
}

//nolint:whitespace // editor/linter issue
func (t *Tracker) cachedResult(
	ctx context.Context,
	req model.JobRequest,
	resp *model.TaskResponse,
) (*model.JobResult, error) {
	if resp.Result != nil {
		return resp.Result, nil
	}
	switch r := req.(type) {
	case model.SculptureRequest:
		return t.api.CachedResult(ctx, r)
	case *model.SculptureRequest:
		return t.api.CachedResult(ctx, *r)
	}
	return nil, fmt.Errorf("%w: no cached result for %T", model.ErrInvalidDataset, req)
}

func (t *Tracker) loop() {
	defer t.release()
	t.dial()
	for {
		select {
		case <-t.done:
			return
		case <-t.cancelCh:
			t.cancelled(t.TaskID())
		case ev := <-t.events:
			t.handle(ev)
		case <-t.reconnectC:
			t.reconnectC = nil
			t.dial()
		case <-t.pollC:
			t.pollC = nil
			t.poll()
		case <-t.pingC:
			t.pingC = nil
			t.ping()
		}
	}
}

// post hands an event to the loop. It returns false once the tracker is done.
func (t *Tracker) post(ev loopEvent) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.done:
		return false
	}
}

func (t *Tracker) handle(ev loopEvent) {
	switch e := ev.(type) {
	case connOpened:
		t.onConnOpened(e)
	case connLost:
		if e.gen == t.gen {
			t.onStreamLost(e.err)
		}
	case streamMessage:
		if e.gen == t.gen {
			t.onMessage(e.msg)
		}
	case statusFetched:
		t.onStatus(e)
	case resultFetched:
		t.onResult(e)
	}
}

func (t *Tracker) dial() {
	t.gen++
	gen := t.gen
	taskID := t.TaskID()
	t.l.Debug("connecting stream", log.String("taskID", taskID), log.Int("gen", gen))
	go func() {
		conn, err := t.dialer.Dial(t.ctx, taskID)
		if err != nil {
			t.post(connLost{gen: gen, err: err})
			return
		}
		if !t.post(connOpened{gen: gen, conn: conn}) {
			conn.Close()
		}
	}()
}

func (t *Tracker) read(gen int, conn stream.Conn) {
	for {
		msg, err := conn.Receive(t.ctx)
		if err != nil {
			if errors.Is(err, stream.ErrClosed) || t.ctx.Err() != nil {
				return
			}
			t.post(connLost{gen: gen, err: err})
			return
		}
		if !t.post(streamMessage{gen: gen, msg: msg}) {
			return
		}
	}
}

func (t *Tracker) onConnOpened(e connOpened) {
	if e.gen != t.gen || t.State() != StateStreamConnecting {
		e.conn.Close()
		return
	}
	t.conn = e.conn
	t.mu.Lock()
	t.reconnects = 0
	t.mu.Unlock()
	t.transition(StateStreaming)
	t.pingC = t.after(t.policy.PingInterval)
	go t.read(e.gen, e.conn)
}

// onStreamLost handles an unexpected closure or a failed dial.
func (t *Tracker) onStreamLost(err error) {
	state := t.State()
	if state != StateStreaming && state != StateStreamConnecting {
		return
	}
	t.closeConn()
	t.pingC = nil

	t.mu.Lock()
	t.reconnects++
	attempt := t.reconnects
	t.mu.Unlock()

	if attempt <= t.policy.MaxReconnects {
		delay := t.policy.ReconnectDelay(attempt)
		t.l.Debug("stream lost, reconnect scheduled",
			log.Int("attempt", attempt),
			log.Duration("delay", delay),
			log.ErrorField(err))
		if state != StateStreamConnecting {
			t.transition(StateStreamConnecting)
		}
		t.metrics.inc(t.metrics.reconnects)
		t.emit(Event{
			Kind: EventReconnectScheduled, State: StateStreamConnecting,
			Attempt: attempt, Delay: delay, Err: err,
		})
		t.reconnectC = t.after(delay)
		return
	}
	t.l.Info("stream unavailable, switching to polling",
		log.String("taskID", t.TaskID()),
		log.Int("attempts", attempt),
		log.ErrorField(err))
	t.transition(StatePollingActive)
	t.pollC = t.after(t.policy.PollInterval)
}

func (t *Tracker) onMessage(msg *model.StreamMessage) {
	switch msg.Type {
	case model.MTConnected, model.MTPing:
		t.l.Debug("stream message", log.String("type", string(msg.Type)))
	case model.MTProgress:
		t.onProgress(msg.ToProgress())
	case model.MTSuccess:
		if msg.Result != nil {
			t.finish(StateSuccess, msg.Result, nil)
			return
		}
		// result not included, events of this connection are obsolete
		t.gen++
		t.closeConn()
		t.pingC = nil
		t.fetchResult()
	case model.MTError:
		t.finish(StateFailure, nil, &model.TaskError{TaskID: t.TaskID(), Message: msg.Error})
	default:
		t.l.Warn("unknown stream message", log.String("type", string(msg.Type)))
	}
}

func (t *Tracker) onProgress(p model.Progress) {
	t.mu.Lock()
	t.progress = p
	t.mu.Unlock()
	t.emit(Event{Kind: EventProgress, State: t.State(), Progress: p})
}

func (t *Tracker) poll() {
	t.mu.Lock()
	t.polls++
	attempt := t.polls
	t.mu.Unlock()
	if attempt > t.policy.MaxPolls {
		t.finish(StateFailure, nil,
			fmt.Errorf("%w: no result after %d status requests", model.ErrTimeout, attempt-1))
		return
	}
	t.metrics.inc(t.metrics.polls)
	t.emit(Event{Kind: EventPoll, State: StatePollingActive, Attempt: attempt})
	taskID := t.TaskID()
	go func() {
		st, err := t.api.Status(t.ctx, taskID)
		t.post(statusFetched{status: st, err: err})
	}()
}

func (t *Tracker) onStatus(e statusFetched) {
	if t.State() != StatePollingActive {
		return
	}
	next := func() { t.pollC = t.after(t.policy.PollInterval) }
	if e.err != nil {
		t.l.Warn("status request failed", log.ErrorField(e.err))
		next()
		return
	}
	switch e.status.Status {
	case model.TaskProgress:
		t.onProgress(e.status.ToProgress())
		next()
	case model.TaskSuccess:
		t.fetchResult()
	case model.TaskFailure:
		msg := e.status.Error.GetOr(e.status.Message.GetOr("unknown error"))
		t.finish(StateFailure, nil, &model.TaskError{TaskID: t.TaskID(), Message: msg})
	case model.TaskRevoked:
		t.finish(StateFailure, nil, &model.TaskError{TaskID: t.TaskID(), Message: "task revoked"})
	default:
		next()
	}
}

func (t *Tracker) fetchResult() {
	taskID := t.TaskID()
	go func() {
		res, err := t.api.Result(t.ctx, taskID)
		t.post(resultFetched{result: res, err: err})
	}()
}

func (t *Tracker) onResult(e resultFetched) {
	switch {
	case e.err != nil:
		t.finish(StateFailure, nil, fmt.Errorf("fetch result: %w", e.err))
	case len(e.result.Datasets()) == 0:
		t.finish(StateFailure, nil, fmt.Errorf("%w: result without sculptures", model.ErrInvalidDataset))
	default:
		t.finish(StateSuccess, e.result, nil)
	}
}

func (t *Tracker) ping() {
	if t.conn == nil {
		return
	}
	conn := t.conn
	go func() {
		if err := conn.Ping(t.ctx); err != nil {
			t.l.Debug("ping failed", log.ErrorField(err))
		}
	}()
	t.pingC = t.after(t.policy.PingInterval)
}

func (t *Tracker) cancelled(taskID string) {
	if t.State().Terminal() {
		return
	}
	t.finish(StateCancelled, nil, model.ErrCancelled)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
		defer cancel()
		if err := t.api.Cancel(ctx, taskID); err != nil {
			t.l.Warn("cancel request failed", log.String("taskID", taskID), log.ErrorField(err))
			return
		}
		t.l.Debug("cancel request sent", log.String("taskID", taskID))
	}()
}

func (t *Tracker) transition(to State) {
	t.mu.Lock()
	prev := t.state
	t.state = to
	t.mu.Unlock()
	t.announce(prev, to)
}

// transitionUnlessCancelled enters the state unless Cancel was called while
// the submission was in flight.
func (t *Tracker) transitionUnlessCancelled(to State) bool {
	t.mu.Lock()
	if t.cancelRequested {
		t.mu.Unlock()
		return false
	}
	prev := t.state
	t.state = to
	t.mu.Unlock()
	t.announce(prev, to)
	return true
}

func (t *Tracker) announce(prev, to State) {
	t.l.Debug("transition",
		log.String("taskID", t.TaskID()),
		log.String("from", prev.String()),
		log.String("to", to.String()))
	if t.span != nil {
		t.span.AddEvent(to.String())
	}
	t.emit(Event{Kind: EventTransition, State: to, Prev: prev})
}

// finish enters a terminal state. Only the first call has an effect.
func (t *Tracker) finish(s State, res *model.JobResult, err error) {
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return
	}
	if t.cancelRequested {
		s, res, err = StateCancelled, nil, model.ErrCancelled
	}
	prev := t.state
	t.state = s
	t.result = res
	t.err = err
	cached := t.cached
	start := t.start
	t.mu.Unlock()

	t.metrics.finished(s, cached, start)
	if t.span != nil {
		t.span.AddEvent(s.String())
		if err != nil {
			t.span.RecordError(err)
			t.span.SetStatus(codes.Error, err.Error())
		}
		t.span.End()
	}
	fields := []log.Field{
		log.String("taskID", t.TaskID()),
		log.String("state", s.String()),
		log.Duration("duration", time.Since(start)),
	}
	if err != nil {
		fields = append(fields, log.ErrorField(err))
	}
	t.l.Debug("job finished", fields...)
	t.emit(Event{Kind: EventTransition, State: s, Prev: prev, Result: res, Err: err, Cached: cached})
	t.release()
}

// release frees channel and timer resources exactly once
func (t *Tracker) release() {
	t.releaseOnce.Do(func() {
		t.released++
		t.stop()
		t.closeConn()
		t.reconnectC, t.pollC, t.pingC = nil, nil, nil
		close(t.done)
	})
}

func (t *Tracker) closeConn() {
	if t.conn == nil {
		return
	}
	if err := t.conn.Close(); err != nil {
		t.l.Debug("closing stream", log.ErrorField(err))
	}
	t.conn = nil
}

func (t *Tracker) emit(ev Event) {
	ev.TaskID = t.TaskID()
	for _, o := range t.observers {
		o(ev)
	}
}
