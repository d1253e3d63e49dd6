package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mpapenbr/gforce-sculpture/pkg/model"
	"github.com/mpapenbr/gforce-sculpture/pkg/stream"
)

var errConnRefused = errors.New("connection refused")

type fakeAPI struct {
	mu           sync.Mutex
	submitResp   *model.TaskResponse
	submitErr    error
	submitGate   chan struct{}
	submitCalls  int
	statuses     []model.TaskStatus
	statusCalls  int
	result       *model.JobResult
	resultCalls  int
	cachedResult *model.JobResult
	cachedCalls  int
	cancelled    chan string
}

func newFakeAPI(taskID string) *fakeAPI {
	return &fakeAPI{
		submitResp: &model.TaskResponse{TaskID: taskID, Status: model.TaskPending},
		cancelled:  make(chan string, 10),
	}
}

//nolint:whitespace // editor/linter issue
func (f *fakeAPI) SubmitSculpture(
	ctx context.Context,
	req model.SculptureRequest,
) (*model.TaskResponse, error) {
	return f.submit(ctx)
}

//nolint:whitespace // editor/linter issue
func (f *fakeAPI) SubmitCompare(
	ctx context.Context,
	req model.CompareRequest,
) (*model.TaskResponse, error) {
	return f.submit(ctx)
}

func (f *fakeAPI) submit(ctx context.Context) (*model.TaskResponse, error) {
	if f.submitGate != nil {
		select {
		case <-f.submitGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitResp, nil
}

func (f *fakeAPI) Status(ctx context.Context, taskID string) (*model.TaskStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if len(f.statuses) == 0 {
		return &model.TaskStatus{TaskID: taskID, Status: model.TaskQueued}, nil
	}
	st := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return &st, nil
}

func (f *fakeAPI) Result(ctx context.Context, taskID string) (*model.JobResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultCalls++
	if f.result == nil {
		return nil, errors.New("not found")
	}
	return f.result, nil
}

//nolint:whitespace // editor/linter issue
func (f *fakeAPI) CachedResult(
	ctx context.Context,
	req model.SculptureRequest,
) (*model.JobResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cachedCalls++
	if f.cachedResult == nil {
		return nil, errors.New("not cached")
	}
	return f.cachedResult, nil
}

func (f *fakeAPI) Cancel(ctx context.Context, taskID string) error {
	f.cancelled <- taskID
	return nil
}

func (f *fakeAPI) counts() (status, result, cached int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls, f.resultCalls, f.cachedCalls
}

type fakeConn struct {
	msgs      chan *model.StreamMessage
	errs      chan error
	closed    chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	pings     int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		msgs:   make(chan *model.StreamMessage, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Receive(ctx context.Context) (*model.StreamMessage, error) {
	select {
	case m := <-c.msgs:
		return m, nil
	case err := <-c.errs:
		return nil, err
	case <-c.closed:
		return nil, stream.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

// fakeDialer hands out fakeConns. Dials listed in fail return an error.
type fakeDialer struct {
	mu    sync.Mutex
	dials int
	fail  func(n int) bool
	conns chan *fakeConn
}

func newFakeDialer(fail func(n int) bool) *fakeDialer {
	return &fakeDialer{fail: fail, conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, taskID string) (stream.Conn, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	d.mu.Unlock()
	if d.fail != nil && d.fail(n) {
		return nil, errConnRefused
	}
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func alwaysFail(int) bool { return true }

// fakeClock records requested delays. Timers matching autoFire fire at once,
// the others wait for Fire.
type fakeClock struct {
	mu       sync.Mutex
	delays   []time.Duration
	autoFire func(time.Duration) bool
	pending  map[time.Duration][]chan time.Time
}

func newFakeClock(autoFire func(time.Duration) bool) *fakeClock {
	return &fakeClock{autoFire: autoFire, pending: map[time.Duration][]chan time.Time{}}
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delays = append(c.delays, d)
	ch := make(chan time.Time, 1)
	if c.autoFire == nil || c.autoFire(d) {
		ch <- time.Time{}
		return ch
	}
	c.pending[d] = append(c.pending[d], ch)
	return ch
}

// Fire triggers all pending timers with duration d
func (c *fakeClock) Fire(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	chs := c.pending[d]
	delete(c.pending, d)
	for _, ch := range chs {
		ch <- time.Time{}
	}
	return len(chs)
}

func (c *fakeClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

func exceptPing(d time.Duration) bool {
	return d != DefaultPolicy().PingInterval
}

// recorder collects observer events
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofKind(k EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ret []Event
	for _, e := range r.events {
		if e.Kind == k {
			ret = append(ret, e)
		}
	}
	return ret
}

func (r *recorder) states() []State {
	var ret []State
	for _, e := range r.ofKind(EventTransition) {
		ret = append(ret, e.State)
	}
	return ret
}
