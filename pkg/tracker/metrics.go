package tracker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/gforce-sculpture/log"
)

var (
	meter  = otel.Meter("gfs.tracker")
	tracer = otel.Tracer("gfs")
)

type trackerMetrics struct {
	submitted  metric.Int64Counter
	reconnects metric.Int64Counter
	polls      metric.Int64Counter
	outcomes   metric.Int64Counter
	duration   metric.Float64Histogram
}

func newTrackerMetrics(l *log.Logger) *trackerMetrics {
	ret := &trackerMetrics{}
	var err error
	report := func(name string, err error) {
		if err != nil {
			l.Warn("failed to register metric", log.String("metric", name), log.ErrorField(err))
		}
	}
	ret.submitted, err = meter.Int64Counter("gfs.tracker.submitted",
		metric.WithDescription("Number of submitted jobs"),
		metric.WithUnit("{job}"))
	report("submitted", err)
	ret.reconnects, err = meter.Int64Counter("gfs.tracker.reconnects",
		metric.WithDescription("Number of scheduled stream reconnects"),
		metric.WithUnit("{count}"))
	report("reconnects", err)
	ret.polls, err = meter.Int64Counter("gfs.tracker.polls",
		metric.WithDescription("Number of status requests in polling mode"),
		metric.WithUnit("{request}"))
	report("polls", err)
	ret.outcomes, err = meter.Int64Counter("gfs.tracker.outcomes",
		metric.WithDescription("Number of finished jobs by terminal state"),
		metric.WithUnit("{job}"))
	report("outcomes", err)
	ret.duration, err = meter.Float64Histogram("gfs.tracker.duration",
		metric.WithDescription("Time from submission to terminal state"),
		metric.WithUnit("s"))
	report("duration", err)
	return ret
}

func (m *trackerMetrics) finished(s State, cached bool, start time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("state", s.String()),
		attribute.Bool("cached", cached),
	)
	ctx := context.Background()
	if m.outcomes != nil {
		m.outcomes.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

func (m *trackerMetrics) inc(c metric.Int64Counter) {
	if c != nil {
		c.Add(context.Background(), 1)
	}
}
