// Package util holds the setup shared by the gfs commands.
package util

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/api"
	"github.com/mpapenbr/gforce-sculpture/pkg/cache"
	"github.com/mpapenbr/gforce-sculpture/pkg/cache/memcache"
	"github.com/mpapenbr/gforce-sculpture/pkg/cache/natskv"
	"github.com/mpapenbr/gforce-sculpture/pkg/config"
	"github.com/mpapenbr/gforce-sculpture/pkg/stream"
	"github.com/mpapenbr/gforce-sculpture/pkg/stream/natsstream"
	"github.com/mpapenbr/gforce-sculpture/pkg/stream/ws"
	"github.com/mpapenbr/gforce-sculpture/pkg/utils"
)

const (
	TransportWebsocket = "websocket"
	TransportNats      = "nats"

	CacheNone   = "none"
	CacheMemory = "memory"
	CacheNats   = "nats"
)

// Env bundles the resources a command works with
type Env struct {
	Client    *api.Client
	Dialer    stream.Dialer
	Cache     cache.ResultCache
	Nats      *nats.Conn
	telemetry *config.Telemetry
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger installs the default logger according to the log flags
func SetupLogger() error {
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	filtered, err := logger.WithFilter(config.LogFilter)
	if err != nil {
		return fmt.Errorf("invalid log filter: %w", err)
	}
	log.ResetDefault(filtered)
	return nil
}

// NewEnv creates client, stream dialer and result cache from the
// configuration. Close must be called when done.
func NewEnv(ctx context.Context) (*Env, error) {
	ret := &Env{}
	if config.EnableTelemetry {
		t, err := config.SetupTelemetry(ctx)
		if err != nil {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		} else {
			ret.telemetry = t
		}
	}
	var err error
	if ret.Client, err = api.NewClient(config.APIURL,
		api.WithTimeout(config.RequestTimeout)); err != nil {
		ret.Close()
		return nil, err
	}
	if needsNats() {
		if ret.Nats, err = nats.Connect(config.NatsURL,
			nats.Name("gfs"),
			nats.MaxReconnects(-1)); err != nil {
			ret.Close()
			return nil, fmt.Errorf("connect nats %s: %w", config.NatsURL, err)
		}
	}
	switch config.StreamTransport {
	case TransportNats:
		ret.Dialer = natsstream.NewDialer(ret.Nats,
			natsstream.WithSubjectPrefix(config.NatsSubjectPrefix))
	case TransportWebsocket, "":
		ret.Dialer = ws.NewDialer(ret.Client.StreamURL)
	default:
		ret.Close()
		return nil, fmt.Errorf("unknown stream transport %q", config.StreamTransport)
	}
	if ret.Cache, err = newCache(ctx, ret.Nats); err != nil {
		ret.Close()
		return nil, err
	}
	return ret, nil
}

func needsNats() bool {
	return config.StreamTransport == TransportNats ||
		config.CacheType == CacheNats ||
		config.NatsRelay
}

func newCache(ctx context.Context, nc *nats.Conn) (cache.ResultCache, error) {
	switch config.CacheType {
	case CacheNone, "":
		return nil, nil
	case CacheMemory:
		return memcache.New(memcache.WithExpiration(config.CacheTTL)), nil
	case CacheNats:
		return natskv.New(ctx, nc, natskv.WithTTL(config.CacheTTL))
	default:
		return nil, fmt.Errorf("unknown cache type %q", config.CacheType)
	}
}

func (e *Env) Close() {
	if e.Nats != nil {
		if err := e.Nats.Drain(); err != nil {
			log.Debug("draining nats", log.ErrorField(err))
		}
	}
	if e.telemetry != nil {
		e.telemetry.Shutdown()
	}
}

// WaitForServices blocks until the job service answers HTTP requests (and the
// NATS server accepts connections if used). Any answer of the health endpoint
// counts, its content is only reported by WarnIfUnhealthy. An empty or zero
// duration skips the check.
func (e *Env) WaitForServices(ctx context.Context) error {
	if config.WaitForServices == "" {
		return nil
	}
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	if timeout <= 0 {
		return nil
	}
	health := e.Client.BaseURL().JoinPath("health").String()
	if err := utils.WaitForHTTPResponse(ctx, health, timeout, nil); err != nil {
		return err
	}
	if needsNats() {
		addr, err := utils.HostPort(config.NatsURL)
		if err != nil {
			return err
		}
		if err := utils.WaitForTCP(addr, timeout); err != nil {
			return err
		}
	}
	log.Debug("Required services are available")
	return nil
}

// WarnIfUnhealthy logs a warning if the job service reports a degraded
// broker or worker pool. It never stops a job.
func (e *Env) WarnIfUnhealthy(ctx context.Context) {
	h, err := e.Client.Health(ctx)
	if err != nil {
		log.Warn("job service health unknown", log.ErrorField(err))
		return
	}
	if !h.Healthy() {
		log.Warn("job service reports degraded health",
			log.String("api", h.API),
			log.String("redis", h.Redis),
			log.String("celery", h.Celery))
	}
}

// CheckVersion warns if the job service is older than required
func (e *Env) CheckVersion(ctx context.Context) {
	if config.SkipVersionCheck {
		return
	}
	v, err := e.Client.ServerVersion(ctx)
	if err != nil {
		log.Debug("could not read server version", log.ErrorField(err))
		return
	}
	if !api.CheckServerVersion(v) {
		log.Warn("job service version not supported",
			log.String("server", v),
			log.String("required", api.RequiredServerVersion))
	}
}
