package config

import (
	"time"

	"github.com/mpapenbr/gforce-sculpture/pkg/tracker"
)

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	APIURL            string        // base URL of the job service
	StreamTransport   string        // websocket or nats
	NatsURL           string        // NATS server, used for nats transport, relay and shared cache
	NatsSubjectPrefix string        // subject prefix of task streams on NATS
	NatsRelay         bool          // republish progress of websocket jobs on NATS
	CacheType         string        // none, memory or nats
	CacheTTL          time.Duration // expiry of cached results
	RequestTimeout    time.Duration // timeout of a single REST request
	WaitForServices   string        // duration to wait for the job service to be ready
	LogLevel          string        // sets the log level (zap log level values)
	LogFormat         string        // text vs json
	LogFilter         string        // zapfilter rules, e.g. "*:* debug+:tracker"
	EnableTelemetry   bool          // enable telemetry
	TelemetryEndpoint string        // endpoint for telemetry, "stdout" prints to stderr
	SkipVersionCheck  bool          // do not compare the server version
	ViewerAddr        string        // listen address of the viewer backend
	TLSCertFile       string        // path to TLS certificate of the viewer backend
	TLSKeyFile        string        // path to TLS key of the viewer backend
	TraefikCerts      string        // path to traefik certs file
	TraefikCertDomain string        // the domain to lookup within the traefik certs
)

// TrackerSettings controls the timing of job tracking
type TrackerSettings struct {
	ReconnectBase   time.Duration
	ReconnectFactor float64
	MaxReconnects   int
	PollInterval    time.Duration
	MaxPolls        int
	PingInterval    time.Duration
}

// Tracker holds the tracker settings resolved from CLI
var Tracker = DefaultTrackerSettings()

func DefaultTrackerSettings() TrackerSettings {
	p := tracker.DefaultPolicy()
	return TrackerSettings{
		ReconnectBase:   p.ReconnectBase,
		ReconnectFactor: p.ReconnectFactor,
		MaxReconnects:   p.MaxReconnects,
		PollInterval:    p.PollInterval,
		MaxPolls:        p.MaxPolls,
		PingInterval:    p.PingInterval,
	}
}

// Policy converts the settings. Invalid values fall back to the defaults.
func (s TrackerSettings) Policy() tracker.Policy {
	def := tracker.DefaultPolicy()
	ret := tracker.Policy{
		ReconnectBase:   s.ReconnectBase,
		ReconnectFactor: s.ReconnectFactor,
		MaxReconnects:   s.MaxReconnects,
		PollInterval:    s.PollInterval,
		MaxPolls:        s.MaxPolls,
		PingInterval:    s.PingInterval,
	}
	if ret.ReconnectBase <= 0 {
		ret.ReconnectBase = def.ReconnectBase
	}
	if ret.ReconnectFactor < 1 {
		ret.ReconnectFactor = def.ReconnectFactor
	}
	if ret.MaxReconnects < 0 {
		ret.MaxReconnects = def.MaxReconnects
	}
	if ret.PollInterval <= 0 {
		ret.PollInterval = def.PollInterval
	}
	if ret.MaxPolls <= 0 {
		ret.MaxPolls = def.MaxPolls
	}
	if ret.PingInterval <= 0 {
		ret.PingInterval = def.PingInterval
	}
	return ret
}
