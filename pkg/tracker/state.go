package tracker

import (
	"fmt"
	"math"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateCachedHit
	StateStreamConnecting
	StateStreaming
	StatePollingActive
	StateSuccess
	StateFailure
	StateCancelled
)

var stateNames = map[State]string{
	StateIdle:             "idle",
	StateSubmitting:       "submitting",
	StateCachedHit:        "cached_hit",
	StateStreamConnecting: "stream_connecting",
	StateStreaming:        "streaming",
	StatePollingActive:    "polling",
	StateSuccess:          "success",
	StateFailure:          "failure",
	StateCancelled:        "cancelled",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure || s == StateCancelled
}

// Policy controls reconnection, polling and keep-alive timing.
type Policy struct {
	ReconnectBase   time.Duration
	ReconnectFactor float64
	MaxReconnects   int
	PollInterval    time.Duration
	MaxPolls        int
	PingInterval    time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		ReconnectBase:   time.Second,
		ReconnectFactor: 1.5,
		MaxReconnects:   5,
		PollInterval:    2 * time.Second,
		MaxPolls:        60,
		PingInterval:    30 * time.Second,
	}
}

// ReconnectDelay returns the delay before reconnect attempt n (1-based):
// base * factor^(n-1)
func (p Policy) ReconnectDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	f := math.Pow(p.ReconnectFactor, float64(attempt-1))
	return time.Duration(float64(p.ReconnectBase) * f)
}
