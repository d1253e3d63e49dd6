package utils

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/mpapenbr/gforce-sculpture/log"
)

func WaitForTCP(addr string, timeout time.Duration) error {
	timeoutReached := time.Now().Add(timeout)
	start := time.Now()
	log.Debug("wait for tcp connection",
		log.String("addr", addr),
		log.String("timeout", timeout.String()))
	var d net.Dialer
	for time.Now().Before(timeoutReached) {
		conn, err := d.DialContext(context.Background(), "tcp", addr)
		if err == nil {
			conn.Close()

			log.Debug("tcp connection successful",
				log.String("addr", addr),
				log.String("duration", time.Since(start).String()))
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("%s could not be reached after %v", addr, timeout)
}

// WaitForHTTPResponse polls url until the server answers with a status
// accepted by ok. A nil ok accepts any response.
//
//nolint:whitespace // editor/linter issue
func WaitForHTTPResponse(
	ctx context.Context,
	target string,
	timeout time.Duration,
	ok func(status int) bool,
) error {
	timeoutReached := time.Now().Add(timeout)
	start := time.Now()
	log.Debug("wait for http request",
		log.String("url", target),
		log.String("timeout", timeout.String()))
	cli := &http.Client{Timeout: 5 * time.Second}
	last := "no response"
	for time.Now().Before(timeoutReached) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
		resp, err := cli.Do(req)
		if err == nil {
			resp.Body.Close()
			if ok == nil || ok(resp.StatusCode) {
				log.Debug("http request successful",
					log.String("url", target),
					log.String("duration", time.Since(start).String()))
				return nil
			}
			last = resp.Status
		} else {
			last = err.Error()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("%s could not be reached after %v (%s)", target, timeout, last)
}

// HostPort returns host:port of a URL, using the default port of the scheme
// if none is given.
func HostPort(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	port := map[string]string{
		"http": "80", "ws": "80", "https": "443", "wss": "443",
		"nats": "4222", "tls": "4222",
	}[u.Scheme]
	if port == "" {
		return "", fmt.Errorf("unknown default port for scheme %q", u.Scheme)
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
