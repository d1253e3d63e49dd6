package serve

import (
	"context"
	"crypto/tls"
	"errors"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/config"
	"github.com/mpapenbr/gforce-sculpture/pkg/utils/certs/traefik"
)

var errNoCertificate = errors.New("no certificate configured")

type certSource struct {
	certFile      string
	keyFile       string
	traefikFile   string
	traefikDomain string
}

type certProvider struct {
	src  certSource
	log  *log.Logger
	mu   sync.RWMutex
	cert *tls.Certificate
}

func sourceFromConfig() certSource {
	return certSource{
		certFile:      config.TLSCertFile,
		keyFile:       config.TLSKeyFile,
		traefikFile:   config.TraefikCerts,
		traefikDomain: config.TraefikCertDomain,
	}
}

func (s certSource) enabled() bool {
	return (s.traefikFile != "" && s.traefikDomain != "") ||
		(s.certFile != "" && s.keyFile != "")
}

func (s certSource) files() []string {
	if s.traefikFile != "" && s.traefikDomain != "" {
		return []string{s.traefikFile}
	}
	return []string{s.certFile, s.keyFile}
}

func (s certSource) load() (tls.Certificate, error) {
	switch {
	case s.traefikFile != "" && s.traefikDomain != "":
		return traefik.LoadFile(s.traefikFile, s.traefikDomain)
	case s.certFile != "" && s.keyFile != "":
		return tls.LoadX509KeyPair(s.certFile, s.keyFile)
	default:
		return tls.Certificate{}, errNoCertificate
	}
}

// newTLSConfig returns nil if no certificate is configured. The certificate
// is reloaded whenever one of its files changes until ctx is done.
//
//nolint:nilnil // nil config means plain http
func newTLSConfig(ctx context.Context, src certSource) (*tls.Config, error) {
	if !src.enabled() {
		return nil, nil
	}
	c := &certProvider{src: src, log: log.Default().Named("serve.certs")}
	if err := c.reload(); err != nil {
		return nil, err
	}
	go c.watch(ctx)
	return &tls.Config{
		GetCertificate: c.getCertificate,
		MinVersion:     tls.VersionTLS13,
	}, nil
}

func (c *certProvider) getCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cert, nil
}

func (c *certProvider) reload() error {
	cert, err := c.src.load()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cert = &cert
	return nil
}

func (c *certProvider) watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		c.log.Error("could not create fsnotify watcher", log.ErrorField(err))
		return
	}
	defer watcher.Close()
	for _, f := range c.src.files() {
		if err := watcher.Add(f); err != nil {
			c.log.Error("could not watch file", log.String("file", f), log.ErrorField(err))
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Chmod) {
				continue
			}
			c.log.Info("cert file changed, reloading cert", log.String("file", event.Name))
			if err := c.reload(); err != nil {
				// keep serving the previous certificate
				c.log.Error("could not reload cert", log.ErrorField(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.log.Error("watcher error", log.ErrorField(err))
		}
	}
}
