// Package traefik reads certificates from a traefik ACME storage file.
package traefik

import (
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

var ErrDomainNotFound = errors.New("domain not found")

type acmeEntry struct {
	Certificate string `json:"certificate"`
	Key         string `json:"key"`
}

// LoadFile reads the ACME storage file and returns the key pair of domain
func LoadFile(file, domain string) (tls.Certificate, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("reading %s: %w", file, err)
	}
	return Parse(string(data), domain)
}

// Parse looks up domain in any resolver of the ACME storage content.
// Certificate and key are stored base64 encoded PEM.
func Parse(jsonData, domain string) (tls.Certificate, error) {
	entry, err := lookup(jsonData, domain)
	if err != nil {
		return tls.Certificate{}, err
	}
	certPEM, err := base64.StdEncoding.DecodeString(entry.Certificate)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("certificate: %w", err)
	}
	keyPEM, err := base64.StdEncoding.DecodeString(entry.Key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("key: %w", err)
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}

func lookup(jsonData, domain string) (*acmeEntry, error) {
	obj, err := oj.ParseString(jsonData)
	if err != nil {
		return nil, err
	}
	path, err := jp.ParseString(
		fmt.Sprintf(`$..Certificates[?(@.domain.main == %q)]`, domain))
	if err != nil {
		return nil, err
	}
	res := path.Get(obj)
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDomainNotFound, domain)
	}
	ret := &acmeEntry{}
	if err := oj.Unmarshal([]byte(oj.JSON(res[0])), ret); err != nil {
		return nil, err
	}
	return ret, nil
}
