//nolint:lll // readablity
package traefik

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		domain  string
		cert    string
		key     string
		wantErr error
	}{
		{
			name:   "Success",
			data:   `{"dummy":{"Certificates":[{"domain":{"main":"example.com"}, "certificate": "cert1", "key": "key1"}]}}`,
			domain: "example.com",
			cert:   "cert1",
			key:    "key1",
		},
		{
			name:   "Wildcard in second resolver",
			data:   `{"a":{"Certificates":[]},"myresolver":{"Certificates":[{"domain":{"main":"*.example.com"}, "certificate": "cert2", "key": "key2"}]}}`,
			domain: "*.example.com",
			cert:   "cert2",
			key:    "key2",
		},
		{
			name:    "Domain not found",
			data:    `{"dummy":{"Certificates":[{"domain":{"main":"example.com"}, "certificate": "cert1", "key": "key1"}]}}`,
			domain:  "notfound.com",
			wantErr: ErrDomainNotFound,
		},
		{
			name:    "Empty json",
			data:    `{}`,
			domain:  "notfound.com",
			wantErr: ErrDomainNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lookup(tt.data, tt.domain)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("lookup() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("lookup() unexpected error %v", err)
			}
			if got.Certificate != tt.cert || got.Key != tt.key {
				t.Errorf("lookup() got = %+v, want %s/%s", got, tt.cert, tt.key)
			}
		})
	}
}

func TestParse_invalidEncoding(t *testing.T) {
	data := `{"r":{"Certificates":[{"domain":{"main":"example.com"}, "certificate": "%%%", "key": "key1"}]}}`
	if _, err := Parse(data, "example.com"); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestLoadFile_missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "acme.json"), "example.com"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFile() error = %v, want not exist", err)
	}
}
