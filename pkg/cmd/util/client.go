package util

import (
	"encoding/json"
	"io"

	"github.com/mpapenbr/gforce-sculpture/pkg/api"
	"github.com/mpapenbr/gforce-sculpture/pkg/config"
)

// NewClient creates an api client for the commands that only talk REST
func NewClient() (*api.Client, error) {
	if err := SetupLogger(); err != nil {
		return nil, err
	}
	return api.NewClient(config.APIURL, api.WithTimeout(config.RequestTimeout))
}

// PrintJSON writes v indented
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
