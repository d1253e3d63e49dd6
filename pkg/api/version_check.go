package api

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/mod/semver"
)

const (
	RequiredServerVersion string = "v2.0.0"
)

func CheckServerVersion(toCheck string) bool {
	if !strings.HasPrefix(toCheck, "v") {
		toCheck = "v" + toCheck
	}
	if !semver.IsValid(toCheck) {
		return false
	}
	res := semver.Compare(toCheck, RequiredServerVersion)
	return res >= 0
}

// ServerVersion returns the api version announced in the openapi document
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	var doc struct {
		Info struct {
			Version string `json:"version"`
		} `json:"info"`
	}
	if err := c.do(ctx, http.MethodGet, "/openapi.json", nil, nil, &doc); err != nil {
		return "", err
	}
	return doc.Info.Version, nil
}
