package model

import (
	"errors"
	"testing"
)

func TestSculptureRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     SculptureRequest
		wantErr bool
	}{
		{"valid", SculptureRequest{Year: 2024, Round: 7, Session: "Q", Driver: "VER"}, false},
		{"year too low", SculptureRequest{Year: 2017, Round: 7, Session: "Q", Driver: "VER"}, true},
		{"round too high", SculptureRequest{Year: 2024, Round: 26, Session: "Q", Driver: "VER"}, true},
		{"unknown session", SculptureRequest{Year: 2024, Round: 7, Session: "FP4", Driver: "VER"}, true},
		{"short driver", SculptureRequest{Year: 2024, Round: 7, Session: "R", Driver: "VE"}, true},
		{"lower case driver", SculptureRequest{Year: 2024, Round: 7, Session: "R", Driver: "ver"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrSubmission) {
				t.Errorf("Validate() error = %v, want ErrSubmission", err)
			}
		})
	}
}

func TestSculptureRequest_Normalize(t *testing.T) {
	req := SculptureRequest{Year: 2024, Round: 7, Session: " q", Driver: "ver "}.Normalize()
	if err := req.Validate(); err != nil {
		t.Errorf("normalized request should be valid: %v", err)
	}
	if got := req.CacheKey(); got != "2024:7:Q:VER" {
		t.Errorf("CacheKey() = %v", got)
	}
}

func TestCompareRequest_Validate(t *testing.T) {
	base := CompareRequest{Year: 2024, Round: 7, Session: "Q"}
	tests := []struct {
		name    string
		drivers []string
		wantErr bool
	}{
		{"two drivers", []string{"VER", "HAM"}, false},
		{"five drivers", []string{"VER", "HAM", "LEC", "NOR", "PIA"}, false},
		{"single driver", []string{"VER"}, true},
		{"six drivers", []string{"VER", "HAM", "LEC", "NOR", "PIA", "SAI"}, true},
		{"duplicates", []string{"VER", "VER"}, true},
		{"invalid code", []string{"VER", "H4M"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			req.DriverList = tt.drivers
			if err := req.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
