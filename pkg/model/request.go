package model

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const (
	MinYear           = 2018
	MaxYear           = 2030
	MinRound          = 1
	MaxRound          = 25
	MinCompareDrivers = 2
	MaxCompareDrivers = 5
)

var validSessions = []string{"FP1", "FP2", "FP3", "Q", "R", "S", "SS", "SQ"}

// JobRequest is implemented by all requests that start a sculpture job
type JobRequest interface {
	Validate() error
	// Drivers returns the driver codes covered by the request
	Drivers() []string
}

type SculptureRequest struct {
	Year    int    `json:"year"`
	Round   int    `json:"round"`
	Session string `json:"session"`
	Driver  string `json:"driver"`
}

type CompareRequest struct {
	Year       int      `json:"year"`
	Round      int      `json:"round"`
	Session    string   `json:"session"`
	DriverList []string `json:"drivers"`
}

// Normalize upper-cases session and driver codes
func (r SculptureRequest) Normalize() SculptureRequest {
	r.Session = strings.ToUpper(strings.TrimSpace(r.Session))
	r.Driver = strings.ToUpper(strings.TrimSpace(r.Driver))
	return r
}

func (r SculptureRequest) Validate() error {
	if err := validateSession(r.Year, r.Round, r.Session); err != nil {
		return err
	}
	return validateDriver(r.Driver)
}

func (r SculptureRequest) Drivers() []string {
	return []string{r.Driver}
}

// CacheKey identifies the result of this request
func (r SculptureRequest) CacheKey() string {
	return fmt.Sprintf("%d:%d:%s:%s", r.Year, r.Round, r.Session, r.Driver)
}

func (r CompareRequest) Normalize() CompareRequest {
	r.Session = strings.ToUpper(strings.TrimSpace(r.Session))
	r.DriverList = lo.Map(r.DriverList, func(d string, _ int) string {
		return strings.ToUpper(strings.TrimSpace(d))
	})
	return r
}

func (r CompareRequest) Validate() error {
	if err := validateSession(r.Year, r.Round, r.Session); err != nil {
		return err
	}
	if n := len(r.DriverList); n < MinCompareDrivers || n > MaxCompareDrivers {
		return fmt.Errorf("%w: comparison needs %d to %d drivers, got %d",
			ErrSubmission, MinCompareDrivers, MaxCompareDrivers, n)
	}
	if dups := lo.FindDuplicates(r.DriverList); len(dups) > 0 {
		return fmt.Errorf("%w: duplicate drivers %v", ErrSubmission, dups)
	}
	for _, d := range r.DriverList {
		if err := validateDriver(d); err != nil {
			return err
		}
	}
	return nil
}

func (r CompareRequest) Drivers() []string {
	return r.DriverList
}

func validateSession(year, round int, session string) error {
	if year < MinYear || year > MaxYear {
		return fmt.Errorf("%w: year %d out of range %d-%d",
			ErrSubmission, year, MinYear, MaxYear)
	}
	if round < MinRound || round > MaxRound {
		return fmt.Errorf("%w: round %d out of range %d-%d",
			ErrSubmission, round, MinRound, MaxRound)
	}
	if !lo.Contains(validSessions, session) {
		return fmt.Errorf("%w: unknown session %q", ErrSubmission, session)
	}
	return nil
}

func validateDriver(code string) error {
	if len(code) != 3 {
		return fmt.Errorf("%w: driver code %q must have 3 letters", ErrSubmission, code)
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return fmt.Errorf("%w: driver code %q must have 3 letters",
				ErrSubmission, code)
		}
	}
	return nil
}
