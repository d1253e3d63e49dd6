package stats

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

var ErrNoLapTime = errors.New("no lap time")

var sixty = decimal.NewFromInt(60)

type DriverSummary struct {
	DriverCode string          `json:"driverCode" yaml:"driverCode"`
	FullName   string          `json:"fullName,omitempty" yaml:"fullName,omitempty"`
	TeamName   string          `json:"teamName,omitempty" yaml:"teamName,omitempty"`
	Compound   string          `json:"compound,omitempty" yaml:"compound,omitempty"`
	LapTime    decimal.Decimal `json:"lapTime" yaml:"-"`
	HasLapTime bool            `json:"hasLapTime" yaml:"-"`
	Gap        decimal.Decimal `json:"gap" yaml:"-"`
	Fastest    bool            `json:"fastest" yaml:"fastest"`
	MaxGForce  float64         `json:"maxGForce" yaml:"maxGForce"`
	AvgGForce  float64         `json:"avgGForce" yaml:"avgGForce"`
	MaxSpeed   float64         `json:"maxSpeed" yaml:"maxSpeed"`
	Vertices   int             `json:"vertices" yaml:"vertices"`
	// rendered values for text output
	Lap    string `json:"-" yaml:"lapTime"`
	GapStr string `json:"-" yaml:"gap"`
}

// ParseLapTime accepts lap times as delivered by the job service.
// Supported: "0 days 00:01:23.456000", "00:01:23.456", "1:23.456" and "83.456".
func ParseLapTime(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nat", "none", "nan", "null":
		return decimal.Zero, ErrNoLapTime
	}
	days := decimal.Zero
	if idx := strings.Index(s, "days"); idx >= 0 {
		d, err := decimal.NewFromString(strings.TrimSpace(s[:idx]))
		if err != nil {
			return decimal.Zero, fmt.Errorf("lap time %q: %w", s, err)
		}
		days = d
		s = strings.TrimSpace(s[idx+len("days"):])
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return decimal.Zero, fmt.Errorf("lap time %q: too many components", s)
	}
	ret := decimal.Zero
	for _, p := range parts {
		v, err := decimal.NewFromString(p)
		if err != nil {
			return decimal.Zero, fmt.Errorf("lap time %q: %w", s, err)
		}
		ret = ret.Mul(sixty).Add(v)
	}
	ret = ret.Add(days.Mul(decimal.NewFromInt(86400)))
	if ret.IsNegative() {
		return decimal.Zero, fmt.Errorf("lap time %q: negative", s)
	}
	return ret, nil
}

// FormatLapTime renders seconds as m:ss.fff
func FormatLapTime(d decimal.Decimal) string {
	minutes := d.Div(sixty).Floor()
	rest := d.Sub(minutes.Mul(sixty))
	if minutes.IsZero() {
		return rest.StringFixed(3)
	}
	sec := rest.StringFixed(3)
	if rest.LessThan(decimal.NewFromInt(10)) {
		sec = "0" + sec
	}
	return fmt.Sprintf("%s:%s", minutes.String(), sec)
}

// FormatGap renders a gap to the fastest lap, e.g. "+0.523"
func FormatGap(d decimal.Decimal) string {
	if d.IsZero() {
		return "-"
	}
	return "+" + d.StringFixed(3)
}

// Summarize builds one summary per dataset in input order. Gaps are computed
// against the fastest parsable lap time.
func Summarize(datasets []*model.SculptureDataset) []DriverSummary {
	ret := lo.Map(datasets, func(ds *model.SculptureDataset, _ int) DriverSummary {
		s := DriverSummary{
			DriverCode: ds.Code(),
			FullName:   ds.Driver.FullName,
			TeamName:   ds.Driver.TeamName,
			Compound:   ds.Driver.Compound,
			MaxGForce:  ds.Metadata.MaxGForce,
			AvgGForce:  ds.Metadata.AvgGForce,
			MaxSpeed:   ds.Metadata.MaxSpeed,
			Vertices:   len(ds.Vertices),
			Lap:        "-",
			GapStr:     "-",
		}
		if lt, err := ParseLapTime(ds.Driver.LapTime); err == nil {
			s.LapTime = lt
			s.HasLapTime = true
			s.Lap = FormatLapTime(lt)
		}
		return s
	})
	timed := lo.Filter(ret, func(s DriverSummary, _ int) bool { return s.HasLapTime })
	if len(timed) == 0 {
		return ret
	}
	fastest := lo.MinBy(timed, func(a, b DriverSummary) bool {
		return a.LapTime.LessThan(b.LapTime)
	}).LapTime
	for i := range ret {
		if !ret[i].HasLapTime {
			continue
		}
		ret[i].Gap = ret[i].LapTime.Sub(fastest)
		ret[i].Fastest = ret[i].Gap.IsZero()
		ret[i].GapStr = FormatGap(ret[i].Gap)
	}
	return ret
}
