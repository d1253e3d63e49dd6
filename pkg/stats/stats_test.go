package stats

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/gforce-sculpture/pkg/model"
	"github.com/mpapenbr/gforce-sculpture/testsupport/sampledata"
)

func TestParseLapTime(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0 days 00:01:23.456000", "83.456", false},
		{"00:01:23.456", "83.456", false},
		{"1:23.456", "83.456", false},
		{"83.456", "83.456", false},
		{"1 days 00:00:01", "86401", false},
		{"  1:20.000 ", "80", false},
		{"NaT", "", true},
		{"", "", true},
		{"None", "", true},
		{"1:2:3:4", "", true},
		{"1:xx", "", true},
		{"-5", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLapTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestFormatLapTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"83.456", "1:23.456"},
		{"65.1", "1:05.100"},
		{"59.9994", "59.999"},
		{"120", "2:00.000"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLapTime(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestSummarize(t *testing.T) {
	ver := sampledata.Dataset("VER", 20, 5)
	ver.Driver.LapTime = "0 days 00:01:10.270000"
	ham := sampledata.Dataset("HAM", 20, 5)
	ham.Driver.LapTime = "1:10.793"
	lec := sampledata.Dataset("LEC", 20, 5)
	lec.Driver.LapTime = "NaT"

	got := Summarize([]*model.SculptureDataset{ham, ver, lec})
	type row struct {
		Code    string
		Lap     string
		Gap     string
		Fastest bool
	}
	rows := make([]row, len(got))
	for i, s := range got {
		rows[i] = row{s.DriverCode, s.Lap, s.GapStr, s.Fastest}
	}
	want := []row{
		{"HAM", "1:10.793", "+0.523", false},
		{"VER", "1:10.270", "-", true},
		{"LEC", "-", "-", false},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("Summarize() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 20, got[0].Vertices)
	assert.Equal(t, ham.Metadata.MaxGForce, got[0].MaxGForce)
}

func TestSummarize_noLapTimes(t *testing.T) {
	ds := sampledata.Dataset("VER", 10, 2)
	ds.Driver.LapTime = ""
	got := Summarize([]*model.SculptureDataset{ds})
	require.Len(t, got, 1)
	assert.False(t, got[0].HasLapTime)
	assert.Equal(t, "-", got[0].GapStr)
}
