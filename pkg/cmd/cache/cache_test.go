package cache

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

func TestPrintStats(t *testing.T) {
	st := &model.CacheStats{
		TotalKeys: 12, SculptureCount: 7, SessionCount: 5, Hits: 3, Misses: 1, HitRate: 0.75,
	}
	tests := []struct {
		name    string
		format  string
		check   func(t *testing.T, out string)
		wantErr bool
	}{
		{
			name:   "text",
			format: "text",
			check: func(t *testing.T, out string) {
				t.Helper()
				lines := strings.Split(strings.TrimSpace(out), "\n")
				require.Len(t, lines, 6)
				assert.Equal(t, []string{"sculptures", "7"}, strings.Fields(lines[1]))
				assert.Equal(t, []string{"hit", "rate", "75.0%"}, strings.Fields(lines[5]))
			},
		},
		{
			name:   "json",
			format: "json",
			check: func(t *testing.T, out string) {
				t.Helper()
				var decoded map[string]any
				require.NoError(t, json.Unmarshal([]byte(out), &decoded))
				assert.InDelta(t, 7, decoded["sculpture_cache_count"], 0)
				assert.InDelta(t, 0.75, decoded["hit_rate"], 0)
			},
		},
		{name: "unknown", format: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := printStats(&buf, tt.format, st)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, buf.String())
		})
	}
}
