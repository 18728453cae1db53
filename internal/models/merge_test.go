package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeDataSumsCounters(t *testing.T) {
	tests := []struct {
		name     string
		existing map[string]any
		incoming map[string]any
		want     float64
	}{
		{"int plus int", map[string]any{"count": 1}, map[string]any{"count": 1}, 2},
		{"float plus int", map[string]any{"count": float64(3)}, map[string]any{"count": 2}, 5},
		{"int64 plus float", map[string]any{"count": int64(10)}, map[string]any{"count": float64(0.5)}, 10.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeData(tt.existing, tt.incoming)
			require.Contains(t, got, "count")
			assert.InDelta(t, tt.want, got["count"], 1e-9)
		})
	}
}

func TestMergeDataOverwritesNonCounters(t *testing.T) {
	got := MergeData(
		map[string]any{"content": "old", "count": 2},
		map[string]any{"content": "new"},
	)
	assert.Equal(t, "new", got["content"])
	assert.Equal(t, 2, got["count"], "untouched keys keep the stored value")
}

func TestMergeDataNonNumericCountOverwrites(t *testing.T) {
	got := MergeData(
		map[string]any{"count": "broken"},
		map[string]any{"count": 4},
	)
	assert.Equal(t, 4, got["count"])
}

func TestMergeDataDoesNotMutateInputs(t *testing.T) {
	existing := map[string]any{"count": 1}
	incoming := map[string]any{"count": 1}
	_ = MergeData(existing, incoming)
	assert.Equal(t, 1, existing["count"])
	assert.Equal(t, 1, incoming["count"])
}
