package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected time.Duration
	}{
		{name: "number is milliseconds", raw: `1500`, expected: 1500 * time.Millisecond},
		{name: "string goes through ParseDuration", raw: `"2s"`, expected: 2 * time.Second},
		{name: "compound string", raw: `"1m30s"`, expected: 90 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &d))
			assert.Equal(t, tt.expected, d.Std())
		})
	}
}

func TestDuration_UnmarshalJSONRejectsGarbage(t *testing.T) {
	var d Duration

	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestDuration_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Duration(250 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, "250", string(data))
}
