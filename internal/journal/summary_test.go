package journal

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSummarize(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := []Entry{
		{At: base.Add(2 * time.Minute), Mode: "track", Outcome: OutcomeNotFound, Elapsed: 10 * time.Millisecond},
		{At: base.Add(time.Minute), Mode: "checkout", Outcome: OutcomeError, Elapsed: 30 * time.Millisecond},
		{At: base, Mode: "checkout", Outcome: OutcomeSuccess, Elapsed: 50 * time.Millisecond, Discarded: true},
		{At: base.Add(3 * time.Minute), Mode: "track", Outcome: OutcomeSuccess, Elapsed: 30 * time.Millisecond},
	}

	sum := Summarize(entries)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, base, sum.From)
	assert.Equal(t, base.Add(3*time.Minute), sum.To)
	assert.Equal(t, 30*time.Millisecond, sum.Average)

	require.Len(t, sum.Modes, 2)
	track, checkout := sum.Modes[0], sum.Modes[1]
	assert.Equal(t, "track", track.Mode)
	assert.Equal(t, 1, track.Success)
	assert.Equal(t, 1, track.NotFound)
	assert.Equal(t, 20*time.Millisecond, track.Average)

	assert.Equal(t, "checkout", checkout.Mode)
	assert.Equal(t, 1, checkout.Success)
	assert.Equal(t, 1, checkout.Errors)
	assert.Equal(t, 1, checkout.Discarded)
	assert.Equal(t, 2, checkout.Total())
	assert.Equal(t, 40*time.Millisecond, checkout.Average)
}

func TestSummaryOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Summarize(nil).Write(&buf))
	assert.Contains(t, buf.String(), "No requests journaled")

	sum := Summarize([]Entry{{At: time.Now(), Mode: "return", Outcome: OutcomeSuccess, Elapsed: 5 * time.Millisecond}})
	buf.Reset()
	require.NoError(t, sum.Write(&buf))
	assert.Contains(t, buf.String(), "Requests: 1")
	assert.Contains(t, buf.String(), "return")

	buf.Reset()
	require.NoError(t, sum.WriteYAML(&buf))
	var decoded struct {
		Total int `yaml:"total"`
		Modes []struct {
			Mode    string `yaml:"mode"`
			Success int    `yaml:"success"`
		} `yaml:"modes"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 1, decoded.Total)
	require.Len(t, decoded.Modes, 1)
	assert.Equal(t, "return", decoded.Modes[0].Mode)
	assert.Equal(t, 1, decoded.Modes[0].Success)
}
