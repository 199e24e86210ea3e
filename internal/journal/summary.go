package journal

import (
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Summary aggregates journal entries per mode
type Summary struct {
	From    time.Time     `yaml:"from"`
	To      time.Time     `yaml:"to"`
	Total   int           `yaml:"total"`
	Modes   []ModeStats   `yaml:"modes"`
	Average time.Duration `yaml:"average_elapsed"`
}

// ModeStats counts outcomes for one mode
type ModeStats struct {
	Mode      string        `yaml:"mode"`
	Success   int           `yaml:"success"`
	Errors    int           `yaml:"errors"`
	NotFound  int           `yaml:"not_found"`
	Discarded int           `yaml:"discarded"`
	Average   time.Duration `yaml:"average_elapsed"`

	elapsed time.Duration
}

// Total is the number of requests made in this mode
func (m ModeStats) Total() int {
	return m.Success + m.Errors + m.NotFound
}

// Summarize aggregates entries; modes appear in the order they were first seen
func Summarize(entries []Entry) *Summary {
	sum := &Summary{Total: len(entries)}
	index := make(map[string]int)
	var elapsed time.Duration

	for _, e := range entries {
		if sum.From.IsZero() || e.At.Before(sum.From) {
			sum.From = e.At
		}
		if e.At.After(sum.To) {
			sum.To = e.At
		}
		elapsed += e.Elapsed

		i, ok := index[e.Mode]
		if !ok {
			i = len(sum.Modes)
			index[e.Mode] = i
			sum.Modes = append(sum.Modes, ModeStats{Mode: e.Mode})
		}
		stats := &sum.Modes[i]
		stats.elapsed += e.Elapsed
		switch e.Outcome {
		case OutcomeSuccess:
			stats.Success++
		case OutcomeNotFound:
			stats.NotFound++
		default:
			stats.Errors++
		}
		if e.Discarded {
			stats.Discarded++
		}
	}

	for i := range sum.Modes {
		if n := sum.Modes[i].Total(); n > 0 {
			sum.Modes[i].Average = sum.Modes[i].elapsed / time.Duration(n)
		}
	}
	if sum.Total > 0 {
		sum.Average = elapsed / time.Duration(sum.Total)
	}
	return sum
}

// Write prints a human-readable report
func (s *Summary) Write(w io.Writer) error {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString("CIRCULATION JOURNAL SUMMARY\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
	if s.Total == 0 {
		b.WriteString("No requests journaled\n")
		_, err := io.WriteString(w, b.String())
		return err
	}
	fmt.Fprintf(&b, "Period: %s to %s\n", s.From.Local().Format("2006-01-02 15:04"), s.To.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Requests: %d\n", s.Total)
	fmt.Fprintf(&b, "Average Response Time: %s\n", s.Average.Round(time.Millisecond))
	b.WriteString(strings.Repeat("-", 60) + "\n")
	fmt.Fprintf(&b, "%-9s %8s %8s %10s %10s %10s\n", "MODE", "OK", "ERROR", "NOT FOUND", "DISCARDED", "AVG")
	for _, m := range s.Modes {
		fmt.Fprintf(&b, "%-9s %8d %8d %10d %10d %10s\n", m.Mode, m.Success, m.Errors, m.NotFound, m.Discarded, m.Average.Round(time.Millisecond))
	}
	b.WriteString(strings.Repeat("=", 60) + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteYAML writes the summary as YAML
func (s *Summary) WriteYAML(w io.Writer) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}
