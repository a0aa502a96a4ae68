// Package report renders run summaries and review queue exports.
package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Summary accumulates the counts of one command run. Passes add to it as
// they go; it is printed when the command ends.
type Summary struct {
	RunID   string
	Command string
	Started time.Time

	Processed     int
	Matched       int
	Unmatched     int
	Ambiguous     int
	LowConfidence int
	Created       int
	Updated       int
	Merged        int
	Deleted       int
	Queued        int
	Errors        int
}

// NewSummary starts a summary for command with a fresh run id.
func NewSummary(command string) *Summary {
	return &Summary{
		RunID:   uuid.NewString(),
		Command: command,
		Started: time.Now(),
	}
}

// Add folds o's counts into s.
func (s *Summary) Add(o *Summary) {
	if o == nil {
		return
	}
	s.Processed += o.Processed
	s.Matched += o.Matched
	s.Unmatched += o.Unmatched
	s.Ambiguous += o.Ambiguous
	s.LowConfidence += o.LowConfidence
	s.Created += o.Created
	s.Updated += o.Updated
	s.Merged += o.Merged
	s.Deleted += o.Deleted
	s.Queued += o.Queued
	s.Errors += o.Errors
}

// Counts returns the non-time fields as ordered label/value pairs.
func (s *Summary) Counts() [][2]string {
	rows := [][2]string{
		{"processed", itoa(s.Processed)},
		{"matched", itoa(s.Matched)},
		{"unmatched", itoa(s.Unmatched)},
		{"ambiguous", itoa(s.Ambiguous)},
		{"low confidence", itoa(s.LowConfidence)},
		{"created", itoa(s.Created)},
		{"updated", itoa(s.Updated)},
		{"merged", itoa(s.Merged)},
		{"deleted", itoa(s.Deleted)},
		{"queued for review", itoa(s.Queued)},
		{"errors", itoa(s.Errors)},
	}
	return rows
}

// Log writes the summary as one structured log line.
func (s *Summary) Log() {
	fields := []zap.Field{
		zap.String("run_id", s.RunID),
		zap.String("command", s.Command),
		zap.Duration("elapsed", time.Since(s.Started)),
	}
	for _, c := range s.Counts() {
		fields = append(fields, zap.String(c[0], c[1]))
	}
	zap.L().Info("run complete", fields...)
}

func itoa(n int) string { return fmt.Sprintf("%d", n) }
