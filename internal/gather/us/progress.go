package us

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// progressTracker manages the .last-completed marker under the daily data
// directory so an interrupted gather resumes and a finished one is a no-op.
type progressTracker struct {
	dailyDir string
}

func newProgressTracker(dailyDir string) (*progressTracker, error) {
	if err := os.MkdirAll(dailyDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating daily dir: %w", err)
	}
	return &progressTracker{dailyDir: dailyDir}, nil
}

func (p *progressTracker) markerPath() string {
	return filepath.Join(p.dailyDir, ".last-completed")
}

// MarkCompleted records the end date of a finished gathering pass.
func (p *progressTracker) MarkCompleted(date string) error {
	return os.WriteFile(p.markerPath(), []byte(date), 0o644)
}

// IsCompleted reports whether a pass already finished for the given date.
func (p *progressTracker) IsCompleted(date string) bool {
	return p.LastCompleted() == date
}

// LastCompleted returns the recorded end date, or "" if none.
func (p *progressTracker) LastCompleted() string {
	data, err := os.ReadFile(p.markerPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
