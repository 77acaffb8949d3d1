// Package project maps a document's paragraphs to audio artifacts on disk.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	artifactPrefix = "part"
	artifactExt    = ".wav"
)

// Reading is the finalized recording for one paragraph. At most one Reading
// exists per paragraph index.
type Reading struct {
	Paragraph  int
	Path       string
	Duration   time.Duration
	SampleRate int
	Channels   int
	RecordedAt time.Time
}

// Layout is the artifact directory of one document:
// <project-directory>/<document-name>/part{N}.wav.
type Layout struct {
	Dir string
}

func NewLayout(projectDirectory string, documentName string) Layout {
	return Layout{Dir: filepath.Join(projectDirectory, documentName)}
}

func (l Layout) Ensure() error {
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return fmt.Errorf("create project directory %q: %w", l.Dir, err)
	}
	return nil
}

func (l Layout) ReadingPath(paragraph int) string {
	return filepath.Join(l.Dir, artifactPrefix+strconv.Itoa(paragraph)+artifactExt)
}

// PendingPath is where an in-progress recording is written before it
// replaces the paragraph's Reading.
func (l Layout) PendingPath(paragraph int) string {
	return filepath.Join(l.Dir, "."+artifactPrefix+strconv.Itoa(paragraph)+artifactExt+".pending")
}

// ParseReadingName returns the paragraph index encoded in an artifact file name.
func ParseReadingName(name string) (int, bool) {
	if !strings.HasPrefix(name, artifactPrefix) || !strings.HasSuffix(name, artifactExt) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, artifactPrefix), artifactExt)
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || strconv.Itoa(n) != digits {
		return 0, false
	}
	return n, true
}

// ProbeFunc reads format metadata from an artifact.
type ProbeFunc func(path string) (Reading, error)

// Discover returns the Readings present in the layout for paragraphs in
// [0, count). Files that fail to probe are reported in skipped rather than
// aborting discovery.
func (l Layout) Discover(count int, probe ProbeFunc) (readings map[int]Reading, skipped map[string]error, err error) {
	readings = make(map[int]Reading)
	skipped = make(map[string]error)

	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return readings, skipped, nil
		}
		return nil, nil, fmt.Errorf("read project directory %q: %w", l.Dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		index, ok := ParseReadingName(entry.Name())
		if !ok || index >= count {
			continue
		}

		path := filepath.Join(l.Dir, entry.Name())
		reading, probeErr := probe(path)
		if probeErr != nil {
			skipped[path] = probeErr
			continue
		}
		reading.Paragraph = index
		reading.Path = path
		if reading.RecordedAt.IsZero() {
			if info, statErr := entry.Info(); statErr == nil {
				reading.RecordedAt = info.ModTime()
			}
		}
		readings[index] = reading
	}
	return readings, skipped, nil
}
