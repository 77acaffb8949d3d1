package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLayoutPaths(t *testing.T) {
	layout := NewLayout("/music", "book")
	require.Equal(t, "/music/book", layout.Dir)
	require.Equal(t, "/music/book/part0.wav", layout.ReadingPath(0))
	require.Equal(t, "/music/book/part12.wav", layout.ReadingPath(12))
	require.Equal(t, "/music/book/.part3.wav.pending", layout.PendingPath(3))
}

func TestParseReadingName(t *testing.T) {
	tests := []struct {
		name  string
		want  int
		valid bool
	}{
		{name: "part0.wav", want: 0, valid: true},
		{name: "part42.wav", want: 42, valid: true},
		{name: "part.wav"},
		{name: "part01.wav"},
		{name: "part-1.wav"},
		{name: "part1.mp3"},
		{name: ".part1.wav.pending"},
		{name: "notes.txt"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseReadingName(tc.name)
			require.Equal(t, tc.valid, ok)
			if tc.valid {
				require.Equal(t, tc.want, got)
			}
		})
	}
}

func TestDiscoverReadings(t *testing.T) {
	layout := NewLayout(t.TempDir(), "doc")
	require.NoError(t, layout.Ensure())

	for _, name := range []string{"part0.wav", "part2.wav", "part9.wav", "broken.wav", ".part1.wav.pending"} {
		require.NoError(t, os.WriteFile(filepath.Join(layout.Dir, name), []byte("x"), 0o600))
	}
	require.NoError(t, os.WriteFile(layout.ReadingPath(1), []byte("bad"), 0o600))

	probe := func(path string) (Reading, error) {
		if filepath.Base(path) == "part1.wav" {
			return Reading{}, errors.New("not a wav")
		}
		return Reading{Duration: 3 * time.Second, SampleRate: 44100, Channels: 1}, nil
	}

	readings, skipped, err := layout.Discover(3, probe)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	require.Equal(t, layout.ReadingPath(0), readings[0].Path)
	require.Equal(t, 2, readings[2].Paragraph)
	require.Equal(t, 3*time.Second, readings[2].Duration)
	require.False(t, readings[2].RecordedAt.IsZero())
	require.Contains(t, skipped, layout.ReadingPath(1))
}

func TestDiscoverMissingDirectory(t *testing.T) {
	layout := NewLayout(t.TempDir(), "never-created")
	readings, skipped, err := layout.Discover(5, func(string) (Reading, error) {
		t.Fatal("probe should not run")
		return Reading{}, nil
	})
	require.NoError(t, err)
	require.Empty(t, readings)
	require.Empty(t, skipped)
}
