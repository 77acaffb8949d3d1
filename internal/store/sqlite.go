package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS sessions (
		document_path TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		paragraph_index INTEGER NOT NULL,
		input_device TEXT NOT NULL,
		output_device TEXT NOT NULL,
		sample_rate INTEGER NOT NULL,
		channels INTEGER NOT NULL,
		project_directory TEXT NOT NULL,
		saved_at REAL NOT NULL
	);
`

// SQLiteStore keeps every session in one sessions table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. ":memory:"
// opens a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, failure("create database directory", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, failure("open database", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, failure("ping database", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, failure("migrate database", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, documentPath string) (State, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT document_path, content_hash, paragraph_index, input_device, output_device,
			sample_rate, channels, project_directory, saved_at
		FROM sessions
		WHERE document_path = ?
	`, documentPath)

	var (
		state   State
		savedAt float64
	)
	err := row.Scan(&state.DocumentPath, &state.ContentHash, &state.ParagraphIndex,
		&state.Device.InputDevice, &state.Device.OutputDevice, &state.Device.SampleRate,
		&state.Device.Channels, &state.Device.ProjectDirectory, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, failure("query session", err)
	}
	state.SavedAt = timeFromUnix(savedAt)
	return state, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, state State) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (document_path, content_hash, paragraph_index, input_device,
			output_device, sample_rate, channels, project_directory, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			paragraph_index = excluded.paragraph_index,
			input_device = excluded.input_device,
			output_device = excluded.output_device,
			sample_rate = excluded.sample_rate,
			channels = excluded.channels,
			project_directory = excluded.project_directory,
			saved_at = excluded.saved_at
	`, state.DocumentPath, state.ContentHash, state.ParagraphIndex, state.Device.InputDevice,
		state.Device.OutputDevice, state.Device.SampleRate, state.Device.Channels,
		state.Device.ProjectDirectory, unixFromTime(state.SavedAt))
	if err != nil {
		return failure("save session", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func unixFromTime(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

func timeFromUnix(seconds float64) time.Time {
	if seconds == 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC()
}
