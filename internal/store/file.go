package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rbright/narrate/internal/config"
	"github.com/rbright/narrate/internal/text"
)

const fileRecordVersion = 1

// FileStore keeps one session.json per document under
// <root>/projects/<name>-<path hash>/.
type FileStore struct {
	root string
}

type fileRecord struct {
	Version        int                 `json:"version"`
	DocumentPath   string              `json:"document_path"`
	ContentHash    string              `json:"content_hash"`
	ParagraphIndex int                 `json:"paragraph_index"`
	Device         config.DeviceConfig `json:"device"`
	SavedAt        time.Time           `json:"saved_at"`
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// SessionPath returns the session file used for documentPath.
func (s *FileStore) SessionPath(documentPath string) string {
	sum := sha256.Sum256([]byte(documentPath))
	dir := text.DocumentName(documentPath) + "-" + hex.EncodeToString(sum[:4])
	return filepath.Join(s.root, "projects", dir, "session.json")
}

func (s *FileStore) Load(_ context.Context, documentPath string) (State, bool, error) {
	path := s.SessionPath(documentPath)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, false, nil
		}
		return State{}, false, failure("read session", err)
	}

	var record fileRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return State{}, false, failure(fmt.Sprintf("decode session %q", path), err)
	}
	if record.Version != fileRecordVersion {
		return State{}, false, failure("decode session", fmt.Errorf("unsupported version %d", record.Version))
	}
	if record.DocumentPath != documentPath {
		return State{}, false, nil
	}

	return State{
		DocumentPath:   record.DocumentPath,
		ContentHash:    record.ContentHash,
		ParagraphIndex: record.ParagraphIndex,
		Device:         record.Device,
		SavedAt:        record.SavedAt,
	}, true, nil
}

// Save writes the session to a temp file and renames it into place, so a
// crash never leaves a partially written session.
func (s *FileStore) Save(_ context.Context, state State) error {
	path := s.SessionPath(state.DocumentPath)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return failure("create session directory", err)
	}

	data, err := json.MarshalIndent(fileRecord{
		Version:        fileRecordVersion,
		DocumentPath:   state.DocumentPath,
		ContentHash:    state.ContentHash,
		ParagraphIndex: state.ParagraphIndex,
		Device:         state.Device,
		SavedAt:        state.SavedAt.UTC(),
	}, "", "  ")
	if err != nil {
		return failure("encode session", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return failure("create temp session", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return failure("write session", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return failure("sync session", err)
	}
	if err := tmp.Close(); err != nil {
		return failure("close session", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return failure("replace session", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
