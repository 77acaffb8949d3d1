package text

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Document is an immutable source text with its paragraph segmentation.
type Document struct {
	Path       string
	Name       string
	Hash       string
	Text       string
	Paragraphs []Paragraph
}

// Load reads and segments the document at path.
func Load(path string, opts Options) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve document path: %w", err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read document %q: %w", abs, err)
	}

	doc, err := NewDocument(abs, data, opts)
	if err != nil {
		return nil, fmt.Errorf("load document %q: %w", abs, err)
	}
	return doc, nil
}

func NewDocument(path string, data []byte, opts Options) (*Document, error) {
	src := string(data)
	paragraphs, err := Segment(src, opts)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	return &Document{
		Path:       path,
		Name:       DocumentName(path),
		Hash:       hex.EncodeToString(sum[:]),
		Text:       src,
		Paragraphs: paragraphs,
	}, nil
}

// DocumentName is the file name without its extension.
func DocumentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (d *Document) Len() int {
	return len(d.Paragraphs)
}

func (d *Document) Paragraph(index int) (Paragraph, bool) {
	if index < 0 || index >= len(d.Paragraphs) {
		return Paragraph{}, false
	}
	return d.Paragraphs[index], true
}
