// Package loader reads corpus documents and extracts their plain text.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// Loader reads document files into models.Document values. The document
// source is the base filename, which is what answers cite.
type Loader struct{}

// New returns a new Loader.
func New() *Loader {
	return &Loader{}
}

// Supported reports whether path has an extension this loader can read.
func (l *Loader) Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx", ".xlsx", ".txt", ".md", ".rst":
		return true
	}
	return false
}

// Load reads the file at path and returns a Document with its extracted
// text. PDF text is concatenated page by page; DOCX and XLSX are unpacked
// from their OOXML containers; everything else is treated as UTF-8 text.
// An unreadable or malformed file returns an error; callers ingesting a
// corpus should log and skip rather than abort.
func (l *Loader) Load(path string) (models.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("read file: %w", err)
	}
	text, err := extract(content, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return models.Document{}, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	return models.Document{
		Source: filepath.Base(path),
		Text:   text,
	}, nil
}

func extract(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	default:
		return extractPlain(content)
	}
}
