package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalFileStore saves uploaded documents under a base directory and hands
// back the stored path as an opaque reference. Nothing else in the system
// inspects file contents; tasks carry the returned path string only.
type LocalFileStore struct {
	baseDir string
}

// NewLocalFileStore creates a store rooted at baseDir, creating it if needed
func NewLocalFileStore(baseDir string) (*LocalFileStore, error) {
	if baseDir == "" {
		baseDir = "uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalFileStore{baseDir: baseDir}, nil
}

// Save writes data under a timestamped name derived from filename and
// returns the stored path
func (s *LocalFileStore) Save(filename string, data []byte) (string, error) {
	name := sanitize(filepath.Base(filename))
	stored := fmt.Sprintf("%d_%s", time.Now().UnixNano(), name)
	path := filepath.Join(s.baseDir, stored)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	return path, nil
}

// sanitize strips path separators and other characters that have no place
// in a stored file name
func sanitize(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", " ", "_")
	cleaned := replacer.Replace(name)
	if cleaned == "" {
		cleaned = "upload"
	}
	return cleaned
}

// AllowedExtension reports whether the filename carries one of the document
// extensions accepted at the boundary
func AllowedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xlsx", ".xls", ".csv", ".pdf", ".doc", ".docx":
		return true
	}
	return false
}
