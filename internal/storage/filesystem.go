package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// UploadStore persists uploaded photos onto the local filesystem and hands
// out opaque /uploads/... references. The rest of the system only ever sees
// the reference string.
type UploadStore struct {
	basePath string
}

// NewUploadStore initializes an UploadStore rooted at basePath.
func NewUploadStore(basePath string) (*UploadStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &UploadStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *UploadStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// SaveUpload persists the uploaded photo under a fresh name, keeping only the
// original extension, and returns its reference path.
func (s *UploadStore) SaveUpload(ctx context.Context, originalFilename string, data []byte) (string, error) {
	ext := filepath.Ext(originalFilename)
	if ext == "" {
		ext = ".jpg"
	}
	key := uuid.New().String() + strings.ToLower(ext)
	if _, err := s.write(ctx, key, data); err != nil {
		return "", err
	}
	return "/uploads/" + key, nil
}

// Read loads the bytes behind a reference previously returned by SaveUpload.
func (s *UploadStore) Read(ctx context.Context, ref string) ([]byte, error) {
	if s == nil {
		return nil, errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cleanKey, err := sanitizeKey(strings.TrimPrefix(ref, "/uploads/"))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, filepath.FromSlash(cleanKey)))
	if err != nil {
		return nil, fmt.Errorf("storage: read file: %w", err)
	}
	return data, nil
}

// write persists the provided bytes at the given relative key and returns the
// canonicalized storage key. Keys are cleaned to prevent directory traversal.
func (s *UploadStore) write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return cleanKey, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
