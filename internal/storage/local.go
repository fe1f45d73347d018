package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Dir stores objects on the local filesystem under Root/Bucket. The server
// exposes Root at /uploads.
type Dir struct {
	Root          string
	Bucket        string
	PublicBaseURL string
}

func (d Dir) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	path := filepath.Join(d.Root, d.Bucket, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close object: %w", err)
	}
	return d.PublicURL(key), nil
}

func (d Dir) PublicURL(key string) string {
	return strings.TrimRight(d.PublicBaseURL, "/") + "/uploads/" + d.Bucket + "/" + key
}
