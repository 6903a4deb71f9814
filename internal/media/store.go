// Package media stores binary message payloads and returns opaque URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const MaxUploadBytes = 10 << 20

var (
	ErrEmptyPayload    = errors.New("empty media payload")
	ErrPayloadTooLarge = errors.New("media payload too large")
)

// Store persists media and returns a URL clients can fetch it from.
type Store interface {
	StoreAndGetURL(ctx context.Context, data []byte, contentType string) (string, error)
}

// DiskStore writes objects under dir and serves them below baseURL.
type DiskStore struct {
	dir     string
	baseURL string
}

func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *DiskStore) Dir() string { return s.dir }

func (s *DiskStore) StoreAndGetURL(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyPayload
	}
	if len(data) > MaxUploadBytes {
		return "", ErrPayloadTooLarge
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	name := uuid.NewString() + extensionFor(contentType)
	tmp := filepath.Join(s.dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write media: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit media: %w", err)
	}
	return s.baseURL + "/" + name, nil
}

func extensionFor(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch ct {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "audio/mpeg":
		return ".mp3"
	case "audio/ogg", "application/ogg":
		return ".ogg"
	case "audio/wav", "audio/wave":
		return ".wav"
	case "audio/webm":
		return ".webm"
	default:
		return ".bin"
	}
}
