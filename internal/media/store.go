// Package media persists synthesized audio and image artifacts and returns
// the URL clients fetch them from.
package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"cvlex/internal/providers"
	"cvlex/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Artifact struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// ErrInvalidKey rejects keys that would leave the media directory.
var ErrInvalidKey = errors.New("invalid media key")

type Store interface {
	Put(ctx context.Context, key string, m providers.Media) (Artifact, error)
}

// Key names an artifact after the request that produced it, so concurrent
// requests never share an output path.
func Key(kind, requestID, ext string) string {
	id := sanitizeID(requestID)
	if id == "" {
		id = uuid.NewString()
	}
	return kind + "-" + id + ext
}

// validKey accepts a single path element, which is all Key produces.
func validKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, `/\`) && key == filepath.Base(key)
}

func sanitizeID(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// LocalStore writes artifacts under the static directory, where the static
// file server exposes them.
type LocalStore struct {
	root      string
	subdir    string
	urlPrefix string
	log       *zap.Logger
}

func NewLocalStore(staticDir, subdir string, log *zap.Logger) (*LocalStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := util.EnsureDir(filepath.Join(staticDir, subdir)); err != nil {
		return nil, err
	}
	return &LocalStore{
		root:      staticDir,
		subdir:    subdir,
		urlPrefix: "/" + strings.Trim(filepath.ToSlash(subdir), "/"),
		log:       log,
	}, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, m providers.Media) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	if !validKey(key) {
		return Artifact{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	path := filepath.Join(s.root, s.subdir, key)
	if err := util.WriteFileAtomic(path, m.Data); err != nil {
		return Artifact{}, fmt.Errorf("store media %s: %w", key, err)
	}
	s.log.Debug("media stored", zap.String("path", path), zap.Int("bytes", len(m.Data)))
	return Artifact{
		Key:         filepath.Base(path),
		URL:         s.urlPrefix + "/" + filepath.Base(path),
		ContentType: m.ContentType,
		Size:        len(m.Data),
	}, nil
}
