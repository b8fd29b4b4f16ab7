// Package uploads stages multipart documents on disk for the lifetime of a
// single request and removes them afterwards.
package uploads

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cvlex/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	FieldCV      = "cvFile"
	FieldMission = "missionFile"
)

// ErrMissingFile is returned when a required multipart part is absent.
var ErrMissingFile = errors.New("no file uploaded")

type Document struct {
	Path     string
	Field    string
	Filename string
	MIMEHint string
	Size     int64
	SHA256   string
}

type Store struct {
	dir string
	log *zap.Logger
}

func NewStore(dir string, log *zap.Logger) (*Store, error) {
	if err := util.EnsureDir(dir); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{dir: dir, log: log}, nil
}

func (s *Store) Dir() string { return s.dir }

// NewBatch returns an empty batch. Callers defer Cleanup right away.
func (s *Store) NewBatch(requestID string) *Batch {
	return &Batch{store: s, requestID: requestID}
}

// Sweep removes staged files older than age, left behind by a crashed process.
func (s *Store) Sweep(age time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read upload dir: %w", err)
	}
	cutoff := time.Now().Add(-age)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("sweep staged upload", zap.String("path", e.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *Store) stage(field string, fh *multipart.FileHeader) (Document, error) {
	src, err := fh.Open()
	if err != nil {
		return Document{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(filepath.Base(fh.Filename)))
	tmp, err := os.CreateTemp(s.dir, field+"-"+uuid.NewString()+"-*"+ext)
	if err != nil {
		return Document{}, fmt.Errorf("create staged file: %w", err)
	}
	doc := Document{
		Path:     tmp.Name(),
		Field:    field,
		Filename: filepath.Base(fh.Filename),
		MIMEHint: fh.Header.Get("Content-Type"),
	}

	h := sha256.New()
	n, copyErr := io.Copy(io.MultiWriter(tmp, h), src)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(doc.Path)
		return Document{}, fmt.Errorf("write staged file: %w", errors.Join(copyErr, closeErr))
	}
	doc.Size = n
	doc.SHA256 = hex.EncodeToString(h.Sum(nil))
	return doc, nil
}

// Batch tracks every document staged for one request.
type Batch struct {
	store     *Store
	requestID string

	mu   sync.Mutex
	docs []Document
	done bool
}

// Stage persists the first part named field. It returns ErrMissingFile when
// the form carries no such part.
func (b *Batch) Stage(form *multipart.Form, field string) (Document, error) {
	doc, ok, err := b.StageOptional(form, field)
	if err != nil {
		return Document{}, err
	}
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrMissingFile, field)
	}
	return doc, nil
}

func (b *Batch) StageOptional(form *multipart.Form, field string) (Document, bool, error) {
	if form == nil || len(form.File[field]) == 0 {
		return Document{}, false, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return Document{}, false, fmt.Errorf("stage %s: batch already cleaned up", field)
	}
	doc, err := b.store.stage(field, form.File[field][0])
	if err != nil {
		return Document{}, false, err
	}
	b.docs = append(b.docs, doc)
	b.store.log.Debug("staged upload",
		zap.String("request_id", b.requestID),
		zap.String("field", field),
		zap.String("path", doc.Path),
		zap.Int64("size", doc.Size),
		zap.String("sha256", doc.SHA256))
	return doc, true, nil
}

func (b *Batch) Documents() []Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Document(nil), b.docs...)
}

// Cleanup removes every staged file. Failures are logged and never returned
// so they cannot replace the response already chosen by the handler.
func (b *Batch) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	b.done = true
	for _, d := range b.docs {
		if err := os.Remove(d.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			b.store.log.Warn("remove staged upload",
				zap.String("request_id", b.requestID),
				zap.String("path", d.Path),
				zap.Error(err))
		}
	}
	b.docs = nil
}
