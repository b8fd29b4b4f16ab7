// Package knowledge holds the legal reference text that is concatenated into
// legal guidance prompts.
package knowledge

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Snapshot is an immutable copy of the knowledge file. The zero value is
// unavailable.
type Snapshot struct {
	text     string
	path     string
	loadedAt time.Time
}

func NewSnapshot(text string) Snapshot {
	return Snapshot{text: text, loadedAt: time.Now()}
}

func (s Snapshot) Text() string        { return s.text }
func (s Snapshot) Path() string        { return s.path }
func (s Snapshot) LoadedAt() time.Time { return s.loadedAt }
func (s Snapshot) Available() bool     { return strings.TrimSpace(s.text) != "" }

func Load(path string) (Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read knowledge file: %w", err)
	}
	return Snapshot{text: string(b), path: path, loadedAt: time.Now()}, nil
}

// Holder publishes the current snapshot. Reload swaps in a whole new value;
// readers keep whatever snapshot they already obtained.
type Holder struct {
	path string
	log  *zap.Logger
	cur  atomic.Pointer[Snapshot]
}

func NewHolder(path string, log *zap.Logger) *Holder {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Holder{path: path, log: log}
	h.cur.Store(&Snapshot{path: path})
	return h
}

// NewStaticHolder wraps a fixed snapshot, for tests and embedded use.
func NewStaticHolder(s Snapshot) *Holder {
	h := &Holder{path: s.path, log: zap.NewNop()}
	h.cur.Store(&s)
	return h
}

func (h *Holder) Path() string { return h.path }

func (h *Holder) Current() Snapshot {
	return *h.cur.Load()
}

// Reload reads the knowledge file again. On failure the previous snapshot
// stays in place and the error is logged and returned.
func (h *Holder) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := Load(h.path)
	if err != nil {
		h.log.Error("knowledge load failed", zap.String("path", h.path), zap.Error(err))
		return err
	}
	h.cur.Store(&s)
	if !s.Available() {
		h.log.Warn("knowledge file is empty", zap.String("path", h.path))
		return nil
	}
	h.log.Info("knowledge loaded", zap.String("path", h.path), zap.Int("bytes", len(s.text)))
	return nil
}
