package knowledge

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 200 * time.Millisecond

// Watch reloads the snapshot whenever the knowledge file is written or
// replaced. It blocks until ctx is cancelled. The parent directory is watched
// so editors that rename a new file into place are seen too.
func (h *Holder) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create knowledge watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(h.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(h.path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if pending == nil && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)) {
				pending = time.After(reloadDebounce)
			}
		case <-pending:
			pending = nil
			_ = h.Reload(ctx)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			h.log.Warn("knowledge watcher error", zap.Error(err))
		}
	}
}
