// File: internal/infra/store/json_state_watch.go
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange whenever data.json or settings.json is changed by
// someone other than this repo. It blocks until ctx is done.
func (r *JSONStateRepo) Watch(ctx context.Context, onChange func(name string)) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(r.dir); err != nil {
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}
	r.log.Debug().Str("dir", r.dir).Msg("watching state files")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(ev.Name)
			if name != dataFile && name != settingsFile {
				continue
			}
			if r.external(name) {
				r.log.Info().Str("file", name).Msg("state file changed on disk")
				onChange(name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.log.Warn().Err(err).Msg("state watcher error")
		}
	}
}

// external reports whether the file's content differs from our last write.
func (r *JSONStateRepo) external(name string) bool {
	b, err := os.ReadFile(filepath.Join(r.dir, name))
	if err != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	own, ok := r.written[name]
	return !ok || own != xxhash.Sum64(b)
}
