package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// debounce absorbs the burst of events an editor or atomic rename produces
// for a single logical change.
const debounce = 50 * time.Millisecond

// Watcher watches a fixed set of files (schema documents, the authz
// matrix) and invokes onChange whenever any of them is modified, mirroring
// majewsky-portunus's internal/store/watcher.go file-watch loop.
type Watcher struct {
	paths    []string
	backend  *fsnotify.Watcher
	onChange func()
}

// NewWatcher builds a Watcher over paths. onChange is called (without
// arguments; callers re-read whichever paths they care about) after every
// batch of filesystem events, debounced by a short sleep so a multi-write
// save doesn't fire the callback once per intermediate state.
func NewWatcher(paths []string, onChange func()) (*Watcher, error) {
	backend, err := newBackend(paths)
	if err != nil {
		return nil, err
	}

	return &Watcher{paths: paths, backend: backend, onChange: onChange}, nil
}

func newBackend(paths []string) (*fsnotify.Watcher, error) {
	backend, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: initialize filesystem watcher: %w", err)
	}

	for _, p := range paths {
		if err := backend.Add(p); err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("config: watch %s: %w", p, err)
		}
	}

	return backend, nil
}

// Run blocks, invoking onChange on every watched-file change, until ctx is
// done. The backend is recreated after each change since an editor's
// atomic rename can replace the watched inode.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.backend.Close() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.backend.Errors:
			return fmt.Errorf("config: watch error: %w", err)
		case event, ok := <-w.backend.Events:
			if !ok {
				return nil
			}

			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("config: file changed")

			time.Sleep(debounce)

			if err := w.backend.Close(); err != nil {
				return fmt.Errorf("config: close watcher: %w", err)
			}

			backend, err := newBackend(w.paths)
			if err != nil {
				return err
			}

			w.backend = backend

			w.onChange()
		}
	}
}
