package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Reloader reloads Memory sources from their fixture file whenever it changes
type Reloader struct {
	path    string
	targets []*Memory
	logger  *slog.Logger
	// reloaded is signalled after every reload attempt; nil outside tests
	reloaded chan<- error
}

// NewReloader creates a Reloader for the fixture file at path
func NewReloader(path string, logger *slog.Logger, targets ...*Memory) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		path:    path,
		targets: targets,
		logger:  logger,
	}
}

// Reload reads the fixture file once and replaces the records of every target
func (r *Reloader) Reload() error {
	fixtures, err := LoadFixtures(r.path)
	if err != nil {
		return err
	}
	for _, target := range r.targets {
		target.Replace(fixtures.ByKind(target.Kind()))
	}
	r.logger.Info("fixtures reloaded",
		slog.String("path", r.path),
		slog.Int("characters", len(fixtures.Characters)),
		slog.Int("planets", len(fixtures.Planets)),
	)
	return nil
}

// Run watches the directory of the fixture file until ctx is done. The directory
// is watched rather than the file so that editors replacing it are noticed.
func (r *Reloader) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("watch %s: %w", r.path, err)
	}
	target := filepath.Clean(r.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			err := r.Reload()
			if err != nil {
				r.logger.Warn("fixture reload failed", slog.String("path", r.path), slog.Any("error", err))
			}
			if r.reloaded != nil {
				select {
				case r.reloaded <- err:
				case <-ctx.Done():
					return nil
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("fixture watcher error", slog.Any("error", err))
		}
	}
}
