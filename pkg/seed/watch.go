package seed

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ApplyFunc applies a freshly loaded seed file
type ApplyFunc func(ctx context.Context, f *File) error

// Watch re-applies the seed file at path whenever it is written or replaced, until
// ctx is done. Invalid files are logged and skipped. The parent directory is
// watched so editors that save through a rename are still noticed.
func Watch(ctx context.Context, path string, log logrus.FieldLogger, apply ApplyFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	log = log.WithField("path", target)
	log.Info("watching seed file")

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

			f, err := Load(target)
			if err != nil {
				log.WithError(err).Warn("ignoring invalid seed file")
				continue
			}
			if err := apply(ctx, f); err != nil {
				log.WithError(err).Error("failed to apply seed file")
				continue
			}
			log.Info("seed file re-applied")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("seed watcher error")
		}
	}
}
