package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 250 * time.Millisecond

// Watch reloads the settings when the file changes and calls onChange after every successful
// reload. It watches the directory so editors replacing the file are noticed too. It returns when
// ctx is done.
func (s *Settings) Watch(ctx context.Context, l *zap.Logger, onChange func(*Settings)) error {
	path := s.Path()
	if path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch settings dir: %w", err)
	}

	l = l.Named("config-watcher")
	l.Info("watching settings file", zap.String("path", path))

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				debounce = time.After(reloadDebounce)
			}

		case <-debounce:
			debounce = nil
			if err := s.Reload(); err != nil {
				l.Error("unable to reload settings", zap.Error(err))
				continue
			}
			l.Info("reloaded settings")
			if onChange != nil {
				onChange(s)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.Error("settings watcher error", zap.Error(err))
		}
	}
}
