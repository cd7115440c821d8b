package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path into live whenever it changes on disk, following the
// teacher's fsnotify-driven config watch. Only non-structural fields
// (model names, click radius, max steps — anything safe to change between
// iterations) are expected to matter mid-run; callers read live via
// Snapshot() rather than caching values across an iteration.
func Watch(path string, live *Config, logger *slog.Logger) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloaded, err := Load(path)
				if err != nil {
					logger.Warn("config reload failed", "path", path, "error", err)
					continue
				}
				live.ReplaceFrom(reloaded)
				logger.Info("config reloaded", "path", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "error", err)
			}
		}
	}()

	return watcher, nil
}
