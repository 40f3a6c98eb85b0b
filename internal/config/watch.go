package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/pixelpruner/pruneriq/internal/logger"
	"github.com/pixelpruner/pruneriq/pkg/validation"
)

// reloadDebounce collapses the burst of events a single save produces.
const reloadDebounce = 100 * time.Millisecond

// WatchThresholds reloads the thresholds file whenever it changes and hands
// the result to onChange. base is the value missing keys fall back to. A
// file that fails to load is logged and ignored, so the previous thresholds
// stay active. Runs until ctx is cancelled.
func WatchThresholds(ctx context.Context, path string, base validation.Thresholds, onChange func(validation.Thresholds)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: an editor's rename-over-save replaces the inode
	// and would silently end a watch on the file itself.
	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	logger.WithField("path", path).Info("Watching thresholds file")

	var reload <-chan time.Time
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
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			reload = time.After(reloadDebounce)

		case <-reload:
			reload = nil

			thresholds, err := LoadThresholds(path, base)
			if err != nil {
				logger.WithError(err).WithField("path", path).Error("Thresholds reload failed, keeping previous values")
				continue
			}

			logger.WithFields(logrus.Fields{
				"path":     path,
				"contrast": thresholds.Contrast,
				"clarity":  thresholds.Clarity,
				"noise":    thresholds.Noise,
			}).Info("Thresholds reloaded")
			onChange(thresholds)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Error("Thresholds watcher error")
		}
	}
}
