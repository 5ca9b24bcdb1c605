package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/splunklabhq/splunklab/backend/services/utils"
	logger "github.com/splunklabhq/splunklab/backend/services/lablogger"
)

// Watch reloads the configuration singleton whenever the given file is
// written. It watches the parent directory rather than the file itself, since
// editors and config-management tools usually replace the file atomically
// (rename over), which would otherwise drop the watch. Watch returns once the
// watcher goroutine is running; the goroutine exits when ctx is cancelled.
func Watch(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return utils.MakeError("couldn't resolve portal config path %s: %s", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return utils.MakeError("couldn't create new fsnotify.Watcher: %s", err)
	}

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return utils.MakeError("error adding dir %s to fsnotify.Watcher: %s", filepath.Dir(absPath), err)
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warningf("portal config watcher error: %s", err)

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != absPath {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				rw.Lock()
				err := loadLocked(absPath)
				rw.Unlock()
				if err != nil {
					// Keep serving the previous config on a bad reload.
					logger.Errorf("failed to reload portal config: %s", err)
					continue
				}
				logger.Infof("Reloaded portal config from %s", absPath)
			}
		}
	}()

	return nil
}
