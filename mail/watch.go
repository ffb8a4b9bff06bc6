package mail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// Watch reloads the store whenever a template file changes, until ctx is done.
// Changes are debounced so an editor save triggers a single reload. The
// directories watched are those of the files matched at call time.
func (s *TemplateStore) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	dirs, err := s.watchDirs()
	if err != nil {
		fsw.Close()
		return err
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			s.logger.Warn("Failed to watch template directory", "path", dir, "error", err)
			continue
		}
		s.logger.Debug("Watching template directory", "path", dir)
	}

	go s.processEvents(ctx, fsw, debounce)
	return nil
}

// watchDirs returns the directories holding matched files.
func (s *TemplateStore) watchDirs() ([]string, error) {
	files, err := s.match()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var dirs []string
	for _, f := range files {
		dir := filepath.Dir(f)
		if seen[dir] {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

func (s *TemplateStore) processEvents(ctx context.Context, fsw *fsnotify.Watcher, debounce time.Duration) {
	defer fsw.Close()

	pending := false
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !isTemplateFile(event.Name) {
				continue
			}
			s.logger.Debug("Template change detected", "path", event.Name, "op", event.Op.String())
			pending = true

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			s.logger.Error("Template watcher error", "error", err)

		case <-ticker.C:
			if !pending {
				continue
			}
			pending = false
			if err := s.Load(); err != nil {
				s.logger.Error("Failed to reload mail templates", "error", err)
			}
		}
	}
}
