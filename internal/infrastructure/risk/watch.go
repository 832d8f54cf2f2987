package risk

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// StartWatch reloads the scanner's rule set whenever the rules file changes.
// An invalid file is logged and the previous rule set stays active.
// The watch stops when ctx is cancelled.
func StartWatch(ctx context.Context, path string, scanner *Scanner) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create rules watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are seen too.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch rules dir: %w", err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				set, err := LoadRuleSet(path)
				if err != nil {
					slog.Warn("risk_rules_reload_failed", "path", path, "error", err)
					continue
				}
				scanner.Replace(set)
				slog.Info("risk_rules_reloaded", "path", path, "rules", len(set.Rules))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("risk_rules_watch_error", "path", path, "error", err)
			}
		}
	}()
	return nil
}
