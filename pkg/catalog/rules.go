package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/raporhub/raporhub/pkg/observability"
)

// LoadRulesFile reads a JSON classification rules file of the form
//
//	{"Ciro": {"route": "/ciro", "icon": "trending-up", "category": "Satış Raporları"}}
func LoadRulesFile(path string) (map[string]Classification, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rules map[string]Classification
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	return rules, nil
}

// RulesWatcher hot-reloads a classification rules file when it changes
type RulesWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchRulesFile loads the rules file into rules and starts a watcher that
// reloads it on every write. A reload that fails to parse keeps the
// previous table and logs the error.
func WatchRulesFile(path string, rules *Rules, logger *observability.Logger) (*RulesWatcher, error) {
	loaded, err := LoadRulesFile(path)
	if err != nil {
		return nil, err
	}
	rules.Replace(loaded)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create rules watcher: %w", err)
	}

	// Watch the directory: editors replace files, which drops the watch on
	// the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch rules directory: %w", err)
	}

	rw := &RulesWatcher{
		watcher: watcher,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(rw.done)
		defer observability.RecoverPanic(logger, "rules watcher")
		target := filepath.Clean(path)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloaded, err := LoadRulesFile(path)
				if err != nil {
					logger.WithError(err).Warn("Rules file changed but failed to reload, keeping previous rules")
					continue
				}
				rules.Replace(reloaded)
				logger.Infof("Reloaded %d classification rules from %s", len(reloaded), path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("Rules watcher error")
			}
		}
	}()

	return rw, nil
}

// Close stops the watcher
func (rw *RulesWatcher) Close() error {
	err := rw.watcher.Close()
	<-rw.done
	return err
}
