package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gtmvars/internal/gtm"
	"gtmvars/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce batches the several events an editor save produces.
const watchDebounce = 300 * time.Millisecond

// Watch scrapes the saved page at path once, then again every time it
// changes, until ctx is done. The directory is watched rather than the file
// so saves that replace the file are seen too.
func Watch(ctx context.Context, path string, opts Options, onScan func([]gtm.VariableRef, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logging.Scrape("Watching %s", abs)

	scan := func() {
		f, err := os.Open(abs)
		if err != nil {
			onScan(nil, err)
			return
		}
		defer f.Close()
		onScan(Scrape(f, opts))
	}
	scan()

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			logging.ScrapeDebug("Watch event %s on %s", event.Op, event.Name)
			timer.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryScrape).Warn("Watcher error: %v", err)

		case <-timer.C:
			scan()
		}
	}
}
