package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is how long a TuningWatcher waits after the last
// write before reloading, so an editor's burst of writes loads once.
const DefaultWatchDebounce = 100 * time.Millisecond

// TuningWatcher reloads a tuning file whenever it changes on disk.
//
// The parent directory is watched rather than the file itself, so editors
// that save by writing a temporary file and renaming it are still seen.
type TuningWatcher struct {
	path     string
	name     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewTuningWatcher starts watching path. Changes are not delivered until
// Run is called. A debounce of zero or less uses DefaultWatchDebounce.
func NewTuningWatcher(path string, debounce time.Duration) (*TuningWatcher, error) {
	cleanPath := filepath.Clean(path)
	if _, err := decoderFor(cleanPath); err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(cleanPath)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(cleanPath), err)
	}

	return &TuningWatcher{
		path:     cleanPath,
		name:     filepath.Base(cleanPath),
		debounce: debounce,
		watcher:  w,
	}, nil
}

// Run delivers each successfully reloaded configuration to onChange until
// ctx is done. Files that fail to load or validate are reported to onError,
// which may be nil, and the previous configuration stays in force. Run
// closes the watcher when it returns.
func (tw *TuningWatcher) Run(ctx context.Context, onChange func(*TuningConfig), onError func(error)) error {
	defer tw.watcher.Close()

	report := func(err error) {
		if onError != nil {
			onError(err)
		}
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-tw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != tw.name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(tw.debounce)
			} else {
				timer.Reset(tw.debounce)
			}
			fire = timer.C

		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return nil
			}
			report(fmt.Errorf("config watch: %w", err))

		case <-fire:
			fire = nil
			cfg, err := LoadTuningConfig(tw.path)
			if err != nil {
				report(fmt.Errorf("reload %s: %w", tw.path, err))
				continue
			}
			onChange(cfg)
		}
	}
}

// Close stops watching without running. It must not be called after Run.
func (tw *TuningWatcher) Close() error {
	return tw.watcher.Close()
}
