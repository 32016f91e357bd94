package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the project config whenever config.yaml changes on disk.
// Reload failures keep the previous configuration in place.
type Watcher struct {
	cfg     *Config
	fs      *fsnotify.Watcher
	onApply func(*Config)
	onError func(error)
	done    chan struct{}
}

// WatchOption customizes a Watcher.
type WatchOption func(*Watcher)

// WithErrorHandler receives reload and watch errors.
func WithErrorHandler(handler func(error)) WatchOption {
	return func(w *Watcher) {
		if handler != nil {
			w.onError = handler
		}
	}
}

// Watch starts observing config.yaml and invokes onApply after each
// successful reload. The returned Watcher must be closed by the caller.
func (c *Config) Watch(onApply func(*Config), opts ...WatchOption) (*Watcher, error) {
	if c == nil {
		return nil, fmt.Errorf("config: nil receiver")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	// Watch the directory rather than the file: editors replace config.yaml
	// atomically, which drops file-level watches.
	if err := fsw.Add(c.ConciergeProjectDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", c.ConciergeProjectDir, err)
	}
	w := &Watcher{
		cfg:     c,
		fs:      fsw,
		onApply: onApply,
		onError: func(error) {},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	if w == nil || w.fs == nil {
		return nil
	}
	err := w.fs.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	target := filepath.Base(w.cfg.ProjectConfigPath())
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := w.cfg.Reload(); err != nil {
				w.onError(err)
				continue
			}
			if w.onApply != nil {
				w.onApply(w.cfg)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.onError(err)
			}
		}
	}
}
