package probe

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch runs the probe once and again after every change to the input file
// or the provider, until ctx is done. Each run's result is passed to onRun.
// Changes are debounced so an editor's save or a rebuild triggers one run.
func (p *Probe) Watch(ctx context.Context, onRun func(error)) error {
	input, err := filepath.Abs(p.cfg.Input)
	if err != nil {
		return err
	}
	library, err := filepath.Abs(p.cfg.Library)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Directories, not files: replacing a file by rename drops a file watch.
	if err := watcher.Add(filepath.Dir(input)); err != nil {
		return err
	}
	if dir := filepath.Dir(library); dir != filepath.Dir(input) {
		if err := watcher.Add(dir); err != nil {
			Logger().Warn("provider directory not watched", zap.String("dir", dir), zap.Error(err))
		}
	}

	targets := map[string]bool{input: true, library: true}
	onRun(p.Run(ctx))

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !targets[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			Logger().Debug("change detected", zap.String("path", event.Name), zap.Stringer("op", event.Op))
			if timer == nil {
				timer = time.NewTimer(p.debounce)
			} else {
				timer.Reset(p.debounce)
			}
			pending = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			Logger().Warn("watch error", zap.Error(err))

		case <-pending:
			pending = nil
			onRun(p.Run(ctx))
		}
	}
}
