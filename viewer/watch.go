package viewer

import (
	"context"
	"path/filepath"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Watch follows the input file. Once a burst of changes settles, the cloud is reloaded and the
// current selection is rebuilt. Watching stops when the session is closed. Calling Watch again is
// a no-op.
func (s *Session) Watch() error {
	s.mu.Lock()
	if s.watching {
		s.mu.Unlock()
		return nil
	}
	s.watching = true
	s.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "cannot watch input")
	}
	input, err := filepath.Abs(s.cfg.InputPath)
	if err != nil {
		utils.UncheckedError(watcher.Close())
		return err
	}
	// editors often replace files, so watch the directory
	if err := watcher.Add(filepath.Dir(input)); err != nil {
		utils.UncheckedError(watcher.Close())
		return errors.Wrapf(err, "cannot watch %q", filepath.Dir(input))
	}

	debounced := debounce.New(s.cfg.Debounce)
	s.workers.AddWorkers(func(ctx context.Context) {
		defer utils.UncheckedErrorFunc(watcher.Close)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != input || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				debounced(func() { s.reload(ctx) })
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warnw("input watch error", "error", err)
			}
		}
	})
	return nil
}

func (s *Session) reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cloud, err := loadCloud(s.cfg.InputPath, s.logger)
	if err != nil {
		// a writer may not be done yet; the next event retries
		s.logger.Warnw("cannot reload input", "error", err)
		return
	}
	s.mu.Lock()
	s.cloud = cloud
	s.mu.Unlock()
	s.logger.Infow("input changed, rebuilding", "path", s.cfg.InputPath, "points", cloud.Size())
	s.request(true)
}
