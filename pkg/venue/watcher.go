package venue

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/simkiosk/log"
)

type (
	// Watcher reloads the settings file whenever it changes.
	Watcher struct {
		ctx      context.Context
		path     string
		onChange func(Settings)
		l        *log.Logger
		watcher  *fsnotify.Watcher
	}
	WatcherOption func(*Watcher)
)

func WithLogger(l *log.Logger) WatcherOption {
	return func(w *Watcher) {
		w.l = l
	}
}

// Watch starts watching path. Invalid files are logged and ignored, the
// previous settings stay in effect. Watching stops when ctx is done.
//
//nolint:whitespace // can't make both editor and linter happy
func Watch(
	ctx context.Context, path string, onChange func(Settings), opts ...WatcherOption,
) (*Watcher, error) {
	w := &Watcher{
		ctx:      ctx,
		path:     filepath.Clean(path),
		onChange: onChange,
		l:        log.GetFromContext(ctx).Named("venue"),
	}
	for _, opt := range opts {
		opt(w)
	}
	var err error
	if w.watcher, err = fsnotify.NewWatcher(); err != nil {
		return nil, err
	}
	// editors replace files on save, so the directory is watched
	if err = w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.watcher.Close()
		return nil, err
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer w.watcher.Close()
	for {
		select {
		case <-w.ctx.Done():
			w.l.Info("context done, stopping venue settings reload")
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			w.l.Debug("change detected", log.String("file", event.Name), log.Any("event", event))
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.l.Error("watcher error", log.ErrorField(err))
		}
	}
}

func (w *Watcher) reload() {
	s, err := Load(w.path)
	if err != nil {
		w.l.Warn("could not reload venue settings", log.String("file", w.path), log.ErrorField(err))
		return
	}
	w.l.Info("venue settings reloaded",
		log.String("file", w.path),
		log.Bool("paymentEnabled", s.PaymentEnabled))
	w.onChange(s)
}
