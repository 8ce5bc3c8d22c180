package watcher

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/overspend1/oversync/pkg/log"
	"github.com/overspend1/oversync/pkg/types"
)

// Watcher recursively watches a vault root directory and delivers
// classified change events over a lossless, unbounded-buffered
// channel.
type Watcher struct {
	root string
	fsw  *fsnotify.Watcher
	out  chan types.ChangeEvent
	q    *unboundedQueue
	done chan struct{}
}

// New creates a Watcher rooted at root and registers watches on root
// and every subdirectory beneath it.
func New(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: create fsnotify watcher: %v", types.ErrFatal, err)
	}

	w := &Watcher{
		root: root,
		fsw:  fsw,
		out:  make(chan types.ChangeEvent),
		q:    newUnboundedQueue(),
		done: make(chan struct{}),
	}

	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Events returns the channel change events are delivered on. Reading
// from it never drops an event; a slow reader causes the watcher to
// buffer internally instead.
func (w *Watcher) Events() <-chan types.ChangeEvent {
	return w.out
}

// Run starts the watcher's two pumps: one translating raw fsnotify
// events into the internal queue, one draining the queue onto the
// public channel. Run blocks until Close is called.
func (w *Watcher) Run() {
	go w.pump()
	w.drain()
}

// Close stops watching and releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	close(w.done)
	w.q.close()
	return w.fsw.Close()
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: walk %s: %v", types.ErrIO, path, err)
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("%w: watch %s: %v", types.ErrIO, path, err)
			}
		}
		return nil
	})
}

func (w *Watcher) pump() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.WithComponent("watcher").Error().Err(err).Msg("fsnotify error")
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	logger := log.WithPath(ev.Name)

	info, statErr := os.Stat(ev.Name)
	isDir := statErr == nil && info.IsDir()

	switch {
	case ev.Op.Has(fsnotify.Create) && isDir:
		if err := w.addTree(ev.Name); err != nil {
			logger.Error().Err(err).Msg("failed to watch new directory")
		}
		return

	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		if isDir {
			return
		}
		w.q.push(types.ChangeEvent{Kind: types.ChangeContent, Path: ev.Name})

	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.q.push(types.ChangeEvent{Kind: types.ChangeRemoved, Path: ev.Name})

	case ev.Op.Has(fsnotify.Chmod):
		w.q.push(types.ChangeEvent{Kind: types.ChangeIgnored, Path: ev.Name})
	}
}

func (w *Watcher) drain() {
	for {
		e, ok := w.q.pop()
		if !ok {
			close(w.out)
			return
		}
		select {
		case w.out <- e:
		case <-w.done:
			close(w.out)
			return
		}
	}
}
