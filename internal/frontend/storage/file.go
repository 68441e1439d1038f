package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// File is a Store backed by one JSON document on disk. Writes replace the
// file atomically; writes made by other processes are picked up through an
// fsnotify watch on the parent directory and published as external changes.
type File struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	values map[string]string
	closed bool

	subs    subscribers
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// errCorrupt marks a storage document that is not a JSON object of strings.
var errCorrupt = errors.New("storage document is corrupt")

// OpenFile loads path and starts watching it. A missing file is an empty
// store. A corrupt file is moved aside to path.corrupt-<unix> and the store
// opens empty.
func OpenFile(path string, logger *slog.Logger) (*File, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	values, err := readDocument(abs)
	if errors.Is(err, errCorrupt) {
		aside := abs + ".corrupt-" + strconv.FormatInt(time.Now().Unix(), 10)
		logger.Warn("corrupt storage document, starting empty",
			"path", abs,
			"moved_to", aside,
			"error", err,
		)
		if rerr := os.Rename(abs, aside); rerr != nil {
			logger.Warn("failed to move corrupt storage aside", "path", abs, "error", rerr)
		}
		values, err = make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create storage watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch storage dir: %w", err)
	}

	f := &File{
		path:    abs,
		logger:  logger,
		values:  values,
		watcher: watcher,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go f.run()
	return f, nil
}

func readDocument(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read storage: %w", err)
	}
	values := make(map[string]string)
	if len(raw) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("%w: %w", errCorrupt, err)
	}
	return values, nil
}

func (f *File) Get(key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return "", false, ErrClosed
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *File) Set(key, value string) error {
	return f.mutate(func(m map[string]string) { m[key] = value })
}

func (f *File) Remove(key string) error {
	return f.mutate(func(m map[string]string) { delete(m, key) })
}

func (f *File) Keys() ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}
	return sortedKeys(f.values), nil
}

func (f *File) Subscribe(fn func(Change)) func() {
	return f.subs.add(fn)
}

func (f *File) mutate(apply func(map[string]string)) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	next := maps.Clone(f.values)
	apply(next)
	if err := f.write(next); err != nil {
		f.mu.Unlock()
		return err
	}
	changes := diff(f.values, next, false)
	f.values = next
	f.mu.Unlock()

	f.subs.publish(changes...)
	return nil
}

// write must be called with f.mu held.
func (f *File) write(values map[string]string) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode storage: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".storage-*")
	if err != nil {
		return fmt.Errorf("create temp storage: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write storage: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close storage: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace storage: %w", err)
	}
	return nil
}

func (f *File) run() {
	defer close(f.doneCh)
	for {
		select {
		case <-f.stopCh:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			f.reload()
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("storage watcher error", "path", f.path, "error", err)
		}
	}
}

// reload re-reads the document and publishes whatever differs from the cache.
// Our own writes leave the cache equal to the file, so they publish nothing.
func (f *File) reload() {
	values, err := readDocument(f.path)
	if err != nil {
		f.logger.Warn("failed to reload storage", "path", f.path, "error", err)
		return
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	changes := diff(f.values, values, true)
	f.values = values
	f.mu.Unlock()

	f.subs.publish(changes...)
}

// Close stops the watcher. It is safe to call more than once.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	close(f.stopCh)
	<-f.doneCh
	return f.watcher.Close()
}
