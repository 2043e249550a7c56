package bridge

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// MarkerName is the file writers touch inside the runtime directory.
const MarkerName = "changed"

// FileNotifier signals change by rewriting a marker file. Write errors are
// logged and swallowed; a broken bridge must not fail the transition that
// tried to announce itself.
type FileNotifier struct {
	path string
}

// NewFileNotifier returns a notifier touching MarkerName under runtimeDir.
func NewFileNotifier(runtimeDir string) *FileNotifier {
	return &FileNotifier{path: filepath.Join(runtimeDir, MarkerName)}
}

func (n *FileNotifier) Notify(ctx context.Context) {
	payload := time.Now().UTC().Format(time.RFC3339Nano) + "\n"
	if err := os.WriteFile(n.path, []byte(payload), 0o600); err != nil {
		log.Printf("bridge: write change marker: %v", err)
	}
}

// FileWatcher wakes on writes to the marker file. When inotify cannot be set
// up it degrades to pure timeout waits, which the monitor already treats as
// its poll cadence.
type FileWatcher struct {
	dir string
	fs  *fsnotify.Watcher
}

// NewPollWatcher returns a watcher with no notification backend. Wait always
// runs to its timeout, turning the caller's loop into plain polling.
func NewPollWatcher() *FileWatcher {
	return &FileWatcher{}
}

// NewFileWatcher watches runtimeDir for marker touches. The directory is
// watched rather than the file so the watch survives the marker not existing
// yet.
func NewFileWatcher(runtimeDir string) (*FileWatcher, error) {
	w := &FileWatcher{dir: runtimeDir}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("bridge: inotify unavailable, falling back to polling: %v", err)
		return w, nil
	}
	if err := fs.Add(runtimeDir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", runtimeDir, err)
	}
	w.fs = fs
	return w, nil
}

// Wait blocks until the marker is touched, the timeout elapses, or ctx is
// done. It reports true only for a marker touch.
func (w *FileWatcher) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	if w.fs == nil {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
			return false, nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
			return false, nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return false, nil
			}
			if filepath.Base(ev.Name) == MarkerName && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				return true, nil
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return false, nil
			}
			log.Printf("bridge: watch error: %v", err)
		}
	}
}

func (w *FileWatcher) Close() error {
	if w.fs == nil {
		return nil
	}
	return w.fs.Close()
}
