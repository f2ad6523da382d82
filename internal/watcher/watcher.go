// Package watcher feeds new recordings from watched folders into the work queue.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/memoant/internal/apperr"
	"github.com/codebuildervaibhav/memoant/internal/config"
	"github.com/codebuildervaibhav/memoant/internal/queue"
)

// Enqueuer accepts jobs for processing
type Enqueuer interface {
	EnqueueJob(job *queue.Job) error
}

// Watcher turns filesystem events on a set of folders into queue jobs
type Watcher struct {
	dirs  []string
	queue Enqueuer
	log   *logrus.Logger
}

// New creates a watcher over dirs. Directories that do not exist are
// skipped with a warning when Run starts.
func New(dirs []string, q Enqueuer, log *logrus.Logger) *Watcher {
	return &Watcher{dirs: dirs, queue: q, log: log}
}

// Run watches until ctx is done. It fails if no directory could be watched.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	watched := 0
	for _, dir := range w.dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			w.log.WithField("path", dir).Warn("watch directory not found, skipping")
			continue
		}
		if err := fw.Add(dir); err != nil {
			w.log.WithError(err).WithField("path", dir).Error("failed to watch directory")
			continue
		}
		watched++
		w.log.WithField("path", dir).Info("watching directory")
	}
	if watched == 0 {
		return apperr.New(apperr.CodePrecondition, "watch", "no folders to watch")
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Error("file watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !config.IsAudioFile(event.Name) {
		return
	}
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		return
	}
	w.Submit(event.Name)
}

// Submit queues path for processing. Paths already in flight are ignored.
func (w *Watcher) Submit(path string) {
	job := queue.NewJob(path, queue.SourceWatch)
	err := w.queue.EnqueueJob(job)
	switch {
	case err == nil:
		w.log.WithField("file", filepath.Base(path)).Info("new audio file")
	case errors.Is(err, queue.ErrInFlight):
		w.log.WithField("file", filepath.Base(path)).Debug("already in flight")
	default:
		w.log.WithError(err).WithField("file", filepath.Base(path)).Warn("failed to queue file")
	}
}

// StableWaiter waits for a file to stop growing
type StableWaiter struct {
	Interval time.Duration
	Timeout  time.Duration

	stat  func(string) (os.FileInfo, error)
	sleep func(ctx context.Context, d time.Duration) error
}

// NewStableWaiter creates a waiter polling every interval up to timeout
func NewStableWaiter(interval, timeout time.Duration) *StableWaiter {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &StableWaiter{
		Interval: interval,
		Timeout:  timeout,
		stat:     os.Stat,
		sleep:    sleepCtx,
	}
}

// Wait returns once two consecutive polls see the same non-zero size.
// A timeout or a stat failure ends the wait without error; the pipeline
// reports unreadable files itself. Only cancellation is an error.
func (s *StableWaiter) Wait(ctx context.Context, path string) error {
	prev := int64(-1)
	for waited := time.Duration(0); waited < s.Timeout; waited += s.Interval {
		info, err := s.stat(path)
		if err != nil {
			return nil
		}
		size := info.Size()
		if size == prev && size > 0 {
			return nil
		}
		prev = size
		if err := s.sleep(ctx, s.Interval); err != nil {
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return apperr.Wrap(ctx.Err(), apperr.CodeCancelled, "watch", "stopped while waiting for file")
	case <-t.C:
		return nil
	}
}

// ErrNoDirs is returned by Dirs when every source is disabled
var ErrNoDirs = errors.New("no folders to watch")

// Dirs lists the folders to watch from cfg and the command line toggles
func Dirs(cfg *config.Config, voiceMemos, inbox bool) ([]string, error) {
	var dirs []string
	if voiceMemos && cfg.Watch.VoiceMemos && cfg.Watch.VoiceMemosDir != "" {
		dirs = append(dirs, cfg.Watch.VoiceMemosDir)
	}
	if inbox && cfg.Watch.InboxDir != "" {
		if err := os.MkdirAll(cfg.Watch.InboxDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create inbox: %w", err)
		}
		dirs = append(dirs, cfg.Watch.InboxDir)
	}
	if len(dirs) == 0 {
		return nil, ErrNoDirs
	}
	return dirs, nil
}
