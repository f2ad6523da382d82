package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codebuildervaibhav/memoant/internal/apperr"
	"github.com/codebuildervaibhav/memoant/internal/config"
	"github.com/codebuildervaibhav/memoant/internal/logger"
	"github.com/codebuildervaibhav/memoant/internal/queue"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs []*queue.Job
	seen map[string]bool
}

func (q *fakeQueue) EnqueueJob(job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.seen == nil {
		q.seen = map[string]bool{}
	}
	if q.seen[job.FilePath] {
		return apperr.Wrap(queue.ErrInFlight, apperr.CodeConflict, "enqueue", job.FilePath)
	}
	q.seen[job.FilePath] = true
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) paths() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for _, j := range q.jobs {
		out = append(out, j.FilePath)
	}
	return out
}

func TestHandleEventFiltersExtensions(t *testing.T) {
	q := &fakeQueue{}
	w := New(nil, q, logger.Discard())

	w.handleEvent(fsnotify.Event{Name: "/in/memo.M4A", Op: fsnotify.Create})
	w.handleEvent(fsnotify.Event{Name: "/in/notes.txt", Op: fsnotify.Create})
	w.handleEvent(fsnotify.Event{Name: "/in/call.wav", Op: fsnotify.Remove})
	w.handleEvent(fsnotify.Event{Name: "/in/memo.M4A", Op: fsnotify.Write})

	got := q.paths()
	if len(got) != 1 || got[0] != "/in/memo.M4A" {
		t.Errorf("queued = %v", got)
	}
	if !q.jobs[0].WaitStable || q.jobs[0].SourceType != queue.SourceWatch {
		t.Errorf("job = %+v", q.jobs[0])
	}
}

func TestRunQueuesNewFiles(t *testing.T) {
	dir := t.TempDir()
	q := &fakeQueue{}
	w := New([]string{dir, filepath.Join(dir, "missing")}, q, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	path := filepath.Join(dir, "voice.m4a")
	deadline := time.Now().Add(5 * time.Second)
	for len(q.paths()) == 0 && time.Now().Before(deadline) {
		os.WriteFile(path, []byte("data"), 0644)
		time.Sleep(50 * time.Millisecond)
	}
	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := q.paths(); len(got) != 1 || got[0] != path {
		t.Errorf("queued = %v", got)
	}
}

func TestRunWithoutDirectories(t *testing.T) {
	w := New([]string{filepath.Join(t.TempDir(), "missing")}, &fakeQueue{}, logger.Discard())
	err := w.Run(context.Background())
	if !apperr.IsCode(err, apperr.CodePrecondition) {
		t.Errorf("err = %v", err)
	}
}

type fakeInfo struct {
	os.FileInfo
	size int64
}

func (f fakeInfo) Size() int64 { return f.size }

func newTestWaiter(sizes []int64, statErrAt int) (*StableWaiter, *int) {
	polls := 0
	w := NewStableWaiter(5*time.Second, 60*time.Second)
	w.stat = func(string) (os.FileInfo, error) {
		i := polls
		polls++
		if i == statErrAt {
			return nil, os.ErrNotExist
		}
		if i >= len(sizes) {
			i = len(sizes) - 1
		}
		return fakeInfo{size: sizes[i]}, nil
	}
	w.sleep = func(context.Context, time.Duration) error { return nil }
	return w, &polls
}

func TestStableWaiter(t *testing.T) {
	tests := []struct {
		name      string
		sizes     []int64
		statErrAt int
		wantPolls int
	}{
		{"stable after growth", []int64{10, 20, 30, 30}, -1, 4},
		{"zero size never stable", []int64{0}, -1, 12},
		{"always growing hits timeout", []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}, -1, 12},
		{"stat error ends wait", []int64{10, 20}, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, polls := newTestWaiter(tt.sizes, tt.statErrAt)
			if err := w.Wait(context.Background(), "/in/a.m4a"); err != nil {
				t.Fatalf("Wait: %v", err)
			}
			if *polls != tt.wantPolls {
				t.Errorf("polls = %d, want %d", *polls, tt.wantPolls)
			}
		})
	}
}

func TestStableWaiterCancelled(t *testing.T) {
	w := NewStableWaiter(time.Hour, 2*time.Hour)
	path := filepath.Join(t.TempDir(), "a.m4a")
	os.WriteFile(path, []byte("x"), 0644)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Wait(ctx, path); !apperr.IsCode(err, apperr.CodeCancelled) {
		t.Errorf("err = %v", err)
	}
}

func TestDirs(t *testing.T) {
	home := t.TempDir()
	cfg := config.Default(home)

	dirs, err := Dirs(cfg, true, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 2 || dirs[1] != cfg.Watch.InboxDir {
		t.Errorf("dirs = %v", dirs)
	}
	if _, err := os.Stat(cfg.Watch.InboxDir); err != nil {
		t.Errorf("inbox not created: %v", err)
	}

	if _, err := Dirs(cfg, false, false); err != ErrNoDirs {
		t.Errorf("err = %v, want ErrNoDirs", err)
	}
}
