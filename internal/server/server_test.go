package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/memoant/internal/apperr"
	"github.com/codebuildervaibhav/memoant/internal/logger"
	"github.com/codebuildervaibhav/memoant/internal/pipeline"
	"github.com/codebuildervaibhav/memoant/internal/queue"
	"github.com/codebuildervaibhav/memoant/internal/recorder"
	"github.com/codebuildervaibhav/memoant/internal/types"
)

type fakeRecords struct {
	recs []*types.ProcessingRecord
}

func (f *fakeRecords) Get(ctx context.Context, id string) (*types.ProcessingRecord, error) {
	for _, r := range f.recs {
		if r.FileID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRecords) List(ctx context.Context, limit int) ([]*types.ProcessingRecord, error) {
	if limit > len(f.recs) {
		limit = len(f.recs)
	}
	return f.recs[:limit], nil
}

func (f *fakeRecords) Count(ctx context.Context) (int, error) { return len(f.recs), nil }

type fakeStatus struct{ st *recorder.Status }

func (f *fakeStatus) Status() (*recorder.Status, error) { return f.st, nil }

type fakeQueue struct {
	jobs []*queue.Job
	err  error
}

func (f *fakeQueue) EnqueueJob(job *queue.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type testEnv struct {
	app   *fiber.App
	queue *fakeQueue
	inbox string
	state *fakeStatus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		queue: &fakeQueue{},
		inbox: filepath.Join(t.TempDir(), "inbox"),
		state: &fakeStatus{},
	}
	records := &fakeRecords{recs: []*types.ProcessingRecord{
		{FileID: "bbb", SourceFile: "b.m4a", Structured: types.Structured{Summary: "second"}},
		{FileID: "aaa", SourceFile: "a.m4a", Structured: types.Structured{Summary: "first"}},
	}}
	env.app = New(Deps{
		Records:   records,
		Recording: env.state,
		Queue:     env.queue,
		Events:    NewHub(logger.Discard()),
		Logs:      NewLogBuffer(),
		Log:       logger.Discard(),
	}, Options{InboxDir: env.inbox, MaxUploadMB: 1})
	return env
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body := decode(t, resp); body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestRecords(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.app.Test(httptest.NewRequest(http.MethodGet, "/records?limit=1", nil))
	body := decode(t, resp)
	recs := body["records"].([]any)
	if len(recs) != 1 || body["total"].(float64) != 2 {
		t.Errorf("body = %v", body)
	}
	if recs[0].(map[string]any)["file_id"] != "bbb" {
		t.Errorf("first record = %v", recs[0])
	}

	resp, _ = env.app.Test(httptest.NewRequest(http.MethodGet, "/records?limit=zero", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", resp.StatusCode)
	}

	resp, _ = env.app.Test(httptest.NewRequest(http.MethodGet, "/records/aaa", nil))
	if body := decode(t, resp); body["summary"] != "first" {
		t.Errorf("record = %v", body)
	}

	resp, _ = env.app.Test(httptest.NewRequest(http.MethodGet, "/records/zzz", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing record status = %d", resp.StatusCode)
	}
}

func TestRecordingStatus(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.app.Test(httptest.NewRequest(http.MethodGet, "/recording", nil))
	if body := decode(t, resp); body["recording"] != false {
		t.Errorf("idle body = %v", body)
	}

	env.state.st = &recorder.Status{
		RecordingState: &types.RecordingState{PID: 42, Path: "/r/a.m4a", Mode: types.ModeMeeting},
		Elapsed:        "01:30",
	}
	resp, _ = env.app.Test(httptest.NewRequest(http.MethodGet, "/recording", nil))
	body := decode(t, resp)
	status, _ := body["status"].(map[string]any)
	if body["recording"] != true || status["pid"].(float64) != 42 || status["elapsed"] != "01:30" {
		t.Errorf("active body = %v", body)
	}
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(uploadRequest(t, "Team Sync.m4a", []byte("fake audio")))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode(t, resp)

	if len(env.queue.jobs) != 1 {
		t.Fatalf("jobs = %d", len(env.queue.jobs))
	}
	job := env.queue.jobs[0]
	if job.SourceType != queue.SourceUpload || job.WaitStable || body["job_id"] != job.ID {
		t.Errorf("job = %+v body = %v", job, body)
	}
	if filepath.Dir(job.FilePath) != env.inbox || !strings.HasPrefix(filepath.Base(job.FilePath), "Team Sync_") {
		t.Errorf("path = %s", job.FilePath)
	}
	data, err := os.ReadFile(job.FilePath)
	if err != nil || string(data) != "fake audio" {
		t.Errorf("saved = %q, %v", data, err)
	}
	if matches, _ := filepath.Glob(filepath.Join(env.inbox, "*.partial")); len(matches) != 0 {
		t.Errorf("partial files left: %v", matches)
	}
}

func TestUploadAlreadyQueuedByWatcher(t *testing.T) {
	env := newTestEnv(t)
	env.queue.err = apperr.Wrap(queue.ErrInFlight, apperr.CodeConflict, "enqueue", "x.m4a")

	resp, err := env.app.Test(uploadRequest(t, "memo.m4a", []byte("fake audio")))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode(t, resp)
	if _, ok := body["job_id"]; ok {
		t.Errorf("job_id returned for a job that was never queued: %v", body)
	}
	if body["status"] != "in_flight" {
		t.Errorf("status = %v, want in_flight", body["status"])
	}
}

func TestUploadQueueFull(t *testing.T) {
	env := newTestEnv(t)
	env.queue.err = apperr.New(apperr.CodePrecondition, "enqueue", "queue is full")

	resp, err := env.app.Test(uploadRequest(t, "memo.m4a", []byte("fake audio")))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestUploadRejects(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.app.Test(uploadRequest(t, "notes.txt", []byte("hello")))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("txt status = %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(""))
	resp, _ = env.app.Test(req)
	if body := decode(t, resp); body["code"] != "ERR_NO_FILE" {
		t.Errorf("no file body = %v", body)
	}
	if len(env.queue.jobs) != 0 {
		t.Errorf("jobs = %d", len(env.queue.jobs))
	}
}

func TestEventsRequireUpgrade(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.app.Test(httptest.NewRequest(http.MethodGet, "/ws/events", nil))
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestHubPublish(t *testing.T) {
	hub := NewHub(logger.Discard())
	events, unsubscribe := hub.Subscribe()

	job := queue.NewJob("/in/a.m4a", queue.SourceWatch)
	job.Status = queue.StatusCompleted
	job.Result = &pipeline.Result{Status: types.StatusProcessed, FileID: "abc"}
	hub.Publish(job)

	select {
	case msg := <-events:
		var got queue.Job
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatal(err)
		}
		if got.ID != job.ID || got.Result.FileID != "abc" {
			t.Errorf("event = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no event")
	}

	unsubscribe()
	unsubscribe()
	hub.Publish(job)
	if _, ok := <-events; ok {
		t.Error("channel not closed after unsubscribe")
	}
}

func TestLogBufferKeepsTail(t *testing.T) {
	lb := NewLogBuffer()
	for i := 0; i < logBufferLines+5; i++ {
		io.WriteString(lb, "line\n")
	}
	if n := len(lb.GetLogs()); n != logBufferLines {
		t.Errorf("lines = %d", n)
	}
}
