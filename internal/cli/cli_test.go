package cli

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codebuildervaibhav/memoant/internal/apperr"
	"github.com/codebuildervaibhav/memoant/internal/app"
	"github.com/codebuildervaibhav/memoant/internal/config"
	"github.com/codebuildervaibhav/memoant/internal/logger"
	"github.com/codebuildervaibhav/memoant/internal/recorder"
	"github.com/codebuildervaibhav/memoant/internal/types"
)

func testDeps(t *testing.T) (*Dependencies, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default(t.TempDir())
	log := logger.Discard()
	var out bytes.Buffer
	return &Dependencies{
		App:    app.New(cfg, log),
		Config: cfg,
		Log:    log,
		Out:    &out,
		Err:    &out,
	}, &out
}

func run(deps *Dependencies, args ...string) error {
	cmd := NewRootCmd(deps)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestParseMode(t *testing.T) {
	m, err := parseMode("", types.ModeMeeting)
	if err != nil || m != types.ModeMeeting {
		t.Errorf("default = %q, %v", m, err)
	}
	if m, _ := parseMode("dictation", types.ModeAuto); m != types.ModeDictation {
		t.Errorf("dictation = %q", m)
	}
	if _, err := parseMode("podcast", types.ModeAuto); !apperr.IsCode(err, apperr.CodeInvalidArgument) {
		t.Errorf("err = %v", err)
	}
}

func TestStatusIdle(t *testing.T) {
	deps, out := testDeps(t)
	if err := run(deps, "status"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Not recording.") {
		t.Errorf("output = %q", out.String())
	}
}

func TestStopWhileIdle(t *testing.T) {
	deps, _ := testDeps(t)
	err := run(deps, "stop", "--no-process")
	if !apperr.IsCode(err, apperr.CodePrecondition) {
		t.Errorf("err = %v", err)
	}
}

func TestStopEndsCaptureWhenDatabaseUnavailable(t *testing.T) {
	sleepBin, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	deps, _ := testDeps(t)
	// a directory in place of the database file makes opening it fail
	deps.Config.Output.OracleDB = t.TempDir()

	capture := exec.Command(sleepBin, "60")
	if err := capture.Start(); err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		capture.Wait()
		close(done)
	}()
	t.Cleanup(func() {
		capture.Process.Kill()
		<-done
	})

	path := filepath.Join(t.TempDir(), "recording_20240101_120000.m4a")
	if err := os.WriteFile(path, bytes.Repeat([]byte{1}, 2000), 0644); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	state := recorder.NewStateStore(deps.Config.Output.StateDir)
	if err := state.Save(&types.RecordingState{
		PID:           capture.Process.Pid,
		Path:          path,
		StartTime:     float64(now.Unix()),
		StartedAt:     now.Format(time.RFC3339),
		Mode:          types.ModeAuto,
		Device:        ":0",
		RecordingType: types.RecordingAudio,
	}); err != nil {
		t.Fatal(err)
	}

	if err := run(deps, "stop"); err == nil {
		t.Error("expected the database error to be reported")
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("capture process still running after stop")
	}
	if _, err := os.Stat(state.Path()); !os.IsNotExist(err) {
		t.Errorf("state file still present: %v", err)
	}
}

func TestProcessMissingFile(t *testing.T) {
	deps, _ := testDeps(t)
	err := run(deps, "process", filepath.Join(t.TempDir(), "missing.m4a"))
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestRecordRejectsBadMode(t *testing.T) {
	deps, _ := testDeps(t)
	err := run(deps, "record", "--mode", "podcast", "--device", "1")
	if !apperr.IsCode(err, apperr.CodeInvalidArgument) {
		t.Errorf("err = %v", err)
	}
}

func TestConfigPrintsYAML(t *testing.T) {
	deps, out := testDeps(t)
	if err := run(deps, "config"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"processing:", "whisper_model: large-v3-turbo", "Prerequisites:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestListEmpty(t *testing.T) {
	deps, out := testDeps(t)
	db := filepath.Join(t.TempDir(), "oracle.db")
	if err := run(deps, "list", "--db", db); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No recordings processed yet.") {
		t.Errorf("output = %q", out.String())
	}
	if _, err := os.Stat(db); err != nil {
		t.Errorf("db not created: %v", err)
	}
}

func TestVersion(t *testing.T) {
	deps, out := testDeps(t)
	if err := run(deps, "version"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "memoant dev") {
		t.Errorf("output = %q", out.String())
	}
}
