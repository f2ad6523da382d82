// Package recorder starts, tracks and stops the detached capture process.
//
// State lives in a JSON file so that `record`, `status` and `stop` can run
// as separate invocations. Every read checks the recorded PID and removes
// state whose process has died.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/memoant/internal/apperr"
	"github.com/codebuildervaibhav/memoant/internal/pipeline"
	"github.com/codebuildervaibhav/memoant/internal/types"
)

const (
	audioGrace  = 500 * time.Millisecond
	screenGrace = time.Second
	stopPoll    = 500 * time.Millisecond
	stopPolls   = 20
	flushWait   = time.Second

	pickerTimeout = 60 * time.Second
	logTailBytes  = 500

	// MinRecordingBytes is the size below which a recording is reported as likely empty
	MinRecordingBytes = 1000

	fileTimestamp = "2006-01-02_15-04-05"
)

// Pipeline processes a finished recording
type Pipeline interface {
	Process(ctx context.Context, path string, opts pipeline.Options) (*pipeline.Result, error)
}

// Settings configure the supervisor
type Settings struct {
	FFmpegCommand  string
	AudioDevice    string
	SampleRate     int
	Channels       int
	RecordingsDir  string
	StateDir       string
	WindowPicker   string
	WindowRecorder string
}

// Status describes an active recording
type Status struct {
	*types.RecordingState
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Elapsed        string  `json:"elapsed"`
}

// StopResult reports what Stop found and did
type StopResult struct {
	Path            string           `json:"path"`
	Mode            types.Mode       `json:"mode"`
	RecordingType   string           `json:"recording_type"`
	DurationSeconds float64          `json:"duration_seconds"`
	Exists          bool             `json:"exists"`
	SizeBytes       int64            `json:"size_bytes,omitempty"`
	Warning         string           `json:"warning,omitempty"`
	Error           string           `json:"error,omitempty"`
	Pipeline        *pipeline.Result `json:"pipeline,omitempty"`
}

// Supervisor owns the recording lifecycle
type Supervisor struct {
	settings Settings
	state    *StateStore
	probe    ProcessProbe
	launcher Launcher
	runner   Runner
	pipeline Pipeline
	log      *logrus.Logger

	now      func() time.Time
	sleep    func(time.Duration)
	lookPath func(string) (string, error)
}

// New creates a supervisor backed by real processes. p may be nil when
// recordings are never processed on stop.
func New(settings Settings, p Pipeline, log *logrus.Logger) *Supervisor {
	if settings.FFmpegCommand == "" {
		settings.FFmpegCommand = "ffmpeg"
	}
	return &Supervisor{
		settings: settings,
		state:    NewStateStore(settings.StateDir),
		probe:    OSProbe{},
		launcher: ExecLauncher{},
		runner:   ExecRunner{},
		pipeline: p,
		log:      log,
		now:      time.Now,
		sleep:    time.Sleep,
		lookPath: exec.LookPath,
	}
}

// current loads the state and self-heals it when the process is gone
func (s *Supervisor) current() (*types.RecordingState, error) {
	st, err := s.state.Load()
	if err != nil || st == nil {
		return nil, err
	}
	if !s.probe.Alive(st.PID) {
		s.log.WithField("pid", st.PID).Info("recording process is gone, clearing stale state")
		if err := s.state.Clear(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return st, nil
}

func (s *Supervisor) checkIdle(op string) error {
	st, err := s.current()
	if err != nil {
		return apperr.Wrap(err, apperr.CodeIO, op, "cannot read recording state")
	}
	if st != nil {
		return apperr.Newf(apperr.CodeConflict, op, "already recording (PID: %d, started: %s)", st.PID, st.StartedAt)
	}
	return nil
}

func (s *Supervisor) ensureDirs() error {
	for _, dir := range []string{s.settings.RecordingsDir, s.settings.StateDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperr.Wrap(err, apperr.CodeIO, "record", "cannot create "+dir)
		}
	}
	return nil
}

// Start begins an audio recording with ffmpeg. An empty device uses the
// configured one.
func (s *Supervisor) Start(ctx context.Context, device string, mode types.Mode) (*types.RecordingState, error) {
	if mode == "" {
		mode = types.ModeAuto
	}
	if err := s.checkIdle("record"); err != nil {
		return nil, err
	}
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}

	if device == "" {
		device = s.settings.AudioDevice
	}
	input, err := ResolveAudioDevice(ctx, s.runner, s.settings.FFmpegCommand, device)
	if err != nil {
		return nil, err
	}

	started := s.now()
	outPath := filepath.Join(s.settings.RecordingsDir, fmt.Sprintf("recording_%s.m4a", started.Format(fileTimestamp)))
	logPath := filepath.Join(s.settings.StateDir, "ffmpeg.log")
	args := []string{
		"-f", "avfoundation",
		"-i", input,
		"-ac", fmt.Sprint(s.settings.Channels),
		"-ar", fmt.Sprint(s.settings.SampleRate),
		"-ab", "128k",
		"-y",
		outPath,
	}

	st := &types.RecordingState{
		Path:          outPath,
		Mode:          mode,
		Device:        input,
		RecordingType: types.RecordingAudio,
	}
	if err := s.launch("ffmpeg", s.settings.FFmpegCommand, args, logPath, audioGrace, st); err != nil {
		return nil, err
	}
	return st, nil
}

// StartScreen asks the window picker for a target and starts the screen
// recorder on it. An empty mode defaults to meeting.
func (s *Supervisor) StartScreen(ctx context.Context, mode types.Mode) (*types.RecordingState, error) {
	if mode == "" {
		mode = types.ModeMeeting
	}
	if err := s.checkIdle("record"); err != nil {
		return nil, err
	}
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}

	picker, err := s.lookPath(s.settings.WindowPicker)
	if err != nil {
		return nil, apperr.Newf(apperr.CodePrecondition, "record", "WindowPicker not found at %s", s.settings.WindowPicker)
	}
	recorder, err := s.lookPath(s.settings.WindowRecorder)
	if err != nil {
		return nil, apperr.Newf(apperr.CodePrecondition, "record", "WindowRecorder not found at %s", s.settings.WindowRecorder)
	}

	pickCtx, cancel := context.WithTimeout(ctx, pickerTimeout)
	stdout, _, err := s.runner.Output(pickCtx, picker)
	timedOut := pickCtx.Err() == context.DeadlineExceeded
	cancel()
	if timedOut {
		return nil, apperr.New(apperr.CodeExternal, "record", "window picker timed out (60s)")
	}
	if err != nil {
		return nil, apperr.New(apperr.CodeCancelled, "record", "window selection cancelled")
	}

	selector, err := ParseSelector(stdout)
	if err != nil {
		return nil, err
	}

	started := s.now()
	outPath := filepath.Join(s.settings.RecordingsDir, fmt.Sprintf("screen_%s.mp4", started.Format(fileTimestamp)))
	logPath := filepath.Join(s.settings.StateDir, "recorder.log")

	label := "desktop"
	if selector != "desktop" {
		label = fmt.Sprintf("screen (%s)", selector)
	}
	st := &types.RecordingState{
		Path:           outPath,
		Mode:           mode,
		Device:         label,
		RecordingType:  types.RecordingScreen,
		WindowSelector: selector,
	}
	if err := s.launch("WindowRecorder", recorder, []string{outPath, selector}, logPath, screenGrace, st); err != nil {
		return nil, err
	}
	return st, nil
}

// launch starts the capture process, checks it survives the grace period
// and records it as the active recording.
func (s *Supervisor) launch(label, name string, args []string, logPath string, grace time.Duration, st *types.RecordingState) error {
	proc, err := s.launcher.Launch(name, args, logPath)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeExternal, "record", label+" failed to start")
	}

	s.sleep(grace)
	if exited, code := proc.Exited(); exited {
		return apperr.Newf(apperr.CodeExternal, "record", "%s failed to start (exit %d): %s", label, code, logTail(logPath))
	}

	now := s.now()
	st.PID = proc.PID()
	st.StartTime = float64(now.UnixNano()) / float64(time.Second)
	st.StartedAt = now.Format(time.RFC3339)

	if err := s.state.Save(st); err != nil {
		s.probe.Signal(st.PID, syscall.SIGKILL)
		return apperr.Wrap(err, apperr.CodeIO, "record", "cannot save recording state")
	}

	s.log.WithFields(logrus.Fields{
		"pid":    st.PID,
		"type":   st.RecordingType,
		"device": st.Device,
		"file":   st.Path,
	}).Info("recording started")
	return nil
}

// ParseSelector validates the window picker output. The last non-empty
// line must be "id:<N>" or "desktop".
func ParseSelector(stdout string) (string, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	sel := strings.TrimSpace(lines[len(lines)-1])
	if sel == "desktop" {
		return sel, nil
	}
	if id, ok := strings.CutPrefix(sel, "id:"); ok && id != "" && isDigits(id) {
		return sel, nil
	}
	return "", apperr.Newf(apperr.CodeExternal, "record", "invalid window selector from picker: %q", sel)
}

// Status returns the active recording, or nil when idle
func (s *Supervisor) Status() (*Status, error) {
	st, err := s.current()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeIO, "status", "cannot read recording state")
	}
	if st == nil {
		return nil, nil
	}
	elapsed := st.Elapsed(s.now())
	return &Status{
		RecordingState: st,
		ElapsedSeconds: elapsed.Seconds(),
		Elapsed:        FormatElapsed(elapsed),
	}, nil
}

// Stop ends the active recording. The state is cleared whatever happens to
// the process. When runPipeline is set and the file looks valid, the
// recording is processed with its recorded mode.
func (s *Supervisor) Stop(ctx context.Context, runPipeline bool) (*StopResult, error) {
	st, err := s.current()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeIO, "stop", "cannot read recording state")
	}
	if st == nil {
		return nil, apperr.New(apperr.CodePrecondition, "stop", "no recording in progress")
	}

	s.stopProcess(st.PID)
	s.sleep(flushWait)
	if err := s.state.Clear(); err != nil {
		s.log.WithError(err).Warn("failed to clear recording state")
	}

	result := &StopResult{
		Path:            st.Path,
		Mode:            st.Mode,
		RecordingType:   st.RecordingType,
		DurationSeconds: st.Elapsed(s.now()).Seconds(),
	}

	info, err := os.Stat(st.Path)
	if err != nil {
		result.Error = "recording file not found after stopping"
		return result, nil
	}
	result.Exists = true
	result.SizeBytes = info.Size()
	if result.SizeBytes < MinRecordingBytes {
		result.Warning = "recording file is very small, may be empty"
	}

	if runPipeline && result.SizeBytes >= MinRecordingBytes && s.pipeline != nil {
		s.log.WithField("file", filepath.Base(st.Path)).Info("processing recording")
		res, err := s.pipeline.Process(ctx, st.Path, pipeline.Options{Mode: st.Mode})
		if err != nil {
			result.Error = err.Error()
		}
		result.Pipeline = res
	}
	return result, nil
}

// stopProcess sends SIGINT, waits up to ten seconds, then SIGKILL
func (s *Supervisor) stopProcess(pid int) {
	if err := s.probe.Signal(pid, syscall.SIGINT); err != nil {
		return
	}
	for i := 0; i < stopPolls; i++ {
		if !s.probe.Alive(pid) {
			return
		}
		s.sleep(stopPoll)
	}
	s.log.WithField("pid", pid).Warn("recording process ignored SIGINT, killing")
	if err := s.probe.Signal(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.log.WithError(err).Warn("failed to kill recording process")
	}
}

// FormatElapsed renders d as MM:SS
func FormatElapsed(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func logTail(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if len(data) > logTailBytes {
		data = data[len(data)-logTailBytes:]
	}
	return strings.TrimSpace(string(data))
}
