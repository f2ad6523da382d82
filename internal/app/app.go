// Package app wires configuration into the recorder and processing stack.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/memoant/internal/config"
	"github.com/codebuildervaibhav/memoant/internal/pipeline"
	"github.com/codebuildervaibhav/memoant/internal/queue"
	"github.com/codebuildervaibhav/memoant/internal/recorder"
	"github.com/codebuildervaibhav/memoant/internal/storage"
	"github.com/codebuildervaibhav/memoant/internal/structure"
	"github.com/codebuildervaibhav/memoant/internal/transcription"
	"github.com/codebuildervaibhav/memoant/internal/watcher"
)

// App holds the loaded configuration and builds components on demand so
// commands like `devices` never open the database.
type App struct {
	Config *config.Config
	Log    *logrus.Logger
}

// New creates an App
func New(cfg *config.Config, log *logrus.Logger) *App {
	return &App{Config: cfg, Log: log}
}

// Paths override the configured database and notes locations
type Paths struct {
	DB    string
	Notes string
}

func (p Paths) withDefaults(cfg *config.Config) Paths {
	if p.DB == "" {
		p.DB = cfg.Output.OracleDB
	}
	if p.Notes == "" {
		p.Notes = cfg.Output.NotesDir
	}
	return p
}

// Runtime is an open processing stack around one database
type Runtime struct {
	Paths        Paths
	Store        *storage.RecordStore
	Orchestrator *pipeline.Orchestrator
}

// Close releases the database
func (r *Runtime) Close() error {
	return r.Store.Close()
}

// OpenRuntime opens the database and builds the orchestrator
func (a *App) OpenRuntime(ctx context.Context, paths Paths) (*Runtime, error) {
	cfg := a.Config
	paths = paths.withDefaults(cfg)

	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	for _, dir := range []string{paths.Notes, filepath.Dir(paths.DB)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	store, err := storage.NewRecordStore(paths.DB)
	if err != nil {
		return nil, err
	}
	calendar, err := storage.NewCalendarMatcher(store.DB())
	if err != nil {
		store.Close()
		return nil, err
	}

	transcriber, err := transcription.NewWhisperTranscriber(
		cfg.Processing.WhisperCommand,
		cfg.Processing.WhisperModel,
		cfg.Processing.Language,
		cfg.Output.TmpDir,
		a.Log,
	)
	if err != nil {
		store.Close()
		return nil, err
	}
	for _, command := range []string{cfg.Processing.VADCommand, cfg.Processing.DiarizeCommand} {
		if command == "" {
			continue
		}
		if _, err := transcription.SplitCommand(command); err != nil {
			store.Close()
			return nil, err
		}
	}
	extractor := structure.NewOllamaExtractor(cfg.Processing.OllamaURL, cfg.Processing.OllamaModel, a.Log)

	deps := pipeline.Deps{
		Converter:   transcription.NewFFmpeg(cfg.Processing.FFmpegCommand, cfg.Output.TmpDir),
		VAD:         a.vad(),
		Transcriber: transcriber,
		Structurer:  extractor,
		Calendar:    calendar,
		Store:       store,
		Notes:       storage.NewNoteWriter(paths.Notes),
		Archive:     storage.NewArchiver(cfg.Output.ArchiveDir),
	}
	if cfg.Processing.DiarizeCommand != "" {
		deps.Diarizer = &transcription.CommandDiarizer{Command: cfg.Processing.DiarizeCommand}
	} else {
		a.Log.Debug("processing.diarize_command not set, every recording gets one speaker")
	}
	if uploader := a.driveUploader(ctx); uploader != nil {
		deps.Uploader = uploader
	}

	orch := pipeline.New(deps, pipeline.Settings{
		MaxChunkSeconds: cfg.Processing.MaxChunkSeconds,
		MinSilenceMs:    cfg.Processing.MinSilenceMs,
		ModelWhisper:    transcriber.Model(),
		ModelLLM:        extractor.ModelName(),
	}, a.Log)

	return &Runtime{Paths: paths, Store: store, Orchestrator: orch}, nil
}

func (a *App) vad() pipeline.VAD {
	if cmd := a.Config.Processing.VADCommand; cmd != "" {
		return &transcription.CommandVAD{Command: cmd}
	}
	return transcription.NewEnergyVAD(a.Config.Processing.VADThreshold)
}

// driveUploader returns nil when Drive is disabled or not authorized
func (a *App) driveUploader(ctx context.Context) *storage.DriveClient {
	gd := a.Config.GoogleDrive
	if !gd.Enabled {
		return nil
	}
	client, err := storage.NewDriveClient(ctx, gd.CredentialsFile, gd.TokenFile, gd.FolderName)
	if err != nil {
		a.Log.WithError(err).Warn("Google Drive not available, notes are saved locally only")
		return nil
	}
	a.Log.Info("Google Drive integration enabled")
	return client
}

// DeferredPipeline opens the runtime on first use, so a caller can hand it
// to the supervisor without touching the database before capture stops.
type DeferredPipeline struct {
	app   *App
	paths Paths
	rt    *Runtime
}

// DeferredPipeline returns a pipeline that opens its runtime lazily
func (a *App) DeferredPipeline(paths Paths) *DeferredPipeline {
	return &DeferredPipeline{app: a, paths: paths}
}

// Process opens the runtime if needed and runs the orchestrator
func (d *DeferredPipeline) Process(ctx context.Context, path string, opts pipeline.Options) (*pipeline.Result, error) {
	if d.rt == nil {
		rt, err := d.app.OpenRuntime(ctx, d.paths)
		if err != nil {
			return nil, err
		}
		d.rt = rt
	}
	return d.rt.Orchestrator.Process(ctx, path, opts)
}

// Close releases the runtime if it was opened
func (d *DeferredPipeline) Close() error {
	if d.rt == nil {
		return nil
	}
	return d.rt.Close()
}

// Supervisor builds the recording supervisor. p may be nil.
func (a *App) Supervisor(p recorder.Pipeline) *recorder.Supervisor {
	cfg := a.Config
	return recorder.New(recorder.Settings{
		FFmpegCommand:  cfg.Processing.FFmpegCommand,
		AudioDevice:    cfg.Recording.AudioDevice,
		SampleRate:     cfg.Recording.SampleRate,
		Channels:       cfg.Recording.Channels,
		RecordingsDir:  cfg.Output.RecordingsDir,
		StateDir:       cfg.Output.StateDir,
		WindowPicker:   cfg.Screen.WindowPicker,
		WindowRecorder: cfg.Screen.WindowRecorder,
	}, p, a.Log)
}

// WorkerPool builds the queue in front of the orchestrator, waiting for
// watched files to settle before processing them.
func (a *App) WorkerPool(rt *Runtime, opts pipeline.Options) *queue.WorkerPool {
	w := a.Config.Watch
	pool := queue.NewWorkerPool(w.Workers, w.QueueSize, rt.Orchestrator, opts, a.Log)
	waiter := watcher.NewStableWaiter(
		time.Duration(w.SettleSeconds)*time.Second,
		time.Duration(w.StableTimeoutSeconds)*time.Second,
	)
	pool.Stable = waiter.Wait
	return pool
}
