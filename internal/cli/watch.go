package cli

import (
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/memoant/internal/app"
	"github.com/codebuildervaibhav/memoant/internal/cleanup"
	"github.com/codebuildervaibhav/memoant/internal/output"
	"github.com/codebuildervaibhav/memoant/internal/pipeline"
	"github.com/codebuildervaibhav/memoant/internal/queue"
	"github.com/codebuildervaibhav/memoant/internal/watcher"
)

func NewWatchCmd(deps *Dependencies) *cobra.Command {
	var (
		paths           app.Paths
		skipDiarization bool
		noVoiceMemos    bool
		noInbox         bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch folders for new audio files",
		Long:  "Watch the inbox and the Voice Memos folder and process every new recording until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(deps.Out)

			dirs, err := watcher.Dirs(deps.Config, !noVoiceMemos, !noInbox)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := deps.App.OpenRuntime(ctx, paths)
			if err != nil {
				return err
			}
			defer rt.Close()

			pool := deps.App.WorkerPool(rt, pipeline.Options{SkipDiarization: skipDiarization})
			pool.OnDone = logJob(deps.Log)
			pool.Start(ctx)
			defer pool.Stop()

			sweeper := cleanup.NewScheduler(deps.Config.Output.TmpDir, deps.Config.Cleanup.IntervalMinutes, deps.Config.Cleanup.MaxAgeHours, deps.Log)
			sweeper.Start()
			defer sweeper.Stop()

			f.WatchStarted(dirs, rt.Paths.DB, rt.Paths.Notes, !skipDiarization)
			if err := watcher.New(dirs, pool, deps.Log).Run(ctx); err != nil {
				return err
			}
			f.Info("Shutting down watcher...")
			return nil
		},
	}

	cmd.Flags().StringVar(&paths.DB, "db", "", "Path to oracle.db")
	cmd.Flags().StringVar(&paths.Notes, "notes", "", "Notes output directory")
	cmd.Flags().BoolVar(&skipDiarization, "skip-diarization", false, "Skip speaker diarization")
	cmd.Flags().BoolVar(&noVoiceMemos, "no-voice-memos", false, "Don't watch Voice Memos folder")
	cmd.Flags().BoolVar(&noInbox, "no-inbox", false, "Don't watch inbox folder")

	return cmd
}

// logJob reports finished jobs the way the watcher has always printed them
func logJob(log *logrus.Logger) func(*queue.Job) {
	return func(job *queue.Job) {
		entry := log.WithField("file", job.FilePath)
		if job.Status == queue.StatusFailed {
			entry.WithField("error", job.Error).Error("processing failed")
			return
		}
		if job.Result == nil {
			return
		}
		summary := job.Result.Summary
		if r := []rune(summary); len(r) > 60 {
			summary = string(r[:60])
		}
		entry.WithFields(logrus.Fields{
			"status":  job.Result.Status,
			"summary": summary,
		}).Info("result")
	}
}
