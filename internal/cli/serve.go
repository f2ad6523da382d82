package cli

import (
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/memoant/internal/app"
	"github.com/codebuildervaibhav/memoant/internal/cleanup"
	"github.com/codebuildervaibhav/memoant/internal/output"
	"github.com/codebuildervaibhav/memoant/internal/pipeline"
	"github.com/codebuildervaibhav/memoant/internal/queue"
	"github.com/codebuildervaibhav/memoant/internal/server"
	"github.com/codebuildervaibhav/memoant/internal/watcher"
)

func NewServeCmd(deps *Dependencies) *cobra.Command {
	var (
		paths           app.Paths
		skipDiarization bool
		watch           bool
		maxUploadMB     int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local API",
		Long:  "Serve the local HTTP API: stored records, recording status, uploads into the processing queue and a websocket feed of results.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(deps.Out)
			cfg := deps.Config

			logs := server.NewLogBuffer()
			deps.Log.SetOutput(io.MultiWriter(deps.Err, logs))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := deps.App.OpenRuntime(ctx, paths)
			if err != nil {
				return err
			}
			defer rt.Close()

			hub := server.NewHub(deps.Log)
			pool := deps.App.WorkerPool(rt, pipeline.Options{SkipDiarization: skipDiarization})
			onDone := logJob(deps.Log)
			pool.OnDone = func(job *queue.Job) {
				onDone(job)
				hub.Publish(job)
			}
			pool.Start(ctx)
			defer pool.Stop()

			sweeper := cleanup.NewScheduler(cfg.Output.TmpDir, cfg.Cleanup.IntervalMinutes, cfg.Cleanup.MaxAgeHours, deps.Log)
			sweeper.Start()
			defer sweeper.Stop()

			if watch {
				dirs, err := watcher.Dirs(cfg, true, true)
				if err != nil {
					return err
				}
				w := watcher.New(dirs, pool, deps.Log)
				go func() {
					if err := w.Run(ctx); err != nil {
						deps.Log.WithError(err).Error("watcher stopped")
					}
				}()
			}

			srv := server.New(server.Deps{
				Records:   rt.Store,
				Recording: deps.App.Supervisor(nil),
				Queue:     pool,
				Events:    hub,
				Logs:      logs,
				Log:       deps.Log,
			}, server.Options{
				InboxDir:      cfg.Watch.InboxDir,
				MaxUploadMB:   maxUploadMB,
				RequestLogger: true,
			})

			go func() {
				<-ctx.Done()
				deps.Log.Info("shutting down gracefully")
				srv.Shutdown()
			}()

			addr := server.Addr(cfg.Server.Host, cfg.Server.Port)
			f.Success("memoant API listening on http://" + addr)
			f.Raw(`  GET  /health            - Health check
  GET  /records           - List processed recordings
  GET  /records/:file_id  - One record
  GET  /recording         - Active recording status
  POST /upload            - Upload a recording for processing
  GET  /ws/events         - WebSocket feed of processing results
  GET  /logs              - Recent server logs`)

			return srv.Listen(addr)
		},
	}

	cmd.Flags().StringVar(&paths.DB, "db", "", "Path to oracle.db")
	cmd.Flags().StringVar(&paths.Notes, "notes", "", "Notes output directory")
	cmd.Flags().BoolVar(&skipDiarization, "skip-diarization", false, "Skip speaker diarization")
	cmd.Flags().BoolVar(&watch, "watch", false, "Also watch the inbox and Voice Memos folders")
	cmd.Flags().IntVar(&maxUploadMB, "max-upload-mb", 500, "Largest accepted upload")

	return cmd
}
