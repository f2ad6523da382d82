package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/memoant/internal/app"
	"github.com/codebuildervaibhav/memoant/internal/apperr"
	"github.com/codebuildervaibhav/memoant/internal/output"
	"github.com/codebuildervaibhav/memoant/internal/pipeline"
	"github.com/codebuildervaibhav/memoant/internal/types"
)

func NewProcessCmd(deps *Dependencies) *cobra.Command {
	var (
		paths           app.Paths
		mode            string
		force           bool
		skipDiarization bool
	)

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Process an audio file through the full pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(deps.Out)
			path := args[0]

			if info, err := os.Stat(path); err != nil || info.IsDir() {
				return apperr.Newf(apperr.CodeNotFound, "process", "file not found: %s", path)
			}
			m, err := parseMode(mode, types.Mode(deps.Config.Processing.DefaultMode))
			if err != nil {
				return err
			}

			rt, err := deps.App.OpenRuntime(cmd.Context(), paths)
			if err != nil {
				return err
			}
			defer rt.Close()

			f.Processing(path)
			res, err := rt.Orchestrator.Process(cmd.Context(), path, pipeline.Options{
				Force:           force,
				SkipDiarization: skipDiarization,
				Mode:            m,
			})
			if err != nil {
				return err
			}
			f.PipelineResult(res)
			if res.Status == types.StatusSkipped {
				f.Info("Use --force to reprocess.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&paths.DB, "db", "", "Path to oracle.db")
	cmd.Flags().StringVar(&paths.Notes, "notes", "", "Notes output directory")
	cmd.Flags().BoolVar(&skipDiarization, "skip-diarization", false, "Skip speaker diarization")
	cmd.Flags().BoolVar(&force, "force", false, "Reprocess even if already in DB")
	cmd.Flags().StringVar(&mode, "mode", "", "Processing mode hint: auto, meeting or dictation")

	return cmd
}
