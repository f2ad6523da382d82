package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/memoant/internal/app"
	"github.com/codebuildervaibhav/memoant/internal/output"
	"github.com/codebuildervaibhav/memoant/internal/recorder"
)

func NewStopCmd(deps *Dependencies) *cobra.Command {
	var noProcess bool

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop recording and process the audio",
		Long:  "Stop the background recording and run it through the pipeline with the mode given at record time.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(deps.Out)

			// the capture is stopped before the database or Drive are touched
			var p recorder.Pipeline
			if !noProcess {
				deferred := deps.App.DeferredPipeline(app.Paths{})
				defer deferred.Close()
				p = deferred
			}

			res, err := deps.App.Supervisor(p).Stop(cmd.Context(), !noProcess)
			if err != nil {
				return err
			}

			f.RecordingStopped(res)
			if res.Pipeline != nil {
				f.PipelineResult(res.Pipeline)
			} else if noProcess && res.Exists {
				f.Info("Skipped processing (--no-process).")
			}
			if res.Error != "" {
				return errors.New(res.Error)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noProcess, "no-process", false, "Stop without processing")

	return cmd
}
