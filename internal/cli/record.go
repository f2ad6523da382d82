package cli

import (
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/memoant/internal/output"
	"github.com/codebuildervaibhav/memoant/internal/types"
)

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var device, mode string
	var screen bool

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Start recording audio or screen",
		Long:  "Start a detached recording. Audio is captured with ffmpeg; --screen lets you pick a window to record with audio.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(deps.Out)
			sup := deps.App.Supervisor(nil)

			var st *types.RecordingState
			if screen {
				m, err := parseMode(mode, types.ModeMeeting)
				if err != nil {
					return err
				}
				if st, err = sup.StartScreen(cmd.Context(), m); err != nil {
					return err
				}
			} else {
				m, err := parseMode(mode, types.Mode(deps.Config.Processing.DefaultMode))
				if err != nil {
					return err
				}
				if st, err = sup.Start(cmd.Context(), device, m); err != nil {
					return err
				}
			}

			f.RecordingStarted(st)
			return nil
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "Audio device name or index")
	cmd.Flags().BoolVar(&screen, "screen", false, "Record a window (screen + audio)")
	cmd.Flags().StringVar(&mode, "mode", "", "Processing mode hint: auto, meeting or dictation")

	return cmd
}
