package cli

import (
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/memoant/internal/output"
	"github.com/codebuildervaibhav/memoant/internal/recorder"
)

func NewDevicesCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := recorder.ListDevices(cmd.Context(), recorder.ExecRunner{}, deps.Config.Processing.FFmpegCommand)
			if err != nil {
				return err
			}
			output.NewFormatter(deps.Out).DeviceList(list)
			return nil
		},
	}
}
