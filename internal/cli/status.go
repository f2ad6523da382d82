package cli

import (
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/memoant/internal/output"
)

func NewStatusCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show recording status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := deps.App.Supervisor(nil).Status()
			if err != nil {
				return err
			}
			output.NewFormatter(deps.Out).Status(st)
			return nil
		},
	}
}
