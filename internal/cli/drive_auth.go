package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/memoant/internal/output"
	"github.com/codebuildervaibhav/memoant/internal/storage"
)

func NewDriveAuthCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "drive-auth",
		Short: "Authorize Google Drive note uploads",
		Long:  "Run the OAuth flow once and cache the token so processed notes can be mirrored to Google Drive (google_drive.enabled).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gd := deps.Config.GoogleDrive
			if err := storage.AuthorizeDrive(cmd.Context(), gd.CredentialsFile, gd.TokenFile, os.Stdin, deps.Out); err != nil {
				return err
			}
			output.NewFormatter(deps.Out).Success("Drive token saved to " + gd.TokenFile)
			return nil
		},
	}
}
