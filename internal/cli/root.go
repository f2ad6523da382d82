package cli

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/memoant/internal/app"
	"github.com/codebuildervaibhav/memoant/internal/apperr"
	"github.com/codebuildervaibhav/memoant/internal/config"
	"github.com/codebuildervaibhav/memoant/internal/logger"
	"github.com/codebuildervaibhav/memoant/internal/types"
	"github.com/codebuildervaibhav/memoant/internal/version"
)

// Dependencies are filled in by the root command before any subcommand runs
type Dependencies struct {
	App    *app.App
	Config *config.Config
	Log    *logrus.Logger

	Out io.Writer
	Err io.Writer
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Err == nil {
		deps.Err = os.Stderr
	}

	var configPath string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "memoant",
		Short:         "Record meetings, transcribe voice memos, structure everything",
		Long:          "A CLI tool that records audio and screen sessions, transcribes them with speaker attribution, extracts structured notes with a local LLM and stores everything in SQLite and Markdown.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if deps.Config != nil {
				return nil
			}
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			level := cfg.Log.Level
			if verbose {
				level = "debug"
			}
			deps.Config = cfg
			deps.Log = logger.NewWithOutput(deps.Err, level, cfg.Log.Format)
			deps.App = app.New(cfg, deps.Log)
			return nil
		},
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")
	rootCmd.SetOut(deps.Out)
	rootCmd.SetErr(deps.Err)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/memoant/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewStopCmd(deps))
	rootCmd.AddCommand(NewStatusCmd(deps))
	rootCmd.AddCommand(NewProcessCmd(deps))
	rootCmd.AddCommand(NewWatchCmd(deps))
	rootCmd.AddCommand(NewDevicesCmd(deps))
	rootCmd.AddCommand(NewConfigCmd(deps))
	rootCmd.AddCommand(NewServeCmd(deps))
	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewDriveAuthCmd(deps))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// parseMode validates --mode, falling back to def when the flag is empty
func parseMode(flag string, def types.Mode) (types.Mode, error) {
	if flag == "" {
		return def, nil
	}
	m, ok := types.ParseMode(flag)
	if !ok {
		return "", apperr.Newf(apperr.CodeInvalidArgument, "mode", "invalid mode %q (want auto, meeting or dictation)", flag)
	}
	return m, nil
}
