package cli

import (
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/memoant/internal/output"
)

func NewConfigCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration and check prerequisites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(deps.Out)
			cfg := deps.Config

			if cfg.Path != "" {
				f.Info("Config file: " + cfg.Path)
			} else {
				f.Info("No config file found, using defaults")
			}

			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			f.Raw("\n" + string(data))

			f.Raw("Prerequisites:")
			checkBinary(f, "ffmpeg", cfg.Processing.FFmpegCommand, "not found. Install with: brew install ffmpeg")
			checkBinary(f, "whisper", cfg.Processing.WhisperCommand, "not found. Install with: pip install openai-whisper")
			if cfg.Processing.DiarizeCommand != "" {
				checkBinary(f, "diarization", cfg.Processing.DiarizeCommand, "not found")
			} else {
				f.SetupCheck("diarization", false, "processing.diarize_command not set (single speaker)")
			}
			checkBinary(f, "window_picker", cfg.Screen.WindowPicker, "NOT FOUND (build the Swift helpers)")
			checkBinary(f, "window_recorder", cfg.Screen.WindowRecorder, "NOT FOUND (build the Swift helpers)")
			return nil
		},
	}
}

func checkBinary(f *output.Formatter, name, bin, missing string) {
	path, err := exec.LookPath(bin)
	if err != nil {
		f.SetupCheck(name, false, bin+" "+missing)
		return
	}
	f.SetupCheck(name, true, path)
}
