package transcription

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/memoant/internal/apperr"
)

const (
	// SampleRate is the rate every stage after normalization works at
	SampleRate = 16000

	convertTimeout = 120 * time.Second
	extractTimeout = 60 * time.Second
	maxDiagnostic  = 500
)

// FFmpeg converts recordings into canonical 16kHz mono PCM WAV files in TmpDir
type FFmpeg struct {
	Command string
	TmpDir  string
}

// NewFFmpeg creates a converter. An empty command means "ffmpeg".
func NewFFmpeg(command, tmpDir string) *FFmpeg {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpeg{Command: command, TmpDir: tmpDir}
}

// NormalizeAudio converts any audio or video file to 16kHz mono WAV
func (f *FFmpeg) NormalizeAudio(ctx context.Context, inputPath string) (string, error) {
	outputPath := f.tempPath("normalized")

	ctx, cancel := context.WithTimeout(ctx, convertTimeout)
	defer cancel()

	// FFmpeg command: convert to 16kHz mono WAV
	cmd := exec.CommandContext(ctx, f.Command,
		"-y",
		"-i", inputPath,
		"-ar", strconv.Itoa(SampleRate),
		"-ac", "1",
		"-c:a", "pcm_s16le",
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outputPath)
		return "", apperr.Wrap(fmt.Errorf("%v\nOutput: %s", err, Truncate(string(output), maxDiagnostic)),
			apperr.CodeExternal, "ffmpeg", "conversion failed")
	}

	return outputPath, nil
}

// ExtractRange cuts [start, end] seconds out of a normalized WAV into a new temp WAV
func (f *FFmpeg) ExtractRange(ctx context.Context, wavPath string, start, end float64) (string, error) {
	outputPath := f.tempPath("chunk")

	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.Command,
		"-y",
		"-i", wavPath,
		"-ss", strconv.FormatFloat(start, 'f', 3, 64),
		"-to", strconv.FormatFloat(end, 'f', 3, 64),
		"-ar", strconv.Itoa(SampleRate),
		"-ac", "1",
		"-c:a", "pcm_s16le",
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outputPath)
		return "", apperr.Wrap(fmt.Errorf("%v\nOutput: %s", err, Truncate(string(output), maxDiagnostic)),
			apperr.CodeExternal, "ffmpeg", fmt.Sprintf("chunk %.1f-%.1f extraction failed", start, end))
	}
	return outputPath, nil
}

func (f *FFmpeg) tempPath(prefix string) string {
	return filepath.Join(f.TmpDir, fmt.Sprintf("%s_%s.wav", prefix, uuid.New().String()))
}

// Truncate cuts s to at most n bytes
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
