package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"time"

	"github.com/codebuildervaibhav/memoant/internal/apperr"
	"github.com/codebuildervaibhav/memoant/internal/types"
)

const (
	// DefaultEnergyThreshold is the fraction of peak frame RMS counted as speech
	DefaultEnergyThreshold = 0.1
	// DefaultFloorDBFS is the level below which a frame is never speech
	DefaultFloorDBFS = -45.0

	vadTimeout = 10 * time.Minute
)

// EnergyVAD is a built-in voice activity detector over RMS frame energy.
// A frame is speech when its RMS exceeds Threshold times the loudest frame's RMS
// and is above FloorDBFS, so steady room noise never counts as speech.
type EnergyVAD struct {
	Threshold   float64
	FloorDBFS   float64
	FrameMs     int
	MinSpeechMs int
	// HangoverMs keeps a segment open across short dips
	HangoverMs int
}

// NewEnergyVAD returns a detector with the defaults used for 16kHz speech
func NewEnergyVAD(threshold float64) *EnergyVAD {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultEnergyThreshold
	}
	return &EnergyVAD{
		Threshold:   threshold,
		FloorDBFS:   DefaultFloorDBFS,
		FrameMs:     30,
		MinSpeechMs: 250,
		HangoverMs:  200,
	}
}

// DetectSpeech returns speech segments in seconds
func (v *EnergyVAD) DetectSpeech(ctx context.Context, wavPath string) ([]types.SpeechSegment, error) {
	frames, err := readFrameEnergy(ctx, wavPath, v.FrameMs)
	if err != nil {
		return nil, err
	}
	return v.detect(frames), nil
}

func (v *EnergyVAD) detect(frames *frameEnergy) []types.SpeechSegment {
	if frames == nil || len(frames.rms) == 0 || frames.frameSec <= 0 {
		return nil
	}

	peak := 0.0
	for _, e := range frames.rms {
		peak = max(peak, e)
	}
	cutoff := max(peak*v.Threshold, math.Pow(10, v.FloorDBFS/20))
	if peak < cutoff {
		return nil
	}

	hangover := v.HangoverMs / v.FrameMs
	nFrames := len(frames.rms)

	var segments []types.SpeechSegment
	start, quiet := -1, 0
	closeAt := func(endFrame int) {
		seg := types.SpeechSegment{
			Start: float64(start) * frames.frameSec,
			End:   math.Min(float64(endFrame)*frames.frameSec, frames.duration),
		}
		if (seg.End-seg.Start)*1000 >= float64(v.MinSpeechMs) {
			segments = append(segments, seg)
		}
		start = -1
	}

	for i, e := range frames.rms {
		switch {
		case e >= cutoff:
			if start < 0 {
				start = i
			}
			quiet = 0
		case start >= 0:
			quiet++
			if quiet > hangover {
				closeAt(i - quiet + 1)
				quiet = 0
			}
		}
	}
	if start >= 0 {
		closeAt(nFrames - quiet)
	}
	return segments
}

// CommandVAD delegates detection to an external program that prints
// a JSON array of {"start","end"} objects for the WAV path it is given.
type CommandVAD struct {
	Command string
}

// DetectSpeech runs the configured command
func (v *CommandVAD) DetectSpeech(ctx context.Context, wavPath string) ([]types.SpeechSegment, error) {
	out, err := runJSONCommand(ctx, v.Command, vadTimeout, wavPath)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeExternal, "vad", "speech detection failed")
	}
	var segments []types.SpeechSegment
	if err := json.Unmarshal(out, &segments); err != nil {
		return nil, fmt.Errorf("failed to parse vad output: %w", err)
	}
	return segments, nil
}

// TotalSpeech sums the length of the segments in seconds
func TotalSpeech(segments []types.SpeechSegment) float64 {
	total := 0.0
	for _, s := range segments {
		total += s.End - s.Start
	}
	return total
}

// runJSONCommand runs a shell-quoted command line with arg appended and returns stdout
func runJSONCommand(ctx context.Context, command string, timeout time.Duration, arg string) ([]byte, error) {
	fields, err := SplitCommand(command)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, fields[0], append(fields[1:], arg)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %v\nOutput: %s", fields[0], err, Truncate(stderr.String(), maxDiagnostic))
	}
	return stdout.Bytes(), nil
}
