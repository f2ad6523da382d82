package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codebuildervaibhav/memoant/internal/apperr"
	"github.com/codebuildervaibhav/memoant/internal/types"
)

const diarizeTimeout = time.Hour

// CommandDiarizer runs an external speaker diarization program (typically a
// pyannote wrapper reading HUGGINGFACE_TOKEN) that prints a JSON array of
// {"start","end","speaker"} objects for the WAV path it is given.
type CommandDiarizer struct {
	Command string
}

// Diarize returns speaker segments for the WAV file
func (d *CommandDiarizer) Diarize(ctx context.Context, wavPath string) ([]types.DiarizationSegment, error) {
	if d.Command == "" {
		return nil, apperr.New(apperr.CodePrecondition, "diarize", "processing.diarize_command is not configured")
	}
	out, err := runJSONCommand(ctx, d.Command, diarizeTimeout, wavPath)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeExternal, "diarize", "diarization failed")
	}
	return ParseDiarization(out)
}

// ParseDiarization decodes diarization output and drops empty segments
func ParseDiarization(data []byte) ([]types.DiarizationSegment, error) {
	var raw []types.DiarizationSegment
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse diarization output: %w", err)
	}
	segments := raw[:0]
	for _, s := range raw {
		if s.End > s.Start && s.Speaker != "" {
			segments = append(segments, s)
		}
	}
	return segments, nil
}
