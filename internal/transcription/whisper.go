package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/memoant/internal/apperr"
	"github.com/codebuildervaibhav/memoant/internal/types"
)

const whisperTimeout = 2 * time.Hour

// WhisperTranscriber wraps the OpenAI Whisper CLI for word-level transcription
type WhisperTranscriber struct {
	command  []string
	model    string
	language string
	tmpDir   string
	log      *logrus.Logger
	mu       sync.Mutex // one model in memory at a time
}

// NewWhisperTranscriber creates a transcriber. command may carry arguments,
// e.g. "python -m whisper" or "'/opt/my tools/whisper' --fp16 False".
func NewWhisperTranscriber(command, model, language, tmpDir string, log *logrus.Logger) (*WhisperTranscriber, error) {
	if command == "" {
		command = "whisper"
	}
	fields, err := SplitCommand(command)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = "en"
	}
	return &WhisperTranscriber{
		command:  fields,
		model:    model,
		language: language,
		tmpDir:   tmpDir,
		log:      log,
	}, nil
}

// Model returns the model identifier recorded on processing records
func (wt *WhisperTranscriber) Model() string {
	return wt.model
}

// Transcribe processes a WAV file and returns text, segments and word timestamps
func (wt *WhisperTranscriber) Transcribe(ctx context.Context, wavPath string) (*types.Transcript, error) {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	outDir := filepath.Join(wt.tmpDir, "whisper_"+uuid.New().String())
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	absPath, err := filepath.Abs(wavPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, whisperTimeout)
	defer cancel()

	args := append(append([]string{}, wt.command[1:]...),
		absPath,
		"--model", wt.model,
		"--output_dir", outDir,
		"--output_format", "json",
		"--word_timestamps", "True",
		"--condition_on_previous_text", "True",
		"--language", wt.language,
		"--fp16", "False",
	)
	cmd := exec.CommandContext(ctx, wt.command[0], args...)

	wt.log.WithField("file", filepath.Base(wavPath)).Debug("running whisper")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, apperr.Wrap(fmt.Errorf("%v\nOutput: %s", err, Truncate(string(output), maxDiagnostic)),
			apperr.CodeExternal, "whisper", "transcription failed")
	}

	baseName := strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))
	jsonData, err := os.ReadFile(filepath.Join(outDir, baseName+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}

	result, err := ParseWhisperJSON(jsonData)
	if err != nil {
		return nil, err
	}
	wt.log.WithFields(logrus.Fields{
		"segments": len(result.Segments),
		"words":    len(result.Words),
	}).Debug("transcription completed")
	return result, nil
}

// WhisperOutput matches Whisper's JSON output format
type WhisperOutput struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []WhisperSegment `json:"segments"`
}

// WhisperSegment represents a timestamped segment from Whisper
type WhisperSegment struct {
	ID    int           `json:"id"`
	Start float64       `json:"start"`
	End   float64       `json:"end"`
	Text  string        `json:"text"`
	Words []WhisperWord `json:"words"`
}

// WhisperWord is a word with timestamps, present with --word_timestamps
type WhisperWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// ParseWhisperJSON converts Whisper's JSON into a Transcript, flattening
// per-segment words into one ordered list.
func ParseWhisperJSON(data []byte) (*types.Transcript, error) {
	var out WhisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper JSON: %w", err)
	}

	result := &types.Transcript{
		Text:     strings.TrimSpace(out.Text),
		Language: out.Language,
		Segments: make([]types.Segment, 0, len(out.Segments)),
		Words:    []types.WordToken{},
	}
	for _, seg := range out.Segments {
		result.Segments = append(result.Segments, types.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
		for _, w := range seg.Words {
			result.Words = append(result.Words, types.WordToken{
				Text:  strings.TrimSpace(w.Word),
				Start: w.Start,
				End:   w.End,
			})
		}
	}
	return result, nil
}
