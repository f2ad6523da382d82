package pipeline

import (
	"context"
	"time"

	"github.com/codebuildervaibhav/memoant/internal/types"
)

// Converter produces canonical WAV files
type Converter interface {
	NormalizeAudio(ctx context.Context, inputPath string) (string, error)
	ExtractRange(ctx context.Context, wavPath string, start, end float64) (string, error)
}

// VAD detects speech in a canonical WAV
type VAD interface {
	DetectSpeech(ctx context.Context, wavPath string) ([]types.SpeechSegment, error)
}

// Transcriber turns a WAV into text with word timestamps
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (*types.Transcript, error)
}

// Diarizer attributes time ranges to anonymous speakers
type Diarizer interface {
	Diarize(ctx context.Context, wavPath string) ([]types.DiarizationSegment, error)
}

// Structurer extracts structured fields. It reports failure through
// Structured.Error instead of an error return.
type Structurer interface {
	Extract(ctx context.Context, transcript string) types.Structured
}

// CalendarMatcher looks up an event overlapping the recording
type CalendarMatcher interface {
	FindOverlapping(ctx context.Context, recordedAt time.Time, durationSeconds float64) (*types.CalendarMatch, error)
}

// RecordStore persists processing records keyed by file ID
type RecordStore interface {
	Exists(ctx context.Context, fileID string) (bool, error)
	Upsert(ctx context.Context, rec *types.ProcessingRecord) error
}

// NoteWriter renders a record to a note file
type NoteWriter interface {
	Write(rec *types.ProcessingRecord) (string, error)
}

// Archiver keeps a copy of the source file
type Archiver interface {
	Archive(src string) (string, bool, error)
}

// NoteUploader mirrors a note to remote storage
type NoteUploader interface {
	UploadNote(ctx context.Context, notePath string, recordedAt time.Time) (string, error)
}
