package types

import "time"

// Processing status constants
const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusNoSpeech  = "no_speech"
)

// UnknownSpeaker labels words no diarization segment covers
const UnknownSpeaker = "UNKNOWN"

// DefaultSpeaker is used when diarization does not run
const DefaultSpeaker = "SPEAKER_00"

// Mode is the processing hint given at record or process time
type Mode string

const (
	ModeAuto      Mode = "auto"
	ModeMeeting   Mode = "meeting"
	ModeDictation Mode = "dictation"
)

// ParseMode validates a mode string. An empty string yields ok=false.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeAuto, ModeMeeting, ModeDictation:
		return Mode(s), true
	}
	return "", false
}

// Recording type constants
const (
	RecordingAudio  = "audio"
	RecordingScreen = "screen"
)

// SpeechSegment is a span of detected speech, in seconds
type SpeechSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SilenceGap is the silence between two consecutive speech segments
type SilenceGap struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	DurationMs float64 `json:"duration_ms"`
}

// Midpoint returns the center of the gap
func (g SilenceGap) Midpoint() float64 {
	return (g.Start + g.End) / 2
}

// Chunk is a sub-range of a recording transcribed on its own
type Chunk struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// WordToken is a transcribed word with timestamps
type WordToken struct {
	Text    string  `json:"word"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker,omitempty"`
}

// Segment represents a timestamped segment of transcription
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the output of the transcription engine
type Transcript struct {
	Text     string      `json:"text"`
	Language string      `json:"language,omitempty"`
	Segments []Segment   `json:"segments"`
	Words    []WordToken `json:"words"`
}

// DiarizationSegment is a time range attributed to an anonymous speaker
type DiarizationSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// ConversationSegment is one contiguous speaker turn
type ConversationSegment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// CalendarMatch is a calendar event overlapping a recording
type CalendarMatch struct {
	EventID string `json:"event_id"`
	Title   string `json:"title"`
}

// ProcessingRecord is the durable output of the pipeline, keyed by FileID
type ProcessingRecord struct {
	FileID                string                `json:"file_id"`
	SourceFile            string                `json:"source_file"`
	SourcePath            string                `json:"source_path"`
	RecordedAt            time.Time             `json:"recorded_at"`
	DurationSeconds       float64               `json:"duration_seconds"`
	ProcessedAt           time.Time             `json:"processed_at"`
	Transcript            string                `json:"transcript"`
	TranscriptPlain       string                `json:"transcript_plain"`
	WordCount             int                   `json:"word_count"`
	SpeakerCount          int                   `json:"speaker_count"`
	Speakers              []string              `json:"speakers"`
	Segments              []ConversationSegment `json:"segments"`
	CalendarEventID       string                `json:"calendar_event_id,omitempty"`
	CalendarEventTitle    string                `json:"calendar_event_title,omitempty"`
	ProcessingTimeSeconds float64               `json:"processing_time_seconds"`
	ModelWhisper          string                `json:"model_whisper"`
	ModelLLM              string                `json:"model_llm"`

	Structured
}

// RecordingState is the durable record of the active capture process
type RecordingState struct {
	PID            int     `json:"pid"`
	Path           string  `json:"path"`
	StartTime      float64 `json:"start_time"`
	StartedAt      string  `json:"started_at"`
	Mode           Mode    `json:"mode"`
	Device         string  `json:"device"`
	RecordingType  string  `json:"recording_type"`
	WindowSelector string  `json:"window_selector,omitempty"`
}

// Elapsed returns the time since the capture started
func (s *RecordingState) Elapsed(now time.Time) time.Duration {
	started := time.Unix(0, int64(s.StartTime*float64(time.Second)))
	return now.Sub(started)
}
