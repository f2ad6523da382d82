// Package pipeline turns a recording into a stored record and a note.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/memoant/internal/apperr"
	"github.com/codebuildervaibhav/memoant/internal/chunker"
	"github.com/codebuildervaibhav/memoant/internal/merge"
	"github.com/codebuildervaibhav/memoant/internal/transcription"
	"github.com/codebuildervaibhav/memoant/internal/types"
)

const (
	// minSpeechSeconds is the speech floor below which a file is reported as no_speech
	minSpeechSeconds = 1.0
	// minDiarizeSeconds is the duration at or below which diarization is skipped
	minDiarizeSeconds = 10.0

	uploadAttempts = 3
)

// Options control a single Process call
type Options struct {
	Force           bool
	SkipDiarization bool
	Mode            types.Mode
}

// Result summarizes a Process call
type Result struct {
	Status           string                 `json:"status"`
	FileID           string                 `json:"file_id"`
	SourceFile       string                 `json:"source_file"`
	Duration         float64                `json:"duration"`
	SpeechSeconds    float64                `json:"speech_seconds,omitempty"`
	Chunks           int                    `json:"chunks,omitempty"`
	WordCount        int                    `json:"word_count,omitempty"`
	SpeakerCount     int                    `json:"speaker_count,omitempty"`
	Sphere           types.Sphere           `json:"sphere,omitempty"`
	ConversationType types.ConversationType `json:"conversation_type,omitempty"`
	Summary          string                 `json:"summary,omitempty"`
	CalendarTitle    string                 `json:"calendar_title,omitempty"`
	NotePath         string                 `json:"note_path,omitempty"`
	ArchivePath      string                 `json:"archive_path,omitempty"`
	DriveURL         string                 `json:"drive_url,omitempty"`
	ProcessingTime   float64                `json:"processing_time"`
	Error            string                 `json:"error,omitempty"`
	Warnings         []string               `json:"warnings,omitempty"`
}

// Deps are the collaborators of the orchestrator. Uploader may be nil.
type Deps struct {
	Converter   Converter
	VAD         VAD
	Transcriber Transcriber
	Diarizer    Diarizer
	Structurer  Structurer
	Calendar    CalendarMatcher
	Store       RecordStore
	Notes       NoteWriter
	Archive     Archiver
	Uploader    NoteUploader
}

// Settings are the tunables of the orchestrator
type Settings struct {
	MaxChunkSeconds float64
	MinSilenceMs    float64
	ModelWhisper    string
	ModelLLM        string
}

// Orchestrator sequences every stage for one file at a time per call.
// Concurrent calls on different files are safe when the collaborators are.
type Orchestrator struct {
	deps     Deps
	settings Settings
	log      *logrus.Logger

	probeDuration func(path string) (float64, error)
	backoff       func(attempt int) time.Duration
	now           func() time.Time
}

// New creates an orchestrator
func New(deps Deps, settings Settings, log *logrus.Logger) *Orchestrator {
	if settings.MaxChunkSeconds <= 0 {
		settings.MaxChunkSeconds = chunker.DefaultMaxChunkSeconds
	}
	if settings.MinSilenceMs <= 0 {
		settings.MinSilenceMs = chunker.DefaultMinSilenceMs
	}
	return &Orchestrator{
		deps:          deps,
		settings:      settings,
		log:           log,
		probeDuration: transcription.WAVDuration,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
		now: time.Now,
	}
}

// Process runs the full pipeline on inputPath.
//
// Dedup hits return StatusSkipped and recordings with less than a second of
// speech return StatusNoSpeech; neither writes to the store. Conversion,
// detection and transcription failures abort with an error and leave the
// store untouched. Diarization and structuring failures degrade the record
// instead of failing the call.
func (o *Orchestrator) Process(ctx context.Context, inputPath string, opts Options) (*Result, error) {
	started := o.now()
	if opts.Mode == "" {
		opts.Mode = types.ModeAuto
	}

	log := o.log.WithField("file", filepath.Base(inputPath))

	// temp artifacts are removed on every exit path
	var tmpFiles []string
	defer func() {
		for _, f := range tmpFiles {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				log.WithError(err).Warn("failed to remove temp file")
			}
		}
	}()

	// Step 1: Hash for dedup
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeNotFound, "process", "cannot read input")
	}
	fileID, err := FileHash(inputPath)
	if err != nil {
		return nil, err
	}
	log = log.WithField("file_id", fileID[:16])

	result := &Result{FileID: fileID, SourceFile: filepath.Base(inputPath)}

	if !opts.Force {
		exists, err := o.deps.Store.Exists(ctx, fileID)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeIO, "process", "dedup check failed")
		}
		if exists {
			log.Info("already processed, skipping")
			result.Status = types.StatusSkipped
			return result, nil
		}
	}

	sourcePath, err := filepath.Abs(inputPath)
	if err != nil {
		sourcePath = inputPath
	}

	// Step 2: Convert to WAV
	log.Info("converting to wav")
	wavPath, err := o.deps.Converter.NormalizeAudio(ctx, inputPath)
	if err != nil {
		return nil, err
	}
	tmpFiles = append(tmpFiles, wavPath)

	duration, err := o.probeDuration(wavPath)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeIO, "process", "cannot read normalized audio")
	}
	result.Duration = duration

	// Step 3: VAD
	if err := stageCheck(ctx, "vad"); err != nil {
		return nil, err
	}
	speech, err := o.deps.VAD.DetectSpeech(ctx, wavPath)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeExternal, "process", "speech detection failed")
	}
	result.SpeechSeconds = transcription.TotalSpeech(speech)
	log.WithFields(logrus.Fields{
		"duration": fmt.Sprintf("%.1fs", duration),
		"speech":   fmt.Sprintf("%.1fs", result.SpeechSeconds),
		"segments": len(speech),
	}).Info("speech detected")

	if result.SpeechSeconds < minSpeechSeconds {
		log.Info("less than 1 second of speech, skipping")
		result.Status = types.StatusNoSpeech
		result.ProcessingTime = o.now().Sub(started).Seconds()
		return result, nil
	}

	// Step 4: Plan chunks
	gaps := chunker.FindSilenceGaps(speech, o.settings.MinSilenceMs)
	chunks := chunker.PlanChunks(duration, gaps, o.settings.MaxChunkSeconds)
	result.Chunks = len(chunks)

	// Step 5: Transcribe
	if err := stageCheck(ctx, "transcribe"); err != nil {
		return nil, err
	}
	transcript, err := o.transcribe(ctx, log, wavPath, chunks, &tmpFiles)
	if err != nil {
		return nil, err
	}
	plainText := transcript.Text
	wordCount := len(strings.Fields(plainText))

	// Step 6 and 7: Diarization and merge
	speakers, speakerTranscript, segments := o.attributeSpeakers(ctx, log, wavPath, duration, transcript, opts)

	// Step 8: LLM structuring
	if err := stageCheck(ctx, "structure"); err != nil {
		return nil, err
	}
	input := speakerTranscript
	if input == "" {
		input = plainText
	}
	structured := o.deps.Structurer.Extract(ctx, input)
	if structured.Degraded() {
		log.WithField("error", structured.Error).Warn("structuring degraded")
	}
	switch opts.Mode {
	case types.ModeMeeting:
		structured.ConversationType = types.ConversationMeeting
	case types.ModeDictation:
		structured.ConversationType = types.ConversationDictation
	}

	// Step 9: Calendar match
	recAt := recordedAt(info)
	var cal types.CalendarMatch
	if o.deps.Calendar != nil {
		match, err := o.deps.Calendar.FindOverlapping(ctx, recAt, duration)
		if err != nil {
			log.WithError(err).Warn("calendar lookup failed")
		} else if match != nil {
			cal = *match
			log.WithField("event", match.Title).Info("calendar match")
		}
	}

	// Step 10: Persist
	rec := &types.ProcessingRecord{
		FileID:             fileID,
		SourceFile:         result.SourceFile,
		SourcePath:         sourcePath,
		RecordedAt:         recAt,
		DurationSeconds:    duration,
		ProcessedAt:        o.now().UTC(),
		Transcript:         speakerTranscript,
		TranscriptPlain:    plainText,
		WordCount:          wordCount,
		SpeakerCount:       len(speakers),
		Speakers:           speakers,
		Segments:           segments,
		Structured:         structured,
		CalendarEventID:    cal.EventID,
		CalendarEventTitle: cal.Title,
		ModelWhisper:       o.settings.ModelWhisper,
		ModelLLM:           o.settings.ModelLLM,
	}
	rec.ProcessingTimeSeconds = o.now().Sub(started).Seconds()

	if err := stageCheck(ctx, "persist"); err != nil {
		return nil, err
	}
	if err := o.deps.Store.Upsert(ctx, rec); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeIO, "process", "failed to persist record")
	}

	// Step 11: Note, archive, upload
	o.finish(ctx, log, inputPath, rec, result)

	result.Status = types.StatusProcessed
	result.WordCount = wordCount
	result.SpeakerCount = rec.SpeakerCount
	result.Sphere = structured.Sphere
	result.ConversationType = structured.ConversationType
	result.Summary = structured.Summary
	result.CalendarTitle = cal.Title
	result.Error = structured.Error
	result.ProcessingTime = o.now().Sub(started).Seconds()

	log.WithFields(logrus.Fields{
		"words":    wordCount,
		"speakers": rec.SpeakerCount,
		"sphere":   structured.Sphere,
		"type":     structured.ConversationType,
		"elapsed":  fmt.Sprintf("%.1fs", result.ProcessingTime),
	}).Info("processing complete")
	return result, nil
}

// transcribe runs one call for a single chunk, otherwise one per chunk with
// timestamps shifted back onto the recording's timeline.
func (o *Orchestrator) transcribe(ctx context.Context, log *logrus.Entry, wavPath string, chunks []types.Chunk, tmpFiles *[]string) (*types.Transcript, error) {
	if len(chunks) == 1 {
		log.Info("transcribing")
		t, err := o.deps.Transcriber.Transcribe(ctx, wavPath)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeExternal, "process", "transcription failed")
		}
		return t, nil
	}

	combined := &types.Transcript{Segments: []types.Segment{}, Words: []types.WordToken{}}
	var texts []string
	for i, c := range chunks {
		if err := stageCheck(ctx, "transcribe"); err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{
			"chunk": fmt.Sprintf("%d/%d", i+1, len(chunks)),
			"range": fmt.Sprintf("%.0fs-%.0fs", c.Start, c.End),
		}).Info("transcribing chunk")

		chunkPath, err := o.deps.Converter.ExtractRange(ctx, wavPath, c.Start, c.End)
		if err != nil {
			return nil, err
		}
		*tmpFiles = append(*tmpFiles, chunkPath)

		t, err := o.deps.Transcriber.Transcribe(ctx, chunkPath)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeExternal, "process", fmt.Sprintf("transcription of chunk %d failed", i+1))
		}
		os.Remove(chunkPath)

		if text := strings.TrimSpace(t.Text); text != "" {
			texts = append(texts, text)
		}
		if combined.Language == "" {
			combined.Language = t.Language
		}
		for _, w := range t.Words {
			w.Start += c.Start
			w.End += c.Start
			combined.Words = append(combined.Words, w)
		}
		for _, s := range t.Segments {
			s.Start += c.Start
			s.End += c.Start
			combined.Segments = append(combined.Segments, s)
		}
	}
	combined.Text = strings.Join(texts, " ")
	return combined, nil
}

// attributeSpeakers diarizes when allowed and merges speakers into the
// transcript. Any failure falls back to one implicit speaker.
func (o *Orchestrator) attributeSpeakers(ctx context.Context, log *logrus.Entry, wavPath string, duration float64, t *types.Transcript, opts Options) ([]string, string, []types.ConversationSegment) {
	single := func() ([]string, string, []types.ConversationSegment) {
		return []string{types.DefaultSpeaker}, t.Text, []types.ConversationSegment{{
			Speaker: types.DefaultSpeaker,
			Start:   0,
			End:     duration,
			Text:    t.Text,
		}}
	}

	if opts.SkipDiarization || duration <= minDiarizeSeconds || opts.Mode == types.ModeDictation || o.deps.Diarizer == nil {
		return single()
	}

	log.Info("diarizing")
	diar, err := o.deps.Diarizer.Diarize(ctx, wavPath)
	if err != nil {
		log.WithError(err).Warn("diarization failed, proceeding with a single speaker")
		return single()
	}
	speakers := merge.SpeakerLabels(diar)
	if len(speakers) == 0 {
		return single()
	}
	log.WithField("speakers", strings.Join(speakers, ", ")).Info("diarization complete")

	if len(t.Words) == 0 {
		_, text, segs := single()
		return speakers, text, segs
	}
	labeled := merge.AssignSpeakers(t.Words, diar)
	return speakers, merge.BuildSpeakerTranscript(labeled), merge.BuildSegments(labeled)
}

// finish writes the note, archives the source and uploads the note.
// The record is already stored, so failures here only add warnings.
func (o *Orchestrator) finish(ctx context.Context, log *logrus.Entry, inputPath string, rec *types.ProcessingRecord, result *Result) {
	if o.deps.Notes != nil {
		notePath, err := o.deps.Notes.Write(rec)
		if err != nil {
			log.WithError(err).Warn("note generation failed")
			result.Warnings = append(result.Warnings, "note: "+err.Error())
		} else {
			result.NotePath = notePath
			log.WithField("note", notePath).Info("note written")
		}
	}

	if o.deps.Archive != nil {
		archived, copied, err := o.deps.Archive.Archive(inputPath)
		if err != nil {
			log.WithError(err).Warn("archive failed")
			result.Warnings = append(result.Warnings, "archive: "+err.Error())
		} else {
			result.ArchivePath = archived
			if copied {
				log.WithField("archive", archived).Info("archived source")
			}
		}
	}

	if o.deps.Uploader != nil && result.NotePath != "" {
		var err error
		for attempt := 1; attempt <= uploadAttempts; attempt++ {
			result.DriveURL, err = o.deps.Uploader.UploadNote(ctx, result.NotePath, rec.RecordedAt)
			if err == nil {
				break
			}
			log.WithError(err).Warnf("note upload attempt %d/%d failed", attempt, uploadAttempts)
			if attempt < uploadAttempts {
				select {
				case <-ctx.Done():
					attempt = uploadAttempts
				case <-time.After(o.backoff(attempt)):
				}
			}
		}
		if err != nil {
			result.Warnings = append(result.Warnings, "upload: "+err.Error())
		}
	}
}

// FileHash returns the SHA-256 hex digest of the file's contents
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", apperr.Wrap(err, apperr.CodeIO, "hash", "cannot open input")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", apperr.Wrap(err, apperr.CodeIO, "hash", "cannot read input")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func stageCheck(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(err, apperr.CodeCancelled, "process", "cancelled before "+stage)
	}
	return nil
}
