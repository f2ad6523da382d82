package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/memoant/internal/types"
)

// TimeLayout is how timestamps are stored in TEXT columns
const TimeLayout = time.RFC3339

// RecordStore persists processing records in the os_audio_logs table
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore opens (or creates) the SQLite database at dbPath in WAL mode
func NewRecordStore(dbPath string) (*RecordStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single writer keeps SQLITE_BUSY away when several workers persist at once
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS os_audio_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id TEXT UNIQUE NOT NULL,
		source_file TEXT NOT NULL,
		source_path TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		duration_seconds REAL NOT NULL,
		processed_at TEXT NOT NULL,
		transcript TEXT NOT NULL,
		transcript_plain TEXT NOT NULL,
		word_count INTEGER NOT NULL,
		speaker_count INTEGER DEFAULT 1,
		speakers TEXT,
		segments TEXT NOT NULL,
		summary TEXT,
		topics TEXT,
		action_items TEXT,
		decisions TEXT,
		entities TEXT,
		key_quotes TEXT,
		sphere TEXT,
		tags TEXT,
		sentiment TEXT,
		conversation_type TEXT,
		calendar_event_id TEXT,
		calendar_event_title TEXT,
		processing_time_seconds REAL,
		model_whisper TEXT DEFAULT 'large-v3-turbo',
		model_llm TEXT DEFAULT 'llama3.1:8b',
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audio_recorded_at ON os_audio_logs(recorded_at);
	CREATE INDEX IF NOT EXISTS idx_audio_sphere ON os_audio_logs(sphere);
	CREATE INDEX IF NOT EXISTS idx_audio_type ON os_audio_logs(conversation_type);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &RecordStore{db: db}, nil
}

// Exists reports whether a record with fileID has been stored
func (s *RecordStore) Exists(ctx context.Context, fileID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM os_audio_logs WHERE file_id = ?`, fileID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check record: %w", err)
	}
	return true, nil
}

// Upsert writes the full record, replacing every column of an existing row
// with the same file_id. The write happens in one transaction.
func (s *RecordStore) Upsert(ctx context.Context, rec *types.ProcessingRecord) error {
	query := `
	INSERT INTO os_audio_logs (
		file_id, source_file, source_path, recorded_at, duration_seconds,
		processed_at, transcript, transcript_plain, word_count,
		speaker_count, speakers, segments, summary, topics,
		action_items, decisions, entities, key_quotes, sphere, tags,
		sentiment, conversation_type, calendar_event_id, calendar_event_title,
		processing_time_seconds, model_whisper, model_llm, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(file_id) DO UPDATE SET
		source_file = excluded.source_file,
		source_path = excluded.source_path,
		recorded_at = excluded.recorded_at,
		duration_seconds = excluded.duration_seconds,
		processed_at = excluded.processed_at,
		transcript = excluded.transcript,
		transcript_plain = excluded.transcript_plain,
		word_count = excluded.word_count,
		speaker_count = excluded.speaker_count,
		speakers = excluded.speakers,
		segments = excluded.segments,
		summary = excluded.summary,
		topics = excluded.topics,
		action_items = excluded.action_items,
		decisions = excluded.decisions,
		entities = excluded.entities,
		key_quotes = excluded.key_quotes,
		sphere = excluded.sphere,
		tags = excluded.tags,
		sentiment = excluded.sentiment,
		conversation_type = excluded.conversation_type,
		calendar_event_id = excluded.calendar_event_id,
		calendar_event_title = excluded.calendar_event_title,
		processing_time_seconds = excluded.processing_time_seconds,
		model_whisper = excluded.model_whisper,
		model_llm = excluded.model_llm,
		error = excluded.error
	`

	segments, err := json.Marshal(nonNilSegments(rec.Segments))
	if err != nil {
		return fmt.Errorf("failed to encode segments: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, query,
		rec.FileID, rec.SourceFile, rec.SourcePath,
		rec.RecordedAt.UTC().Format(TimeLayout), rec.DurationSeconds,
		rec.ProcessedAt.UTC().Format(TimeLayout), rec.Transcript, rec.TranscriptPlain, rec.WordCount,
		rec.SpeakerCount, jsonList(rec.Speakers), string(segments), nullString(rec.Summary),
		jsonList(rec.Topics), jsonList(rec.ActionItems), jsonList(rec.Decisions),
		jsonList(rec.Entities), jsonList(rec.KeyQuotes), nullString(string(rec.Sphere)),
		jsonList(rec.Tags), nullString(rec.Sentiment), nullString(string(rec.ConversationType)),
		nullString(rec.CalendarEventID), nullString(rec.CalendarEventTitle),
		rec.ProcessingTimeSeconds, rec.ModelWhisper, rec.ModelLLM, nullString(rec.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit record: %w", err)
	}
	return nil
}

const selectColumns = `
	file_id, source_file, source_path, recorded_at, duration_seconds,
	processed_at, transcript, transcript_plain, word_count,
	speaker_count, speakers, segments, summary, topics,
	action_items, decisions, entities, key_quotes, sphere, tags,
	sentiment, conversation_type, calendar_event_id, calendar_event_title,
	processing_time_seconds, model_whisper, model_llm, error
`

// Get retrieves a record by file ID. A missing record yields (nil, nil).
func (s *RecordStore) Get(ctx context.Context, fileID string) (*types.ProcessingRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM os_audio_logs WHERE file_id = ?`, fileID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// List returns the most recent records by recording time
func (s *RecordStore) List(ctx context.Context, limit int) ([]*types.ProcessingRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM os_audio_logs ORDER BY recorded_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := []*types.ProcessingRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of stored records
func (s *RecordStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM os_audio_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// DB exposes the connection for other readers of the same database
func (s *RecordStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *RecordStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*types.ProcessingRecord, error) {
	var (
		rec                                                         types.ProcessingRecord
		recordedAt, processedAt, segments                           string
		speakers, topics, actions, decisions, entities, quotes      sql.NullString
		tags, summary, sphere, sentiment, convType, calID, calTitle sql.NullString
		modelWhisper, modelLLM, errText                             sql.NullString
		speakerCount                                                sql.NullInt64
		procTime                                                    sql.NullFloat64
	)

	err := row.Scan(
		&rec.FileID, &rec.SourceFile, &rec.SourcePath, &recordedAt, &rec.DurationSeconds,
		&processedAt, &rec.Transcript, &rec.TranscriptPlain, &rec.WordCount,
		&speakerCount, &speakers, &segments, &summary, &topics,
		&actions, &decisions, &entities, &quotes, &sphere, &tags,
		&sentiment, &convType, &calID, &calTitle,
		&procTime, &modelWhisper, &modelLLM, &errText,
	)
	if err != nil {
		return nil, err
	}

	rec.RecordedAt, _ = time.Parse(TimeLayout, recordedAt)
	rec.ProcessedAt, _ = time.Parse(TimeLayout, processedAt)
	rec.SpeakerCount = int(speakerCount.Int64)
	rec.ProcessingTimeSeconds = procTime.Float64
	rec.ModelWhisper = modelWhisper.String
	rec.ModelLLM = modelLLM.String

	if err := json.Unmarshal([]byte(segments), &rec.Segments); err != nil {
		return nil, fmt.Errorf("failed to decode segments: %w", err)
	}
	rec.Speakers = parseList(speakers)
	rec.Topics = parseList(topics)
	rec.ActionItems = parseList(actions)
	rec.Decisions = parseList(decisions)
	rec.Entities = parseList(entities)
	rec.KeyQuotes = parseList(quotes)
	rec.Tags = parseList(tags)

	rec.Summary = summary.String
	rec.Sphere = types.Sphere(sphere.String)
	rec.Sentiment = sentiment.String
	rec.ConversationType = types.ConversationType(convType.String)
	rec.CalendarEventID = calID.String
	rec.CalendarEventTitle = calTitle.String
	rec.Error = errText.String
	return &rec, nil
}

// jsonList encodes a list column; an empty list is stored as NULL
func jsonList(items []string) any {
	if len(items) == 0 {
		return nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	return string(b)
}

func parseList(v sql.NullString) []string {
	out := []string{}
	if v.Valid && v.String != "" {
		json.Unmarshal([]byte(v.String), &out)
	}
	return out
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNilSegments(s []types.ConversationSegment) []types.ConversationSegment {
	if s == nil {
		return []types.ConversationSegment{}
	}
	return s
}
