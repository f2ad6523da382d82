package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/codebuildervaibhav/memoant/internal/types"
)

// NoteWriter renders processing records as markdown notes with YAML frontmatter
type NoteWriter struct {
	dir string
}

// NewNoteWriter creates a note writer for dir
func NewNoteWriter(dir string) *NoteWriter {
	return &NoteWriter{dir: dir}
}

// Write saves the note for rec and returns its path. Existing notes are never
// overwritten; a " (N)" suffix is added instead.
func (nw *NoteWriter) Write(rec *types.ProcessingRecord) (string, error) {
	if err := os.MkdirAll(nw.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create notes directory: %w", err)
	}

	title := NoteTitle(rec)
	datePrefix := rec.RecordedAt.Format("2006-01-02")
	if rec.RecordedAt.IsZero() {
		datePrefix = time.Now().Format("2006-01-02")
	}

	base := fmt.Sprintf("%s %s", datePrefix, sanitizeFilename(title))
	path := filepath.Join(nw.dir, base+".md")
	for n := 2; fileExists(path); n++ {
		path = filepath.Join(nw.dir, fmt.Sprintf("%s (%d).md", base, n))
	}

	if err := os.WriteFile(path, []byte(RenderNote(rec)), 0644); err != nil {
		return "", fmt.Errorf("failed to save note: %w", err)
	}
	return path, nil
}

// NoteTitle picks the calendar title, else the first summary sentence,
// else the conversation type.
func NoteTitle(rec *types.ProcessingRecord) string {
	convType := string(rec.ConversationType)
	if convType == "" {
		convType = "recording"
	}
	fallback := titleCase(convType)

	if rec.CalendarEventTitle != "" {
		return rec.CalendarEventTitle
	}
	if rec.Summary != "" {
		first := strings.TrimSpace(strings.SplitN(rec.Summary, ".", 2)[0])
		if first == "" {
			return fallback
		}
		if r := []rune(first); len(r) > 80 {
			first = string(r[:80])
		}
		return first
	}
	return fallback
}

// RenderNote builds the markdown document for rec
func RenderNote(rec *types.ProcessingRecord) string {
	convType := string(rec.ConversationType)
	if convType == "" {
		convType = "recording"
	}

	var fm strings.Builder
	fm.WriteString("---\n")
	fmt.Fprintf(&fm, "title: %q\n", NoteTitle(rec))
	if !rec.RecordedAt.IsZero() {
		fmt.Fprintf(&fm, "date: %s\n", rec.RecordedAt.Format("2006-01-02"))
		fmt.Fprintf(&fm, "time: \"%s\"\n", rec.RecordedAt.Format("15:04"))
	} else {
		fmt.Fprintf(&fm, "date: %s\n", time.Now().Format("2006-01-02"))
	}
	fmt.Fprintf(&fm, "type: %s\n", convType)
	fmt.Fprintf(&fm, "sphere: %s\n", rec.Sphere)
	fmt.Fprintf(&fm, "duration: \"%s\"\n", FormatDuration(rec.DurationSeconds))
	fmt.Fprintf(&fm, "speakers: %d\n", rec.SpeakerCount)
	fmt.Fprintf(&fm, "words: %d\n", rec.WordCount)
	if rec.CalendarEventID != "" {
		fmt.Fprintf(&fm, "calendar_event: %q\n", rec.CalendarEventID)
	}
	if len(rec.Tags) > 0 {
		fm.WriteString("tags:\n")
		for _, tag := range rec.Tags {
			fmt.Fprintf(&fm, "  - %s\n", tag)
		}
	}
	fmt.Fprintf(&fm, "source: %q\n", rec.SourceFile)
	fm.WriteString("---")

	var body []string
	if rec.Summary != "" {
		body = append(body, "## Summary\n\n"+rec.Summary)
	}
	if len(rec.ActionItems) > 0 {
		body = append(body, "## Action Items\n\n"+bullets("- [ ] ", rec.ActionItems))
	}
	if len(rec.Topics) > 0 {
		body = append(body, "## Key Points\n\n"+bullets("- ", rec.Topics))
	}
	if len(rec.Decisions) > 0 {
		body = append(body, "## Decisions\n\n"+bullets("- ", rec.Decisions))
	}
	if len(rec.KeyQuotes) > 0 {
		body = append(body, "## Key Quotes\n\n"+bullets("> ", rec.KeyQuotes))
	}

	transcript := rec.Transcript
	if transcript == "" {
		transcript = rec.TranscriptPlain
	}
	if transcript != "" {
		if len(rec.Segments) > 1 {
			lines := make([]string, 0, len(rec.Segments))
			for _, seg := range rec.Segments {
				ts := formatTimestamp(seg.Start)
				if seg.Speaker != "" {
					lines = append(lines, fmt.Sprintf("**%s %s:** %s", ts, seg.Speaker, seg.Text))
				} else {
					lines = append(lines, fmt.Sprintf("**%s** %s", ts, seg.Text))
				}
			}
			body = append(body, "## Transcript\n\n"+strings.Join(lines, "\n\n"))
		} else {
			body = append(body, "## Transcript\n\n"+transcript)
		}
	}

	return fm.String() + "\n\n" + strings.Join(body, "\n\n") + "\n"
}

// FormatDuration renders seconds as H:MM:SS or M:SS
func FormatDuration(seconds float64) string {
	total := int(seconds)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("[%02d:%02d]", total/60, total%60)
}

func bullets(prefix string, items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = prefix + item
	}
	return strings.Join(lines, "\n")
}

func titleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

var (
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun        = regexp.MustCompile(`\s+`)
)

// sanitizeFilename removes invalid characters from filename
func sanitizeFilename(name string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimSpace(whitespaceRun.ReplaceAllString(name, " "))
	if r := []rune(name); len(r) > 100 {
		name = string(r[:100]) // Limit length
	}
	if name == "" {
		name = "Recording"
	}
	return name
}

// Archiver keeps a copy of every processed source file
type Archiver struct {
	dir string
}

// NewArchiver creates an archiver writing into dir
func NewArchiver(dir string) *Archiver {
	return &Archiver{dir: dir}
}

// Archive copies src into the archive unless a file with the same name is
// already there. It returns the archive path and whether a copy was made.
func (a *Archiver) Archive(src string) (string, bool, error) {
	dst := filepath.Join(a.dir, filepath.Base(src))
	if fileExists(dst) {
		return dst, false, nil
	}
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return "", false, fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := copyFile(src, dst); err != nil {
		return "", false, err
	}
	return dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	tmp := dst + ".partial"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to copy to archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close archive file: %w", err)
	}
	os.Chtimes(tmp, info.ModTime(), info.ModTime())
	return os.Rename(tmp, dst)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
