// Package output renders human-readable CLI results.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/codebuildervaibhav/memoant/internal/pipeline"
	"github.com/codebuildervaibhav/memoant/internal/recorder"
	"github.com/codebuildervaibhav/memoant/internal/types"
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) RecordingStarted(st *types.RecordingState) {
	fmt.Fprintf(f.w, "🔴 Recording started (PID: %d)\n", st.PID)
	fmt.Fprintf(f.w, "  Type: %s\n", st.RecordingType)
	fmt.Fprintf(f.w, "  Device: %s\n", st.Device)
	fmt.Fprintf(f.w, "  Mode: %s\n", st.Mode)
	fmt.Fprintf(f.w, "  File: %s\n", st.Path)
	fmt.Fprintf(f.w, "\nRun 'memoant stop' to finish and process.\n")
}

func (f *Formatter) RecordingStopped(res *recorder.StopResult) {
	d := time.Duration(res.DurationSeconds * float64(time.Second))
	fmt.Fprintf(f.w, "⏹️  Recording stopped (%s)\n", formatDuration(d))
	fmt.Fprintf(f.w, "  File: %s\n", res.Path)
	if res.Exists {
		fmt.Fprintf(f.w, "  Size: %s\n", humanize.Bytes(uint64(res.SizeBytes)))
	}
	if res.Warning != "" {
		f.Warning(res.Warning)
	}
}

func (f *Formatter) Status(st *recorder.Status) {
	if st == nil {
		fmt.Fprintf(f.w, "Not recording.\n")
		return
	}
	fmt.Fprintf(f.w, "🔴 Recording in progress\n")
	fmt.Fprintf(f.w, "  Type: %s\n", st.RecordingType)
	fmt.Fprintf(f.w, "  Elapsed: %s\n", st.Elapsed)
	fmt.Fprintf(f.w, "  Mode: %s\n", st.Mode)
	fmt.Fprintf(f.w, "  Device: %s\n", st.Device)
	fmt.Fprintf(f.w, "  File: %s\n", st.Path)
	fmt.Fprintf(f.w, "  PID: %d\n", st.PID)
}

func (f *Formatter) Processing(path string) {
	fmt.Fprintf(f.w, "📝 Processing %s...\n", path)
}

func (f *Formatter) PipelineResult(res *pipeline.Result) {
	switch res.Status {
	case types.StatusSkipped:
		f.Info(fmt.Sprintf("Already processed (file_id: %s)", short(res.FileID)))
		return
	case types.StatusNoSpeech:
		f.Info(fmt.Sprintf("No speech detected in %s of audio", formatDuration(seconds(res.Duration))))
		return
	}

	fmt.Fprintf(f.w, "✅ Processed in %s\n", formatDuration(seconds(res.ProcessingTime)))
	fmt.Fprintf(f.w, "  Duration: %s\n", formatDuration(seconds(res.Duration)))
	fmt.Fprintf(f.w, "  Words: %s\n", humanize.Comma(int64(res.WordCount)))
	fmt.Fprintf(f.w, "  Speakers: %d\n", res.SpeakerCount)
	if res.Sphere != "" {
		fmt.Fprintf(f.w, "  Sphere: %s\n", res.Sphere)
	}
	if res.ConversationType != "" {
		fmt.Fprintf(f.w, "  Type: %s\n", res.ConversationType)
	}
	if res.CalendarTitle != "" {
		fmt.Fprintf(f.w, "  Calendar: %s\n", res.CalendarTitle)
	}
	if res.Summary != "" {
		fmt.Fprintf(f.w, "  Summary: %s\n", res.Summary)
	}
	if res.NotePath != "" {
		fmt.Fprintf(f.w, "  Note: %s\n", res.NotePath)
	}
	if res.DriveURL != "" {
		fmt.Fprintf(f.w, "  Drive: %s\n", res.DriveURL)
	}
	if res.Error != "" {
		f.Warning(res.Error)
	}
	for _, w := range res.Warnings {
		f.Warning(w)
	}
}

func (f *Formatter) DeviceList(list recorder.DeviceList) {
	fmt.Fprintf(f.w, "🎙️  Audio devices:\n")
	if len(list.Audio) == 0 {
		fmt.Fprintf(f.w, "  (none)\n")
	}
	for _, d := range list.Audio {
		fmt.Fprintf(f.w, "  [%d] %s\n", d.Index, d.Name)
	}
	fmt.Fprintf(f.w, "\n📹 Video devices:\n")
	if len(list.Video) == 0 {
		fmt.Fprintf(f.w, "  (none)\n")
	}
	for _, d := range list.Video {
		fmt.Fprintf(f.w, "  [%d] %s\n", d.Index, d.Name)
	}
}

func (f *Formatter) RecordListItem(rec *types.ProcessingRecord, now time.Time) {
	title := rec.CalendarEventTitle
	if title == "" {
		title = rec.Summary
	}
	if len([]rune(title)) > 60 {
		title = string([]rune(title)[:57]) + "..."
	}
	fmt.Fprintf(f.w, "  %s  %-10s %-8s %6s  %s\n",
		short(rec.FileID),
		humanize.RelTime(rec.RecordedAt, now, "ago", "from now"),
		rec.Sphere,
		formatDuration(seconds(rec.DurationSeconds)),
		title,
	)
}

func (f *Formatter) WatchStarted(dirs []string, dbPath, notesDir string, diarization bool) {
	fmt.Fprintf(f.w, "👀 memoant watcher started\n")
	fmt.Fprintf(f.w, "  DB: %s\n", dbPath)
	fmt.Fprintf(f.w, "  Notes: %s\n", notesDir)
	fmt.Fprintf(f.w, "  Diarization: %s\n", onOff(diarization))
	for _, d := range dirs {
		fmt.Fprintf(f.w, "  Watching: %s\n", d)
	}
	fmt.Fprintf(f.w, "  Press Ctrl+C to stop\n\n")
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}

func (f *Formatter) SetupCheck(name string, ok bool, detail string) {
	if ok {
		fmt.Fprintf(f.w, "  ✅ %s: %s\n", name, detail)
	} else {
		fmt.Fprintf(f.w, "  ❌ %s: %s\n", name, detail)
	}
}

func (f *Formatter) Raw(s string) {
	fmt.Fprint(f.w, s)
	if !strings.HasSuffix(s, "\n") {
		fmt.Fprintln(f.w)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
