package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/codebuildervaibhav/memoant/internal/pipeline"
	"github.com/codebuildervaibhav/memoant/internal/recorder"
	"github.com/codebuildervaibhav/memoant/internal/types"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{125 * time.Second, "2m05s"},
		{3725 * time.Second, "1h02m05s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPipelineResult(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	f.PipelineResult(&pipeline.Result{
		Status:           types.StatusProcessed,
		Duration:         312,
		WordCount:        1234,
		SpeakerCount:     2,
		Sphere:           types.SphereWork,
		ConversationType: types.ConversationMeeting,
		Summary:          "Planned Q2.",
		NotePath:         "/notes/2025-03-04 Planned Q2.md",
		Warnings:         []string{"archive: disk full"},
	})
	out := buf.String()
	for _, want := range []string{"Words: 1,234", "Duration: 5m12s", "Sphere: Work", "Note: /notes/2025-03-04 Planned Q2.md", "⚠️  archive: disk full"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	f.PipelineResult(&pipeline.Result{Status: types.StatusSkipped, FileID: "0123456789abcdef"})
	if !strings.Contains(buf.String(), "Already processed (file_id: 0123456789ab)") {
		t.Errorf("skipped output = %q", buf.String())
	}
}

func TestRecordingStopped(t *testing.T) {
	var buf bytes.Buffer
	NewFormatter(&buf).RecordingStopped(&recorder.StopResult{
		Path:            "/r/recording.m4a",
		DurationSeconds: 61,
		Exists:          true,
		SizeBytes:       2_500_000,
	})
	out := buf.String()
	if !strings.Contains(out, "(1m01s)") || !strings.Contains(out, "Size: 2.5 MB") {
		t.Errorf("output = %q", out)
	}
}

func TestStatusIdle(t *testing.T) {
	var buf bytes.Buffer
	NewFormatter(&buf).Status(nil)
	if buf.String() != "Not recording.\n" {
		t.Errorf("output = %q", buf.String())
	}
}
