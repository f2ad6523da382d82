package transcription

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"github.com/codebuildervaibhav/memoant/internal/apperr"
	"github.com/codebuildervaibhav/memoant/internal/logger"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		command string
		want    []string
	}{
		{"whisper", []string{"whisper"}},
		{"python -m whisper", []string{"python", "-m", "whisper"}},
		{`"/opt/my tools/vad" --threshold 0.5`, []string{"/opt/my tools/vad", "--threshold", "0.5"}},
		{`/opt/my\ tools/diarize --token 'a b'`, []string{"/opt/my tools/diarize", "--token", "a b"}},
	}
	for _, tt := range tests {
		got, err := SplitCommand(tt.command)
		if err != nil {
			t.Errorf("SplitCommand(%q) error = %v", tt.command, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitCommand(%q) = %q, want %q", tt.command, got, tt.want)
		}
	}
}

func TestSplitCommandErrors(t *testing.T) {
	if _, err := SplitCommand(`"/opt/unterminated vad`); !apperr.IsCode(err, apperr.CodeInvalidArgument) {
		t.Errorf("unterminated quote err = %v, want INVALID_ARGUMENT", err)
	}
	if _, err := SplitCommand("   "); !apperr.IsCode(err, apperr.CodePrecondition) {
		t.Errorf("blank command err = %v, want PRECONDITION", err)
	}
}

func TestCommandVADQuotedScriptPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script")
	}
	dir := filepath.Join(t.TempDir(), "my tools")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	script := filepath.Join(dir, "vad.sh")
	body := "#!/bin/sh\necho \"[{\\\"start\\\": 0.5, \\\"end\\\": 2}]\"\n"
	if err := os.WriteFile(script, []byte(body), 0755); err != nil {
		t.Fatal(err)
	}

	v := &CommandVAD{Command: `"` + script + `"`}
	segs, err := v.DetectSpeech(context.Background(), "in.wav")
	if err != nil {
		t.Fatalf("DetectSpeech() error = %v", err)
	}
	if len(segs) != 1 || segs[0].Start != 0.5 || segs[0].End != 2 {
		t.Errorf("segments = %+v", segs)
	}
}

func TestNewWhisperTranscriberRejectsBadCommand(t *testing.T) {
	if _, err := NewWhisperTranscriber(`'whisper`, "base", "", t.TempDir(), logger.Discard()); !apperr.IsCode(err, apperr.CodeInvalidArgument) {
		t.Errorf("err = %v, want INVALID_ARGUMENT", err)
	}
	wt, err := NewWhisperTranscriber("", "base", "", t.TempDir(), logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(wt.command, []string{"whisper"}) {
		t.Errorf("command = %q", wt.command)
	}
}
