package apperr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		err  *AppError
		want string
	}{
		{New(CodeConflict, "recorder.start", "already recording"), "recorder.start: already recording"},
		{New(CodeNotFound, "", "file not found"), "file not found"},
		{&AppError{Code: CodeIO, Op: "hash", Message: "read failed", Err: io.ErrUnexpectedEOF}, "hash: read failed: unexpected EOF"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, CodeIO, "op", "msg"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestCodeThroughWrapping(t *testing.T) {
	base := Wrap(io.EOF, CodeExternal, "ffmpeg", "conversion failed")
	wrapped := fmt.Errorf("process: %w", base)

	if got := CodeOf(wrapped); got != CodeExternal {
		t.Errorf("CodeOf = %v, want %v", got, CodeExternal)
	}
	if !IsCode(wrapped, CodeExternal) {
		t.Error("IsCode(wrapped, EXTERNAL) = false, want true")
	}
	if IsCode(wrapped, CodeIO) {
		t.Error("IsCode(wrapped, IO) = true, want false")
	}
	if !errors.Is(wrapped, io.EOF) {
		t.Error("errors.Is(wrapped, io.EOF) = false, want true")
	}
}

func TestIsCodeNested(t *testing.T) {
	inner := New(CodePrecondition, "recorder", "ffmpeg not found")
	outer := Wrap(inner, CodeExternal, "start", "launch failed")
	if !IsCode(outer, CodePrecondition) {
		t.Error("nested PRECONDITION not found")
	}
	if CodeOf(errors.New("plain")) != CodeInternal {
		t.Error("plain error should map to INTERNAL")
	}
}
