package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codebuildervaibhav/memoant/internal/logger"
)

func TestSweepRemovesOnlyOldFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

	old := filepath.Join(dir, "memoant_old.wav")
	fresh := filepath.Join(dir, "memoant_fresh.wav")
	nested := filepath.Join(dir, "whisper_1234", "out.json")
	os.MkdirAll(filepath.Dir(nested), 0755)
	for _, p := range []string{old, fresh, nested} {
		if err := os.WriteFile(p, []byte("data"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	os.Chtimes(old, now.Add(-48*time.Hour), now.Add(-48*time.Hour))
	os.Chtimes(nested, now.Add(-25*time.Hour), now.Add(-25*time.Hour))
	os.Chtimes(fresh, now.Add(-time.Hour), now.Add(-time.Hour))

	s := NewScheduler(dir, 30, 24, logger.Discard())
	s.now = func() time.Time { return now }

	if n := s.Sweep(); n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh file removed: %v", err)
	}
	for _, p := range []string{old, nested} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s not removed", p)
		}
	}
}

func TestSweepMissingDir(t *testing.T) {
	s := NewScheduler(filepath.Join(t.TempDir(), "missing"), 0, 0, logger.Discard())
	if n := s.Sweep(); n != 0 {
		t.Errorf("deleted = %d", n)
	}
}
