package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, k := range []string{"MEMOANT_OLLAMA_MODEL", "MEMOANT_WORKERS", "MEMOANT_NOTES_DIR", "MEMOANT_DEFAULT_MODE", "MEMOANT_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Path != "" {
		t.Errorf("Path = %q, want empty", cfg.Path)
	}
	if cfg.Processing.MaxChunkSeconds != 1800 {
		t.Errorf("MaxChunkSeconds = %v, want 1800", cfg.Processing.MaxChunkSeconds)
	}
	if cfg.Processing.OllamaModel != "llama3.1:8b" {
		t.Errorf("OllamaModel = %q", cfg.Processing.OllamaModel)
	}
	if cfg.Watch.Workers != 1 {
		t.Errorf("Workers = %d, want 1", cfg.Watch.Workers)
	}
	if want := filepath.Join(home, ".memoant", "inbox"); cfg.Watch.InboxDir != want {
		t.Errorf("InboxDir = %q, want %q", cfg.Watch.InboxDir, want)
	}
}

func TestLoadYAML(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".config", "memoant", "config.yaml"), `
processing:
  ollama_model: qwen2.5:7b
  default_mode: meeting
output:
  notes_dir: ~/vault/Meetings
watch:
  voice_memos: false
`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Processing.OllamaModel != "qwen2.5:7b" {
		t.Errorf("OllamaModel = %q, want qwen2.5:7b", cfg.Processing.OllamaModel)
	}
	if cfg.Processing.DefaultMode != "meeting" {
		t.Errorf("DefaultMode = %q, want meeting", cfg.Processing.DefaultMode)
	}
	if want := filepath.Join(home, "vault", "Meetings"); cfg.Output.NotesDir != want {
		t.Errorf("NotesDir = %q, want %q", cfg.Output.NotesDir, want)
	}
	if cfg.Watch.VoiceMemos {
		t.Error("VoiceMemos = true, want false")
	}
	// untouched keys keep their defaults
	if cfg.Processing.WhisperModel != "large-v3-turbo" {
		t.Errorf("WhisperModel = %q, want default", cfg.Processing.WhisperModel)
	}
}

func TestLoadTOMLFallback(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".config", "memoant", "config.toml"), `
[recording]
audio_device = "MacBook Pro Microphone"
channels = 1

[watch]
inbox_dir = "~/inbox"
`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !strings.HasSuffix(cfg.Path, "config.toml") {
		t.Errorf("Path = %q, want config.toml", cfg.Path)
	}
	if cfg.Recording.AudioDevice != "MacBook Pro Microphone" {
		t.Errorf("AudioDevice = %q", cfg.Recording.AudioDevice)
	}
	if cfg.Recording.Channels != 1 {
		t.Errorf("Channels = %d, want 1", cfg.Recording.Channels)
	}
	if want := filepath.Join(home, "inbox"); cfg.Watch.InboxDir != want {
		t.Errorf("InboxDir = %q, want %q", cfg.Watch.InboxDir, want)
	}
}

func TestYAMLWinsOverTOML(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".config", "memoant")
	writeFile(t, filepath.Join(dir, "config.yaml"), "processing:\n  ollama_model: from-yaml\n")
	writeFile(t, filepath.Join(dir, "config.toml"), "[processing]\nollama_model = \"from-toml\"\n")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Processing.OllamaModel != "from-yaml" {
		t.Errorf("OllamaModel = %q, want from-yaml", cfg.Processing.OllamaModel)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("MEMOANT_OLLAMA_MODEL", "env-model")
	t.Setenv("MEMOANT_WORKERS", "3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Processing.OllamaModel != "env-model" {
		t.Errorf("OllamaModel = %q, want env-model", cfg.Processing.OllamaModel)
	}
	if cfg.Watch.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Watch.Workers)
	}
}

func TestLoadErrors(t *testing.T) {
	home := isolate(t)

	if _, err := Load(filepath.Join(home, "missing.yaml")); err == nil {
		t.Error("explicit missing path should fail")
	}

	bad := filepath.Join(home, "bad.yaml")
	writeFile(t, bad, "processing:\n  default_mode: loud\n")
	if _, err := Load(bad); err == nil {
		t.Error("invalid default_mode should fail")
	}

	broken := filepath.Join(home, "broken.toml")
	writeFile(t, broken, "[processing\n")
	if _, err := Load(broken); err == nil {
		t.Error("malformed TOML should fail")
	}
}

func TestEnsureDirs(t *testing.T) {
	home := isolate(t)
	cfg := Default(home)
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error = %v", err)
	}
	for _, d := range []string{cfg.Output.StateDir, cfg.Watch.InboxDir, cfg.Output.TmpDir, cfg.Output.NotesDir} {
		if st, err := os.Stat(d); err != nil || !st.IsDir() {
			t.Errorf("%s not created", d)
		}
	}
}

func TestIsAudioFile(t *testing.T) {
	tests := map[string]bool{
		"a.m4a":         true,
		"MEETING.WAV":   true,
		"clip.mkv":      true,
		"notes.txt":     false,
		"no-extension":  false,
		".m4a.download": false,
	}
	for name, want := range tests {
		if got := IsAudioFile(name); got != want {
			t.Errorf("IsAudioFile(%q) = %v, want %v", name, got, want)
		}
	}
}
