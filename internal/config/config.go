// Package config loads the memoant configuration once at startup.
//
// The YAML file at $XDG_CONFIG_HOME/memoant/config.yaml (or
// ~/.config/memoant/config.yaml) is preferred. A config.toml in the same
// directory is read when no YAML file exists. MEMOANT_* environment
// variables override both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Recording struct {
		AudioDevice string `yaml:"audio_device" toml:"audio_device"`
		SampleRate  int    `yaml:"sample_rate" toml:"sample_rate"`
		Channels    int    `yaml:"channels" toml:"channels"`
	} `yaml:"recording" toml:"recording"`

	Processing struct {
		FFmpegCommand   string  `yaml:"ffmpeg_command" toml:"ffmpeg_command"`
		WhisperCommand  string  `yaml:"whisper_command" toml:"whisper_command"`
		WhisperModel    string  `yaml:"whisper_model" toml:"whisper_model"`
		Language        string  `yaml:"language" toml:"language"`
		DiarizeCommand  string  `yaml:"diarize_command" toml:"diarize_command"`
		VADCommand      string  `yaml:"vad_command" toml:"vad_command"`
		VADThreshold    float64 `yaml:"vad_threshold" toml:"vad_threshold"`
		OllamaModel     string  `yaml:"ollama_model" toml:"ollama_model"`
		OllamaURL       string  `yaml:"ollama_url" toml:"ollama_url"`
		DefaultMode     string  `yaml:"default_mode" toml:"default_mode"`
		MaxChunkSeconds float64 `yaml:"max_chunk_seconds" toml:"max_chunk_seconds"`
		MinSilenceMs    float64 `yaml:"min_silence_ms" toml:"min_silence_ms"`
	} `yaml:"processing" toml:"processing"`

	Output struct {
		OracleDB      string `yaml:"oracle_db" toml:"oracle_db"`
		NotesDir      string `yaml:"notes_dir" toml:"notes_dir"`
		RecordingsDir string `yaml:"recordings_dir" toml:"recordings_dir"`
		ArchiveDir    string `yaml:"archive_dir" toml:"archive_dir"`
		TmpDir        string `yaml:"tmp_dir" toml:"tmp_dir"`
		StateDir      string `yaml:"state_dir" toml:"state_dir"`
	} `yaml:"output" toml:"output"`

	Watch struct {
		VoiceMemos           bool   `yaml:"voice_memos" toml:"voice_memos"`
		InboxDir             string `yaml:"inbox_dir" toml:"inbox_dir"`
		VoiceMemosDir        string `yaml:"voice_memos_dir" toml:"voice_memos_dir"`
		SettleSeconds        int    `yaml:"settle_seconds" toml:"settle_seconds"`
		StableTimeoutSeconds int    `yaml:"stable_timeout_seconds" toml:"stable_timeout_seconds"`
		Workers              int    `yaml:"workers" toml:"workers"`
		QueueSize            int    `yaml:"queue_size" toml:"queue_size"`
	} `yaml:"watch" toml:"watch"`

	Screen struct {
		WindowPicker   string `yaml:"window_picker" toml:"window_picker"`
		WindowRecorder string `yaml:"window_recorder" toml:"window_recorder"`
	} `yaml:"screen" toml:"screen"`

	Server struct {
		Host string `yaml:"host" toml:"host"`
		Port int    `yaml:"port" toml:"port"`
	} `yaml:"server" toml:"server"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes" toml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours" toml:"max_age_hours"`
	} `yaml:"cleanup" toml:"cleanup"`

	GoogleDrive struct {
		Enabled         bool   `yaml:"enabled" toml:"enabled"`
		CredentialsFile string `yaml:"credentials_file" toml:"credentials_file"`
		TokenFile       string `yaml:"token_file" toml:"token_file"`
		FolderName      string `yaml:"folder_name" toml:"folder_name"`
	} `yaml:"google_drive" toml:"google_drive"`

	Log struct {
		Level  string `yaml:"level" toml:"level"`
		Format string `yaml:"format" toml:"format"`
	} `yaml:"log" toml:"log"`

	// Path is the file the config was read from, empty when defaults were used.
	Path string `yaml:"-" toml:"-"`
}

// AudioExtensions are the file types the watcher and process command accept
var AudioExtensions = map[string]bool{
	".m4a": true, ".wav": true, ".mp3": true, ".aac": true, ".flac": true,
	".ogg": true, ".wma": true, ".mp4": true, ".mov": true, ".mkv": true,
}

// IsAudioFile reports whether path has a recognized audio or video extension.
func IsAudioFile(path string) bool {
	return AudioExtensions[strings.ToLower(filepath.Ext(path))]
}

// Default returns the built-in configuration rooted at home.
func Default(home string) *Config {
	c := &Config{}
	c.Recording.AudioDevice = "default"
	c.Recording.SampleRate = 48000
	c.Recording.Channels = 2

	c.Processing.FFmpegCommand = "ffmpeg"
	c.Processing.WhisperCommand = "whisper"
	c.Processing.WhisperModel = "large-v3-turbo"
	c.Processing.VADThreshold = 0.1
	c.Processing.OllamaModel = "llama3.1:8b"
	c.Processing.OllamaURL = "http://127.0.0.1:11434"
	c.Processing.DefaultMode = "auto"
	c.Processing.MaxChunkSeconds = 1800
	c.Processing.MinSilenceMs = 500

	c.Output.OracleDB = filepath.Join(home, ".oracle", "oracle.db")
	c.Output.NotesDir = filepath.Join(home, "Documents", "Memoant", "Notes")
	c.Output.RecordingsDir = filepath.Join(home, "Documents", "Memoant", "Recordings")
	c.Output.ArchiveDir = filepath.Join(home, ".memoant", "archive")
	c.Output.TmpDir = filepath.Join(home, ".memoant", "tmp")
	c.Output.StateDir = filepath.Join(home, ".memoant", "state")

	c.Watch.VoiceMemos = true
	c.Watch.InboxDir = filepath.Join(home, ".memoant", "inbox")
	c.Watch.VoiceMemosDir = filepath.Join(home, "Library", "Group Containers",
		"group.com.apple.VoiceMemos.shared", "Recordings")
	c.Watch.SettleSeconds = 5
	c.Watch.StableTimeoutSeconds = 60
	c.Watch.Workers = 1
	c.Watch.QueueSize = 64

	c.Screen.WindowPicker = "WindowPicker"
	c.Screen.WindowRecorder = "WindowRecorder"

	c.Server.Host = "127.0.0.1"
	c.Server.Port = 8765

	c.Cleanup.IntervalMinutes = 30
	c.Cleanup.MaxAgeHours = 24

	c.GoogleDrive.CredentialsFile = filepath.Join(home, ".memoant", "credentials.json")
	c.GoogleDrive.TokenFile = filepath.Join(home, ".memoant", "token.json")
	c.GoogleDrive.FolderName = "Memoant Notes"

	c.Log.Level = "info"
	c.Log.Format = "text"
	return c
}

// Load reads the configuration. An explicit path must exist; with an empty
// path the default locations are searched and a missing file means defaults.
func Load(path string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	cfg := Default(home)

	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
		cfg.Path = path
	}

	applyEnvOverrides(cfg)
	cfg.expandPaths(home)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	return nil
}

// Dir returns the memoant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "memoant")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "memoant")
	}
	return ""
}

// FindConfigFile returns the first existing config file, or "".
func FindConfigFile() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	for _, name := range []string{"config.yaml", "config.yml", "config.toml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadDotEnv loads ~/.env into the environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	p := filepath.Join(home, ".env")
	if _, err := os.Stat(p); err != nil {
		return nil
	}
	return godotenv.Load(p)
}

func applyEnvOverrides(cfg *Config) {
	str := map[string]*string{
		"MEMOANT_AUDIO_DEVICE":    &cfg.Recording.AudioDevice,
		"MEMOANT_WHISPER_COMMAND": &cfg.Processing.WhisperCommand,
		"MEMOANT_WHISPER_MODEL":   &cfg.Processing.WhisperModel,
		"MEMOANT_DIARIZE_COMMAND": &cfg.Processing.DiarizeCommand,
		"MEMOANT_VAD_COMMAND":     &cfg.Processing.VADCommand,
		"MEMOANT_OLLAMA_MODEL":    &cfg.Processing.OllamaModel,
		"MEMOANT_OLLAMA_URL":      &cfg.Processing.OllamaURL,
		"MEMOANT_DEFAULT_MODE":    &cfg.Processing.DefaultMode,
		"MEMOANT_ORACLE_DB":       &cfg.Output.OracleDB,
		"MEMOANT_NOTES_DIR":       &cfg.Output.NotesDir,
		"MEMOANT_RECORDINGS_DIR":  &cfg.Output.RecordingsDir,
		"MEMOANT_INBOX_DIR":       &cfg.Watch.InboxDir,
		"MEMOANT_LOG_LEVEL":       &cfg.Log.Level,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("MEMOANT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Watch.Workers = n
		}
	}
	if v := os.Getenv("MEMOANT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
}

func (c *Config) expandPaths(home string) {
	for _, p := range []*string{
		&c.Output.OracleDB, &c.Output.NotesDir, &c.Output.RecordingsDir, &c.Output.ArchiveDir,
		&c.Output.TmpDir, &c.Output.StateDir, &c.Watch.InboxDir, &c.Watch.VoiceMemosDir,
		&c.GoogleDrive.CredentialsFile, &c.GoogleDrive.TokenFile,
	} {
		*p = expand(*p, home)
	}
}

func expand(path, home string) string {
	path = os.ExpandEnv(path)
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch c.Processing.DefaultMode {
	case "auto", "meeting", "dictation":
	default:
		return fmt.Errorf("invalid processing.default_mode %q (want auto, meeting or dictation)", c.Processing.DefaultMode)
	}
	if c.Processing.MaxChunkSeconds <= 0 {
		return fmt.Errorf("processing.max_chunk_seconds must be positive, got %v", c.Processing.MaxChunkSeconds)
	}
	if c.Processing.MinSilenceMs < 0 {
		return fmt.Errorf("processing.min_silence_ms must not be negative, got %v", c.Processing.MinSilenceMs)
	}
	if c.Watch.Workers < 1 {
		c.Watch.Workers = 1
	}
	if c.Watch.QueueSize < 1 {
		c.Watch.QueueSize = 1
	}
	if c.Recording.Channels < 1 || c.Recording.SampleRate < 1 {
		return fmt.Errorf("recording.channels and recording.sample_rate must be positive")
	}
	return nil
}

// EnsureDirs creates every directory memoant writes to.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.Output.StateDir,
		c.Output.ArchiveDir,
		c.Watch.InboxDir,
		c.Output.TmpDir,
		c.Output.NotesDir,
		c.Output.RecordingsDir,
		filepath.Dir(c.Output.OracleDB),
	}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}
	return nil
}

// Marshal renders the effective configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
