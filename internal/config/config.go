// Package config loads runtime configuration from defaults, a .env file,
// the environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Recognition engines.
const (
	EngineVosk    = "vosk"
	EngineWhisper = "whisper"
	EngineNone    = "none"
)

// Config holds every tunable of the navigator binary.
type Config struct {
	Locale string `env:"OTTO_LOCALE"`
	Engine string `env:"OTTO_ENGINE"` // vosk | whisper | none
	Recipe string `env:"OTTO_RECIPE"` // recipe selected at startup

	VoskModel      string        `env:"VOSK_MODEL_PATH"`
	SilenceTimeout time.Duration `env:"VOSK_SILENCE_TIMEOUT"`

	WhisperBin     string        `env:"WHISPER_BIN"`
	WhisperModel   string        `env:"WHISPER_MODEL"`
	WhisperTempDir string        `env:"WHISPER_TEMP_DIR"`
	RecordDuration time.Duration `env:"WHISPER_RECORD_DURATION"`

	RestartDelay     time.Duration `env:"OTTO_RESTART_DELAY"`
	SuccessWindow    time.Duration `env:"OTTO_SUCCESS_WINDOW"`
	StallTimeout     time.Duration `env:"OTTO_STALL_TIMEOUT"`
	NarrationTimeout time.Duration `env:"OTTO_NARRATION_TIMEOUT"`
	TriggerLogSize   int           `env:"OTTO_TRIGGER_LOG_SIZE"`

	AzureKey    string `env:"AZURE_SPEECH_KEY"`
	AzureRegion string `env:"AZURE_SPEECH_REGION"`
	Voice       string `env:"AZURE_SPEECH_VOICE"`
	NoSpeech    bool   `env:"OTTO_NO_SPEECH"`

	CacheDir     string `env:"OTTO_CACHE_DIR"`
	DiskCache    bool   `env:"OTTO_DISK_CACHE"`
	CacheEntries int    `env:"OTTO_CACHE_ENTRIES"`

	LogLevel string `env:"OTTO_LOG_LEVEL"` // off | info | debug
	LogFile  string `env:"OTTO_LOG_FILE"`  // "stderr" logs to the console
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	return &Config{
		Locale:           "ja-JP",
		Engine:           EngineVosk,
		VoskModel:        "models/vosk-model-small-ja-0.22",
		SilenceTimeout:   8 * time.Second,
		WhisperBin:       "whisper-cli",
		WhisperModel:     "bin/ggml-small.bin",
		WhisperTempDir:   ".otto-stt",
		RecordDuration:   2 * time.Second,
		RestartDelay:     100 * time.Millisecond,
		SuccessWindow:    500 * time.Millisecond,
		StallTimeout:     1500 * time.Millisecond,
		NarrationTimeout: 15 * time.Second,
		TriggerLogSize:   50,
		Voice:            "ja-JP-NanamiNeural",
		CacheDir:         ".otto-cache",
		DiskCache:        true,
		CacheEntries:     256,
		LogLevel:         "info",
		LogFile:          ".otto-logs/ottonav.log",
	}
}

// Load reads .env (if present), the process environment and args.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()
	return load(envMap(), args)
}

func load(environ map[string]string, args []string) (*Config, error) {
	cfg := Defaults()
	if err := env.Parse(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	fs := flag.NewFlagSet("ottonav", flag.ContinueOnError)
	verbose := fs.Bool("verbose", false, "enable verbose/debug logging")
	quiet := fs.Bool("quiet", false, "disable all logging")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "file to write logs to (use \"stderr\" to log to console)")
	fs.StringVar(&cfg.Engine, "engine", cfg.Engine, "speech recognition engine: vosk | whisper | none")
	fs.BoolVar(&cfg.NoSpeech, "no-speech", cfg.NoSpeech, "disable narration audio even if Azure keys are set")
	fs.StringVar(&cfg.Recipe, "recipe", cfg.Recipe, "recipe ID to select at startup")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "recognition and narration locale")
	fs.StringVar(&cfg.VoskModel, "vosk-model", cfg.VoskModel, "path to the Vosk model directory")
	fs.StringVar(&cfg.WhisperBin, "whisper-bin", cfg.WhisperBin, "path to the whisper-cpp CLI binary")
	fs.StringVar(&cfg.WhisperModel, "whisper-model", cfg.WhisperModel, "path to the Whisper GGML model file")
	fs.BoolVar(&cfg.DiskCache, "disk-cache", cfg.DiskCache, "persist narration audio to disk (reads from disk even when false)")
	fs.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "directory for persistent narration audio")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *verbose {
		cfg.LogLevel = "debug"
	}
	if *quiet {
		cfg.LogLevel = "off"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the navigator cannot run with.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineVosk, EngineWhisper, EngineNone:
	default:
		return fmt.Errorf("unknown recognition engine %q", c.Engine)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"silence timeout", c.SilenceTimeout},
		{"record duration", c.RecordDuration},
		{"restart delay", c.RestartDelay},
		{"success window", c.SuccessWindow},
		{"stall timeout", c.StallTimeout},
		{"narration timeout", c.NarrationTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.d)
		}
	}

	if c.TriggerLogSize <= 0 {
		return fmt.Errorf("trigger log size must be positive, got %d", c.TriggerLogSize)
	}
	if c.CacheEntries < 0 {
		return fmt.Errorf("cache entries must not be negative, got %d", c.CacheEntries)
	}
	if c.Locale == "" {
		return errors.New("locale must be set")
	}
	return nil
}

// SpeechEnabled reports whether narration can be synthesized.
func (c *Config) SpeechEnabled() bool {
	return !c.NoSpeech && c.AzureKey != "" && c.AzureRegion != ""
}

func envMap() map[string]string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
