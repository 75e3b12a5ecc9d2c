package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [LoadFromReader] before validation.
const (
	DefaultGuestName               = "Bot Recorder"
	DefaultWakePhrase              = "hello meeting assistant"
	DefaultRecordBudgetSeconds     = 300
	DefaultAdmissionTimeoutSeconds = 30
	DefaultSinkName                = "meet_sink"
	DefaultScratchRoot             = "/tmp/notula"
	DefaultEmbeddingDimensions     = 1536
	DefaultPresignTTLSeconds       = 3600
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
	"tts":        {"deepgram"},
	"asr":        {"deepgram"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills the zero-valued fields that have documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Meeting.GuestName == "" {
		cfg.Meeting.GuestName = DefaultGuestName
	}
	if cfg.Meeting.WakePhrase == "" {
		cfg.Meeting.WakePhrase = DefaultWakePhrase
	}
	if cfg.Meeting.RecordBudgetSeconds == 0 {
		cfg.Meeting.RecordBudgetSeconds = DefaultRecordBudgetSeconds
	}
	if cfg.Meeting.AdmissionTimeoutSeconds == 0 {
		cfg.Meeting.AdmissionTimeoutSeconds = DefaultAdmissionTimeoutSeconds
	}
	if cfg.Meeting.SinkName == "" {
		cfg.Meeting.SinkName = DefaultSinkName
	}
	if cfg.Meeting.ScratchRoot == "" {
		cfg.Meeting.ScratchRoot = DefaultScratchRoot
	}
	if cfg.Storage.EmbeddingDimensions == 0 {
		cfg.Storage.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if cfg.Storage.Blob.PresignTTLSeconds == 0 {
		cfg.Storage.Blob.PresignTTLSeconds = DefaultPresignTTLSeconds
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation warns for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("asr", cfg.Providers.ASR.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// The post-meeting pipeline cannot run without ASR.
	if cfg.Providers.ASR.Name == "" {
		errs = append(errs, errors.New("providers.asr is required"))
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; live answers and summaries will be unavailable")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; the assistant will not speak in the meeting")
	}
	if cfg.Providers.Embeddings.Name == "" {
		slog.Warn("no embeddings provider configured; transcript indexing will be skipped")
	}

	if cfg.Meeting.RecordBudgetSeconds < 0 {
		errs = append(errs, fmt.Errorf("meeting.record_budget_seconds %d must not be negative", cfg.Meeting.RecordBudgetSeconds))
	}
	if cfg.Meeting.AdmissionTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("meeting.admission_timeout_seconds %d must not be negative", cfg.Meeting.AdmissionTimeoutSeconds))
	}

	if cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required"))
	}
	if cfg.Storage.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("storage.embedding_dimensions %d must not be negative", cfg.Storage.EmbeddingDimensions))
	}
	if cfg.Storage.Blob.Bucket == "" {
		errs = append(errs, errors.New("storage.blob.bucket is required"))
	}
	if cfg.Storage.Blob.Endpoint == "" && cfg.Storage.Blob.Region == "" {
		errs = append(errs, errors.New("storage.blob.region is required when no custom endpoint is set"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
