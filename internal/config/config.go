package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all runtime settings for the voice assistant service.
type Config struct {
	BindAddr         string `yaml:"bind_addr"`
	MetricsNamespace string `yaml:"metrics_namespace"`
	AllowAnyOrigin   bool   `yaml:"allow_any_origin"`

	// Audio capture.
	SampleRate  int `yaml:"sample_rate"`
	FrameLength int `yaml:"frame_length"`

	// Keyword spotting and recognition assets.
	SpotterProvider  string            `yaml:"spotter_provider"`
	SpotterAccessKey string            `yaml:"spotter_access_key"`
	KeywordPaths     []string          `yaml:"keyword_paths"`
	Sensitivities    []float64         `yaml:"sensitivities"`
	ModelPaths       map[string]string `yaml:"model_paths"`
	CaptureDumpDir   string            `yaml:"capture_dump_dir"`

	DialogueURL     string `yaml:"dialogue_url"`
	DialogueRetries int    `yaml:"dialogue_retries"`

	TTSCommand string `yaml:"tts_command"`
	TTSRate    int    `yaml:"tts_rate"`

	DatabaseURL   string `yaml:"database_url"`
	RetentionDays int    `yaml:"retention_days"`

	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`
	DialogueTimeout   time.Duration `yaml:"dialogue_timeout"`
}

// Load reads the optional YAML config file, applies environment variable
// overrides and safe defaults, and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		BindAddr:          ":8080",
		MetricsNamespace:  "dali",
		SampleRate:        16000,
		FrameLength:       512,
		SpotterProvider:   "auto",
		ModelPaths:        map[string]string{},
		InactivityTimeout: 10 * time.Second,
		DialogueURL:       "http://localhost:5005/webhooks/rest/webhook",
		DialogueRetries:   2,
		DialogueTimeout:   5 * time.Second,
		TTSRate:           170,
		RetentionDays:     30,
		ShutdownTimeout:   15 * time.Second,
	}

	if path == "" {
		path = strings.TrimSpace(os.Getenv("DALI_CONFIG"))
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.BindAddr = envOrDefault("DALI_BIND_ADDR", cfg.BindAddr)
	cfg.MetricsNamespace = envOrDefault("DALI_METRICS_NAMESPACE", cfg.MetricsNamespace)
	cfg.SpotterProvider = envOrDefault("DALI_SPOTTER_PROVIDER", cfg.SpotterProvider)
	cfg.SpotterAccessKey = envOrDefault("DALI_SPOTTER_ACCESS_KEY", cfg.SpotterAccessKey)
	cfg.DialogueURL = envOrDefault("DALI_DIALOGUE_URL", cfg.DialogueURL)
	cfg.TTSCommand = envOrDefault("DALI_TTS_COMMAND", cfg.TTSCommand)
	cfg.CaptureDumpDir = envOrDefault("DALI_CAPTURE_DUMP_DIR", cfg.CaptureDumpDir)
	cfg.DatabaseURL = envOrDefault("DATABASE_URL", cfg.DatabaseURL)

	var err error
	if cfg.AllowAnyOrigin, err = boolFromEnv("DALI_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin); err != nil {
		return Config{}, err
	}
	if cfg.SampleRate, err = intFromEnv("DALI_SAMPLE_RATE", cfg.SampleRate); err != nil {
		return Config{}, err
	}
	if cfg.FrameLength, err = intFromEnv("DALI_FRAME_LENGTH", cfg.FrameLength); err != nil {
		return Config{}, err
	}
	if cfg.DialogueRetries, err = intFromEnv("DALI_DIALOGUE_RETRIES", cfg.DialogueRetries); err != nil {
		return Config{}, err
	}
	if cfg.TTSRate, err = intFromEnv("DALI_TTS_RATE", cfg.TTSRate); err != nil {
		return Config{}, err
	}
	if cfg.RetentionDays, err = intFromEnv("DALI_RETENTION_DAYS", cfg.RetentionDays); err != nil {
		return Config{}, err
	}
	if cfg.InactivityTimeout, err = durationFromEnv("DALI_INACTIVITY_TIMEOUT", cfg.InactivityTimeout); err != nil {
		return Config{}, err
	}
	if cfg.DialogueTimeout, err = durationFromEnv("DALI_DIALOGUE_TIMEOUT", cfg.DialogueTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = durationFromEnv("DALI_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}

	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("sample_rate must be positive")
	}
	if cfg.FrameLength <= 0 {
		return Config{}, fmt.Errorf("frame_length must be positive")
	}
	if cfg.InactivityTimeout < time.Second {
		return Config{}, fmt.Errorf("inactivity_timeout must be at least 1s")
	}
	if cfg.DialogueRetries <= 0 {
		return Config{}, fmt.Errorf("dialogue_retries must be positive")
	}
	if cfg.DialogueTimeout <= 0 {
		return Config{}, fmt.Errorf("dialogue_timeout must be positive")
	}
	if strings.TrimSpace(cfg.DialogueURL) == "" {
		return Config{}, fmt.Errorf("dialogue_url is required")
	}
	for i, s := range cfg.Sensitivities {
		if s < 0 || s > 1 {
			return Config{}, fmt.Errorf("sensitivities[%d] must be within [0,1]", i)
		}
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
