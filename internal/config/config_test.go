package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SampleRate != 16000 {
		t.Fatalf("SampleRate = %d, want 16000", cfg.SampleRate)
	}
	if cfg.InactivityTimeout != 10*time.Second {
		t.Fatalf("InactivityTimeout = %v, want 10s", cfg.InactivityTimeout)
	}
	if cfg.DialogueRetries != 2 {
		t.Fatalf("DialogueRetries = %d, want 2", cfg.DialogueRetries)
	}
	if cfg.SpotterProvider != "auto" {
		t.Fatalf("SpotterProvider = %q, want %q", cfg.SpotterProvider, "auto")
	}
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	setCoreEnvEmpty(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
bind_addr: ":9090"
sample_rate: 8000
inactivity_timeout: 20s
model_paths:
  english: /models/en
  hindi: /models/hi
keyword_paths: ["/keywords/hey_dali.ppn"]
sensitivities: [0.8]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DALI_SAMPLE_RATE", "22050")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.SampleRate != 22050 {
		t.Fatalf("SampleRate = %d, want env override 22050", cfg.SampleRate)
	}
	if cfg.InactivityTimeout != 20*time.Second {
		t.Fatalf("InactivityTimeout = %v, want 20s", cfg.InactivityTimeout)
	}
	if cfg.ModelPaths["hindi"] != "/models/hi" {
		t.Fatalf("ModelPaths[hindi] = %q, want /models/hi", cfg.ModelPaths["hindi"])
	}
}

func TestLoadRejectsBadSensitivity(t *testing.T) {
	setCoreEnvEmpty(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("sensitivities: [1.5]\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("Load() should reject sensitivity outside [0,1]")
	}
}

func TestLoadRejectsShortInactivityTimeout(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("DALI_INACTIVITY_TIMEOUT", "200ms")

	if _, err := Load(""); err == nil {
		t.Fatalf("Load() should reject inactivity timeout below 1s")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"DALI_CONFIG",
		"DALI_BIND_ADDR",
		"DALI_METRICS_NAMESPACE",
		"DALI_ALLOW_ANY_ORIGIN",
		"DALI_SAMPLE_RATE",
		"DALI_FRAME_LENGTH",
		"DALI_SPOTTER_PROVIDER",
		"DALI_SPOTTER_ACCESS_KEY",
		"DALI_DIALOGUE_URL",
		"DALI_DIALOGUE_RETRIES",
		"DALI_DIALOGUE_TIMEOUT",
		"DALI_TTS_COMMAND",
		"DALI_TTS_RATE",
		"DALI_CAPTURE_DUMP_DIR",
		"DALI_RETENTION_DAYS",
		"DALI_INACTIVITY_TIMEOUT",
		"DALI_SHUTDOWN_TIMEOUT",
		"DATABASE_URL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
