package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// writeConfig writes a YAML config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ragchat.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv blanks the given keys for the duration of the test. t.Setenv
// registers the restore, so values written by Load are cleaned up too.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_AppliesYAMLToEnv(t *testing.T) {
	clearEnv(t, "MODEL_PROVIDER", "OLLAMA_MODEL", "RETRIEVAL_MIN_SCORE", "RETRIEVAL_MAX_RESULTS", "DATA_LOAD_ON_START")

	path := writeConfig(t, `
model:
  provider: ollama
  ollama:
    model: llama3
retrieval:
  max_results: 4
  min_score: 0.65
data:
  load_on_start: true
`)

	loaded, err := Load(path, slog.Default())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != path {
		t.Errorf("loaded path = %q, want %q", loaded, path)
	}

	want := map[string]string{
		"MODEL_PROVIDER":        "ollama",
		"OLLAMA_MODEL":          "llama3",
		"RETRIEVAL_MAX_RESULTS": "4",
		"RETRIEVAL_MIN_SCORE":   "0.65",
		"DATA_LOAD_ON_START":    "true",
	}
	for k, v := range want {
		if got := os.Getenv(k); got != v {
			t.Errorf("env %s = %q, want %q", k, got, v)
		}
	}
}

func TestLoad_EnvVarsWin(t *testing.T) {
	clearEnv(t, "MODEL_PROVIDER")
	t.Setenv("MODEL_PROVIDER", "openai")

	path := writeConfig(t, "model:\n  provider: ollama\n")

	if _, err := Load(path, slog.Default()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := os.Getenv("MODEL_PROVIDER"); got != "openai" {
		t.Errorf("MODEL_PROVIDER = %q — YAML must not override env", got)
	}
}

func TestLoad_ZeroValuesAreNotApplied(t *testing.T) {
	clearEnv(t, "RETRIEVAL_MAX_RESULTS", "QDRANT_TLS")

	path := writeConfig(t, "retrieval:\n  max_results: 0\nindex:\n  qdrant:\n    tls: false\n")

	if _, err := Load(path, slog.Default()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := os.Getenv("RETRIEVAL_MAX_RESULTS"); got != "" {
		t.Errorf("RETRIEVAL_MAX_RESULTS = %q, want unset for zero YAML value", got)
	}
	if got := os.Getenv("QDRANT_TLS"); got != "" {
		t.Errorf("QDRANT_TLS = %q, want unset for false YAML value", got)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), slog.Default())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != "" {
		t.Errorf("loaded path = %q, want empty for a missing file", loaded)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "model: [not a mapping")

	if _, err := Load(path, slog.Default()); err == nil {
		t.Error("expected parse error for malformed YAML")
	}
}

func TestFloatFormatting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{0, ""},
		{0.75, "0.75"},
		{0.5, "0.5"},
		{1, "1"},
	}
	for _, tt := range tests {
		if got := float64Str(tt.in); got != tt.want {
			t.Errorf("float64Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
