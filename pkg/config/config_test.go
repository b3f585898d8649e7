package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// chdirTemp moves the test into a fresh directory so Load() sees only the
// config.yaml the test wrote, if any.
func chdirTemp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
	return tmpDir
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
}

func TestLoad_DefaultsWithoutConfigFile(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected Port=8080 (default), got %s", cfg.Port)
	}
	if cfg.Cache.MaxSize != 10000 {
		t.Errorf("expected Cache.MaxSize=10000 (default), got %d", cfg.Cache.MaxSize)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("expected Cache.TTL=5m (default), got %v", cfg.Cache.TTL)
	}
	if cfg.RateLimit.Requests != 100 {
		t.Errorf("expected RateLimit.Requests=100 (default), got %d", cfg.RateLimit.Requests)
	}
	if cfg.Planner.MaxCandidateTables != 5 {
		t.Errorf("expected Planner.MaxCandidateTables=5 (default), got %d", cfg.Planner.MaxCandidateTables)
	}
	if cfg.Query.MaxResultRows != 1000 {
		t.Errorf("expected Query.MaxResultRows=1000 (default), got %d", cfg.Query.MaxResultRows)
	}
	if cfg.LLM.IsAvailable() {
		t.Error("expected LLM to be unavailable by default")
	}
}

func TestLoad_ReadsYAML(t *testing.T) {
	tmpDir := chdirTemp(t)
	writeConfig(t, tmpDir, `
port: "9090"
env: "staging"
cache:
  max_size: 500
  ttl: 1m
rate_limit:
  requests: 10
  window: 30s
database:
  host: "db.internal"
  database: "pricing"
`)

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("expected Port=9090 (from yaml), got %s", cfg.Port)
	}
	if cfg.Env != "staging" {
		t.Errorf("expected Env=staging (from yaml), got %s", cfg.Env)
	}
	if cfg.Cache.MaxSize != 500 {
		t.Errorf("expected Cache.MaxSize=500 (from yaml), got %d", cfg.Cache.MaxSize)
	}
	if cfg.RateLimit.Window != 30*time.Second {
		t.Errorf("expected RateLimit.Window=30s (from yaml), got %v", cfg.RateLimit.Window)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("expected Database.Host=db.internal (from yaml), got %s", cfg.Database.Host)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	tmpDir := chdirTemp(t)
	writeConfig(t, tmpDir, `
port: "9090"
env: "staging"
rate_limit:
  requests: 10
`)

	t.Setenv("PORT", "7070")
	t.Setenv("RATE_LIMIT_REQUESTS", "42")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "7070" {
		t.Errorf("expected Port=7070 (from env), got %s", cfg.Port)
	}
	if cfg.RateLimit.Requests != 42 {
		t.Errorf("expected RateLimit.Requests=42 (from env), got %d", cfg.RateLimit.Requests)
	}
	// YAML value untouched by env survives.
	if cfg.Env != "staging" {
		t.Errorf("expected Env=staging (from yaml), got %s", cfg.Env)
	}
}

func TestLoad_SecretsComeFromEnvOnly(t *testing.T) {
	tmpDir := chdirTemp(t)
	// api_key and password in YAML must be ignored; the struct tags only
	// bind them to environment variables.
	writeConfig(t, tmpDir, `
llm:
  provider: "openai"
  api_key: "yaml-leaked-key"
database:
  password: "yaml-leaked-password"
`)

	t.Setenv("LLM_API_KEY", "env-key")
	t.Setenv("PGPASSWORD", "env-password")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("expected APIKey from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Database.Password != "env-password" {
		t.Errorf("expected Password from env, got %q", cfg.Database.Password)
	}
}

func TestLoad_ValidationRejections(t *testing.T) {
	// Zero values are indistinguishable from "unset" to the loader and get
	// replaced by defaults, so the rejection cases use negatives.
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "negative cache size",
			yaml:    "cache:\n  max_size: -1\n",
			wantErr: "max_size",
		},
		{
			name:    "negative cache ttl",
			yaml:    "cache:\n  ttl: -1m\n",
			wantErr: "ttl",
		},
		{
			name:    "negative rate limit",
			yaml:    "rate_limit:\n  requests: -1\n",
			wantErr: "rate limit",
		},
		{
			name:    "negative candidate tables",
			yaml:    "planner:\n  max_candidate_tables: -1\n",
			wantErr: "max_candidate_tables",
		},
		{
			name:    "negative complexity ceiling",
			yaml:    "planner:\n  complexity_ceiling: -2\n",
			wantErr: "complexity_ceiling",
		},
		{
			name:    "negative result rows",
			yaml:    "query:\n  max_result_rows: -5\n",
			wantErr: "max_result_rows",
		},
		{
			name:    "unknown provider",
			yaml:    "llm:\n  provider: \"bard\"\n",
			wantErr: "provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := chdirTemp(t)
			writeConfig(t, tmpDir, tt.yaml)

			_, err := Load("test-version")
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestLLMConfig_IsAvailable(t *testing.T) {
	if (&LLMConfig{}).IsAvailable() {
		t.Error("empty provider must report unavailable")
	}
	if !(&LLMConfig{Provider: "openai"}).IsAvailable() {
		t.Error("configured provider must report available")
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	cfg := &DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "deals",
		Password: "s3cret",
		Database: "quick_commerce",
		SSLMode:  "require",
	}

	got := cfg.ConnectionString()
	want := "host=db.internal port=5433 user=deals password=s3cret dbname=quick_commerce sslmode=require"
	if got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
