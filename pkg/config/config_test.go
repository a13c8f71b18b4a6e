package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes a config.yaml into a temp directory and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// clearEnv unsets variables that a developer shell might carry into the test.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			os.Unsetenv(k)
			t.Cleanup(func() { os.Setenv(k, v) })
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
port: "8000"
env: "test"
database:
  host: "db.example.com"
  port: 5432
  user: "testuser"
  database: "testdb"
annotator:
  model: "gpt-4o-mini"
  timeout: "5s"
`)
	clearEnv(t, "DATABASE_HOST_NAME", "ANNOTATOR_TIMEOUT")

	t.Setenv("PORT", "9000")
	t.Setenv("ANNOTATOR_MODEL", "gpt-4.1-mini")
	t.Setenv("DATABASE_PASSWORD", "secret")

	cfg, err := Load("test-version", path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("expected Port=9000 (from env), got %s", cfg.Port)
	}
	if cfg.Annotator.Model != "gpt-4.1-mini" {
		t.Errorf("expected Annotator.Model=gpt-4.1-mini (from env), got %s", cfg.Annotator.Model)
	}
	if cfg.Env != "test" {
		t.Errorf("expected Env=test (from yaml), got %s", cfg.Env)
	}
	if cfg.Database.Host != "db.example.com" {
		t.Errorf("expected Database.Host=db.example.com (from yaml), got %s", cfg.Database.Host)
	}
	if cfg.Database.Password != "secret" {
		t.Errorf("expected Database.Password from env, got %q", cfg.Database.Password)
	}
	if cfg.Annotator.Timeout != 5*time.Second {
		t.Errorf("expected Annotator.Timeout=5s (from yaml), got %v", cfg.Annotator.Timeout)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t,
		"PORT", "ENVIRONMENT", "REVIEWS_PAGE_SIZE", "REVIEWS_TRENDS_LIMIT",
		"ANNOTATOR_PROVIDER", "ANNOTATOR_MODEL", "ANNOTATOR_TIMEOUT",
		"ENRICHMENT_MAX_CONCURRENT", "ENRICHMENT_RETRY_AFTER",
		"ENRICHMENT_ATTEMPT_TIMEOUT", "ENRICHMENT_WRITE_TIMEOUT",
		"ACCESS_LOG_BROKER", "DATABASE_CONNECT_RETRIES", "DATABASE_CONNECT_RETRY_DELAY",
	)

	cfg, err := Load("dev", "")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected default Port=8000, got %s", cfg.Port)
	}
	if cfg.Reviews.PageSize != 15 {
		t.Errorf("expected default PageSize=15, got %d", cfg.Reviews.PageSize)
	}
	if cfg.Reviews.TrendsLimit != 5 {
		t.Errorf("expected default TrendsLimit=5, got %d", cfg.Reviews.TrendsLimit)
	}
	if cfg.Annotator.Provider != ProviderOpenAI {
		t.Errorf("expected default provider openai, got %s", cfg.Annotator.Provider)
	}
	if cfg.Annotator.Model != "gpt-4o-mini" {
		t.Errorf("expected default model gpt-4o-mini, got %s", cfg.Annotator.Model)
	}
	if cfg.Annotator.Timeout != 20*time.Second {
		t.Errorf("expected default annotator timeout 20s, got %v", cfg.Annotator.Timeout)
	}
	if cfg.Enrichment.MaxConcurrent != 1 {
		t.Errorf("expected serial enrichment by default, got %d", cfg.Enrichment.MaxConcurrent)
	}
	if cfg.Enrichment.AttemptTimeout != 30*time.Second || cfg.Enrichment.WriteTimeout != 5*time.Second {
		t.Errorf("expected 30s attempt and 5s write timeouts, got %v / %v",
			cfg.Enrichment.AttemptTimeout, cfg.Enrichment.WriteTimeout)
	}
	if cfg.AccessLog.Broker != BrokerDirect {
		t.Errorf("expected direct access log broker, got %s", cfg.AccessLog.Broker)
	}
	if cfg.Database.ConnectRetries != 5 || cfg.Database.ConnectRetryDelay != 3*time.Second {
		t.Errorf("expected 5 retries with 3s delay, got %d / %v",
			cfg.Database.ConnectRetries, cfg.Database.ConnectRetryDelay)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load("test-version", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error when an explicit config file is missing")
	}
}

func TestLoad_UnknownProvider(t *testing.T) {
	path := writeConfig(t, `
annotator:
  provider: "mystery"
`)
	clearEnv(t, "ANNOTATOR_PROVIDER")

	_, err := Load("test-version", path)
	if err == nil {
		t.Fatal("expected error for unknown annotator provider")
	}
	if !strings.Contains(err.Error(), "mystery") {
		t.Errorf("expected error to name the provider, got %v", err)
	}
}

func TestLoad_RedisBrokerRequiresHost(t *testing.T) {
	path := writeConfig(t, `
access_log:
  broker: "redis"
`)
	clearEnv(t, "ACCESS_LOG_BROKER", "REDIS_HOST")

	if _, err := Load("test-version", path); err == nil {
		t.Error("expected error when redis broker is configured without a redis host")
	}

	t.Setenv("REDIS_HOST", "redis.example.com")
	cfg, err := Load("test-version", path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Redis.Addr() != "redis.example.com:6379" {
		t.Errorf("expected redis addr redis.example.com:6379, got %s", cfg.Redis.Addr())
	}
}

func TestLoad_RejectsNonPositivePageSize(t *testing.T) {
	clearEnv(t, "REVIEWS_PAGE_SIZE")
	path := writeConfig(t, `
reviews:
  page_size: -1
`)
	if _, err := Load("test-version", path); err == nil {
		t.Error("expected error for negative page size")
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("/etc/reviews.yaml"); got != "/etc/reviews.yaml" {
		t.Errorf("explicit path should win, got %q", got)
	}

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

	if got := ResolvePath(""); got != "" {
		t.Errorf("expected env-only when config.yaml is absent, got %q", got)
	}

	if err := os.WriteFile(DefaultConfigPath, []byte("port: \"8000\"\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if got := ResolvePath(""); got != DefaultConfigPath {
		t.Errorf("expected %q when present, got %q", DefaultConfigPath, got)
	}
}

func TestAnnotatorConfig_APIKey(t *testing.T) {
	c := AnnotatorConfig{Provider: ProviderOpenAI, OpenAIAPIKey: "sk-openai", AnthropicAPIKey: "sk-ant"}
	if c.APIKey() != "sk-openai" {
		t.Errorf("expected openai key, got %s", c.APIKey())
	}
	c.Provider = ProviderAnthropic
	if c.APIKey() != "sk-ant" {
		t.Errorf("expected anthropic key, got %s", c.APIKey())
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	c := DatabaseConfig{
		Host: "db", Port: 5432, User: "reviews", Password: "pw", Database: "reviews", SSLMode: "disable",
	}
	want := "host=db port=5432 user=reviews password=pw dbname=reviews sslmode=disable"
	if got := c.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}

func TestAnnotatorConfig_Endpoint(t *testing.T) {
	c := AnnotatorConfig{Provider: ProviderOpenAI}
	if c.Endpoint() != "https://api.openai.com/v1" {
		t.Errorf("unexpected openai endpoint %s", c.Endpoint())
	}
	c.Provider = ProviderAnthropic
	if c.Endpoint() != "https://api.anthropic.com/v1" {
		t.Errorf("unexpected anthropic endpoint %s", c.Endpoint())
	}
	c.BaseURL = "http://localhost:11434/v1"
	if c.Endpoint() != "http://localhost:11434/v1" {
		t.Errorf("expected explicit base url, got %s", c.Endpoint())
	}
}
