package config

import (
	"flag"
	"os"
	"strings"
	"testing"
)

// resetFlagSet создаёт новый FlagSet перед каждым вызовом NewConfig,
// чтобы избежать повторной регистрации одних и тех же флагов между тестами.
func resetFlagSet(t *testing.T) {
	t.Helper()
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	// подавляем вывод парсера флагов в тестах
	flag.CommandLine.SetOutput(os.Stderr)
}

// unsetEnv удаляет переменные окружения из списка
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		_ = os.Unsetenv(k)
	}
}

func TestNewConfig_DefaultsWhenEnvEmpty(t *testing.T) {
	t.Setenv("DATABASE_URI", "")
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("BASE_URL", "")
	t.Setenv("ENABLE_HTTPS", "")
	t.Setenv("EVIDENCE_MAX_MB", "")
	t.Setenv("EVIDENCE_SECRET", "")
	t.Setenv("KDF_ITERATIONS", "")
	t.Setenv("BLOB_BACKEND", "")
	t.Setenv("S3_REGION", "")
	t.Setenv("CLIENT_DB_PATH", "")
	t.Setenv("TOKEN_FILE", "")

	resetFlagSet(t)
	cfg := NewConfig()

	if cfg.AuthSecret != "dev-secret-key" {
		t.Fatalf("AuthSecret default expected 'dev-secret-key', got %q", cfg.AuthSecret)
	}
	if cfg.EvidenceMaxSizeMB != 100 {
		t.Fatalf("EvidenceMaxSizeMB default expected 100, got %d", cfg.EvidenceMaxSizeMB)
	}
	if cfg.MaxEvidenceBytes() != 100<<20 {
		t.Fatalf("MaxEvidenceBytes expected %d, got %d", 100<<20, cfg.MaxEvidenceBytes())
	}
	if cfg.EvidenceSecret != "" {
		t.Fatalf("EvidenceSecret must have no default, got %q", cfg.EvidenceSecret)
	}
	if cfg.KDFIterations != 210000 {
		t.Fatalf("KDFIterations default expected 210000, got %d", cfg.KDFIterations)
	}
	if cfg.DatabaseDSN != "evidence.db" {
		t.Fatalf("DatabaseDSN default expected 'evidence.db', got %q", cfg.DatabaseDSN)
	}
	if cfg.BlobBackend != BackendDB || cfg.S3Region != "us-east-1" {
		t.Fatalf("storage defaults: backend=%q region=%q", cfg.BlobBackend, cfg.S3Region)
	}
	if cfg.BaseURL != "localhost:8081" {
		t.Fatalf("BaseURL default expected 'localhost:8081', got %q", cfg.BaseURL)
	}
	if cfg.ServerURL != "http://localhost:8081" {
		t.Fatalf("ServerURL default expected 'http://localhost:8081', got %q", cfg.ServerURL)
	}
	if cfg.ClientDBPath == "" || cfg.TokenFile == "" {
		t.Fatalf("client defaults must be non-empty: ClientDBPath=%q, TokenFile=%q", cfg.ClientDBPath, cfg.TokenFile)
	}
}

func TestNewConfig_BaseURLAndHTTPS(t *testing.T) {
	t.Setenv("BASE_URL", "example.com:443")
	t.Setenv("ENABLE_HTTPS", "true")
	t.Setenv("AUTH_SECRET", "top")
	t.Setenv("EVIDENCE_MAX_MB", "10")

	resetFlagSet(t)
	cfg := NewConfig()

	if cfg.BaseURL != "example.com:443" {
		t.Fatalf("BaseURL expected 'example.com:443', got %q", cfg.BaseURL)
	}
	if cfg.ServerURL != "https://example.com:443" {
		t.Fatalf("ServerURL expected 'https://example.com:443', got %q", cfg.ServerURL)
	}
	if cfg.AuthSecret != "top" {
		t.Fatalf("AuthSecret expected from env 'top', got %q", cfg.AuthSecret)
	}
	if cfg.EvidenceMaxSizeMB != 10 {
		t.Fatalf("EvidenceMaxSizeMB expected 10, got %d", cfg.EvidenceMaxSizeMB)
	}
}

func TestNewConfig_InvalidBaseURLFallback(t *testing.T) {
	// Невалидный BASE_URL (со схемой) должен откатиться на localhost:8081
	t.Setenv("BASE_URL", "http://bad:8080")
	t.Setenv("ENABLE_HTTPS", "false")

	resetFlagSet(t)
	cfg := NewConfig()

	if cfg.BaseURL != "localhost:8081" {
		t.Fatalf("invalid BASE_URL must fallback to 'localhost:8081', got %q", cfg.BaseURL)
	}
	if !strings.HasPrefix(cfg.ServerURL, "http://localhost:8081") {
		t.Fatalf("ServerURL must reflect fallback base, got %q", cfg.ServerURL)
	}
}

func TestNewConfig_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("EVIDENCE_SECRET", "from-env")
	t.Setenv("BLOB_BACKEND", "")

	resetFlagSet(t)
	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{"server", "-evidence-secret", "from-flag-0123456789", "-blob-backend", "S3", "-s3-bucket", "vault"}

	cfg := NewConfig()

	if cfg.EvidenceSecret != "from-flag-0123456789" {
		t.Fatalf("flag must override env, got %q", cfg.EvidenceSecret)
	}
	if cfg.BlobBackend != BackendS3 || cfg.S3Bucket != "vault" {
		t.Fatalf("unexpected storage config: backend=%q bucket=%q", cfg.BlobBackend, cfg.S3Bucket)
	}
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("ValidateServer: %v", err)
	}
}

func TestConfig_ValidateServer(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"db backend", Config{BlobBackend: BackendDB}, false},
		{"s3 without bucket", Config{BlobBackend: BackendS3}, true},
		{"s3 with bucket", Config{BlobBackend: BackendS3, S3Bucket: "b"}, false},
		{"unknown backend", Config{BlobBackend: "ftp"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.ValidateServer()
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateServer() err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}
