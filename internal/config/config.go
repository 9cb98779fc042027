package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	BackendDB = "db"
	BackendS3 = "s3"
)

type Config struct {
	// Server-side settings
	DatabaseDSN       string `env:"DATABASE_URI"`
	AuthSecret        string `env:"AUTH_SECRET"`
	EvidenceSecret    string `env:"EVIDENCE_SECRET"`
	KDFIterations     int    `env:"KDF_ITERATIONS"`
	EvidenceMaxSizeMB int64  `env:"EVIDENCE_MAX_MB"`

	// Ciphertext storage backend
	BlobBackend string `env:"BLOB_BACKEND"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`

	// Shared settings
	BaseURL     string `env:"BASE_URL"`
	EnableHTTPS bool   `env:"ENABLE_HTTPS"`

	// Client-side settings
	ServerURL    string `env:"-"`
	ClientDBPath string `env:"CLIENT_DB_PATH"`
	TokenFile    string `env:"TOKEN_FILE"`
	Version      bool   `env:"-"` // show client version and exit (flag only)
}

func NewConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	_ = env.Parse(cfg)

	// флаги перекрывают значения из env
	// Server flags
	flag.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "строка подключения к БД (postgres:// или путь к SQLite)")
	flag.StringVar(&cfg.AuthSecret, "auth-secret", cfg.AuthSecret, "секрет для подписи JWT")
	flag.StringVar(&cfg.EvidenceSecret, "evidence-secret", cfg.EvidenceSecret, "секрет для вывода ключей шифрования улик")
	flag.IntVar(&cfg.KDFIterations, "kdf-iterations", cfg.KDFIterations, "число итераций PBKDF2")
	flag.Int64Var(&cfg.EvidenceMaxSizeMB, "max-mb", cfg.EvidenceMaxSizeMB, "максимальный размер улики, МБ")
	flag.StringVar(&cfg.BlobBackend, "blob-backend", cfg.BlobBackend, "где хранить шифртекст: db или s3")
	flag.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "S3 bucket для шифртекста")
	flag.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "S3 region")
	flag.StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "S3-совместимый endpoint (MinIO и т.п.)")
	flag.StringVar(&cfg.S3AccessKey, "s3-access-key", cfg.S3AccessKey, "S3 access key")
	flag.StringVar(&cfg.S3SecretKey, "s3-secret-key", cfg.S3SecretKey, "S3 secret key")
	// Shared/client flags
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "address of the evidence server (host:port)")
	flag.BoolVar(&cfg.EnableHTTPS, "https", cfg.EnableHTTPS, "enable HTTPS (client: prefer https scheme for BaseURL)")
	// Client flags
	flag.StringVar(&cfg.ClientDBPath, "client-db", cfg.ClientDBPath, "directory for per-user SQLite receipt databases")
	flag.StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "path to auth token file (client)")
	flag.BoolVar(&cfg.Version, "version", cfg.Version, "Show client version and exit")

	flag.Parse()

	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = "evidence.db"
	}
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "dev-secret-key"
	}
	if cfg.KDFIterations == 0 {
		cfg.KDFIterations = 210_000
	}
	if cfg.EvidenceMaxSizeMB <= 0 {
		cfg.EvidenceMaxSizeMB = 100
	}
	cfg.BlobBackend = strings.ToLower(strings.TrimSpace(cfg.BlobBackend))
	if cfg.BlobBackend == "" {
		cfg.BlobBackend = BackendDB
	}
	if cfg.S3Region == "" {
		cfg.S3Region = "us-east-1"
	}

	// validate BaseURL: must be in "address:port" (no scheme, no path). Otherwise use default.
	hostPortRe := regexp.MustCompile(`^[A-Za-z0-9\.\-]+:\d{1,5}$`)
	if !hostPortRe.MatchString(cfg.BaseURL) {
		cfg.BaseURL = "localhost:8081"
	}

	if cfg.EnableHTTPS {
		cfg.ServerURL = "https://" + cfg.BaseURL
	} else {
		cfg.ServerURL = "http://" + cfg.BaseURL
	}

	// Fill client defaults if empty
	home, _ := os.UserHomeDir()
	if cfg.ClientDBPath == "" {
		cfg.ClientDBPath = filepath.Join(home, ".evcli")
	}
	if cfg.TokenFile == "" {
		cfg.TokenFile = filepath.Join(home, ".ev_token")
	}
}

// MaxEvidenceBytes — предельный размер улики в байтах.
func (cfg *Config) MaxEvidenceBytes() int64 {
	return cfg.EvidenceMaxSizeMB << 20
}

// ValidateServer проверяет настройки хранилища шифртекста.
// Секрет улик проверяет crypto.KeyDeriver.
func (cfg *Config) ValidateServer() error {
	switch cfg.BlobBackend {
	case BackendDB:
		return nil
	case BackendS3:
		if cfg.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when BLOB_BACKEND=s3")
		}
		return nil
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q (want %q or %q)", cfg.BlobBackend, BackendDB, BackendS3)
	}
}
