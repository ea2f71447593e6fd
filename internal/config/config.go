package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// AppEnv is the running environment (development/production).
	AppEnv string
	// ServerPort is the HTTP port to listen on.
	ServerPort string
	// MySQLDSN is the connection string for the user and job history store.
	MySQLDSN string

	// AWSRegion is the AWS region for S3 sources and exports.
	AWSRegion string
	// AWSAccessKeyID and AWSSecretAccessKey are the static S3 credentials.
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	// S3Bucket is the target S3 bucket name.
	S3Bucket string
	// S3Endpoint is an optional custom endpoint (for non-AWS S3 providers like MinIO/Contabo).
	S3Endpoint string
	// S3PathStyle enables path-style addressing (required for some S3 providers).
	S3PathStyle bool
	// StorageType determines where to save exports: "local" or "s3".
	StorageType string
	// LocalStoragePath is the directory for local exports.
	LocalStoragePath string
	// SourceType and SourcePath locate Native inputs. SourceType is "local"
	// or "s3"; empty reuses the export storage.
	SourceType string
	SourcePath string

	// RemoteDriver selects the remote-source driver: clickhouse, mysql,
	// postgres or mongo. RemoteDSN is its connection string; for clickhouse
	// it overrides ClickHouseURL when set.
	RemoteDriver string
	RemoteDSN    string

	// ClickHouse connection used for remote sources.
	ClickHouseURL      string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseDatabase string

	// SMTP settings for email notifications.
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	// WorkerCount is the number of concurrent export jobs allowed.
	WorkerCount int
	// MaxScanConcurrency limits how many sources are decoded at once.
	MaxScanConcurrency int64
	// BatchSize is the cursor batch capacity; 0 uses the default.
	BatchSize int
	// DefaultTimeout is the maximum duration for an export job.
	DefaultTimeout time.Duration
	// Compression is the codec applied to exports: none, gzip, zstd or snappy.
	Compression string
	// AttachFile enables sending the export as an email attachment (if small enough).
	AttachFile bool

	// NativeTermination and NativeMaxBlockSize are the default stream
	// reader settings for file sources.
	NativeTermination  string
	NativeMaxBlockSize uint64

	// APISecret is the shared secret for HMAC-SHA256 request signing.
	APISecret string
	// JWTSecret signs dashboard and job-status bearer tokens.
	JWTSecret string
	// AllowedOrigins is a list of CORS allowed domains.
	AllowedOrigins []string
}

func Load() *Config {
	return &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		AllowedOrigins:     getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		MySQLDSN:           getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/dbname?parseTime=true"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3Bucket:           getEnv("S3_BUCKET", "my-export-bucket"),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3PathStyle:        getEnvBool("S3_PATH_STYLE", false),
		StorageType:        getEnv("STORAGE_TYPE", "local"),
		LocalStoragePath:   getEnv("LOCAL_STORAGE_PATH", "./exports"),
		SourceType:         getEnv("SOURCE_TYPE", ""),
		SourcePath:         getEnv("SOURCE_PATH", "./data"),
		RemoteDriver:       getEnv("REMOTE_DRIVER", "clickhouse"),
		RemoteDSN:          getEnv("REMOTE_DSN", ""),
		ClickHouseURL:      getEnv("CLICKHOUSE_URL", "tcp://localhost:9000"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", ""),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnvInt("SMTP_PORT", 587),
		SMTPUser:           getEnv("SMTP_USER", ""),
		SMTPPassword:       getEnv("SMTP_PASS", ""),
		SMTPFrom:           getEnv("SMTP_FROM", "noreply@example.com"),
		WorkerCount:        getEnvInt("WORKER_COUNT", 5),
		MaxScanConcurrency: int64(getEnvInt("MAX_SCAN_CONCURRENCY", 3)),
		BatchSize:          getEnvInt("BATCH_SIZE", 0),
		DefaultTimeout:     getEnvDuration("DEFAULT_TIMEOUT", 15*time.Minute),
		Compression:        getEnv("COMPRESSION", "none"),
		AttachFile:         getEnvBool("EMAIL_ATTACH_FILE", false),
		NativeTermination:  getEnv("NATIVE_TERMINATION", "eof"),
		NativeMaxBlockSize: uint64(getEnvInt("NATIVE_MAX_BLOCK_SIZE", 0)),
		APISecret:          getEnv("API_SECRET", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
