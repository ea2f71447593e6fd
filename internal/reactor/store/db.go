package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	"golang.org/x/crypto/bcrypt"

	"native-exporter/internal/worker"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidAPIKey      = errors.New("invalid api key")
	ErrUserExists         = errors.New("user already exists")
)

// keyPrefixLen is how much of a raw API key is stored in clear for lookup.
const keyPrefixLen = 12

type User struct {
	ID        int       `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists users, agent API keys and export job history in MySQL.
type Store struct {
	db *sql.DB
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) InitSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		// Ensure password_hash exists if table was created by a different task
		`ALTER TABLE users ADD COLUMN password_hash VARCHAR(255);`,
		`CREATE TABLE IF NOT EXISTS api_keys (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			key_hash VARCHAR(255) NOT NULL UNIQUE,
			key_prefix VARCHAR(16) NOT NULL,
			type ENUM('live', 'test') NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			last_used_at TIMESTAMP NULL,
			INDEX idx_key_prefix (key_prefix),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS export_jobs (
			id CHAR(36) PRIMARY KEY,
			status VARCHAR(16) NOT NULL,
			source_kind VARCHAR(16) NOT NULL,
			source_key VARCHAR(1024) NOT NULL DEFAULT '',
			query_text TEXT NOT NULL,
			format VARCHAR(16) NOT NULL,
			email VARCHAR(255) NOT NULL DEFAULT '',
			row_count BIGINT NOT NULL DEFAULT 0,
			output_key VARCHAR(1024) NOT NULL DEFAULT '',
			error_text TEXT NOT NULL,
			submitted_at DATETIME(6) NOT NULL,
			started_at DATETIME(6) NULL,
			finished_at DATETIME(6) NULL,
			INDEX idx_email_submitted (email, submitted_at)
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			// Check for MySQL "Duplicate column name" error (1060)
			var mysqlErr *mysql.MySQLError
			if errors.As(err, &mysqlErr) && mysqlErr.Number == 1060 {
				continue // Column already exists, skip
			}
			// Fallback: log warning but continue
			slog.Warn("Migration query issue (might be expected)", "query", query, "error", err)
		}
	}
	return nil
}

func (s *Store) CreateUser(email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = s.db.Exec("INSERT INTO users (email, password_hash) VALUES (?, ?)", email, string(hash))
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return ErrUserExists
	}
	return err
}

func (s *Store) AuthenticateUser(email, password string) (*User, error) {
	var user User
	var hash string

	err := s.db.QueryRow("SELECT id, email, password_hash, created_at FROM users WHERE email = ?", email).Scan(&user.ID, &user.Email, &hash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

// API Key Methods

type APIKey struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	KeyPrefix string    `json:"key_prefix"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRawKey generates an agent key of the form sk_<type>_<48 hex chars>.
func NewRawKey(keyType string) (string, error) {
	if keyType != "live" && keyType != "test" {
		return "", fmt.Errorf("unknown key type %q", keyType)
	}
	secret := make([]byte, 24)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	return "sk_" + keyType + "_" + hex.EncodeToString(secret), nil
}

// KeyPrefix is the indexed, non-secret part of a raw key.
func KeyPrefix(rawKey string) string {
	if len(rawKey) > keyPrefixLen {
		return rawKey[:keyPrefixLen]
	}
	return rawKey
}

// CreateAPIKey stores the bcrypt hash of a new key and returns the raw key.
// The raw key is not recoverable afterwards.
func (s *Store) CreateAPIKey(userID int, keyType string) (string, error) {
	rawKey, err := NewRawKey(keyType)
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	_, err = s.db.Exec(
		"INSERT INTO api_keys (user_id, key_hash, key_prefix, type) VALUES (?, ?, ?, ?)",
		userID, string(hash), KeyPrefix(rawKey), keyType,
	)
	if err != nil {
		return "", err
	}

	return rawKey, nil
}

// VerifyAPIKey looks candidates up by prefix and checks each hash.
func (s *Store) VerifyAPIKey(rawKey string) (*APIKey, error) {
	rows, err := s.db.Query("SELECT id, user_id, key_hash, key_prefix, type, created_at FROM api_keys WHERE key_prefix = ?", KeyPrefix(rawKey))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var k APIKey
		var hash string
		if err := rows.Scan(&k.ID, &k.UserID, &hash, &k.KeyPrefix, &k.Type, &k.CreatedAt); err != nil {
			continue
		}

		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawKey)); err == nil {
			go func(id int) {
				if _, err := s.db.Exec("UPDATE api_keys SET last_used_at = NOW() WHERE id = ?", id); err != nil {
					slog.Warn("Failed to record key use", "key_id", id, "error", err)
				}
			}(k.ID)
			return &k, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return nil, ErrInvalidAPIKey
}

func (s *Store) ListAPIKeys(userID int) ([]APIKey, error) {
	query := "SELECT id, user_id, key_prefix, type, created_at FROM api_keys WHERE user_id = ? ORDER BY created_at DESC"
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.KeyPrefix, &k.Type, &k.CreatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Job history

// SaveJob upserts the latest state of a job.
func (s *Store) SaveJob(info worker.JobInfo) error {
	_, err := s.db.Exec(`INSERT INTO export_jobs
		(id, status, source_kind, source_key, query_text, format, email, row_count, output_key, error_text, submitted_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status), row_count = VALUES(row_count), output_key = VALUES(output_key),
			error_text = VALUES(error_text), started_at = VALUES(started_at), finished_at = VALUES(finished_at)`,
		info.ID, string(info.Status), string(info.SourceKind), info.SourceKey, info.Query, info.Format, info.Email,
		info.Rows, info.OutputKey, info.Error, info.Submitted, nullTime(info.Started), nullTime(info.Finished),
	)
	return err
}

// ListJobs returns the newest jobs, limited to email unless it is empty.
func (s *Store) ListJobs(email string, limit int) ([]worker.JobInfo, error) {
	query := `SELECT id, status, source_kind, source_key, query_text, format, email, row_count, output_key, error_text,
		submitted_at, started_at, finished_at FROM export_jobs`
	args := []any{}
	if email != "" {
		query += " WHERE email = ?"
		args = append(args, email)
	}
	query += " ORDER BY submitted_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []worker.JobInfo
	for rows.Next() {
		var j worker.JobInfo
		var started, finished sql.NullTime
		if err := rows.Scan(&j.ID, &j.Status, &j.SourceKind, &j.SourceKey, &j.Query, &j.Format, &j.Email,
			&j.Rows, &j.OutputKey, &j.Error, &j.Submitted, &started, &finished); err != nil {
			return nil, err
		}
		j.Started = started.Time
		j.Finished = finished.Time
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
