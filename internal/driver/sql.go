package driver

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

type MySQLDriver struct {
	sqlDriver
}

// NewMySQLDriver forces parseTime and UTC so DATETIME cells arrive as
// time.Time and render the same as ClickHouse DateTime text.
func NewMySQLDriver(dsn string) *MySQLDriver {
	return &MySQLDriver{sqlDriver{
		name: "mysql",
		open: func() (*sql.DB, error) {
			normalized, err := mysqlDSN(dsn)
			if err != nil {
				return nil, err
			}
			return sql.Open("mysql", normalized)
		},
	}}
}

func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

type PostgresDriver struct {
	sqlDriver
}

// NewPostgresDriver accepts both postgres:// URLs and key=value DSNs.
func NewPostgresDriver(dsn string) *PostgresDriver {
	return &PostgresDriver{sqlDriver{
		name: "postgres",
		open: func() (*sql.DB, error) {
			normalized, err := postgresDSN(dsn)
			if err != nil {
				return nil, err
			}
			return sql.Open("postgres", normalized)
		},
	}}
}

func postgresDSN(dsn string) (string, error) {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return dsn, nil
	}
	kv, err := pq.ParseURL(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid postgres url: %w", err)
	}
	return kv, nil
}
