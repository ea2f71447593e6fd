package driver

import (
	"context"
	"database/sql"
	"fmt"
)

// Driver abstracts the database connection and query execution.
type Driver interface {
	// Name returns the driver name (e.g., "clickhouse", "mysql").
	Name() string

	// Ping verifies the connection to the database.
	Ping(ctx context.Context) error

	// Query executes a query and returns a RowStreamer to iterate over results.
	Query(ctx context.Context, query string) (RowStreamer, error)

	// Close closes the database connection.
	Close() error
}

// ColumnType is the part of a result column's metadata FetchBlock needs.
type ColumnType interface {
	Name() string
	DatabaseTypeName() string
}

// RowStreamer iterates over query results.
type RowStreamer interface {
	Columns() ([]string, error)

	// ColumnTypes may return nil when the source has no type metadata; every
	// column is then treated as String.
	ColumnTypes() ([]ColumnType, error)

	Next() bool

	// Scan copies the columns in the current row into the values pointed at by dest.
	Scan(dest ...any) error

	Err() error
	Close() error
}

// New returns the driver registered under kind.
func New(kind, dsn string) (Driver, error) {
	switch kind {
	case "clickhouse":
		return NewClickHouseDriver(dsn)
	case "mysql":
		return NewMySQLDriver(dsn), nil
	case "postgres":
		return NewPostgresDriver(dsn), nil
	case "mongo":
		return NewMongoDriver(dsn), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", kind)
	}
}

// Open returns the remote driver for kind. An empty kind means ClickHouse,
// which is configured from ch; a non-empty dsn replaces ch.URL. Other kinds
// need a dsn.
func Open(kind, dsn string, ch ClickHouseConfig) (Driver, error) {
	if kind == "" || kind == "clickhouse" {
		if dsn != "" {
			ch.URL = dsn
		}
		return NewClickHouseDriverFromConfig(ch)
	}
	if dsn == "" {
		return nil, fmt.Errorf("%s driver requires a dsn", kind)
	}
	return New(kind, dsn)
}

// sqlDriver is the database/sql plumbing shared by the SQL drivers. The
// connection is opened lazily on first use.
type sqlDriver struct {
	name string
	open func() (*sql.DB, error)
	db   *sql.DB
}

func (d *sqlDriver) Name() string {
	return d.name
}

func (d *sqlDriver) conn() (*sql.DB, error) {
	if d.db == nil {
		db, err := d.open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s connection: %w", d.name, err)
		}
		d.db = db
	}
	return d.db, nil
}

func (d *sqlDriver) Ping(ctx context.Context) error {
	db, err := d.conn()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (d *sqlDriver) Query(ctx context.Context, query string) (RowStreamer, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s query failed: %w", d.name, err)
	}
	return sqlRows{rows}, nil
}

func (d *sqlDriver) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// sqlRows adapts *sql.Rows to RowStreamer.
type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) ColumnTypes() ([]ColumnType, error) {
	types, err := r.Rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	out := make([]ColumnType, len(types))
	for i, t := range types {
		out[i] = t
	}
	return out, nil
}
