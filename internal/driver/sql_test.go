package driver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMySQLDSN(t *testing.T) {
	dsn, err := mysqlDSN("root:root@tcp(localhost:3306)/events")
	require.NoError(t, err)
	require.Contains(t, dsn, "parseTime=true")
	require.Contains(t, dsn, "tcp(localhost:3306)/events")

	_, err = mysqlDSN("not a dsn")
	require.Error(t, err)
}

func TestOpen(t *testing.T) {
	d, err := Open("", "", ClickHouseConfig{URL: "tcp://ch:9000"})
	require.NoError(t, err)
	require.Equal(t, "clickhouse", d.Name())
	require.Equal(t, "ch:9000", d.(*ClickHouseDriver).Addr())

	d, err = Open("clickhouse", "tcp://other:9440/db", ClickHouseConfig{URL: "tcp://ch:9000"})
	require.NoError(t, err)
	require.Equal(t, "other:9440", d.(*ClickHouseDriver).Addr())

	for _, kind := range []string{"mysql", "postgres", "mongo"} {
		d, err := Open(kind, "dsn://"+kind, ClickHouseConfig{})
		require.NoError(t, err, kind)
		require.Equal(t, kind, d.Name())

		_, err = Open(kind, "", ClickHouseConfig{})
		require.Error(t, err, kind)
	}

	_, err = Open("oracle", "x", ClickHouseConfig{})
	require.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	kv := "host=localhost dbname=events sslmode=disable"
	dsn, err := postgresDSN(kv)
	require.NoError(t, err)
	require.Equal(t, kv, dsn)

	dsn, err = postgresDSN("postgres://bob:secret@db:5432/events?sslmode=disable")
	require.NoError(t, err)
	require.Contains(t, dsn, "dbname=events")
	require.Contains(t, dsn, "host=db")
	require.Contains(t, dsn, "user=bob")
}
