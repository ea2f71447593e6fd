// Command seed_clickhouse creates and fills the events table used by the
// remote-source benchmarks, and can write the same rows as a Native file
// fixture for file-source runs.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/joho/godotenv"

	"native-exporter/internal/config"
	"native-exporter/internal/driver"
	"native-exporter/internal/native"
)

func main() {
	total := flag.Int("rows", 1000000, "Rows to insert")
	batchSize := flag.Int("batch-size", 10000, "Rows per insert batch")
	nativeOut := flag.String("native-out", "", "Also write the rows as a Native file to this path")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	opts, err := driver.ClickHouseConfig{
		URL:      cfg.ClickHouseURL,
		User:     cfg.ClickHouseUser,
		Password: cfg.ClickHousePassword,
		Database: cfg.ClickHouseDatabase,
	}.Options()
	if err != nil {
		slog.Error("Invalid ClickHouse config", "error", err)
		os.Exit(1)
	}
	opts.Protocol = clickhouse.Native

	conn, err := clickhouse.Open(opts)
	if err != nil {
		slog.Error("Failed to open ClickHouse", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx := context.Background()
	for i := 0; i < 30; i++ {
		if err := conn.Ping(ctx); err == nil {
			break
		}
		slog.Info("Waiting for ClickHouse...", "attempt", i+1)
		time.Sleep(time.Second)
	}

	slog.Info("Connected to ClickHouse. Creating table...")
	err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id UInt64,
			name String,
			score Float64,
			created_at DateTime
		) ENGINE = MergeTree ORDER BY id
	`)
	if err != nil {
		slog.Error("Failed to create table", "error", err)
		os.Exit(1)
	}

	var count uint64
	if err := conn.QueryRow(ctx, "SELECT count() FROM events").Scan(&count); err != nil {
		slog.Error("Failed to count events", "error", err)
		os.Exit(1)
	}

	if count >= uint64(*total) {
		slog.Info("Events already seeded", "count", count)
	} else {
		slog.Info("Seeding events...", "rows", *total)
		start := time.Now()
		base := time.Now().Truncate(time.Second)

		for i := 0; i < *total; i += *batchSize {
			batch, err := conn.PrepareBatch(ctx, "INSERT INTO events")
			if err != nil {
				slog.Error("Failed to prepare batch", "error", err)
				os.Exit(1)
			}
			for j := i; j < min(i+*batchSize, *total); j++ {
				id := uint64(j + 1)
				if err := batch.Append(id, eventName(id), float64(id)*0.1, base.Add(time.Duration(j)*time.Second)); err != nil {
					slog.Error("Failed to append row", "error", err)
					os.Exit(1)
				}
			}
			if err := batch.Send(); err != nil {
				slog.Error("Failed to send batch", "error", err)
				os.Exit(1)
			}
			fmt.Printf("\rSeeding events: %d/%d", min(i+*batchSize, *total), *total)
		}
		fmt.Println()
		slog.Info("Event seeding complete", "duration", time.Since(start))
	}

	if *nativeOut != "" {
		if err := writeFixture(*nativeOut, *total); err != nil {
			slog.Error("Failed to write Native fixture", "error", err)
			os.Exit(1)
		}
		slog.Info("Native fixture written", "path", *nativeOut, "rows", *total)
	}
}

func eventName(id uint64) string {
	return fmt.Sprintf("event-%d", id)
}

// writeFixture writes rows in blocks of native.DefaultMaxBlockSize with the
// same columns as the events table.
func writeFixture(path string, total int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	base := uint32(time.Now().Unix())
	for from := 0; from < total; from += native.DefaultMaxBlockSize {
		to := min(from+native.DefaultMaxBlockSize, total)
		n := to - from

		b := native.AppendVarUInt(nil, 4)
		b = native.AppendVarUInt(b, uint64(n))

		b = appendHeader(b, "id", "UInt64")
		for i := from; i < to; i++ {
			b = binary.LittleEndian.AppendUint64(b, uint64(i+1))
		}
		b = appendHeader(b, "name", "String")
		for i := from; i < to; i++ {
			b = appendString(b, eventName(uint64(i+1)))
		}
		b = appendHeader(b, "score", "Float64")
		for i := from; i < to; i++ {
			b = binary.LittleEndian.AppendUint64(b, math.Float64bits(float64(i+1)*0.1))
		}
		b = appendHeader(b, "created_at", "DateTime")
		for i := from; i < to; i++ {
			b = binary.LittleEndian.AppendUint32(b, base+uint32(i))
		}

		if _, err := f.Write(b); err != nil {
			return err
		}
	}
	return f.Close()
}

func appendHeader(b []byte, name, typ string) []byte {
	return appendString(appendString(b, name), typ)
}

// appendString writes a single-byte length prefix, the stream's default.
func appendString(b []byte, s string) []byte {
	b = append(b, byte(len(s)))
	return append(b, s...)
}
