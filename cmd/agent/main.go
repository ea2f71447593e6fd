package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"native-exporter/internal/config"
	"native-exporter/internal/driver"
	"native-exporter/internal/metrics"
	"native-exporter/internal/reactor/wire"
	"native-exporter/internal/scan"
	"native-exporter/internal/security"
)

var version = "dev"

const (
	minBackoff = time.Second
	maxBackoff = time.Minute
)

type AgentConfig struct {
	ReactorURL string
	AgentKey   string
	BatchSize  int
	JobTimeout time.Duration
}

type agent struct {
	cfg     AgentConfig
	db      driver.Driver
	metrics *metrics.Metrics
}

func main() {
	// Custom Usage/Help Message
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Native Export Agent %s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  native-agent [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  AGENT_KEY            Your agent key (sk_live_...)\n")
		fmt.Fprintf(os.Stderr, "  REACTOR_URL          WebSocket URL (e.g., wss://exports.example.com)\n")
		fmt.Fprintf(os.Stderr, "  REMOTE_DRIVER        clickhouse, mysql, postgres or mongo (default clickhouse)\n")
		fmt.Fprintf(os.Stderr, "  REMOTE_DSN           Connection string for the local database\n")
		fmt.Fprintf(os.Stderr, "  CLICKHOUSE_URL       Local ClickHouse (default tcp://localhost:9000)\n")
		fmt.Fprintf(os.Stderr, "  CLICKHOUSE_USER      ClickHouse user (default \"default\")\n")
		fmt.Fprintf(os.Stderr, "  CLICKHOUSE_PASSWORD  ClickHouse password\n")
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  export AGENT_KEY=\"sk_live_123\"\n")
		fmt.Fprintf(os.Stderr, "  export REACTOR_URL=\"wss://exports.example.com\"\n")
		fmt.Fprintf(os.Stderr, "  native-agent -batch-size 2048\n")
	}

	showVersion := flag.Bool("version", false, "Show version")
	batchSize := flag.Int("batch-size", 0, "Rows per streamed batch (default BATCH_SIZE or 1024, max 2048)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Native Export Agent %s\n", version)
		os.Exit(0)
	}

	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	agentCfg := AgentConfig{
		ReactorURL: strings.TrimSuffix(os.Getenv("REACTOR_URL"), "/"), // e.g., "ws://localhost:8080"
		AgentKey:   os.Getenv("AGENT_KEY"),
		BatchSize:  cfg.BatchSize,
		JobTimeout: cfg.DefaultTimeout,
	}
	if *batchSize > 0 {
		agentCfg.BatchSize = *batchSize
	}

	if agentCfg.ReactorURL == "" || agentCfg.AgentKey == "" {
		slog.Error("Missing configuration (REACTOR_URL, AGENT_KEY)")
		os.Exit(1)
	}

	slog.Info("Starting Native Export Agent", "reactor", agentCfg.ReactorURL, "version", version)

	// Initialize Driver
	db, err := driver.Open(cfg.RemoteDriver, cfg.RemoteDSN, driver.ClickHouseConfig{
		URL:      cfg.ClickHouseURL,
		User:     cfg.ClickHouseUser,
		Password: cfg.ClickHousePassword,
		Database: cfg.ClickHouseDatabase,
	})
	if err != nil {
		slog.Error("Invalid driver configuration", "driver", cfg.RemoteDriver, "error", err)
		os.Exit(1)
	}
	if err := db.Ping(context.Background()); err != nil {
		slog.Error("Failed to connect to local database", "driver", db.Name(), "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("Connected to local database", "driver", db.Name())

	reg := prometheus.NewRegistry()
	a := &agent{cfg: agentCfg, db: db, metrics: metrics.NewMetrics(reg)}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			slog.Info("Starting metrics server", "addr", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a.run(ctx)
	slog.Info("Agent shutting down...")
}

func (a *agent) headers() http.Header {
	return http.Header{"X-Agent-Key": []string{a.cfg.AgentKey}}
}

// run keeps the control connection open, reconnecting with backoff.
func (a *agent) run(ctx context.Context) {
	backoff := minBackoff
	for ctx.Err() == nil {
		connected, err := a.control(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = minBackoff
		}
		slog.Warn("Control connection lost", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (a *agent) control(ctx context.Context) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.cfg.ReactorURL+"/agent/control", a.headers())
	if err != nil {
		return false, fmt.Errorf("failed to connect to reactor control plane: %w", err)
	}
	defer conn.Close()
	slog.Info("Connected to Reactor Control Plane")

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}

		var job wire.JobCommand
		if err := json.Unmarshal(message, &job); err != nil {
			slog.Error("Invalid command", "error", err)
			continue
		}

		slog.Info("Received Job", "job_id", job.ID, "query", job.Query)
		go a.executeJob(ctx, job)
	}
}

func (a *agent) executeJob(ctx context.Context, job wire.JobCommand) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.JobTimeout)
	defer cancel()

	// 1. Connect to Data Stream
	dataURL := a.cfg.ReactorURL + "/agent/data?job_id=" + job.ID
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, dataURL, a.headers())
	if err != nil {
		slog.Error("Failed to connect to Data Stream", "job_id", job.ID, "error", err)
		return
	}
	defer conn.Close()

	w := wire.NewWriter(&wire.WSWriter{Conn: conn})

	// 2. Run Query
	cursor, err := a.query(ctx, job.Query)
	if err != nil {
		slog.Error("Query execution failed", "job_id", job.ID, "error", err)
		if werr := w.WriteHeader(wire.Header{JobID: job.ID, Err: err.Error()}); werr != nil {
			slog.Error("Failed to report error", "job_id", job.ID, "error", werr)
		}
		return
	}

	// 3. Stream batches (Gob encoded)
	if err := streamBatches(w, job.ID, cursor, a.cfg.BatchSize, a.metrics); err != nil {
		slog.Error("Stream failed", "job_id", job.ID, "error", err)
		return
	}

	// Wait for the reactor to finish the export and close the stream.
	_ = conn.SetReadDeadline(time.Now().Add(a.cfg.JobTimeout))
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	slog.Info("Job Completed", "job_id", job.ID)
}

func (a *agent) query(ctx context.Context, query string) (*scan.Cursor, error) {
	if err := security.ValidateRemoteQuery(a.db.Name(), query); err != nil {
		return nil, err
	}
	res, err := driver.FetchBlock(ctx, a.db, query)
	if err != nil {
		return nil, err
	}
	a.metrics.ObserveResult(res)
	return scan.NewCursor(res), nil
}

func streamBatches(w *wire.Writer, jobID string, cur *scan.Cursor, batchSize int, m *metrics.Metrics) error {
	if err := w.WriteHeader(wire.Header{JobID: jobID, Fields: cur.Fields()}); err != nil {
		return fmt.Errorf("failed to send schema: %w", err)
	}

	rows := 0
	for {
		b := cur.Pull(batchSize)
		if err := w.WriteBatch(b); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
		if b.End() {
			break
		}
		rows += b.Rows
		m.BatchesEmitted.Inc()
	}
	slog.Info("Stream complete", "job_id", jobID, "rows", rows)
	return nil
}
