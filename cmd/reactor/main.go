package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"native-exporter/internal/config"
	"native-exporter/internal/driver"
	"native-exporter/internal/email"
	"native-exporter/internal/metrics"
	"native-exporter/internal/native"
	"native-exporter/internal/reactor/api"
	"native-exporter/internal/reactor/hub"
	middleware "native-exporter/internal/reactor/middleware"
	"native-exporter/internal/reactor/store"
	"native-exporter/internal/storage"
	"native-exporter/internal/worker"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 0. Load Config
	cfg := config.Load()

	slog.Info("Starting Native Export Reactor", "env", cfg.AppEnv)

	// 1. Initialize Store (Database)
	if cfg.MySQLDSN == "" {
		slog.Error("MYSQL_DSN not set")
		os.Exit(1)
	}

	st, err := store.NewStore(cfg.MySQLDSN)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// 2. Run Migration
	if err := st.InitSchema(); err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database Connected & Schema Initialized")

	// 3. Storage for exports and for Native sources
	exports, err := newProvider(cfg, cfg.StorageType, cfg.LocalStoragePath)
	if err != nil {
		slog.Error("Invalid storage configuration", "error", err)
		os.Exit(1)
	}
	sources := exports
	if cfg.SourceType != "" {
		sources, err = newProvider(cfg, cfg.SourceType, cfg.SourcePath)
		if err != nil {
			slog.Error("Invalid source configuration", "error", err)
			os.Exit(1)
		}
	}

	codec, err := storage.ParseCodec(cfg.Compression)
	if err != nil {
		slog.Error("Invalid COMPRESSION", "error", err)
		os.Exit(1)
	}

	// 4. Source loader: stream reader defaults and the remote database
	termination, err := native.ParseTermination(cfg.NativeTermination)
	if err != nil {
		slog.Error("Invalid NATIVE_TERMINATION", "error", err)
		os.Exit(1)
	}
	defaults := []native.Option{native.WithTermination(termination)}
	if cfg.NativeMaxBlockSize > 0 {
		defaults = append(defaults, native.WithMaxBlockSize(cfg.NativeMaxBlockSize))
	}

	remote, err := driver.Open(cfg.RemoteDriver, cfg.RemoteDSN, driver.ClickHouseConfig{
		URL:      cfg.ClickHouseURL,
		User:     cfg.ClickHouseUser,
		Password: cfg.ClickHousePassword,
		Database: cfg.ClickHouseDatabase,
	})
	if err != nil {
		slog.Error("Invalid remote driver configuration", "driver", cfg.RemoteDriver, "error", err)
		os.Exit(1)
	}
	defer remote.Close()

	loader := &worker.SourceLoader{Storage: sources, Remote: remote, Defaults: defaults}

	// 5. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	// 6. Email
	var emailer email.Sender = email.NewLogSender()
	if cfg.SMTPHost != "" {
		emailer = email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	}

	// 7. Worker pool and hub (WebSocket Manager)
	pool := worker.NewPool(worker.PoolConfig{
		Workers:            cfg.WorkerCount,
		MaxScanConcurrency: cfg.MaxScanConcurrency,
		BatchSize:          cfg.BatchSize,
		Codec:              codec,
		AttachFile:         cfg.AttachFile,
	}, loader, exports, emailer, m)

	h := hub.NewHub()
	pool.OnUpdate(h.JobUpdate)
	pool.OnUpdate(func(info worker.JobInfo) {
		if info.Status == worker.StatusProcessing {
			return
		}
		if err := st.SaveJob(info); err != nil {
			slog.Warn("Failed to persist job", "job_id", info.ID, "error", err)
		}
	})
	pool.Start()

	// 8. Setup Routes & Middleware
	handler := api.NewHandler(st, h, pool, api.Settings{
		APISecret:    cfg.APISecret,
		JWTSecret:    cfg.JWTSecret,
		JobTimeout:   cfg.DefaultTimeout,
		RemoteDriver: remote.Name(),
	})
	mux := handler.Routes(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           middleware.CORS(cfg.AllowedOrigins, cfg.AppEnv)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Reactor listening", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	pool.Stop()
}

func newProvider(cfg *config.Config, kind, localPath string) (storage.Provider, error) {
	switch kind {
	case "local":
		return storage.NewLocalProvider(localPath), nil
	case "s3":
		client := storage.NewS3Client(storage.S3Config{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			PathStyle:       cfg.S3PathStyle,
		})
		return storage.NewS3Provider(client, cfg.S3Bucket), nil
	default:
		return nil, errors.New("unknown storage type " + kind)
	}
}
