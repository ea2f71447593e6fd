package worker

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"

	"native-exporter/internal/email"
	"native-exporter/internal/exporter"
	"native-exporter/internal/metrics"
	"native-exporter/internal/scan"
	"native-exporter/internal/storage"
)

var (
	ErrQueueFull  = errors.New("job queue is full")
	ErrPoolClosed = errors.New("worker pool is stopped")
)

// maxAttachmentSize is the largest export sent as an email attachment.
const maxAttachmentSize = 25 * 1024 * 1024

// PoolConfig sizes a Pool.
type PoolConfig struct {
	Workers int
	// MaxScanConcurrency bounds how many sources are decoded at once, since
	// a decoded source is held fully in memory.
	MaxScanConcurrency int64
	QueueSize          int
	BatchSize          int
	Codec              storage.Codec
	AttachFile         bool
}

// Pool manages concurrent export jobs. Workers take jobs from a bounded
// queue; a separate semaphore limits how many sources are loaded at once.
type Pool struct {
	cfg      PoolConfig
	jobQueue chan *ExportJob
	scanSem  *semaphore.Weighted
	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once

	loader  Loader
	storage storage.Provider
	emailer email.Sender
	metrics *metrics.Metrics

	mu       sync.RWMutex
	jobs     map[string]*ExportJob
	onUpdate []func(JobInfo)
}

// NewPool initializes a worker pool. It does not start the workers; call
// Start() to begin processing. m may be nil.
func NewPool(cfg PoolConfig, loader Loader, store storage.Provider, emailer email.Sender, m *metrics.Metrics) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxScanConcurrency <= 0 {
		cfg.MaxScanConcurrency = int64(cfg.Workers)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	return &Pool{
		cfg:      cfg,
		jobQueue: make(chan *ExportJob, cfg.QueueSize),
		scanSem:  semaphore.NewWeighted(cfg.MaxScanConcurrency),
		quit:     make(chan struct{}),
		loader:   loader,
		storage:  store,
		emailer:  emailer,
		metrics:  m,
		jobs:     make(map[string]*ExportJob),
	}
}

// OnUpdate registers fn to be called after every job state change. It must
// be called before Start.
func (p *Pool) OnUpdate(fn func(JobInfo)) {
	p.mu.Lock()
	p.onUpdate = append(p.onUpdate, fn)
	p.mu.Unlock()
}

func (p *Pool) notify(job *ExportJob) {
	info := job.Info()
	p.mu.RLock()
	fns := p.onUpdate
	p.mu.RUnlock()
	for _, fn := range fns {
		fn(info)
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
	slog.Info("Worker pool started", "workers", p.cfg.Workers, "max_scans", p.cfg.MaxScanConcurrency)
}

// Track registers a job for Lookup without queueing it. Agent jobs are
// tracked here and run when the agent's data stream arrives.
func (p *Pool) Track(job *ExportJob) {
	p.mu.Lock()
	p.jobs[job.ID] = job
	p.mu.Unlock()
	p.notify(job)
}

// Submit queues a job. It fails fast when the queue is full.
func (p *Pool) Submit(job *ExportJob) error {
	select {
	case <-p.quit:
		return ErrPoolClosed
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case p.jobQueue <- job:
		p.jobs[job.ID] = job
	default:
		return ErrQueueFull
	}
	// Workers notify through p.mu as well, so this update is always first.
	info := job.Info()
	info.Status = StatusPending
	for _, fn := range p.onUpdate {
		fn(info)
	}
	return nil
}

// Lookup returns the current state of a tracked job.
func (p *Pool) Lookup(id string) (*ExportJob, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	job, ok := p.jobs[id]
	return job, ok
}

// Jobs lists tracked jobs, newest first.
func (p *Pool) Jobs() []JobInfo {
	p.mu.RLock()
	infos := make([]JobInfo, 0, len(p.jobs))
	for _, job := range p.jobs {
		infos = append(infos, job.Info())
	}
	p.mu.RUnlock()

	slices.SortFunc(infos, func(a, b JobInfo) int {
		return b.Submitted.Compare(a.Submitted)
	})
	return infos
}

// Stop initiates graceful shutdown. Queued jobs that no worker picked up
// are cancelled.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		p.wg.Wait()

		for {
			select {
			case job := <-p.jobQueue:
				job.Cancel()
				p.failJob(job, ErrPoolClosed)
			default:
				slog.Info("Worker pool stopped")
				return
			}
		}
	})
}

func (p *Pool) workerLoop(id int) {
	defer p.wg.Done()
	slog.Debug("Worker started", "worker_id", id)

	for {
		select {
		case <-p.quit:
			return
		default:
		}

		select {
		case job := <-p.jobQueue:
			p.processJob(id, job)
		case <-p.quit:
			return
		}
	}
}

func (p *Pool) processJob(workerID int, job *ExportJob) {
	defer job.Cancel()
	slog.Info("Processing job", "worker_id", workerID, "job_id", job.ID, "source", job.Source.Kind)

	job.start()
	p.notify(job)

	// 1. Acquire scan slot
	if err := p.scanSem.Acquire(job.Ctx, 1); err != nil {
		p.failJob(job, fmt.Errorf("failed to acquire scan slot: %w", err))
		return
	}

	if p.metrics != nil {
		p.metrics.ScansInFlight.Inc()
	}
	res, err := p.loader.Load(job.Ctx, job.Source)
	if p.metrics != nil {
		p.metrics.ScansInFlight.Dec()
	}
	p.scanSem.Release(1)

	if err != nil {
		p.metrics.ObserveDecodeError(err)
		p.failJob(job, fmt.Errorf("failed to load source: %w", err))
		return
	}
	p.metrics.ObserveResult(res)

	// 2. Export
	if err := p.Export(job, scan.NewCursor(res)); err != nil {
		p.failJob(job, err)
		return
	}
}

// Export streams src into storage as job's output and notifies the job's
// recipient. It runs on the caller's goroutine.
func (p *Pool) Export(job *ExportJob, src exporter.BatchSource) error {
	if job.Status() == StatusPending {
		job.start()
		p.notify(job)
	}

	stats, err := p.executeExport(job, src)
	if err != nil {
		return err
	}

	job.complete(stats)
	if p.metrics != nil {
		p.metrics.Jobs.WithLabelValues(string(StatusCompleted)).Inc()
		p.metrics.ExportDuration.Observe(stats.Duration.Seconds())
	}
	slog.Info("Job completed", "job_id", job.ID, "rows", stats.RowsProcessed, "batches", stats.Batches)
	p.notify(job)

	p.sendNotification(job)
	return nil
}

func (p *Pool) sendNotification(job *ExportJob) {
	if job.Email == "" {
		return
	}

	info := job.Info()
	stats := job.Stats()
	statsMsg := fmt.Sprintf(
		"Job Summary:\n"+
			"----------------\n"+
			"Job ID: %s\n"+
			"Source: %s %s%s\n"+
			"Rows Processed: %d\n"+
			"Batches: %d\n"+
			"Submitted: %s\n"+
			"Started: %s (Wait: %v)\n"+
			"Finished: %s\n"+
			"Total Duration: %v\n"+
			"Export Duration: %v\n",
		info.ID,
		info.SourceKind, info.SourceKey, info.Query,
		stats.RowsProcessed,
		stats.Batches,
		info.Submitted.Format("2006-01-02 03:04:05 PM"),
		info.Started.Format("2006-01-02 03:04:05 PM"), info.Started.Sub(info.Submitted),
		info.Finished.Format("2006-01-02 03:04:05 PM"),
		info.Finished.Sub(info.Started),
		stats.Duration,
	)

	if !p.cfg.AttachFile {
		p.emailer.SendDownloadLink(job.Email, p.storage.GetDownloadURL(info.OutputKey), statsMsg)
		return
	}

	content, err := p.readAttachment(job, info.OutputKey)
	if err != nil {
		slog.Warn("Skipping attachment (too large or error)", "key", info.OutputKey, "error", err)
		downloadURL := p.storage.GetDownloadURL(info.OutputKey)
		statsMsg += fmt.Sprintf("\nAttachment skipped: %v\nDownload Link: %s", err, downloadURL)
		p.emailer.SendDownloadLink(job.Email, downloadURL, statsMsg)
		return
	}
	p.emailer.SendWithAttachment(job.Email, info.OutputKey, content, statsMsg)
}

func (p *Pool) readAttachment(job *ExportJob, key string) ([]byte, error) {
	reader, err := p.storage.OpenFile(job.Ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	content, err := io.ReadAll(io.LimitReader(reader, maxAttachmentSize+1))
	if err != nil {
		return nil, err
	}
	if len(content) > maxAttachmentSize {
		return nil, fmt.Errorf("file exceeds max attachment size (%d bytes)", maxAttachmentSize)
	}
	return content, nil
}

// OutputKey is the storage key an export of job is written to.
func (p *Pool) OutputKey(job *ExportJob) string {
	return "exports/" + job.ID + job.Format.Extension() + p.cfg.Codec.Extension()
}

func (p *Pool) executeExport(job *ExportJob, src exporter.BatchSource) (*exporter.ExportResult, error) {
	key := p.OutputKey(job)
	job.setOutputKey(key)

	// Start storage upload in background (it reads from the pipe)
	storageWriter, errChan := p.storage.StreamToFile(job.Ctx, key)
	if storageWriter == nil {
		return nil, fmt.Errorf("failed to open output: %w", <-errChan)
	}

	finalWriter, err := storage.Compress(storageWriter, p.cfg.Codec)
	if err != nil {
		_ = storageWriter.Close()
		<-errChan
		return nil, err
	}

	encoder, err := exporter.NewEncoder(job.Format, finalWriter, src.Fields())
	if err != nil {
		_ = finalWriter.Close()
		<-errChan
		return nil, err
	}

	// Run Export (Result -> Cursor -> Encoder -> [Codec] -> Storage)
	stats, exportErr := exporter.StreamBatches(job.Ctx, src, p.cfg.BatchSize, encoder, func(b scan.Batch) {
		job.addRows(b.Rows)
		if p.metrics != nil {
			p.metrics.BatchesEmitted.Inc()
		}
		p.notify(job)
	})

	encoderCloseErr := encoder.Close()
	// Closing the codec writer also closes the storage writer.
	outputCloseErr := finalWriter.Close()
	uploadErr := <-errChan

	if exportErr != nil {
		return nil, fmt.Errorf("export failed: %w", exportErr)
	}
	if encoderCloseErr != nil {
		return nil, fmt.Errorf("encoder close failed: %w", encoderCloseErr)
	}
	if outputCloseErr != nil {
		return nil, fmt.Errorf("output close failed: %w", outputCloseErr)
	}
	if uploadErr != nil {
		return nil, fmt.Errorf("upload failed: %w", uploadErr)
	}
	return stats, nil
}

func (p *Pool) failJob(job *ExportJob, err error) {
	job.fail(err)
	if p.metrics != nil {
		p.metrics.Jobs.WithLabelValues(string(StatusFailed)).Inc()
	}
	slog.Error("Job failed", "job_id", job.ID, "error", err)
	p.notify(job)
}

// Fail marks a tracked job as failed from outside the pool, e.g. when its
// agent stream breaks.
func (p *Pool) Fail(job *ExportJob, err error) {
	p.failJob(job, err)
}
