package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"native-exporter/internal/exporter"
	"native-exporter/internal/native"
)

type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// SourceKind says where a job's rows come from.
type SourceKind string

const (
	// SourceFile is a Native stream stored under Key, optionally compressed.
	SourceFile SourceKind = "file"
	// SourceFolder is a columns.txt/count.txt/data.bin folder under Key.
	SourceFolder SourceKind = "folder"
	// SourceRemote is Query run against the configured remote database.
	SourceRemote SourceKind = "remote"
	// SourceAgent is Query run by a connected agent, which streams batches back.
	SourceAgent SourceKind = "agent"
)

var ErrInvalidSource = errors.New("invalid source")

// Source describes the input of an export job.
type Source struct {
	Kind  SourceKind `json:"kind"`
	Key   string     `json:"key,omitempty"`
	Query string     `json:"query,omitempty"`

	// Stream reader settings for SourceFile. Empty values use the pool's
	// defaults.
	Termination    string `json:"termination,omitempty"`
	MaxBlockSize   uint64 `json:"max_block_size,omitempty"`
	ByteCounts     bool   `json:"byte_counts,omitempty"`
	VarUIntStrings bool   `json:"varuint_strings,omitempty"`
}

// Validate checks that the fields the kind needs are present.
func (s Source) Validate() error {
	switch s.Kind {
	case SourceFile, SourceFolder:
		if s.Key == "" {
			return fmt.Errorf("%w: %s source needs a key", ErrInvalidSource, s.Kind)
		}
	case SourceRemote, SourceAgent:
		if s.Query == "" {
			return fmt.Errorf("%w: %s source needs a query", ErrInvalidSource, s.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSource, s.Kind)
	}
	if _, err := native.ParseTermination(s.Termination); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	return nil
}

// Options returns the stream reader options for s, applied after defaults.
func (s Source) Options(defaults ...native.Option) ([]native.Option, error) {
	opts := append([]native.Option(nil), defaults...)
	if s.Termination != "" {
		t, err := native.ParseTermination(s.Termination)
		if err != nil {
			return nil, err
		}
		opts = append(opts, native.WithTermination(t))
	}
	if s.MaxBlockSize > 0 {
		opts = append(opts, native.WithMaxBlockSize(s.MaxBlockSize))
	}
	if s.ByteCounts {
		opts = append(opts, native.WithByteCounts())
	}
	if s.VarUIntStrings {
		opts = append(opts, native.WithVarUIntStrings())
	}
	return opts, nil
}

// ExportJob represents a single unit of work for the export service.
type ExportJob struct {
	// ID is the unique UUID v4 for the job.
	ID     string
	Source Source
	// Email is the recipient address for notifications. Empty skips them.
	Email  string
	Format exporter.Format

	// Context manages the lifecycle/cancellation of the job.
	Ctx    context.Context
	Cancel context.CancelFunc

	mu        sync.Mutex
	submitted time.Time
	started   time.Time
	finished  time.Time
	status    JobStatus
	err       error
	stats     *exporter.ExportResult
	outputKey string
	rows      int64
}

func NewExportJob(src Source, email string, format exporter.Format, timeout time.Duration) *ExportJob {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	if format == "" {
		format = exporter.FormatCSV
	}
	return &ExportJob{
		ID:        uuid.New().String(),
		Source:    src,
		Email:     email,
		Format:    format,
		Ctx:       ctx,
		Cancel:    cancel,
		submitted: time.Now(),
		status:    StatusPending,
	}
}

// JobInfo is a point-in-time copy of a job's state.
type JobInfo struct {
	ID         string     `json:"id"`
	Status     JobStatus  `json:"status"`
	SourceKind SourceKind `json:"source_kind"`
	SourceKey  string     `json:"source_key,omitempty"`
	Query      string     `json:"query,omitempty"`
	Format     string     `json:"format"`
	Email      string     `json:"email,omitempty"`
	Rows       int64      `json:"rows"`
	OutputKey  string     `json:"output_key,omitempty"`
	Error      string     `json:"error,omitempty"`
	Submitted  time.Time  `json:"submitted"`
	Started    time.Time  `json:"started,omitzero"`
	Finished   time.Time  `json:"finished,omitzero"`
}

func (j *ExportJob) Info() JobInfo {
	j.mu.Lock()
	defer j.mu.Unlock()

	info := JobInfo{
		ID:         j.ID,
		Status:     j.status,
		SourceKind: j.Source.Kind,
		SourceKey:  j.Source.Key,
		Query:      j.Source.Query,
		Format:     string(j.Format),
		Email:      j.Email,
		Rows:       j.rows,
		OutputKey:  j.outputKey,
		Submitted:  j.submitted,
		Started:    j.started,
		Finished:   j.finished,
	}
	if j.err != nil {
		info.Error = j.err.Error()
	}
	return info
}

func (j *ExportJob) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *ExportJob) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *ExportJob) Stats() *exporter.ExportResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}

func (j *ExportJob) start() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.started = time.Now()
	j.status = StatusProcessing
	return j.started.Sub(j.submitted)
}

func (j *ExportJob) setOutputKey(key string) {
	j.mu.Lock()
	j.outputKey = key
	j.mu.Unlock()
}

func (j *ExportJob) addRows(n int) {
	j.mu.Lock()
	j.rows += int64(n)
	j.mu.Unlock()
}

func (j *ExportJob) complete(stats *exporter.ExportResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusCompleted
	j.stats = stats
	j.rows = stats.RowsProcessed
	j.finished = time.Now()
}

func (j *ExportJob) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusFailed
	j.err = err
	j.finished = time.Now()
}
