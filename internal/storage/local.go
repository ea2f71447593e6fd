package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrKeyOutsideRoot is returned for keys that resolve outside the provider's
// base directory.
var ErrKeyOutsideRoot = errors.New("key resolves outside storage root")

// LocalProvider stores objects as files under a base directory.
type LocalProvider struct {
	basePath string
}

func NewLocalProvider(basePath string) *LocalProvider {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		slog.Error("Failed to ensure local storage directory exists", "path", basePath, "error", err)
	}
	return &LocalProvider{
		basePath: basePath,
	}
}

func (p *LocalProvider) resolve(key string) (string, error) {
	full := filepath.Join(p.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(p.basePath, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrKeyOutsideRoot, key)
	}
	return full, nil
}

func (p *LocalProvider) StreamToFile(ctx context.Context, key string) (io.WriteCloser, <-chan error) {
	errChan := make(chan error, 1)
	fail := func(err error) (io.WriteCloser, <-chan error) {
		errChan <- err
		close(errChan)
		return nil, errChan
	}

	fullPath, err := p.resolve(key)
	if err != nil {
		return fail(err)
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fail(fmt.Errorf("failed to create directory %s: %w", dir, err))
	}

	// Write to a temp file and rename on close so readers never see a
	// partial export.
	f, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return fail(fmt.Errorf("failed to create file for %s: %w", key, err))
	}

	return &localWriter{
		ctx:     ctx,
		f:       f,
		errChan: errChan,
		path:    fullPath,
	}, errChan
}

func (p *LocalProvider) OpenFile(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := p.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(fullPath)
}

func (p *LocalProvider) GetDownloadURL(key string) string {
	fullPath := filepath.Join(p.basePath, filepath.FromSlash(key))
	abs, _ := filepath.Abs(fullPath)
	return fmt.Sprintf("file://%s", filepath.ToSlash(abs))
}

type localWriter struct {
	ctx     context.Context
	f       *os.File
	errChan chan error
	path    string
}

func (w *localWriter) Write(p []byte) (n int, err error) {
	if err := w.ctx.Err(); err != nil {
		return 0, err
	}
	return w.f.Write(p)
}

func (w *localWriter) Close() error {
	defer close(w.errChan)

	err := w.f.Close()
	if err == nil {
		err = w.ctx.Err()
	}
	if err == nil {
		err = os.Rename(w.f.Name(), w.path)
	}
	if err != nil {
		_ = os.Remove(w.f.Name())
		w.errChan <- err
		return err
	}

	slog.Info("Local file write completed", "path", w.path)
	w.errChan <- nil
	return nil
}
