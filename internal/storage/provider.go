package storage

import (
	"context"
	"io"
	"path"

	"native-exporter/internal/native"
)

// Provider is where Native sources are read from and exports are written to.
type Provider interface {
	// StreamToFile returns a WriteCloser. Data written to it is streamed to the storage destination.
	// The key is the relative path/filename for the object.
	// The returned channel receives a single error (or nil) when the storage operation completes.
	StreamToFile(ctx context.Context, key string) (io.WriteCloser, <-chan error)

	// OpenFile opens a stored object for reading.
	OpenFile(ctx context.Context, key string) (io.ReadCloser, error)

	// GetDownloadURL returns a viewable/downloadable URL for the stored item.
	GetDownloadURL(key string) string
}

// OpenSource opens a Native input, decompressing it when the key carries a
// known compression extension.
func OpenSource(ctx context.Context, p Provider, key string) (io.ReadCloser, error) {
	rc, err := p.OpenFile(ctx, key)
	if err != nil {
		return nil, err
	}
	return Decompress(rc, CodecFromKey(key))
}

// FolderOpener exposes the files of a folder-layout source under prefix.
func FolderOpener(ctx context.Context, p Provider, prefix string) native.Opener {
	return func(name string) (io.ReadCloser, error) {
		return p.OpenFile(ctx, path.Join(prefix, name))
	}
}
