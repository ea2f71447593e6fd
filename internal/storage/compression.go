package storage

import (
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Codec names an outer compression applied to a whole object.
type Codec string

const (
	CodecNone   Codec = "none"
	CodecGzip   Codec = "gzip"
	CodecZstd   Codec = "zstd"
	CodecSnappy Codec = "snappy"
)

var codecExtensions = map[Codec]string{
	CodecGzip:   ".gz",
	CodecZstd:   ".zst",
	CodecSnappy: ".sz",
}

// ParseCodec accepts the COMPRESSION setting. Empty means none.
func ParseCodec(s string) (Codec, error) {
	switch c := Codec(strings.ToLower(strings.TrimSpace(s))); c {
	case "", CodecNone:
		return CodecNone, nil
	case CodecGzip, CodecZstd, CodecSnappy:
		return c, nil
	default:
		return "", fmt.Errorf("unknown compression %q", s)
	}
}

// Extension returns the file suffix for c, or "" for CodecNone.
func (c Codec) Extension() string {
	return codecExtensions[c]
}

// CodecFromKey infers the codec from an object key's extension.
func CodecFromKey(key string) Codec {
	for codec, ext := range codecExtensions {
		if strings.HasSuffix(key, ext) {
			return codec
		}
	}
	return CodecNone
}

// Decompress wraps rc so reads yield decompressed bytes. Closing the result
// closes rc.
func Decompress(rc io.ReadCloser, c Codec) (io.ReadCloser, error) {
	switch c {
	case CodecGzip:
		zr, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zr, rc}}, nil
	case CodecZstd:
		zr, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zr.IOReadCloser(), rc}}, nil
	case CodecSnappy:
		return &stackedReader{Reader: snappy.NewReader(rc), closers: []io.Closer{rc}}, nil
	default:
		return rc, nil
	}
}

// Compress wraps w so written bytes are compressed with c. Closing the
// result flushes the codec and then closes w.
func Compress(w io.WriteCloser, c Codec) (io.WriteCloser, error) {
	switch c {
	case CodecGzip:
		return &stackedWriter{Writer: gzip.NewWriter(w), dst: w}, nil
	case CodecZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return &stackedWriter{Writer: zw, dst: w}, nil
	case CodecSnappy:
		return &stackedWriter{Writer: snappy.NewBufferedWriter(w), dst: w}, nil
	default:
		return w, nil
	}
}

type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (r *stackedReader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type stackedWriter struct {
	io.Writer
	dst io.WriteCloser
}

func (w *stackedWriter) Close() error {
	var err error
	if c, ok := w.Writer.(io.Closer); ok {
		err = c.Close()
	}
	if cerr := w.dst.Close(); err == nil {
		err = cerr
	}
	return err
}
