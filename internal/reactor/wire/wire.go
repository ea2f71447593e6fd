// Package wire is the agent protocol: JSON job commands on the control
// socket, gob-encoded batches on the data socket.
package wire

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"github.com/gorilla/websocket"

	"native-exporter/internal/scan"
)

// JobCommand is sent from the reactor to an agent on the control socket.
type JobCommand struct {
	ID    string `json:"id"`
	Query string `json:"query"`
}

// Header opens a data stream. A non-empty Err means the agent could not run
// the query and no batches follow.
type Header struct {
	JobID  string
	Fields []scan.Field
	Err    string
}

// Writer encodes a data stream: one Header, then batches ending with the
// end marker.
type Writer struct {
	enc *gob.Encoder
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: gob.NewEncoder(w)}
}

func (w *Writer) WriteHeader(h Header) error {
	return w.enc.Encode(h)
}

func (w *Writer) WriteBatch(b scan.Batch) error {
	return w.enc.Encode(b)
}

// Reader decodes a data stream and serves it as an exporter batch source.
type Reader struct {
	dec    *gob.Decoder
	header Header
	done   bool
	err    error
}

var ErrAgentFailed = errors.New("agent failed")

// NewReader reads the stream header. It fails when the agent reported an
// error instead of a schema.
func NewReader(r io.Reader) (*Reader, error) {
	rd := &Reader{dec: gob.NewDecoder(r)}
	if err := rd.dec.Decode(&rd.header); err != nil {
		return nil, fmt.Errorf("failed to read stream header: %w", err)
	}
	if rd.header.Err != "" {
		return nil, fmt.Errorf("%w: %s", ErrAgentFailed, rd.header.Err)
	}
	return rd, nil
}

func (r *Reader) Header() Header { return r.header }

func (r *Reader) Fields() []scan.Field { return r.header.Fields }

// Pull returns the next batch as the agent sent it; capacity is decided on
// the agent side. A stream that ends without the end marker is an error.
func (r *Reader) Pull(int) scan.Batch {
	if r.done {
		return scan.Batch{Last: true}
	}

	// gob leaves absent fields untouched, so decode into a fresh value.
	var b scan.Batch
	if err := r.dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			err = io.ErrUnexpectedEOF
		}
		r.err = err
		r.done = true
		return scan.Batch{Last: true}
	}
	if err := r.check(b); err != nil {
		r.err = err
		r.done = true
		return scan.Batch{Last: true}
	}
	if b.End() {
		r.done = true
	}
	return b
}

func (r *Reader) check(b scan.Batch) error {
	if b.End() {
		return nil
	}
	if len(b.Vectors) != len(r.header.Fields) {
		return fmt.Errorf("batch has %d vectors, schema has %d fields", len(b.Vectors), len(r.header.Fields))
	}
	for i, v := range b.Vectors {
		if v.Kind != r.header.Fields[i].Kind || v.Len() != b.Rows {
			return fmt.Errorf("vector %d does not match field %q", i, r.header.Fields[i].Name)
		}
	}
	return nil
}

func (r *Reader) Err() error { return r.err }

// WSWriter adapts a websocket to io.Writer, one binary message per Write.
type WSWriter struct {
	Conn *websocket.Conn
}

func (w *WSWriter) Write(p []byte) (n int, err error) {
	err = w.Conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// WSReader adapts a websocket to io.Reader, concatenating messages.
type WSReader struct {
	Conn   *websocket.Conn
	reader io.Reader
}

func (r *WSReader) Read(p []byte) (n int, err error) {
	for {
		if r.reader == nil {
			_, reader, err := r.Conn.NextReader() // messageType ignored
			if err != nil {
				return 0, err
			}
			r.reader = reader
		}

		n, err = r.reader.Read(p)
		if err == io.EOF {
			r.reader = nil
			if n > 0 {
				return n, nil
			}
			continue // Try next message
		}
		return n, err
	}
}
