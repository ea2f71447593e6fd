package email

import (
	"log/slog"
	"path"
	"time"
)

// Sender delivers export notifications. Implementations must not block the
// calling worker for long.
type Sender interface {
	SendDownloadLink(email, downloadURL string, stats string)
	SendWithAttachment(email, filename string, content []byte, stats string)
}

// LogSender logs notifications instead of delivering them. It is the sender
// used when SMTP_HOST is unset.
type LogSender struct {
	Logger *slog.Logger
	// Delay simulates delivery latency.
	Delay time.Duration
}

func NewLogSender() *LogSender {
	return &LogSender{Logger: slog.Default(), Delay: 100 * time.Millisecond}
}

func (s *LogSender) log(msg string, args ...any) {
	go func() {
		time.Sleep(s.Delay)
		logger := s.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Info(msg, args...)
	}()
}

func (s *LogSender) SendDownloadLink(email, downloadURL string, stats string) {
	s.log("Export notification (link)", "to", email, "url", downloadURL, "stats", stats)
}

func (s *LogSender) SendWithAttachment(email, filename string, content []byte, stats string) {
	s.log("Export notification (attachment)",
		"to", email,
		"filename", path.Base(filename),
		"content_type", contentTypeFor(filename),
		"size", len(content),
		"stats", stats,
	)
}
