package email

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/smtp"
	"path"
	"strings"
)

const boundary = "NativeExportBoundary"

// contentTypes maps export and compression extensions to MIME types. For a
// compressed export the outermost extension wins.
var contentTypes = map[string]string{
	".csv":   "text/csv",
	".jsonl": "application/x-ndjson",
	".xlsx":  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pdf":   "application/pdf",
	".arrow": "application/vnd.apache.arrow.stream",
	".gz":    "application/gzip",
	".zst":   "application/zstd",
	".sz":    "application/x-snappy-framed",
}

func contentTypeFor(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

type SMTPSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	return &SMTPSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
	}
}

func (s *SMTPSender) auth() smtp.Auth {
	if s.User == "" || s.Password == "" {
		return nil
	}
	return smtp.PlainAuth("", s.User, s.Password, s.Host)
}

func (s *SMTPSender) send(to string, msg []byte) {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	slog.Info("Sending email via SMTP", "to", to, "host", s.Host, "size", len(msg))

	if err := smtp.SendMail(addr, s.auth(), s.From, []string{to}, msg); err != nil {
		// Local dev servers (like MailHog) often reject auth; the error is
		// only logged since the export itself already succeeded.
		slog.Error("Failed to send email", "error", err, "to", to)
		return
	}
	slog.Info("Email sent successfully", "to", to)
}

func (s *SMTPSender) SendDownloadLink(email, downloadURL string, stats string) {
	// Run in background to not block worker
	go s.send(email, buildLinkMessage(email, downloadURL, stats))
}

func (s *SMTPSender) SendWithAttachment(email, filename string, content []byte, stats string) {
	go s.send(email, buildAttachmentMessage(email, filename, content, stats))
}

func buildLinkMessage(to, downloadURL, stats string) []byte {
	body := fmt.Sprintf("Hello,\n\nYour Native export has completed successfully.\n\n%s\nDownload Link:\n%s\n\nThis link will expire depending on your storage policy.\n", stats, downloadURL)

	return []byte(fmt.Sprintf("To: %s\r\n"+
		"Subject: Your Native Export is Ready\r\n"+
		"\r\n"+
		"%s\r\n", to, body))
}

func buildAttachmentMessage(to, filename string, content []byte, stats string) []byte {
	name := path.Base(filename)
	bodyText := fmt.Sprintf("Hello,\n\nYour Native export has completed successfully.\n\n%s\nPlease find the export attached.\n", stats)

	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Your Native Export is Ready (Attached)\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=\"%s\"\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n" + bodyText + "\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	fmt.Fprintf(&b, "Content-Type: %s; name=\"%s\"\r\n", contentTypeFor(name), name)
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	fmt.Fprintf(&b, "Content-Disposition: attachment; filename=\"%s\"\r\n", name)
	b.WriteString("\r\n")

	// RFC 2045 line limit
	encoded := base64.StdEncoding.EncodeToString(content)
	for i := 0; i < len(encoded); i += 76 {
		end := min(i+76, len(encoded))
		b.WriteString(encoded[i:end] + "\r\n")
	}

	fmt.Fprintf(&b, "\r\n--%s--", boundary)
	return []byte(b.String())
}
