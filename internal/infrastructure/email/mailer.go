package email

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"

	"TenderRadar/internal/config"
	"TenderRadar/internal/ports"
)

// SMTPMailer delivers digests as multipart/alternative messages (plain text
// plus HTML) over STARTTLS SMTP.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

var _ ports.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer builds a mailer from configuration.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Configured reports whether credentials are present. When false the
// dispatcher falls back to console-only mode.
func (m *SMTPMailer) Configured() bool {
	return m.cfg.Username != "" && m.cfg.Password != ""
}

// Send builds the MIME message and hands it to the SMTP server.
func (m *SMTPMailer) Send(ctx context.Context, toEmail, toName, subject, htmlBody, textBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.Configured() {
		return fmt.Errorf("smtp mailer misconfigured")
	}

	msg, err := buildMessage(m.cfg.SenderName, m.cfg.Username, toEmail, subject, htmlBody, textBody)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Server, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Server)
	if err := smtp.SendMail(addr, auth, m.cfg.Username, []string{toEmail}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", toEmail, err)
	}
	return nil
}

func buildMessage(senderName, from, to, subject, htmlBody, textBody string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", senderName), from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", writer.Boundary())

	// Plain text first so HTML-capable clients prefer the richer part.
	for _, part := range []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", textBody},
		{"text/html; charset=utf-8", htmlBody},
	} {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", part.contentType)
		w, err := writer.CreatePart(header)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
