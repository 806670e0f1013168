package delivery

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/models"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel sends the report as an HTML email over SMTP with PLAIN auth
type EmailChannel struct {
	cfg  common.EmailConfig
	send sendFunc
}

// NewEmailChannel creates an SMTP channel
func NewEmailChannel(cfg common.EmailConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg, send: smtp.SendMail}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) Send(ctx context.Context, msg *models.Message) (string, error) {
	if !e.cfg.Enabled() {
		return "", errors.New("email is not configured")
	}
	port := e.cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPHost, port)

	var auth smtp.Auth
	if e.cfg.Password != "" {
		auth = smtp.PlainAuth("", e.cfg.Sender, e.cfg.Password, e.cfg.SMTPHost)
	}
	if err := e.send(addr, auth, e.cfg.Sender, e.cfg.Recipients, buildMIME(e.cfg.Sender, e.cfg.Recipients, msg)); err != nil {
		return "", err
	}
	return strings.Join(e.cfg.Recipients, ", "), nil
}

func buildMIME(from string, to []string, msg *models.Message) []byte {
	headers := [][2]string{
		{"From", from},
		{"To", strings.Join(to, ", ")},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}
	var sb strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&sb, "%s: %s\r\n", h[0], h[1])
	}
	sb.WriteString("\r\n")
	sb.WriteString(msg.HTML)
	return []byte(sb.String())
}
