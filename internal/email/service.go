// Package email sends appeal notifications over SMTP.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

var ErrNotConfigured = errors.New("email not configured")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Body names the template a message is rendered from.
type Body struct {
	TemplateName string
	TemplateData any
}

type Message struct {
	To      string
	Subject string
	Body    Body
}

// Sender is what processors need to deliver a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config    Config
	server    string
	auth      smtp.Auth
	templates *template.Template
	send      sendFunc
}

// NewService creates a new email service
func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	return &Service{
		config:    config,
		server:    config.Host + ":" + config.Port,
		auth:      auth,
		templates: parseTemplates(),
		send:      smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// Send renders msg's template and delivers it as an HTML email.
func (s *Service) Send(ctx context.Context, msg Message) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("email %q: no recipient", msg.Body.TemplateName)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	html, err := s.Render(msg.Body)
	if err != nil {
		return err
	}
	if err := s.send(s.server, s.auth, s.config.From, []string{msg.To}, s.buildMessage(msg.To, msg.Subject, html)); err != nil {
		return fmt.Errorf("send %q: %w", msg.Body.TemplateName, err)
	}
	return nil
}

// Render executes the named template.
func (s *Service) Render(body Body) (string, error) {
	t := s.templates.Lookup(body.TemplateName)
	if t == nil {
		return "", fmt.Errorf("unknown email template %q", body.TemplateName)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, body.TemplateData); err != nil {
		return "", fmt.Errorf("render %q: %w", body.TemplateName, err)
	}
	return buf.String(), nil
}

func (s *Service) buildMessage(to, subject, htmlBody string) []byte {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-lfp-appeals"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	// Plain text part (fallback)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	// HTML part
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return msg.Bytes()
}
