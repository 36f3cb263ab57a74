// Package sender отрисовывает уведомления из брокера по шаблонам и
// отправляет их по SMTP.
package sender

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/magabrotheeeer/inspectra/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/lib/smtp"
	"github.com/magabrotheeeer/inspectra/internal/models"
)

type letter struct {
	subject *template.Template
	body    *template.Template
}

func mustLetter(name, subject, body string) letter {
	return letter{
		subject: template.Must(template.New(name + ".subject").Option("missingkey=zero").Parse(subject)),
		body:    template.Must(template.New(name + ".body").Option("missingkey=zero").Parse(body)),
	}
}

var letters = map[string]letter{
	rabbitmq.TemplateGuestChatLink: mustLetter(rabbitmq.TemplateGuestChatLink,
		`Your chat about {{.Data.propertyTitle}}`,
		`Hello {{.Name}},

A realtor is ready to chat with you about "{{.Data.propertyTitle}}".
Continue the conversation here: {{.Data.chatLink}}

Keep this link private: anyone who has it can read and send messages in this chat.

Inspectra`),
	rabbitmq.TemplateSubExpired: mustLetter(rabbitmq.TemplateSubExpired,
		`Your Inspectra subscription has expired`,
		`Hello {{.Name}},

Your Inspectra subscription has expired and your account was moved to the {{.Data.plan}} plan.
Renew your subscription to restore your listing limits.

Inspectra`),
}

// Service отрисовывает и отправляет письма.
type Service struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(transport smtp.TransportInterface, log *slog.Logger) *Service {
	return &Service{
		transport: transport,
		log:       log,
	}
}

// Handle обрабатывает сообщение из очереди уведомлений.
func (s *Service) Handle(body []byte) error {
	const op = "sender.Handle"
	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		s.log.Error("failed to unmarshal message body", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}
	subject, text, err := Render(n)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.sendEmail([]string{n.To}, subject, text)
}

// Render отрисовывает тему и текст письма по шаблону n.Template.
func Render(n models.Notification) (subject, body string, err error) {
	l, ok := letters[n.Template]
	if !ok {
		return "", "", fmt.Errorf("%w: unknown template %q", models.ErrValidation, n.Template)
	}
	if n.To == "" {
		return "", "", fmt.Errorf("%w: recipient is empty", models.ErrValidation)
	}
	var sb, bb bytes.Buffer
	if err := l.subject.Execute(&sb, n); err != nil {
		return "", "", err
	}
	if err := l.body.Execute(&bb, n); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(sb.String()), bb.String(), nil
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() { _ = client.Close() }()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", s.transport.GetSMTPUser()), sl.Err(err))
		return err
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err := wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}
	if err := client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to), slog.String("subject", subject))
	return nil
}
