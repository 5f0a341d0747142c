// Package mailer delivers plain-text notification emails.
package mailer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/groupcal/backend/internal/apperr"
	"github.com/groupcal/backend/internal/config"
	"github.com/groupcal/backend/pkg/logger"
	"github.com/wneessen/go-mail"
)

type Message struct {
	Subject string
	Body    string
	From    string
	To      string
}

// Sender delivers a batch of messages and reports how many were accepted.
type Sender interface {
	SendBatch(ctx context.Context, msgs []Message) (int, error)
}

type SMTPSender struct {
	cfg    config.MailConfig
	client *mail.Client
}

func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}
	return &SMTPSender{cfg: cfg, client: client}, nil
}

func (s *SMTPSender) SendBatch(ctx context.Context, msgs []Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	built := make([]*mail.Msg, 0, len(msgs))
	for _, m := range msgs {
		msg, err := s.build(m)
		if err != nil {
			logger.Warn("mail_message_skipped", map[string]interface{}{
				"to":    m.To,
				"error": err.Error(),
			})
			continue
		}
		built = append(built, msg)
	}
	if len(built) == 0 {
		return 0, nil
	}

	if err := s.client.DialAndSendWithContext(ctx, built...); err != nil {
		sent := 0
		for _, msg := range built {
			if !msg.HasSendError() {
				sent++
			}
		}
		return sent, &apperr.RemoteError{Service: "smtp", Message: err.Error(), Err: err}
	}
	return len(built), nil
}

func (s *SMTPSender) build(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	from := m.From
	if from == "" {
		from = s.cfg.From
	}
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", m.To, err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Body)
	return msg, nil
}

// LogSender writes messages to the structured log instead of sending them.
// It is used when no SMTP relay is configured.
type LogSender struct{}

func (LogSender) SendBatch(_ context.Context, msgs []Message) (int, error) {
	for _, m := range msgs {
		logger.Info("mail_logged", map[string]interface{}{
			"to":      m.To,
			"subject": m.Subject,
			"lines":   strings.Count(m.Body, "\n") + 1,
		})
	}
	return len(msgs), nil
}

// Recorder keeps every message it is given. Tests use it as a Sender.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (r *Recorder) SendBatch(_ context.Context, msgs []Message) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	r.messages = append(r.messages, msgs...)
	return len(msgs), nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// New picks the SMTP sender when a relay is configured and the log sender
// otherwise.
func New(cfg config.MailConfig) (Sender, error) {
	if !cfg.Enabled() {
		logger.Info("mail_disabled", map[string]interface{}{
			"reason": "SMTP_HOST not set, notifications are logged",
		})
		return LogSender{}, nil
	}
	return NewSMTPSender(cfg)
}
