package mailer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// CredentialsFunc returns SMTP credentials for a sender address. ok=false
// falls back to the configured username and password.
type CredentialsFunc func(ctx context.Context, from string) (username, password string, ok bool)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPMailer sends HTML messages over SMTP, one connection per message.
type SMTPMailer struct {
	cfg         SMTPConfig
	credentials CredentialsFunc
	log         zerolog.Logger
}

func NewSMTPMailer(cfg SMTPConfig, log zerolog.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, log: log.With().Str("component", "mailer").Logger()}
}

// WithCredentials makes the mailer authenticate as the sender when a stored
// mailbox password is known for it.
func (m *SMTPMailer) WithCredentials(fn CredentialsFunc) *SMTPMailer {
	m.credentials = fn
	return m
}

func (m *SMTPMailer) Send(ctx context.Context, from, to, subject, html string) error {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)

	username, password := m.cfg.Username, m.cfg.Password
	if m.credentials != nil {
		if u, p, ok := m.credentials(ctx, from); ok {
			username, password = u, p
		}
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}

	m.log.Debug().Str("to", to).Str("subject", subject).Msg("mail sent")
	return nil
}

// LogMailer only logs messages. Used when no SMTP host is configured.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log.With().Str("component", "mailer").Logger()}
}

func (m *LogMailer) Send(_ context.Context, from, to, subject, html string) error {
	m.log.Info().
		Str("from", from).
		Str("to", to).
		Str("subject", subject).
		Int("bytes", len(html)).
		Msg("mail not sent, smtp disabled")
	return nil
}
