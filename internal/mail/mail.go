// Package mail delivers takedown notices over SMTP.
package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/config"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

// Sender is the part of *gomail.Client used by Mailer.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, msgs ...*gomail.Msg) error
}

// Mailer implements piracy.Mailer.
type Mailer struct {
	sender Sender
	from   string
}

var _ piracy.Mailer = (*Mailer)(nil)

// NewClient builds an SMTP client from cfg. Auth is only enabled when a
// username is configured.
func NewClient(cfg config.SMTPConfig) (*gomail.Client, error) {
	opts := []gomail.Option{gomail.WithPort(cfg.Port)}
	if cfg.TLS {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return client, nil
}

// New returns a Mailer sending as from.
func New(sender Sender, from string) *Mailer {
	return &Mailer{sender: sender, from: from}
}

// Send implements piracy.Mailer.
func (m *Mailer) Send(ctx context.Context, msg piracy.MailMessage) error {
	out, err := m.build(msg)
	if err != nil {
		return err
	}
	if err := m.sender.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

func (m *Mailer) build(msg piracy.MailMessage) (*gomail.Msg, error) {
	out := gomail.NewMsg()
	if err := out.From(m.from); err != nil {
		return nil, fmt.Errorf("set sender %q: %w", m.from, err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("set recipient %q: %w", msg.To, err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return out, nil
}
