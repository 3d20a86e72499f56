package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/nerrad567/devicehealth/internal/infrastructure/config"
)

// mailSender is the part of *mail.Client used by EmailNotifier.
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailNotifier sends alert events as email through an SMTP relay.
type EmailNotifier struct {
	from   string
	to     []string
	sender mailSender
}

// NewEmailNotifier creates an SMTP notifier from cfg.
// timeout bounds the SMTP dial and conversation.
func NewEmailNotifier(cfg config.EmailConfig, timeout time.Duration) (*EmailNotifier, error) {
	if cfg.Host == "" {
		return nil, errors.New("email notifier: host is required")
	}
	if cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.New("email notifier: from and to are required")
	}

	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	policy, err := tlsPolicy(cfg.TLS)
	if err != nil {
		return nil, err
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(policy),
		mail.WithTimeout(timeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("email notifier: creating smtp client: %w", err)
	}

	return newEmailNotifier(cfg.From, cfg.To, client), nil
}

func newEmailNotifier(from string, to []string, sender mailSender) *EmailNotifier {
	return &EmailNotifier{
		from:   from,
		to:     append([]string(nil), to...),
		sender: sender,
	}
}

func tlsPolicy(mode string) (mail.TLSPolicy, error) {
	switch strings.ToLower(mode) {
	case "", "opportunistic":
		return mail.TLSOpportunistic, nil
	case "mandatory":
		return mail.TLSMandatory, nil
	case "none":
		return mail.NoTLS, nil
	default:
		return mail.NoTLS, fmt.Errorf("email notifier: unknown tls mode %q", mode)
	}
}

// Name implements Notifier.
func (n *EmailNotifier) Name() string {
	return "email"
}

// Notify implements Notifier.
func (n *EmailNotifier) Notify(ctx context.Context, e Event) error {
	msg, err := n.buildMessage(e)
	if err != nil {
		return err
	}
	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

// buildMessage renders e as a multipart text + HTML message.
func (n *EmailNotifier) buildMessage(e Event) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, fmt.Errorf("setting from address: %w", err)
	}
	if err := msg.To(n.to...); err != nil {
		return nil, fmt.Errorf("setting recipients: %w", err)
	}
	msg.Subject(Subject(e))
	msg.SetDate()
	msg.SetMessageID()

	html, err := HTMLBody(e)
	if err != nil {
		return nil, err
	}
	msg.SetBodyString(mail.TypeTextPlain, TextBody(e))
	msg.AddAlternativeString(mail.TypeTextHTML, html)

	return msg, nil
}
