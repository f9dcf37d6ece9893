package mailer

import (
	"context"
	"fmt"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"
)

const defaultMailgunTimeout = 10 * time.Second

// Mailgun delivers mail through the Mailgun HTTP API.
type Mailgun struct {
	Domain string
	APIKey string
	Sender string
	// APIBase overrides the regional endpoint, e.g. mg.APIBaseEU.
	APIBase string
	Timeout time.Duration
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{Domain: domain, APIKey: apiKey, Sender: sender, Timeout: defaultMailgunTimeout}
}

// Send delivers msg tagged with its template name.
func (m *Mailgun) Send(ctx context.Context, msg Message) error {
	return m.Deliver(ctx, msg.Envelope())
}

// Deliver sends an already rendered email. Transport errors are returned
// unchanged so callers can surface Mailgun's message.
func (m *Mailgun) Deliver(ctx context.Context, env Envelope) error {
	if env.To == "" {
		return ErrNoRecipient
	}
	client := mg.NewMailgun(m.Domain, m.APIKey)
	if m.APIBase != "" {
		client.SetAPIBase(m.APIBase)
	}
	message := client.NewMessage(m.Sender, env.Subject, env.Text, env.To)
	if env.HTML != "" {
		message.SetHtml(env.HTML)
	}
	if env.Tag != "" {
		if err := message.AddTag(env.Tag); err != nil {
			return fmt.Errorf("tag %s: %w", env.Tag, err)
		}
	}

	timeout := m.Timeout
	if timeout <= 0 {
		timeout = defaultMailgunTimeout
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, _, err := client.Send(c, message)
	return err
}
