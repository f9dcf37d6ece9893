package mailer

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

var ErrNoRecipient = errors.New("mail recipient is required")

// Message is one outgoing email.
type Message struct {
	To       string
	Subject  string
	Template string
	Data     map[string]any
	Text     string
	HTML     string
}

// Job converts the message into its queued form.
func (m Message) Job() EmailJob {
	return EmailJob{To: m.To, Subject: m.Subject, Text: m.Text, HTML: m.HTML, Template: m.Template, Data: m.Data}
}

// Envelope is a rendered email as handed to a transport. Tag groups
// deliveries in the provider's analytics.
type Envelope struct {
	To      string
	Subject string
	Text    string
	HTML    string
	Tag     string
}

func (m Message) Envelope() Envelope {
	return Envelope{To: m.To, Subject: m.Subject, Text: m.Text, HTML: m.HTML, Tag: m.Template}
}

// Sender delivers a message or reports why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Noop is used when MAIL_SEND_ENABLED=false. It only logs the dispatch.
type Noop struct {
	Logger *logrus.Logger
}

func (n Noop) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if n.Logger != nil {
		n.Logger.WithFields(logrus.Fields{
			"to":       msg.To,
			"subject":  msg.Subject,
			"template": msg.Template,
		}).Info("mail sending disabled; message dropped")
	}
	return nil
}
