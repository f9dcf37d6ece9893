package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-lms-registration/pkg/mailer"
	mailtpl "github.com/oksasatya/go-lms-registration/pkg/mailer/templates"
)

// deliverer is satisfied by *mailer.Mailgun.
type deliverer interface {
	Deliver(ctx context.Context, env mailer.Envelope) error
}

type outcome int

const (
	ack outcome = iota
	drop
	requeue
)

type worker struct {
	sender  deliverer
	logger  *logrus.Logger
	timeout time.Duration
}

// handle decodes, renders when needed and sends one queued job.
// Malformed jobs are dropped; transport failures are requeued.
func (w *worker) handle(ctx context.Context, body []byte) (outcome, error) {
	var job mailer.EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return drop, fmt.Errorf("bad message: %w", err)
	}
	if job.To == "" {
		return drop, mailer.ErrNoRecipient
	}

	subject, text, html := job.Subject, job.Text, job.HTML
	if !job.Rendered() {
		if job.Template == "" {
			return drop, errors.New("job has neither body nor template")
		}
		s, t, h, err := mailtpl.Render(job.Template, job.Data)
		if err != nil {
			return drop, fmt.Errorf("render %s: %w", job.Template, err)
		}
		if subject == "" {
			subject = s
		}
		text, html = t, h
	}

	c, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.sender.Deliver(c, job.Envelope(subject, text, html)); err != nil {
		return requeue, fmt.Errorf("send failed: %w", err)
	}
	w.logger.WithFields(logrus.Fields{"to": job.To, "template": job.Template}).Info("email sent")
	return ack, nil
}
