package mailer

import "context"

// Publisher puts a JSON document on the email queue.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// Queue hands messages to the email worker through RabbitMQ. A publish
// failure is reported as a send failure.
type Queue struct {
	Pub Publisher
}

func NewQueue(pub Publisher) *Queue {
	return &Queue{Pub: pub}
}

func (q *Queue) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	return q.Pub.PublishJSON(ctx, msg.Job())
}
