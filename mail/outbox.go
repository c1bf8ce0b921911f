package mail

import (
	"context"
	"sync"
)

// Message is a delivered message held by an Outbox
type Message struct {
	To      string
	Subject string
	Body    string
}

// Outbox is an in memory mailer, it keeps every message it is given.
// Setting Err makes every Send fail with it.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Err != nil {
		return o.Err
	}

	o.messages = append(o.messages, Message{To: to, Subject: subject, Body: body})
	return nil
}

// Messages returns a copy of the delivered messages
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Message, len(o.messages))
	copy(out, o.messages)
	return out
}

// Last returns the most recent message sent to to
func (o *Outbox) Last(to string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := len(o.messages) - 1; i >= 0; i-- {
		if o.messages[i].To == to {
			return o.messages[i], true
		}
	}
	return Message{}, false
}

func (o *Outbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = nil
}
