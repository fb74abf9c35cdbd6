package memory

import (
	"context"
	"sync"
)

// Message is an email captured by Notifier.
type Message struct {
	Address string
	Subject string
	Body    string
}

// Notifier records every email instead of sending it.
type Notifier struct {
	mu   sync.Mutex
	sent []Message
	// Err, when set, is returned by every SendEmail call.
	Err error
}

// NewNotifier creates a recording notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) SendEmail(ctx context.Context, address, subject, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Message{Address: address, Subject: subject, Body: message})
	return n.Err
}

// Sent returns the recorded emails.
func (n *Notifier) Sent() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.sent...)
}
