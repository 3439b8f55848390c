package notify

import (
	"context"
	"sync"
)

// Notification is one captured subject/message pair.
type Notification struct {
	Subject string
	Message string
}

// Memory records notifications in-process, for development and tests.
type Memory struct {
	mu   sync.Mutex
	sent []Notification
}

// NewMemory creates an empty in-memory notifier.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Notify(_ context.Context, subject, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Notification{Subject: subject, Message: message})
	return nil
}

// Sent returns a copy of everything notified so far.
func (m *Memory) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.sent...)
}
