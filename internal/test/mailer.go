package test

import (
	"context"
	"sync"
)

// SentMail is one call recorded by MockSender.
type SentMail struct {
	ToAddress string
	ToName    string
	Subject   string
	Template  string
	Data      map[string]string
}

// MockSender records mail instead of sending it. Err, when set, is returned
// by every call.
type MockSender struct {
	mu   sync.Mutex
	Sent []SentMail
	Err  error
}

func (m *MockSender) Send(ctx context.Context, toAddress, toName, subject, templateName string, data map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentMail{
		ToAddress: toAddress,
		ToName:    toName,
		Subject:   subject,
		Template:  templateName,
		Data:      data,
	})
	return nil
}
