package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gomail "gopkg.in/mail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func testData() map[string]string {
	return map[string]string{
		"lang":      "pt-BR",
		"subject":   "Nova Inscrição",
		"greeting":  "Olá, Ana",
		"intro":     "Bruno acabou de se inscrever no seu meetup Go Meetup.",
		"meetup":    "Go Meetup",
		"date":      "19 de outubro, às 15:30h",
		"signature": "Equipe MeetApp",
	}
}

func TestSMTPSender_Send(t *testing.T) {
	d := &fakeDialer{}
	s := &SMTPSender{dialer: d, from: "noreply@meetapp.com", logger: zap.NewNop()}

	err := s.Send(context.Background(), "ana@example.com", "Ana", "Nova Inscrição", SubscriptionTemplate, testData())
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{"noreply@meetapp.com"}, m.GetHeader("From"))
	assert.Len(t, m.GetHeader("To"), 1)
	assert.Contains(t, m.GetHeader("To")[0], "ana@example.com")
}

func TestSMTPSender_RelayFailureIsDeliveryFault(t *testing.T) {
	relayErr := errors.New("421 service not available")
	s := &SMTPSender{dialer: &fakeDialer{err: relayErr}, from: "noreply@meetapp.com", logger: zap.NewNop()}

	err := s.Send(context.Background(), "ana@example.com", "Ana", "Nova Inscrição", SubscriptionTemplate, testData())

	var fault *DeliveryFault
	require.ErrorAs(t, err, &fault)
	assert.ErrorIs(t, err, relayErr)
}

func TestSMTPSender_UnknownTemplateIsNotADeliveryFault(t *testing.T) {
	d := &fakeDialer{}
	s := &SMTPSender{dialer: d, from: "noreply@meetapp.com", logger: zap.NewNop()}

	err := s.Send(context.Background(), "ana@example.com", "Ana", "Nova Inscrição", "missing", testData())

	var fault *DeliveryFault
	assert.False(t, errors.As(err, &fault))
	assert.ErrorIs(t, err, ErrRender)
	assert.Empty(t, d.sent)
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	d := &fakeDialer{}
	s := &SMTPSender{dialer: d, from: "noreply@meetapp.com", logger: zap.NewNop()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Send(ctx, "ana@example.com", "Ana", "Nova Inscrição", SubscriptionTemplate, testData())

	var fault *DeliveryFault
	assert.ErrorAs(t, err, &fault)
	assert.Empty(t, d.sent)
}

func TestLogSender_Send(t *testing.T) {
	s := NewLogSender(zap.NewNop())
	assert.NoError(t, s.Send(context.Background(), "ana@example.com", "Ana", "Nova Inscrição", SubscriptionTemplate, testData()))
	assert.ErrorIs(t, s.Send(context.Background(), "ana@example.com", "Ana", "x", "missing", nil), ErrRender)
}
