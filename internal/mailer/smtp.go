package mailer

import (
	"context"
	"time"

	"go.uber.org/zap"
	gomail "gopkg.in/mail.v2"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	dialer dialer
	from   string
	logger *zap.Logger
}

func NewSMTPSender(host string, port int, username, password, from string, logger *zap.Logger) *SMTPSender {
	d := gomail.NewDialer(host, port, username, password)
	d.Timeout = 10 * time.Second
	return &SMTPSender{dialer: d, from: from, logger: logger}
}

// Send renders templateName with data and hands the message to the relay.
// Template problems return ErrRender; relay problems return *DeliveryFault.
func (s *SMTPSender) Send(ctx context.Context, toAddress, toName, subject, templateName string, data map[string]string) error {
	body, err := RenderTemplate(templateName, data)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return &DeliveryFault{Err: err}
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetAddressHeader("To", toAddress, toName)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	start := time.Now()
	if err := s.dialer.DialAndSend(m); err != nil {
		return &DeliveryFault{Err: err}
	}

	s.logger.Info("mail sent",
		zap.String("to", toAddress),
		zap.String("template", templateName),
		zap.Duration("latency", time.Since(start)))
	return nil
}
