package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogSender logs mail instead of sending it. Used for local development.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(ctx context.Context, toAddress, toName, subject, templateName string, data map[string]string) error {
	body, err := RenderTemplate(templateName, data)
	if err != nil {
		return err
	}
	l.logger.Info("MOCK EMAIL",
		zap.String("to", toAddress),
		zap.String("to_name", toName),
		zap.String("subject", subject),
		zap.Int("body_length", len(body)))
	return nil
}
