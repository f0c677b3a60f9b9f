package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"meetapp/internal/mailer"
	"meetapp/pkg/tasks"
)

// Renderer produces the localized notification for a subscription.
type Renderer interface {
	Render(meetup tasks.MeetupSnapshot, userName, locale string) (*mailer.Message, error)
}

type TaskHandler struct {
	renderer Renderer
	sender   mailer.Sender
	logger   *zap.Logger
	onSent   func(time.Duration)
}

// NewTaskHandler builds the notification job handler. onSent is optional.
func NewTaskHandler(renderer Renderer, sender mailer.Sender, logger *zap.Logger, onSent func(time.Duration)) *TaskHandler {
	if onSent == nil {
		onSent = func(time.Duration) {}
	}
	return &TaskHandler{renderer: renderer, sender: sender, logger: logger, onSent: onSent}
}

// HandleSubscriptionMailTask tells the organizer about a new subscription.
// Malformed payloads and render failures are permanent and skip retries;
// delivery faults are returned as-is so the queue retries them.
func (h *TaskHandler) HandleSubscriptionMailTask(ctx context.Context, t *asynq.Task) error {
	start := time.Now()

	var p tasks.SubscriptionMailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With(
		zap.Int64("subscription_id", p.SubscriptionID),
		zap.Int64("meetup_id", p.Meetup.ID),
	)

	msg, err := h.renderer.Render(p.Meetup, p.UserName, p.Meetup.OrganizerLocale)
	if err != nil {
		return fmt.Errorf("failed to render subscription mail: %v: %w", err, asynq.SkipRetry)
	}

	err = h.sender.Send(ctx, msg.ToAddress, msg.ToName, msg.Subject, msg.Template, msg.Context)
	if err != nil {
		var fault *mailer.DeliveryFault
		if !errors.As(err, &fault) {
			return fmt.Errorf("failed to send subscription mail: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to send subscription mail: %w", err)
	}

	elapsed := time.Since(start)
	h.onSent(elapsed)
	log.Info("subscription mail sent", zap.String("to", msg.ToAddress), zap.Duration("latency", elapsed))
	return nil
}
