package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"meetapp/internal/admission"
	"meetapp/internal/models"
)

// Subscriber admits subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, userID, meetupID int64) (*admission.Confirmation, error)
}

// SubscriptionLister lists a user's upcoming subscriptions.
type SubscriptionLister interface {
	ListUpcomingSubscriptions(ctx context.Context, userID int64, now time.Time) ([]models.UpcomingSubscription, error)
}

type Handlers struct {
	subscriber Subscriber
	lister     SubscriptionLister
	logger     *zap.Logger
}

func New(subscriber Subscriber, lister SubscriptionLister, logger *zap.Logger) *Handlers {
	return &Handlers{
		subscriber: subscriber,
		lister:     lister,
		logger:     logger,
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
