package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"meetapp/internal/admission"
	"meetapp/internal/middleware"
)

type subscribeRequest struct {
	MeetupID int64 `json:"meetup_id"`
}

func (h *Handlers) GetSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	subscriptions, err := h.lister.ListUpcomingSubscriptions(r.Context(), userID, time.Now())
	if err != nil {
		h.logger.Error("error listing subscriptions", zap.Int64("user_id", userID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, subscriptions)
}

func (h *Handlers) PostSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MeetupID <= 0 {
		respondError(w, http.StatusBadRequest, "Validation fails")
		return
	}

	confirmation, err := h.subscriber.Subscribe(r.Context(), userID, req.MeetupID)
	if err != nil {
		h.mapError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, confirmation)
}

// mapError translates admission rejections to HTTP status codes. Anything
// else is an internal fault and its detail stays in the logs.
func (h *Handlers) mapError(w http.ResponseWriter, r *http.Request, err error) {
	var rejection *admission.Error
	if !errors.As(err, &rejection) {
		h.logger.Error("subscription request failed",
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	switch rejection.Kind {
	case admission.KindNotFound:
		respondError(w, http.StatusNotFound, rejection.Message)
	default:
		respondError(w, http.StatusBadRequest, rejection.Message)
	}
}
