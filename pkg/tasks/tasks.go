package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeSubscriptionMail = "mail:subscription"
)

// MeetupSnapshot is the meetup as it was when the subscription was admitted.
type MeetupSnapshot struct {
	ID              int64
	Title           string
	Date            time.Time
	OrganizerName   string
	OrganizerEmail  string
	OrganizerLocale string
}

type SubscriptionMailPayload struct {
	SubscriptionID int64
	Meetup         MeetupSnapshot
	UserName       string
}

func NewSubscriptionMailTask(p SubscriptionMailPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSubscriptionMail, payload), nil
}

// SubscriptionMailTaskID is the queue-level dedup key for a subscription's mail.
func SubscriptionMailTaskID(subscriptionID int64) string {
	return fmt.Sprintf("subscription-mail:%d", subscriptionID)
}
