package admission

// Kind classifies an admission rejection.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindSelfSubscription  Kind = "self_subscription_forbidden"
	KindPastMeetup        Kind = "past_meetup_forbidden"
	KindAlreadySubscribed Kind = "already_subscribed"
	KindScheduleConflict  Kind = "schedule_conflict"
)

// Error is an expected, user-facing rejection of a subscription request.
// Infrastructure failures are never of this type.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "Meetup not found"}
	ErrSelfSubscription  = &Error{Kind: KindSelfSubscription, Message: "You can't subscribe to your own meetups"}
	ErrPastMeetup        = &Error{Kind: KindPastMeetup, Message: "You can't subscribe to past meetups"}
	ErrAlreadySubscribed = &Error{Kind: KindAlreadySubscribed, Message: "You are already subscribed to this meetup"}
	ErrScheduleConflict  = &Error{Kind: KindScheduleConflict, Message: "You can't subscribe to two meetups at the same time"}
)
