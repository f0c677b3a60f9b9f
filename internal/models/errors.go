package models

import "errors"

// Storage-level sentinels shared by the db layer and its consumers.
var (
	ErrNotFound              = errors.New("not found")
	ErrDuplicateSubscription = errors.New("duplicate subscription")
)
