package model

import "time"

// ValidationKey is a single-use email confirmation token. Stores drop it once
// ExpiresAt passes.
type ValidationKey struct {
	Token     string    `json:"token" bson:"_id"`
	UserID    UserID    `json:"user_id" bson:"user_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
}

// Expired reports whether the key is no longer usable at now
func (k *ValidationKey) Expired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}
