package domain

import "time"

type User struct {
	ID                string
	Email             string
	PasswordHash      string // argon2 encoded
	PreferredLanguage string
	BannedUntil       *int64 // epoch millis, nil when never banned
	CreatedAt         time.Time
}

// Banned reports whether the user is banned at the given time.
func (u User) Banned(now time.Time) bool {
	return u.BannedUntil != nil && *u.BannedUntil > now.UnixMilli()
}
