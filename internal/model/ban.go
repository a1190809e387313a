package model

import "time"

// BanProgress tracks the escalating ban state of one address
type BanProgress struct {
	Address     Address   `json:"address"`
	Attempts    int       `json:"attempts"`
	LastAttempt time.Time `json:"last_attempt"`
	BannedUntil time.Time `json:"banned_until"`
}

// ActiveAt reports whether the ban is still in force at now
func (b *BanProgress) ActiveAt(now time.Time) bool {
	return b != nil && b.BannedUntil.After(now)
}
