package ban

import (
	"math"
	"time"

	"github.com/mcoot/linkguard/internal/model"
)

// Policy configures escalating address bans
type Policy struct {
	Enabled     bool
	Base        time.Duration
	Multiplier  float64
	Max         time.Duration
	TrackWindow time.Duration
}

// DefaultPolicy returns the default escalation: 30m doubling up to 7d,
// forgetting attempts after 30 days of quiet.
func DefaultPolicy() Policy {
	return Policy{
		Enabled:     true,
		Base:        30 * time.Minute,
		Multiplier:  2.0,
		Max:         7 * 24 * time.Hour,
		TrackWindow: 30 * 24 * time.Hour,
	}
}

// Normalize clamps the policy into its valid range
func (p Policy) Normalize() Policy {
	if p.Base < time.Second {
		p.Base = time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	if p.Max < p.Base {
		p.Max = p.Base
	}
	if p.TrackWindow < 0 {
		p.TrackWindow = 0
	}
	return p
}

// Next applies one rejected attempt from address at now and returns the new
// progress together with the ban duration it imposes. prev may be nil.
func Next(prev *model.BanProgress, address model.Address, now time.Time, policy Policy) (model.BanProgress, time.Duration) {
	p := policy.Normalize()

	attempts := 0
	if prev != nil {
		attempts = prev.Attempts
		if p.TrackWindow > 0 && now.Sub(prev.LastAttempt) > p.TrackWindow {
			attempts = 0
		}
	}
	attempts++

	d := Duration(attempts, p)
	return model.BanProgress{
		Address:     address,
		Attempts:    attempts,
		LastAttempt: now,
		BannedUntil: now.Add(d),
	}, d
}

// Duration is the ban length for the given attempt number, floored to
// whole seconds and capped at the policy maximum.
func Duration(attempts int, policy Policy) time.Duration {
	p := policy.Normalize()
	if attempts < 1 {
		attempts = 1
	}

	baseSec := math.Floor(p.Base.Seconds())
	maxSec := math.Floor(p.Max.Seconds())
	secs := math.Floor(baseSec * math.Pow(p.Multiplier, float64(attempts-1)))
	if math.IsInf(secs, 0) || math.IsNaN(secs) || secs > maxSec {
		secs = maxSec
	}
	if secs < baseSec {
		secs = baseSec
	}
	return time.Duration(secs) * time.Second
}

// Remaining returns how long the ban on progress still runs at now, or zero
func Remaining(progress *model.BanProgress, now time.Time) time.Duration {
	if !progress.ActiveAt(now) {
		return 0
	}
	return progress.BannedUntil.Sub(now)
}
