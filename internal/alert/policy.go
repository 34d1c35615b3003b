// internal/alert/policy.go
package alert

import (
	"context"
	"time"

	"catalyst-alerts/internal/common/logger"
	"catalyst-alerts/internal/models"
	"catalyst-alerts/internal/store"
)

// Suppression reasons reported by the policy gate.
const (
	SuppressReasonQuietHours  = "quiet_hours"
	SuppressReasonRateLimited = "rate_limited"
)

// PolicyGate decides whether a user may receive a notification right now.
// Rate limiting counts the trailing 24 hours against the ledger, re-queried per
// candidate so two matches in one sweep cannot both slip under the limit.
// Errors during evaluation fail open: a broken policy check must not silence
// alerts the user asked for.
type PolicyGate struct {
	ledger *store.Ledger
	logger logger.Logger
}

func NewPolicyGate(ledger *store.Ledger, log logger.Logger) *PolicyGate {
	return &PolicyGate{ledger: ledger, logger: log}
}

// CanSend returns whether sending is allowed, and the suppression reason when
// it is not.
func (g *PolicyGate) CanSend(ctx context.Context, prefs *models.NotificationPreferences, now time.Time) (bool, string) {
	if InQuietHours(prefs, now) {
		return false, SuppressReasonQuietHours
	}

	if prefs.MaxAlertsPerDay > 0 {
		count, err := g.ledger.CountSentSince(ctx, prefs.UserID, now.Add(-24*time.Hour))
		if err != nil {
			g.logger.Warn("rate limit check failed, allowing send", map[string]interface{}{
				"userId": prefs.UserID,
				"error":  err.Error(),
			})
			return true, ""
		}
		if count >= prefs.MaxAlertsPerDay {
			return false, SuppressReasonRateLimited
		}
	}

	return true, ""
}

// InQuietHours reports whether now falls inside the user's quiet window,
// evaluated in the user's timezone. Disabled when either bound is unset. A
// window whose start is after its end spans midnight.
func InQuietHours(prefs *models.NotificationPreferences, now time.Time) bool {
	if prefs.QuietHoursStart == nil || prefs.QuietHoursEnd == nil {
		return false
	}

	loc, err := time.LoadLocation(prefs.Timezone)
	if err != nil {
		return false
	}

	start, ok := parseClock(*prefs.QuietHoursStart)
	if !ok {
		return false
	}
	end, ok := parseClock(*prefs.QuietHoursEnd)
	if !ok {
		return false
	}

	local := now.In(loc)
	current := local.Hour()*3600 + local.Minute()*60 + local.Second()

	if start > end {
		// Overnight window, e.g. 22:00 to 06:00.
		return current >= start || current < end
	}
	return current >= start && current < end
}

// parseClock converts "HH:MM:SS" (or "HH:MM") to seconds since midnight.
func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
		if err != nil {
			return 0, false
		}
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), true
}
