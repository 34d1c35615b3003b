// internal/models/preferences.go
package models

// Tier determines which channels a user may use regardless of preference flags.
type Tier string

const (
	TierFree  Tier = "free"
	TierTrial Tier = "trial"
	TierPro   Tier = "pro"
)

// AllowsChannel reports whether the tier permits the channel at all. SMS and
// Slack are gated to the pro tier; email is available everywhere.
func (t Tier) AllowsChannel(channel string) bool {
	switch channel {
	case ChannelEmail:
		return true
	case ChannelSMS, ChannelSlack:
		return t == TierPro
	default:
		return false
	}
}

// NotificationPreferences is the per-user notification policy. Mutated only by
// the user; read-only to the alert engine. Quiet hours are local times of day
// ("HH:MM:SS") in Timezone; when either bound is unset quiet hours are disabled.
type NotificationPreferences struct {
	UserID          string  `json:"userId"`
	MaxAlertsPerDay int     `json:"maxAlertsPerDay"`
	QuietHoursStart *string `json:"quietHoursStart,omitempty"`
	QuietHoursEnd   *string `json:"quietHoursEnd,omitempty"`
	Timezone        string  `json:"timezone"` // IANA zone id
	EmailEnabled    bool    `json:"emailEnabled"`
	SMSEnabled      bool    `json:"smsEnabled"`
	SlackEnabled    bool    `json:"slackEnabled"`
	PhoneNumber     *string `json:"phoneNumber,omitempty"`
	SlackWebhookURL *string `json:"slackWebhookUrl,omitempty"`
}

// ChannelEnabled reports the user-level enablement flag for a channel.
func (p *NotificationPreferences) ChannelEnabled(channel string) bool {
	switch channel {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelSMS:
		return p.SMSEnabled
	case ChannelSlack:
		return p.SlackEnabled
	default:
		return false
	}
}

// DefaultPreferences returns the policy used when no preferences row exists:
// default rate limit, no quiet hours, email only.
func DefaultPreferences(userID string, dailyLimit int) *NotificationPreferences {
	return &NotificationPreferences{
		UserID:          userID,
		MaxAlertsPerDay: dailyLimit,
		Timezone:        "America/New_York",
		EmailEnabled:    true,
	}
}
