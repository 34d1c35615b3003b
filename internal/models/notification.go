// internal/models/notification.go
package models

import "time"

// Channel identifiers
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelSlack = "slack"
)

// NotificationRecord is one row of the dedup ledger. Created exactly once per
// (saved search, catalyst) pair; the database enforces the uniqueness. Only the
// acknowledgment fields are ever mutated afterwards.
type NotificationRecord struct {
	ID             string       `json:"id"`
	SavedSearchID  string       `json:"savedSearchId"`
	CatalystID     string       `json:"catalystId"`
	UserID         string       `json:"userId"`
	ChannelsUsed   []string     `json:"channelsUsed"`
	AlertContent   AlertContent `json:"alertContent"`
	SentAt         time.Time    `json:"sentAt"`
	Acknowledged   bool         `json:"acknowledged"`
	AcknowledgedAt *time.Time   `json:"acknowledgedAt,omitempty"`
}

// AlertContent is the content snapshot captured at send time. Channels render
// from this, and the history view displays it without re-reading the catalog.
type AlertContent struct {
	SearchName     string `json:"search_name"`
	Ticker         string `json:"ticker"`
	Sponsor        string `json:"sponsor"`
	Phase          string `json:"phase"`
	Indication     string `json:"indication"`
	CompletionDate string `json:"completion_date"`
	DaysUntil      *int   `json:"days_until,omitempty"`
	MarketCap      string `json:"market_cap"`
	CurrentPrice   string `json:"current_price"`
	Enrollment     *int   `json:"enrollment,omitempty"`
	NCTID          string `json:"nct_id"`
	CatalystID     string `json:"catalyst_id"`
	DeepLink       string `json:"deep_link"`
}
