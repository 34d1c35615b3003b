// internal/models/catalyst.go
package models

import "time"

// Catalyst is one catalog item: an upcoming clinical-trial event for a tradeable
// company. The catalog pipeline owns every field; this engine only reads them.
type Catalyst struct {
	ID             string     `json:"id"`
	NCTID          string     `json:"nctId"`
	Ticker         string     `json:"ticker"`
	Sponsor        string     `json:"sponsor"`
	Phase          string     `json:"phase"` // "Phase 1" .. "Phase 4"
	Indication     string     `json:"indication"`
	Enrollment     *int       `json:"enrollment,omitempty"`
	MarketCap      *float64   `json:"marketCap,omitempty"`
	CurrentPrice   *float64   `json:"currentPrice,omitempty"`
	CompletionDate *time.Time `json:"completionDate,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}
