// internal/models/search.go
package models

import (
	"encoding/json"
	"time"
)

// SavedSearch is a persisted, named filter a user wants continuously monitored.
// The query predicate and channel list are owned by the user; LastChecked and
// LastMatchedIDs are the sweep checkpoint and are written only by the coordinator.
// LastMatchedIDs widens the next sweep's catalog query past the checkpoint bound;
// the notification ledger alone decides whether an item was already delivered.
type SavedSearch struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"userId"`
	Name                 string          `json:"name"`
	QueryParams          json.RawMessage `json:"queryParams"`
	NotificationChannels []string        `json:"notificationChannels"`
	Active               bool            `json:"active"`
	LastChecked          *time.Time      `json:"lastChecked,omitempty"`
	LastMatchedIDs       []string        `json:"lastMatchedIds,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
}
