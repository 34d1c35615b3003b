// internal/alert/render.go
package alert

import (
	"fmt"
	"time"

	"catalyst-alerts/internal/models"
)

// BuildAlertContent captures the display snapshot for one match at send time.
// The snapshot is what channels render and what the history view shows later,
// so it must not depend on the catalog row still existing.
func BuildAlertContent(search *models.SavedSearch, item *models.Catalyst, baseURL string, now time.Time) *models.AlertContent {
	content := &models.AlertContent{
		SearchName:     search.Name,
		Ticker:         item.Ticker,
		Sponsor:        item.Sponsor,
		Phase:          item.Phase,
		Indication:     item.Indication,
		CompletionDate: "TBD",
		MarketCap:      formatMarketCap(item.MarketCap),
		CurrentPrice:   formatPrice(item.CurrentPrice),
		Enrollment:     item.Enrollment,
		NCTID:          item.NCTID,
		CatalystID:     item.ID,
		DeepLink:       fmt.Sprintf("%s/catalysts/%s", baseURL, item.ID),
	}

	if item.CompletionDate != nil {
		content.CompletionDate = item.CompletionDate.Format("Jan 2, 2006")
		days := int(item.CompletionDate.Sub(now).Hours() / 24)
		if days >= 0 {
			content.DaysUntil = &days
		}
	}

	return content
}

// formatMarketCap renders a dollar amount in billions or millions.
func formatMarketCap(cap *float64) string {
	if cap == nil {
		return "N/A"
	}
	v := *cap
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

func formatPrice(price *float64) string {
	if price == nil {
		return "N/A"
	}
	return fmt.Sprintf("$%.2f", *price)
}
