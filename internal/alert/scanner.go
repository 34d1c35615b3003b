// internal/alert/scanner.go
package alert

import (
	"context"
	"time"

	"catalyst-alerts/internal/common/logger"
	"catalyst-alerts/internal/models"
	"catalyst-alerts/internal/predicate"
	"catalyst-alerts/internal/store"
)

// Scanner finds catalysts a saved search has not yet alerted on. The
// notification ledger is the sole exclusion authority: an item is skipped only
// when the ledger has a record for it. The checkpoint time is a prefilter, and
// last_matched_ids re-includes recent matches past that bound, so a match that
// was suppressed or failed every channel is re-attempted on the next sweep.
type Scanner struct {
	catalog    *store.CatalogStore
	ledger     *store.Ledger
	maxMatches int
	logger     logger.Logger
}

func NewScanner(catalog *store.CatalogStore, ledger *store.Ledger, maxMatches int, log logger.Logger) *Scanner {
	return &Scanner{catalog: catalog, ledger: ledger, maxMatches: maxMatches, logger: log}
}

// Scan returns the fresh candidate catalysts for one saved search, in catalyst
// date order. Returns an INVALID_PREDICATE error for malformed query params.
func (s *Scanner) Scan(ctx context.Context, search *models.SavedSearch) ([]*models.Catalyst, error) {
	pred, err := predicate.Parse(search.ID, search.QueryParams)
	if err != nil {
		return nil, err
	}
	if pred.IsEmpty() {
		s.logger.Warn("search has no constraints, matching the whole catalog", map[string]interface{}{
			"searchId": search.ID,
		})
	}

	var createdAfter *time.Time
	if search.LastChecked != nil {
		createdAfter = search.LastChecked
	}

	items, err := s.catalog.Find(ctx, pred, createdAfter, search.LastMatchedIDs)
	if err != nil {
		return nil, err
	}

	var candidates []*models.Catalyst
	for _, item := range items {
		// The SQL prefilter is a superset; the predicate is re-applied here so
		// matching semantics live in exactly one place.
		if !pred.Matches(item) {
			continue
		}

		notified, err := s.ledger.HasNotified(ctx, search.ID, item.ID)
		if err != nil {
			return nil, err
		}
		if notified {
			continue
		}

		candidates = append(candidates, item)
		if s.maxMatches > 0 && len(candidates) >= s.maxMatches {
			s.logger.Warn("match cap reached, truncating candidates", map[string]interface{}{
				"searchId":   search.ID,
				"maxMatches": s.maxMatches,
			})
			break
		}
	}

	return candidates, nil
}
