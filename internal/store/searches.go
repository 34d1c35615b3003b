// internal/store/searches.go
package store

import (
	"context"
	"database/sql"
	"time"

	apperrors "catalyst-alerts/internal/common/errors"
	"catalyst-alerts/internal/models"

	"github.com/lib/pq"
)

// SearchStore reads active saved searches and writes their sweep checkpoints.
// Search creation/editing/deletion belongs to the UI layer and never happens here.
type SearchStore struct {
	db *sql.DB
}

func NewSearchStore(db *sql.DB) *SearchStore {
	return &SearchStore{db: db}
}

const listActiveQuery = `
	SELECT id, user_id, name, query_params, notification_channels,
	       active, last_checked, last_matched_ids, created_at
	FROM saved_searches
	WHERE active = true`

// ListActive returns every active saved search. Order is unspecified; searches
// are independent.
func (s *SearchStore) ListActive(ctx context.Context) ([]*models.SavedSearch, error) {
	rows, err := s.db.QueryContext(ctx, listActiveQuery)
	if err != nil {
		return nil, apperrors.NewStorageUnavailableError(err)
	}
	defer rows.Close()

	var searches []*models.SavedSearch
	for rows.Next() {
		var (
			search      models.SavedSearch
			lastChecked sql.NullTime
		)
		err := rows.Scan(
			&search.ID,
			&search.UserID,
			&search.Name,
			&search.QueryParams,
			pq.Array(&search.NotificationChannels),
			&search.Active,
			&lastChecked,
			pq.Array(&search.LastMatchedIDs),
			&search.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("list_active_searches", err)
		}
		if lastChecked.Valid {
			t := lastChecked.Time
			search.LastChecked = &t
		}
		searches = append(searches, &search)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageUnavailableError(err)
	}

	return searches, nil
}

const updateCheckpointQuery = `
	UPDATE saved_searches
	SET last_checked = GREATEST(COALESCE(last_checked, to_timestamp(0)), $2),
	    last_matched_ids = $3
	WHERE id = $1`

// UpdateCheckpoint advances a search's checkpoint to the sweep start time and
// replaces last_matched_ids with the full current matching set. GREATEST keeps
// last_checked monotonic even when overlapping sweeps race on the same row.
func (s *SearchStore) UpdateCheckpoint(ctx context.Context, searchID string, sweepStart time.Time, matchedIDs []string) error {
	if matchedIDs == nil {
		matchedIDs = []string{}
	}
	_, err := s.db.ExecContext(ctx, updateCheckpointQuery, searchID, sweepStart, pq.Array(matchedIDs))
	if err != nil {
		return apperrors.NewCheckpointFailedError(searchID, err)
	}
	return nil
}
