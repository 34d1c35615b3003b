// internal/store/catalog.go
package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	apperrors "catalyst-alerts/internal/common/errors"
	"catalyst-alerts/internal/models"
	"catalyst-alerts/internal/predicate"

	"github.com/lib/pq"
)

// CatalogStore is the read-only view over the catalysts table owned by the
// data pipeline. Predicates push down to SQL so the scanner never pulls the
// whole catalog; only catalysts with a ticker are returned (tradeable stocks).
type CatalogStore struct {
	db *sql.DB
}

func NewCatalogStore(db *sql.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

const catalogSelectColumns = `
	SELECT id, nct_id, ticker, sponsor, phase, indication,
	       enrollment, market_cap, current_price, completion_date, created_at
	FROM catalysts`

// Find returns catalysts matching the predicate, optionally bounded to items
// created at or after createdAfter. Items in rescanIDs are returned even when
// the time bound would exclude them, so a match that was found but not yet
// delivered stays visible to later sweeps. The bound is a prefilter, not a
// dedup guarantee; callers must still consult the notification ledger.
func (s *CatalogStore) Find(ctx context.Context, pred *predicate.Predicate, createdAfter *time.Time, rescanIDs []string) ([]*models.Catalyst, error) {
	clauses := []string{"ticker IS NOT NULL"}
	var args []interface{}

	if createdAfter != nil {
		if len(rescanIDs) > 0 {
			args = append(args, *createdAfter, pq.Array(rescanIDs))
			clauses = append(clauses, "(created_at >= $1 OR id = ANY($2))")
		} else {
			args = append(args, *createdAfter)
			clauses = append(clauses, "created_at >= $1")
		}
	}

	predClauses, predArgs := pred.SQLPrefilter(len(args) + 1)
	clauses = append(clauses, predClauses...)
	args = append(args, predArgs...)

	query := catalogSelectColumns +
		"\n\tWHERE " + strings.Join(clauses, " AND ") +
		"\n\tORDER BY completion_date ASC NULLS LAST"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("find_catalysts", err)
	}
	defer rows.Close()

	var items []*models.Catalyst
	for rows.Next() {
		item, err := scanCatalyst(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan_catalyst", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageUnavailableError(err)
	}

	return items, nil
}

func scanCatalyst(rows *sql.Rows) (*models.Catalyst, error) {
	var (
		item           models.Catalyst
		nctID          sql.NullString
		sponsor        sql.NullString
		enrollment     sql.NullInt64
		marketCap      sql.NullFloat64
		currentPrice   sql.NullFloat64
		completionDate sql.NullTime
	)
	err := rows.Scan(
		&item.ID,
		&nctID,
		&item.Ticker,
		&sponsor,
		&item.Phase,
		&item.Indication,
		&enrollment,
		&marketCap,
		&currentPrice,
		&completionDate,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.NCTID = nctID.String
	item.Sponsor = sponsor.String
	if enrollment.Valid {
		n := int(enrollment.Int64)
		item.Enrollment = &n
	}
	if marketCap.Valid {
		v := marketCap.Float64
		item.MarketCap = &v
	}
	if currentPrice.Valid {
		v := currentPrice.Float64
		item.CurrentPrice = &v
	}
	if completionDate.Valid {
		t := completionDate.Time
		item.CompletionDate = &t
	}

	return &item, nil
}
