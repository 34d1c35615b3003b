// internal/alert/scanner_test.go
package alert

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	apperrors "catalyst-alerts/internal/common/errors"
	"catalyst-alerts/internal/common/logger"
	"catalyst-alerts/internal/models"
	"catalyst-alerts/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// ==========================
// Test Helper Functions
// ==========================

var catalystColumns = []string{
	"id", "nct_id", "ticker", "sponsor", "phase", "indication",
	"enrollment", "market_cap", "current_price", "completion_date", "created_at",
}

func catalystRow(rows *sqlmock.Rows, id, phase string) *sqlmock.Rows {
	return rows.AddRow(
		id, "NCT01234567", "ACME", "Acme Therapeutics", phase, "NSCLC",
		450, 2.5e9, 34.20, time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC), time.Now().UTC(),
	)
}

func scannerSearch(queryParams string, lastMatched []string) *models.SavedSearch {
	return &models.SavedSearch{
		ID:                   "search-001",
		UserID:               "user-001",
		Name:                 "Phase 3 Oncology",
		QueryParams:          json.RawMessage(queryParams),
		NotificationChannels: []string{"email"},
		Active:               true,
		LastMatchedIDs:       lastMatched,
	}
}

func newTestScanner(t *testing.T, maxMatches int) (*Scanner, sqlmock.Sqlmock) {
	db, mock := setupMockDB(t)
	s := NewScanner(store.NewCatalogStore(db), store.NewLedger(db), maxMatches, newTestLogger(t))
	return s, mock
}

// ==========================
// Scan Tests
// ==========================

func TestScanner_Scan_FreshCandidate(t *testing.T) {
	s, mock := newTestScanner(t, 0)

	mock.ExpectQuery(`SELECT id, nct_id, ticker, sponsor, phase, indication`).
		WillReturnRows(catalystRow(sqlmock.NewRows(catalystColumns), "cat-001", "Phase 3"))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("search-001", "cat-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	candidates, err := s.Scan(context.Background(), scannerSearch(`{"phase": "Phase 3"}`, nil))
	assert.NoError(t, err)
	assert.Len(t, candidates, 1)
	assert.Equal(t, "cat-001", candidates[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanner_Scan_UndeliveredMatchEligibleOnNextSweep(t *testing.T) {
	s, mock := newTestScanner(t, 0)

	// First sweep: cat-001 is a fresh candidate.
	mock.ExpectQuery(`SELECT id, nct_id, ticker`).
		WillReturnRows(catalystRow(sqlmock.NewRows(catalystColumns), "cat-001", "Phase 3"))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("search-001", "cat-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	candidates, err := s.Scan(context.Background(), scannerSearch(`{}`, nil))
	assert.NoError(t, err)
	assert.Len(t, candidates, 1)

	// Second sweep: the checkpoint moved past cat-001's created_at, but the
	// item never reached the ledger (quiet hours, every channel failed). The
	// ids from the last sweep widen the query so it is still a candidate.
	lastChecked := time.Now().UTC()
	search := scannerSearch(`{}`, []string{"cat-001"})
	search.LastChecked = &lastChecked

	mock.ExpectQuery(`\(created_at >= \$1 OR id = ANY\(\$2\)\)`).
		WithArgs(lastChecked, pq.Array([]string{"cat-001"})).
		WillReturnRows(catalystRow(sqlmock.NewRows(catalystColumns), "cat-001", "Phase 3"))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("search-001", "cat-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	candidates, err = s.Scan(context.Background(), search)
	assert.NoError(t, err)
	assert.Len(t, candidates, 1)
	assert.Equal(t, "cat-001", candidates[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanner_Scan_LedgerIsAuthoritative(t *testing.T) {
	s, mock := newTestScanner(t, 0)

	mock.ExpectQuery(`SELECT id, nct_id, ticker`).
		WillReturnRows(catalystRow(sqlmock.NewRows(catalystColumns), "cat-001", "Phase 3"))
	// In last_matched_ids and the ledger already has it: delivered, skipped.
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("search-001", "cat-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	candidates, err := s.Scan(context.Background(), scannerSearch(`{}`, []string{"cat-001"}))
	assert.NoError(t, err)
	assert.Empty(t, candidates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanner_Scan_PredicateReappliedInProcess(t *testing.T) {
	s, mock := newTestScanner(t, 0)

	// The row slips through the SQL prefilter but fails the in-process check.
	mock.ExpectQuery(`SELECT id, nct_id, ticker`).
		WillReturnRows(catalystRow(sqlmock.NewRows(catalystColumns), "cat-001", "Phase 1"))

	candidates, err := s.Scan(context.Background(), scannerSearch(`{"phase": "Phase 3"}`, nil))
	assert.NoError(t, err)
	assert.Empty(t, candidates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanner_Scan_InvalidPredicate(t *testing.T) {
	s, _ := newTestScanner(t, 0)

	_, err := s.Scan(context.Background(), scannerSearch(`{"min_revenue": 5}`, nil))
	assert.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidPredicate))
}

func TestScanner_Scan_MatchCap(t *testing.T) {
	s, mock := newTestScanner(t, 2)

	rows := sqlmock.NewRows(catalystColumns)
	catalystRow(rows, "cat-001", "Phase 3")
	catalystRow(rows, "cat-002", "Phase 3")
	catalystRow(rows, "cat-003", "Phase 3")
	mock.ExpectQuery(`SELECT id, nct_id, ticker`).WillReturnRows(rows)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("search-001", "cat-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("search-001", "cat-002").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	candidates, err := s.Scan(context.Background(), scannerSearch(`{}`, nil))
	assert.NoError(t, err)
	assert.Len(t, candidates, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanner_Scan_UnconstrainedSearchWarns(t *testing.T) {
	db, mock := setupMockDB(t)
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewScanner(store.NewCatalogStore(db), store.NewLedger(db), 0, logger.NewZapAdapter(zap.New(core)))

	mock.ExpectQuery(`SELECT id, nct_id, ticker`).
		WillReturnRows(sqlmock.NewRows(catalystColumns))

	_, err := s.Scan(context.Background(), scannerSearch(`{}`, nil))
	assert.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("search has no constraints, matching the whole catalog").Len())

	// A constrained search stays quiet.
	mock.ExpectQuery(`SELECT id, nct_id, ticker`).
		WillReturnRows(sqlmock.NewRows(catalystColumns))
	_, err = s.Scan(context.Background(), scannerSearch(`{"phase": "Phase 3"}`, nil))
	assert.NoError(t, err)
	assert.Equal(t, 1, logs.Len())
}

func TestScanner_Scan_CheckpointBoundPassedToQuery(t *testing.T) {
	s, mock := newTestScanner(t, 0)

	lastChecked := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	search := scannerSearch(`{}`, nil)
	search.LastChecked = &lastChecked

	mock.ExpectQuery(`created_at >= \$1`).
		WithArgs(lastChecked).
		WillReturnRows(sqlmock.NewRows(catalystColumns))

	candidates, err := s.Scan(context.Background(), search)
	assert.NoError(t, err)
	assert.Empty(t, candidates)
	assert.NoError(t, mock.ExpectationsWereMet())
}
