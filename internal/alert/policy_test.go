// internal/alert/policy_test.go
package alert

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"catalyst-alerts/internal/common/logger"
	"catalyst-alerts/internal/models"
	"catalyst-alerts/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func newTestLogger(t *testing.T) logger.Logger {
	return logger.NewTestLogger(t)
}

func strPtr(s string) *string { return &s }

// ==========================
// Quiet Hours Tests
// ==========================

func TestInQuietHours(t *testing.T) {
	// 2026-08-10 is not a DST boundary in any zone used below.
	tests := []struct {
		name     string
		start    *string
		end      *string
		timezone string
		nowUTC   time.Time
		want     bool
	}{
		{
			name:     "overnight window, inside before midnight",
			start:    strPtr("22:00:00"),
			end:      strPtr("06:00:00"),
			timezone: "America/New_York",
			// 23:00 local = 03:00 UTC next day (EDT, UTC-4)
			nowUTC: time.Date(2026, 8, 11, 3, 0, 0, 0, time.UTC),
			want:   true,
		},
		{
			name:     "overnight window, inside after midnight",
			start:    strPtr("22:00:00"),
			end:      strPtr("06:00:00"),
			timezone: "America/New_York",
			// 02:30 local
			nowUTC: time.Date(2026, 8, 11, 6, 30, 0, 0, time.UTC),
			want:   true,
		},
		{
			name:     "overnight window, outside in the morning",
			start:    strPtr("22:00:00"),
			end:      strPtr("06:00:00"),
			timezone: "America/New_York",
			// 07:00 local
			nowUTC: time.Date(2026, 8, 11, 11, 0, 0, 0, time.UTC),
			want:   false,
		},
		{
			name:     "same-day window, inside",
			start:    strPtr("12:00:00"),
			end:      strPtr("14:00:00"),
			timezone: "UTC",
			nowUTC:   time.Date(2026, 8, 10, 13, 0, 0, 0, time.UTC),
			want:     true,
		},
		{
			name:     "same-day window, end bound is exclusive",
			start:    strPtr("12:00:00"),
			end:      strPtr("14:00:00"),
			timezone: "UTC",
			nowUTC:   time.Date(2026, 8, 10, 14, 0, 0, 0, time.UTC),
			want:     false,
		},
		{
			name:     "start bound is inclusive",
			start:    strPtr("12:00:00"),
			end:      strPtr("14:00:00"),
			timezone: "UTC",
			nowUTC:   time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC),
			want:     true,
		},
		{
			name:     "evaluated in the user's timezone, not UTC",
			start:    strPtr("22:00:00"),
			end:      strPtr("06:00:00"),
			timezone: "Asia/Tokyo",
			// 14:00 UTC = 23:00 Tokyo
			nowUTC: time.Date(2026, 8, 10, 14, 0, 0, 0, time.UTC),
			want:   true,
		},
		{
			name:     "disabled when start unset",
			start:    nil,
			end:      strPtr("06:00:00"),
			timezone: "UTC",
			nowUTC:   time.Date(2026, 8, 10, 3, 0, 0, 0, time.UTC),
			want:     false,
		},
		{
			name:     "disabled when end unset",
			start:    strPtr("22:00:00"),
			end:      nil,
			timezone: "UTC",
			nowUTC:   time.Date(2026, 8, 10, 23, 0, 0, 0, time.UTC),
			want:     false,
		},
		{
			name:     "unknown timezone fails open",
			start:    strPtr("00:00:00"),
			end:      strPtr("23:59:59"),
			timezone: "Mars/Olympus_Mons",
			nowUTC:   time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC),
			want:     false,
		},
		{
			name:     "short HH:MM bounds accepted",
			start:    strPtr("22:00"),
			end:      strPtr("06:00"),
			timezone: "UTC",
			nowUTC:   time.Date(2026, 8, 10, 23, 0, 0, 0, time.UTC),
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs := &models.NotificationPreferences{
				UserID:          "user-001",
				QuietHoursStart: tt.start,
				QuietHoursEnd:   tt.end,
				Timezone:        tt.timezone,
			}
			assert.Equal(t, tt.want, InQuietHours(prefs, tt.nowUTC))
		})
	}
}

// ==========================
// Rate Limit Tests
// ==========================

func TestPolicyGate_CanSend_RateLimit(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		sentSoFar  int
		wantAllow  bool
		wantReason string
	}{
		{name: "under the limit", limit: 10, sentSoFar: 9, wantAllow: true},
		{name: "at the limit", limit: 10, sentSoFar: 10, wantAllow: false, wantReason: SuppressReasonRateLimited},
		{name: "limit of one", limit: 1, sentSoFar: 1, wantAllow: false, wantReason: SuppressReasonRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			mock.ExpectQuery(`SELECT COUNT\(\*\) FROM alert_notifications`).
				WithArgs("user-001", sqlmock.AnyArg()).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tt.sentSoFar))

			gate := NewPolicyGate(store.NewLedger(db), newTestLogger(t))
			prefs := models.DefaultPreferences("user-001", tt.limit)

			allowed, reason := gate.CanSend(context.Background(), prefs, time.Now().UTC())
			assert.Equal(t, tt.wantAllow, allowed)
			assert.Equal(t, tt.wantReason, reason)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPolicyGate_CanSend_QuietHoursBeforeRateLimit(t *testing.T) {
	db, _ := setupMockDB(t)
	gate := NewPolicyGate(store.NewLedger(db), newTestLogger(t))

	prefs := &models.NotificationPreferences{
		UserID:          "user-001",
		MaxAlertsPerDay: 10,
		QuietHoursStart: strPtr("00:00:00"),
		QuietHoursEnd:   strPtr("23:59:59"),
		Timezone:        "UTC",
	}

	// No ledger expectation: the quiet-hours check short-circuits the count.
	allowed, reason := gate.CanSend(context.Background(), prefs, time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC))
	assert.False(t, allowed)
	assert.Equal(t, SuppressReasonQuietHours, reason)
}

func TestPolicyGate_CanSend_FailsOpenOnLedgerError(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM alert_notifications`).
		WillReturnError(sql.ErrConnDone)

	gate := NewPolicyGate(store.NewLedger(db), newTestLogger(t))
	prefs := models.DefaultPreferences("user-001", 10)

	allowed, reason := gate.CanSend(context.Background(), prefs, time.Now().UTC())
	assert.True(t, allowed)
	assert.Empty(t, reason)
}

func TestPolicyGate_CanSend_ZeroLimitDisablesRateLimit(t *testing.T) {
	db, _ := setupMockDB(t)
	gate := NewPolicyGate(store.NewLedger(db), newTestLogger(t))

	prefs := models.DefaultPreferences("user-001", 0)

	allowed, reason := gate.CanSend(context.Background(), prefs, time.Now().UTC())
	assert.True(t, allowed)
	assert.Empty(t, reason)
}
