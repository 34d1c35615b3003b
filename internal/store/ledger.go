// internal/store/ledger.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	apperrors "catalyst-alerts/internal/common/errors"
	"catalyst-alerts/internal/models"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code raised by the ledger's
// (saved_search_id, catalyst_id) unique constraint.
const uniqueViolation = "23505"

// Ledger is the durable record of notifications already sent. The unique
// constraint in the database, not this code, is what makes delivery
// at-most-once: an application-level check-then-insert would race between
// concurrent sweeps.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

const hasNotifiedQuery = `
	SELECT EXISTS (
		SELECT 1 FROM alert_notifications
		WHERE saved_search_id = $1 AND catalyst_id = $2
	)`

// HasNotified reports whether a notification was already recorded for the
// (search, item) pair. This is a pre-check only; Record remains safe to call
// regardless of the answer.
func (l *Ledger) HasNotified(ctx context.Context, searchID, catalystID string) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx, hasNotifiedQuery, searchID, catalystID).Scan(&exists)
	if err != nil {
		return false, apperrors.NewQueryExecutionFailedError("has_notified", err)
	}
	return exists, nil
}

const recordInsertQuery = `
	INSERT INTO alert_notifications
		(id, saved_search_id, catalyst_id, user_id, channels_used, alert_content, notification_sent_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Record inserts a notification record. A DUPLICATE_RECORD error means the
// constraint fired because another sweep got there first; callers treat that
// as a successful no-op.
func (l *Ledger) Record(ctx context.Context, rec *models.NotificationRecord) error {
	content, err := json.Marshal(rec.AlertContent)
	if err != nil {
		return apperrors.NewRecordInsertFailedError(err)
	}

	_, err = l.db.ExecContext(ctx, recordInsertQuery,
		rec.ID,
		rec.SavedSearchID,
		rec.CatalystID,
		rec.UserID,
		pq.Array(rec.ChannelsUsed),
		content,
		rec.SentAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return apperrors.NewDuplicateRecordError(rec.SavedSearchID, rec.CatalystID)
		}
		return apperrors.NewRecordInsertFailedError(err)
	}

	return nil
}

const countSentSinceQuery = `
	SELECT COUNT(*) FROM alert_notifications
	WHERE user_id = $1 AND notification_sent_at >= $2`

// CountSentSince counts the user's notifications sent at or after the cutoff.
// Backed by the (user_id, notification_sent_at) index; used for the trailing
// 24-hour rate limit.
func (l *Ledger) CountSentSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := l.db.QueryRowContext(ctx, countSentSinceQuery, userID, since).Scan(&count)
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("count_sent_since", err)
	}
	return count, nil
}

const acknowledgeQuery = `
	UPDATE alert_notifications
	SET user_acknowledged = true, acknowledged_at = $2
	WHERE id = $1 AND user_acknowledged = false`

// Acknowledge marks a notification as read. Acknowledging twice is a no-op.
func (l *Ledger) Acknowledge(ctx context.Context, notificationID string, at time.Time) error {
	_, err := l.db.ExecContext(ctx, acknowledgeQuery, notificationID, at)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("acknowledge", err)
	}
	return nil
}

const listRecentQuery = `
	SELECT id, saved_search_id, catalyst_id, user_id, channels_used,
	       alert_content, notification_sent_at, user_acknowledged, acknowledged_at
	FROM alert_notifications
	WHERE user_id = $1
	ORDER BY notification_sent_at DESC
	LIMIT $2`

// ListRecent returns the user's most recent notifications, newest first, for
// the history view.
func (l *Ledger) ListRecent(ctx context.Context, userID string, limit int) ([]*models.NotificationRecord, error) {
	rows, err := l.db.QueryContext(ctx, listRecentQuery, userID, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_recent", err)
	}
	defer rows.Close()

	var records []*models.NotificationRecord
	for rows.Next() {
		var (
			rec            models.NotificationRecord
			content        []byte
			acknowledgedAt sql.NullTime
		)
		err := rows.Scan(
			&rec.ID,
			&rec.SavedSearchID,
			&rec.CatalystID,
			&rec.UserID,
			pq.Array(&rec.ChannelsUsed),
			&content,
			&rec.SentAt,
			&rec.Acknowledged,
			&acknowledgedAt,
		)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan_notification", err)
		}
		if err := json.Unmarshal(content, &rec.AlertContent); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("decode_alert_content", err)
		}
		if acknowledgedAt.Valid {
			t := acknowledgedAt.Time
			rec.AcknowledgedAt = &t
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageUnavailableError(err)
	}

	return records, nil
}

const purgeQuery = `
	DELETE FROM alert_notifications
	WHERE notification_sent_at < $1`

// PurgeOlderThan deletes records sent before the cutoff. Run by the retention
// maintenance pass, not by sweeps.
func (l *Ledger) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, purgeQuery, cutoff)
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("purge", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return deleted, nil
}
