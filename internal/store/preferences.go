// internal/store/preferences.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "catalyst-alerts/internal/common/errors"
	"catalyst-alerts/internal/models"

	"github.com/redis/go-redis/v9"
)

const tierCacheKeyPrefix = "user:tier:"

// PreferenceStore reads per-user notification policy and contact details. The
// user's tier is cached in Redis because billing changes it rarely and every
// candidate match reads it.
type PreferenceStore struct {
	db           *sql.DB
	redis        *redis.Client
	tierCacheTTL time.Duration
}

func NewPreferenceStore(db *sql.DB, rdb *redis.Client, tierCacheTTL time.Duration) *PreferenceStore {
	return &PreferenceStore{db: db, redis: rdb, tierCacheTTL: tierCacheTTL}
}

const getPreferencesQuery = `
	SELECT user_id, max_alerts_per_day, quiet_hours_start, quiet_hours_end,
	       user_timezone, email_enabled, sms_enabled, slack_enabled,
	       phone_number, slack_webhook_url
	FROM notification_preferences
	WHERE user_id = $1`

// Get returns the user's notification preferences, or a PREFERENCES_NOT_FOUND
// error when no row exists. Callers fall back to DefaultPreferences.
func (s *PreferenceStore) Get(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	var (
		prefs           models.NotificationPreferences
		quietStart      sql.NullString
		quietEnd        sql.NullString
		phoneNumber     sql.NullString
		slackWebhookURL sql.NullString
	)
	err := s.db.QueryRowContext(ctx, getPreferencesQuery, userID).Scan(
		&prefs.UserID,
		&prefs.MaxAlertsPerDay,
		&quietStart,
		&quietEnd,
		&prefs.Timezone,
		&prefs.EmailEnabled,
		&prefs.SMSEnabled,
		&prefs.SlackEnabled,
		&phoneNumber,
		&slackWebhookURL,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewPreferencesNotFoundError(userID)
		}
		return nil, apperrors.NewQueryExecutionFailedError("get_preferences", err)
	}

	if quietStart.Valid {
		v := quietStart.String
		prefs.QuietHoursStart = &v
	}
	if quietEnd.Valid {
		v := quietEnd.String
		prefs.QuietHoursEnd = &v
	}
	if phoneNumber.Valid {
		v := phoneNumber.String
		prefs.PhoneNumber = &v
	}
	if slackWebhookURL.Valid {
		v := slackWebhookURL.String
		prefs.SlackWebhookURL = &v
	}

	return &prefs, nil
}

const getTierQuery = `SELECT tier FROM users WHERE id = $1`

// GetTier returns the user's tier, cache-aside through Redis. Unknown users
// and cache misses on a broken Redis both degrade to a direct DB read; a
// missing row degrades to the free tier.
func (s *PreferenceStore) GetTier(ctx context.Context, userID string) (models.Tier, error) {
	cacheKey := tierCacheKeyPrefix + userID

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			return models.Tier(cached), nil
		}
	}

	var tier string
	err := s.db.QueryRowContext(ctx, getTierQuery, userID).Scan(&tier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TierFree, nil
		}
		return models.TierFree, apperrors.NewQueryExecutionFailedError("get_tier", err)
	}

	if s.redis != nil {
		_ = s.redis.Set(ctx, cacheKey, tier, s.tierCacheTTL).Err()
	}

	return models.Tier(tier), nil
}

const getEmailQuery = `SELECT email FROM users WHERE id = $1`

// GetEmail returns the user's email address for the email channel.
func (s *PreferenceStore) GetEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx, getEmailQuery, userID).Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperrors.NewPreferencesNotFoundError(userID)
		}
		return "", apperrors.NewQueryExecutionFailedError("get_email", err)
	}
	return email, nil
}
