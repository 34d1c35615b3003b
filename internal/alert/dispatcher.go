// internal/alert/dispatcher.go
package alert

import (
	"context"
	"time"

	"catalyst-alerts/internal/channels"
	apperrors "catalyst-alerts/internal/common/errors"
	"catalyst-alerts/internal/common/logger"
	"catalyst-alerts/internal/common/metrics"
	"catalyst-alerts/internal/models"

	"github.com/google/uuid"
)

// PreferenceSource is the preference-store surface the dispatcher needs.
type PreferenceSource interface {
	Get(ctx context.Context, userID string) (*models.NotificationPreferences, error)
	GetTier(ctx context.Context, userID string) (models.Tier, error)
	GetEmail(ctx context.Context, userID string) (string, error)
}

// Gate decides whether a send is allowed right now.
type Gate interface {
	CanSend(ctx context.Context, prefs *models.NotificationPreferences, now time.Time) (bool, string)
}

// Recorder writes the ledger row for a delivered notification.
type Recorder interface {
	Record(ctx context.Context, rec *models.NotificationRecord) error
}

// Result reports what happened to one candidate match.
type Result struct {
	Sent       []string // channels that delivered
	Failed     []string // channels that were attempted and failed
	Suppressed string   // non-empty when the policy gate blocked the send
}

// Dispatcher fans one candidate match out to the user's channels. A failed
// channel never blocks the others, and the ledger row is written only when at
// least one channel delivered, listing exactly the channels that succeeded.
type Dispatcher struct {
	registry          *channels.Registry
	prefs             PreferenceSource
	gate              Gate
	recorder          Recorder
	channelTimeout    time.Duration
	defaultDailyLimit int
	logger            logger.Logger
}

func NewDispatcher(
	registry *channels.Registry,
	prefs PreferenceSource,
	gate Gate,
	recorder Recorder,
	channelTimeout time.Duration,
	defaultDailyLimit int,
	log logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		registry:          registry,
		prefs:             prefs,
		gate:              gate,
		recorder:          recorder,
		channelTimeout:    channelTimeout,
		defaultDailyLimit: defaultDailyLimit,
		logger:            log,
	}
}

// Dispatch sends one alert for (search, item) and records the outcome. The
// returned error is non-nil only when the ledger write failed after delivery;
// channel failures are reported through the Result.
func (d *Dispatcher) Dispatch(ctx context.Context, search *models.SavedSearch, item *models.Catalyst, content *models.AlertContent) (*Result, error) {
	now := time.Now().UTC()

	prefs := d.loadPreferences(ctx, search.UserID)

	allowed, reason := d.gate.CanSend(ctx, prefs, now)
	if !allowed {
		metrics.SuppressedSends.WithLabelValues(reason).Inc()
		d.logger.Info("send suppressed", map[string]interface{}{
			"searchId":   search.ID,
			"catalystId": item.ID,
			"reason":     reason,
		})
		return &Result{Suppressed: reason}, nil
	}

	tier, err := d.prefs.GetTier(ctx, search.UserID)
	if err != nil {
		d.logger.Warn("tier lookup failed, treating as free", map[string]interface{}{
			"userId": search.UserID,
			"error":  err.Error(),
		})
	}

	attempt := d.permittedChannels(search, prefs, tier)
	if len(attempt) == 0 {
		return &Result{}, nil
	}

	recipient := d.resolveRecipient(ctx, search.UserID, prefs, attempt)

	result := &Result{}
	for _, name := range attempt {
		ch, err := d.registry.Get(name)
		if err != nil {
			d.logger.Warn("channel not registered", map[string]interface{}{
				"channel": name,
			})
			continue
		}

		cctx, cancel := context.WithTimeout(ctx, d.channelTimeout)
		err = ch.Send(cctx, recipient, content)
		cancel()
		if err != nil {
			metrics.ChannelFailures.WithLabelValues(name).Inc()
			d.logger.Error("channel delivery failed", map[string]interface{}{
				"searchId":   search.ID,
				"catalystId": item.ID,
				"channel":    name,
				"error":      err.Error(),
			})
			result.Failed = append(result.Failed, name)
			continue
		}

		metrics.NotificationsSent.WithLabelValues(name).Inc()
		result.Sent = append(result.Sent, name)
	}

	if len(result.Sent) == 0 {
		return result, nil
	}

	rec := &models.NotificationRecord{
		ID:            uuid.New().String(),
		SavedSearchID: search.ID,
		CatalystID:    item.ID,
		UserID:        search.UserID,
		ChannelsUsed:  result.Sent,
		AlertContent:  *content,
		SentAt:        now,
	}
	if err := d.recorder.Record(ctx, rec); err != nil {
		if apperrors.IsDuplicateRecord(err) {
			// Another sweep recorded this pair first; the constraint did its job.
			d.logger.Debug("duplicate notification record", map[string]interface{}{
				"searchId":   search.ID,
				"catalystId": item.ID,
			})
			return result, nil
		}
		return result, err
	}

	return result, nil
}

// loadPreferences returns the user's preferences, falling back to defaults for
// a missing row and, fail-open, for read errors.
func (d *Dispatcher) loadPreferences(ctx context.Context, userID string) *models.NotificationPreferences {
	prefs, err := d.prefs.Get(ctx, userID)
	if err != nil {
		if !apperrors.IsCode(err, apperrors.ErrCodePreferencesNotFound) {
			d.logger.Warn("preferences read failed, using defaults", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
		}
		return models.DefaultPreferences(userID, d.defaultDailyLimit)
	}
	return prefs
}

// permittedChannels intersects the search's requested channels with the user's
// enablement flags and the tier's allowances, preserving request order.
func (d *Dispatcher) permittedChannels(search *models.SavedSearch, prefs *models.NotificationPreferences, tier models.Tier) []string {
	var permitted []string
	for _, name := range search.NotificationChannels {
		if !prefs.ChannelEnabled(name) {
			continue
		}
		if !tier.AllowsChannel(name) {
			metrics.SuppressedSends.WithLabelValues("tier").Inc()
			continue
		}
		permitted = append(permitted, name)
	}
	return permitted
}

func (d *Dispatcher) resolveRecipient(ctx context.Context, userID string, prefs *models.NotificationPreferences, attempt []string) channels.Recipient {
	recipient := channels.Recipient{UserID: userID}
	if prefs.PhoneNumber != nil {
		recipient.PhoneNumber = *prefs.PhoneNumber
	}
	if prefs.SlackWebhookURL != nil {
		recipient.SlackWebhookURL = *prefs.SlackWebhookURL
	}

	for _, name := range attempt {
		if name != models.ChannelEmail {
			continue
		}
		email, err := d.prefs.GetEmail(ctx, userID)
		if err != nil {
			d.logger.Warn("email lookup failed", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
			break
		}
		recipient.Email = email
		break
	}

	return recipient
}
