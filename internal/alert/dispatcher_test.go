// internal/alert/dispatcher_test.go
package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"catalyst-alerts/internal/channels"
	apperrors "catalyst-alerts/internal/common/errors"
	"catalyst-alerts/internal/models"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Fakes
// ==========================

type fakeChannel struct {
	name  string
	err   error
	calls int
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, recipient channels.Recipient, content *models.AlertContent) error {
	f.calls++
	return f.err
}

type fakePrefs struct {
	prefs   *models.NotificationPreferences
	prefErr error
	tier    models.Tier
	email   string
}

func (f *fakePrefs) Get(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	if f.prefErr != nil {
		return nil, f.prefErr
	}
	return f.prefs, nil
}

func (f *fakePrefs) GetTier(ctx context.Context, userID string) (models.Tier, error) {
	return f.tier, nil
}

func (f *fakePrefs) GetEmail(ctx context.Context, userID string) (string, error) {
	return f.email, nil
}

type fakeGate struct {
	allowed bool
	reason  string
}

func (f *fakeGate) CanSend(ctx context.Context, prefs *models.NotificationPreferences, now time.Time) (bool, string) {
	return f.allowed, f.reason
}

type fakeRecorder struct {
	records []*models.NotificationRecord
	err     error
}

func (f *fakeRecorder) Record(ctx context.Context, rec *models.NotificationRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

// ==========================
// Test Helper Functions
// ==========================

func testSearch(channelNames ...string) *models.SavedSearch {
	return &models.SavedSearch{
		ID:                   "search-001",
		UserID:               "user-001",
		Name:                 "Phase 3 Oncology",
		NotificationChannels: channelNames,
		Active:               true,
	}
}

func testItem() *models.Catalyst {
	return &models.Catalyst{
		ID:         "cat-001",
		Ticker:     "ACME",
		Phase:      "Phase 3",
		Indication: "NSCLC",
	}
}

func testContent() *models.AlertContent {
	return &models.AlertContent{
		SearchName: "Phase 3 Oncology",
		Ticker:     "ACME",
		CatalystID: "cat-001",
	}
}

func proPrefs() *models.NotificationPreferences {
	p := models.DefaultPreferences("user-001", 10)
	p.SMSEnabled = true
	p.SlackEnabled = true
	phone := "+15550100"
	webhook := "https://hooks.slack.example/T000/B000/XXX"
	p.PhoneNumber = &phone
	p.SlackWebhookURL = &webhook
	return p
}

func newTestDispatcher(t *testing.T, registry *channels.Registry, prefs *fakePrefs, gate *fakeGate, recorder *fakeRecorder) *Dispatcher {
	return NewDispatcher(registry, prefs, gate, recorder, time.Second, 10, newTestLogger(t))
}

// ==========================
// Dispatch Tests
// ==========================

func TestDispatcher_Dispatch_AllChannelsSucceed(t *testing.T) {
	email := &fakeChannel{name: models.ChannelEmail}
	slackCh := &fakeChannel{name: models.ChannelSlack}
	registry := channels.NewRegistry()
	registry.Register(email)
	registry.Register(slackCh)

	recorder := &fakeRecorder{}
	d := newTestDispatcher(t, registry,
		&fakePrefs{prefs: proPrefs(), tier: models.TierPro, email: "user@example.com"},
		&fakeGate{allowed: true}, recorder)

	res, err := d.Dispatch(context.Background(), testSearch("email", "slack"), testItem(), testContent())
	assert.NoError(t, err)
	assert.Equal(t, []string{"email", "slack"}, res.Sent)
	assert.Empty(t, res.Failed)

	assert.Len(t, recorder.records, 1)
	rec := recorder.records[0]
	assert.Equal(t, "search-001", rec.SavedSearchID)
	assert.Equal(t, "cat-001", rec.CatalystID)
	assert.Equal(t, []string{"email", "slack"}, rec.ChannelsUsed)
	assert.NotEmpty(t, rec.ID)
}

func TestDispatcher_Dispatch_PartialChannelFailure(t *testing.T) {
	email := &fakeChannel{name: models.ChannelEmail}
	slackCh := &fakeChannel{name: models.ChannelSlack, err: apperrors.NewChannelTimeoutError("slack")}
	registry := channels.NewRegistry()
	registry.Register(email)
	registry.Register(slackCh)

	recorder := &fakeRecorder{}
	d := newTestDispatcher(t, registry,
		&fakePrefs{prefs: proPrefs(), tier: models.TierPro, email: "user@example.com"},
		&fakeGate{allowed: true}, recorder)

	res, err := d.Dispatch(context.Background(), testSearch("email", "slack"), testItem(), testContent())
	assert.NoError(t, err)
	assert.Equal(t, []string{"email"}, res.Sent)
	assert.Equal(t, []string{"slack"}, res.Failed)

	// The ledger row lists only the channel that actually delivered.
	assert.Len(t, recorder.records, 1)
	assert.Equal(t, []string{"email"}, recorder.records[0].ChannelsUsed)
}

func TestDispatcher_Dispatch_AllChannelsFail(t *testing.T) {
	email := &fakeChannel{name: models.ChannelEmail, err: apperrors.NewChannelDeliveryFailedError("email", errors.New("throttled"))}
	registry := channels.NewRegistry()
	registry.Register(email)

	recorder := &fakeRecorder{}
	d := newTestDispatcher(t, registry,
		&fakePrefs{prefs: proPrefs(), tier: models.TierPro, email: "user@example.com"},
		&fakeGate{allowed: true}, recorder)

	res, err := d.Dispatch(context.Background(), testSearch("email"), testItem(), testContent())
	assert.NoError(t, err)
	assert.Empty(t, res.Sent)
	assert.Equal(t, []string{"email"}, res.Failed)

	// Nothing delivered, so nothing is recorded and the next sweep retries.
	assert.Empty(t, recorder.records)
}

func TestDispatcher_Dispatch_SuppressedByGate(t *testing.T) {
	email := &fakeChannel{name: models.ChannelEmail}
	registry := channels.NewRegistry()
	registry.Register(email)

	recorder := &fakeRecorder{}
	d := newTestDispatcher(t, registry,
		&fakePrefs{prefs: proPrefs(), tier: models.TierPro, email: "user@example.com"},
		&fakeGate{allowed: false, reason: SuppressReasonQuietHours}, recorder)

	res, err := d.Dispatch(context.Background(), testSearch("email"), testItem(), testContent())
	assert.NoError(t, err)
	assert.Equal(t, SuppressReasonQuietHours, res.Suppressed)
	assert.Empty(t, res.Sent)
	assert.Equal(t, 0, email.calls)
	assert.Empty(t, recorder.records)
}

func TestDispatcher_Dispatch_TierGatesProChannels(t *testing.T) {
	email := &fakeChannel{name: models.ChannelEmail}
	sms := &fakeChannel{name: models.ChannelSMS}
	registry := channels.NewRegistry()
	registry.Register(email)
	registry.Register(sms)

	recorder := &fakeRecorder{}
	d := newTestDispatcher(t, registry,
		&fakePrefs{prefs: proPrefs(), tier: models.TierFree, email: "user@example.com"},
		&fakeGate{allowed: true}, recorder)

	res, err := d.Dispatch(context.Background(), testSearch("email", "sms"), testItem(), testContent())
	assert.NoError(t, err)
	assert.Equal(t, []string{"email"}, res.Sent)
	assert.Equal(t, 0, sms.calls)
}

func TestDispatcher_Dispatch_DisabledChannelSkipped(t *testing.T) {
	email := &fakeChannel{name: models.ChannelEmail}
	slackCh := &fakeChannel{name: models.ChannelSlack}
	registry := channels.NewRegistry()
	registry.Register(email)
	registry.Register(slackCh)

	prefs := proPrefs()
	prefs.SlackEnabled = false

	recorder := &fakeRecorder{}
	d := newTestDispatcher(t, registry,
		&fakePrefs{prefs: prefs, tier: models.TierPro, email: "user@example.com"},
		&fakeGate{allowed: true}, recorder)

	res, err := d.Dispatch(context.Background(), testSearch("email", "slack"), testItem(), testContent())
	assert.NoError(t, err)
	assert.Equal(t, []string{"email"}, res.Sent)
	assert.Equal(t, 0, slackCh.calls)
}

func TestDispatcher_Dispatch_MissingPreferencesUsesDefaults(t *testing.T) {
	email := &fakeChannel{name: models.ChannelEmail}
	sms := &fakeChannel{name: models.ChannelSMS}
	registry := channels.NewRegistry()
	registry.Register(email)
	registry.Register(sms)

	recorder := &fakeRecorder{}
	d := newTestDispatcher(t, registry,
		&fakePrefs{prefErr: apperrors.NewPreferencesNotFoundError("user-001"), tier: models.TierPro, email: "user@example.com"},
		&fakeGate{allowed: true}, recorder)

	// Defaults enable email only, regardless of tier.
	res, err := d.Dispatch(context.Background(), testSearch("email", "sms"), testItem(), testContent())
	assert.NoError(t, err)
	assert.Equal(t, []string{"email"}, res.Sent)
	assert.Equal(t, 0, sms.calls)
}

func TestDispatcher_Dispatch_DuplicateRecordIsSuccess(t *testing.T) {
	email := &fakeChannel{name: models.ChannelEmail}
	registry := channels.NewRegistry()
	registry.Register(email)

	recorder := &fakeRecorder{err: apperrors.NewDuplicateRecordError("search-001", "cat-001")}
	d := newTestDispatcher(t, registry,
		&fakePrefs{prefs: proPrefs(), tier: models.TierPro, email: "user@example.com"},
		&fakeGate{allowed: true}, recorder)

	res, err := d.Dispatch(context.Background(), testSearch("email"), testItem(), testContent())
	assert.NoError(t, err)
	assert.Equal(t, []string{"email"}, res.Sent)
}

func TestDispatcher_Dispatch_RecordFailureSurfaces(t *testing.T) {
	email := &fakeChannel{name: models.ChannelEmail}
	registry := channels.NewRegistry()
	registry.Register(email)

	recorder := &fakeRecorder{err: apperrors.NewRecordInsertFailedError(errors.New("connection reset"))}
	d := newTestDispatcher(t, registry,
		&fakePrefs{prefs: proPrefs(), tier: models.TierPro, email: "user@example.com"},
		&fakeGate{allowed: true}, recorder)

	res, err := d.Dispatch(context.Background(), testSearch("email"), testItem(), testContent())
	assert.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeRecordInsertFailed))
	assert.Equal(t, []string{"email"}, res.Sent)
}
