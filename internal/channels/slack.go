// internal/channels/slack.go
package channels

import (
	"context"

	apperrors "catalyst-alerts/internal/common/errors"
	"catalyst-alerts/internal/common/slack"
	"catalyst-alerts/internal/models"
)

// SlackPoster is the webhook surface the Slack channel needs; mocked in tests.
type SlackPoster interface {
	Post(ctx context.Context, webhookURL string, msg *slack.Message) error
}

// SlackChannel delivers alerts to the user's incoming webhook.
type SlackChannel struct {
	client SlackPoster
}

func NewSlackChannel(client SlackPoster) *SlackChannel {
	return &SlackChannel{client: client}
}

func (c *SlackChannel) Name() string {
	return models.ChannelSlack
}

func (c *SlackChannel) Send(ctx context.Context, recipient Recipient, content *models.AlertContent) error {
	if recipient.SlackWebhookURL == "" {
		return apperrors.NewChannelNotConfiguredError(models.ChannelSlack, "recipient has no slack webhook configured")
	}

	if err := c.client.Post(ctx, recipient.SlackWebhookURL, renderSlackMessage(content)); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return apperrors.NewChannelTimeoutError(models.ChannelSlack)
		}
		return apperrors.NewChannelDeliveryFailedError(models.ChannelSlack, err)
	}
	return nil
}
