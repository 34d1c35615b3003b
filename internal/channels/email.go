// internal/channels/email.go
package channels

import (
	"context"

	apperrors "catalyst-alerts/internal/common/errors"
	"catalyst-alerts/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESService is the SES surface the email channel needs; mocked in tests.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailChannel delivers alerts over SES.
type EmailChannel struct {
	client    SESService
	fromEmail string
}

func NewEmailChannel(client SESService, fromEmail string) *EmailChannel {
	return &EmailChannel{client: client, fromEmail: fromEmail}
}

func (c *EmailChannel) Name() string {
	return models.ChannelEmail
}

func (c *EmailChannel) Send(ctx context.Context, recipient Recipient, content *models.AlertContent) error {
	if recipient.Email == "" {
		return apperrors.NewChannelNotConfiguredError(models.ChannelEmail, "recipient has no email address")
	}

	_, err := c.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{recipient.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(renderEmailSubject(content))},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(renderEmailHTML(content))},
			},
		},
		Source: aws.String(c.fromEmail),
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return apperrors.NewChannelTimeoutError(models.ChannelEmail)
		}
		return apperrors.NewChannelDeliveryFailedError(models.ChannelEmail, err)
	}
	return nil
}
