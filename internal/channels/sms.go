// internal/channels/sms.go
package channels

import (
	"context"

	apperrors "catalyst-alerts/internal/common/errors"
	"catalyst-alerts/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSService is the SNS surface the SMS channel needs; mocked in tests.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSChannel delivers alerts over SNS direct-to-phone publishing.
type SMSChannel struct {
	client   SNSService
	senderID string
}

func NewSMSChannel(client SNSService, senderID string) *SMSChannel {
	return &SMSChannel{client: client, senderID: senderID}
}

func (c *SMSChannel) Name() string {
	return models.ChannelSMS
}

func (c *SMSChannel) Send(ctx context.Context, recipient Recipient, content *models.AlertContent) error {
	if recipient.PhoneNumber == "" {
		return apperrors.NewChannelNotConfiguredError(models.ChannelSMS, "recipient has no phone number")
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(recipient.PhoneNumber),
		Message:     aws.String(renderSMSText(content)),
	}
	if c.senderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(c.senderID),
			},
		}
	}

	_, err := c.client.Publish(ctx, input)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return apperrors.NewChannelTimeoutError(models.ChannelSMS)
		}
		return apperrors.NewChannelDeliveryFailedError(models.ChannelSMS, err)
	}
	return nil
}
