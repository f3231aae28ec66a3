// internal/notify/notifier.go
package notify

import (
	"context"
	"fmt"

	"licence-service/internal/common/logger"
	"licence-service/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Notifier delivers best-effort status notifications to applicants. Delivery
// failure never rolls back a persisted transition.
type Notifier interface {
	NotifyStatus(ctx context.Context, recipient, applicationID string, status models.Status) error
}

// SESService and SNSService mirror the AWS client methods used, for mocking.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// AWSNotifier sends status e-mails through SES and, when a phone number is
// configured as recipient, SMS through SNS.
type AWSNotifier struct {
	sesClient SESService
	snsClient SNSService
	fromEmail string
	logger    logger.Logger
}

func NewAWSNotifier(sesClient SESService, snsClient SNSService, fromEmail string, log logger.Logger) *AWSNotifier {
	return &AWSNotifier{
		sesClient: sesClient,
		snsClient: snsClient,
		fromEmail: fromEmail,
		logger:    log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

func (n *AWSNotifier) NotifyStatus(ctx context.Context, recipient, applicationID string, status models.Status) error {
	subject := "Application status updated"
	body := fmt.Sprintf("Application %s: status changed to %s", applicationID, status)

	if isPhoneNumber(recipient) {
		if n.snsClient == nil {
			return fmt.Errorf("sns not configured for recipient %s", recipient)
		}
		_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
			PhoneNumber: aws.String(recipient),
			Message:     aws.String(body),
		})
		if err != nil {
			return fmt.Errorf("sns publish: %w", err)
		}
		return nil
	}

	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(n.fromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{recipient},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}

	n.logger.Info("status notification sent", map[string]interface{}{
		"applicationId": applicationID,
		"status":        string(status),
	})
	return nil
}

func isPhoneNumber(recipient string) bool {
	return len(recipient) > 0 && recipient[0] == '+'
}

// LogNotifier logs instead of delivering; used when notifications are
// disabled and in tests.
type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) NotifyStatus(_ context.Context, recipient, applicationID string, status models.Status) error {
	n.logger.Info("notification (delivery disabled)", map[string]interface{}{
		"recipient":     recipient,
		"applicationId": applicationID,
		"status":        string(status),
	})
	return nil
}
