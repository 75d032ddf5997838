package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/redis/go-redis/v9"

	"placement-pipeline/internal/common/config"
	"placement-pipeline/internal/common/logger"
)

// EmailSender is the slice of the SES client the dispatcher needs.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SMSSender is the slice of the SNS client the dispatcher needs.
type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Dispatcher drains the event queue and delivers each event over the
// enabled channels. Delivery is best-effort: a failed send is logged and
// the loop moves on.
type Dispatcher struct {
	client *redis.Client
	cfg    config.NotificationConfig
	email  EmailSender
	sms    SMSSender
	log    logger.Logger
}

func NewDispatcher(client *redis.Client, cfg config.NotificationConfig, email EmailSender, sms SMSSender, log logger.Logger) *Dispatcher {
	return &Dispatcher{client: client, cfg: cfg, email: email, sms: sms, log: log}
}

// Run blocks until ctx is cancelled, popping events off the queue.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("notification dispatcher started", map[string]interface{}{
		"queue":         d.cfg.Queue,
		"email_enabled": d.cfg.Email.Enabled,
		"sms_enabled":   d.cfg.SMS.Enabled,
	})

	for {
		select {
		case <-ctx.Done():
			d.log.Info("notification dispatcher stopped", nil)
			return ctx.Err()
		default:
		}

		result, err := d.client.BRPop(ctx, time.Second, d.cfg.Queue).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.log.Warn("failed to pop notification event", map[string]interface{}{"error": err.Error()})
			continue
		}
		if len(result) < 2 {
			continue
		}

		var ev Event
		if err := json.Unmarshal([]byte(result[1]), &ev); err != nil {
			d.log.Error("discarding malformed notification event", map[string]interface{}{"error": err.Error()})
			continue
		}

		d.deliver(ctx, ev)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	subject, body := renderMessage(ev)

	if d.cfg.Email.Enabled && d.email != nil && strings.Contains(ev.RecipientID, "@") {
		_, err := d.email.SendEmail(ctx, &ses.SendEmailInput{
			Source:      aws.String(d.cfg.Email.FromEmail),
			Destination: &sestypes.Destination{ToAddresses: []string{ev.RecipientID}},
			Message: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body:    &sestypes.Body{Text: &sestypes.Content{Data: aws.String(body)}},
			},
		})
		if err != nil {
			d.log.Warn("email delivery failed", map[string]interface{}{
				"recipient_id":   ev.RecipientID,
				"application_id": ev.ApplicationID,
				"error":          err.Error(),
			})
		}
	}

	if d.cfg.SMS.Enabled && d.sms != nil {
		_, err := d.sms.Publish(ctx, &sns.PublishInput{
			Message: aws.String(body),
		})
		if err != nil {
			d.log.Warn("sms delivery failed", map[string]interface{}{
				"recipient_id":   ev.RecipientID,
				"application_id": ev.ApplicationID,
				"error":          err.Error(),
			})
		}
	}

	d.log.Debug("notification delivered", map[string]interface{}{
		"recipient_id":   ev.RecipientID,
		"event_type":     string(ev.EventType),
		"application_id": ev.ApplicationID,
	})
}

func renderMessage(ev Event) (subject, body string) {
	switch ev.EventType {
	case EventApplicationSubmitted:
		subject = "Application received"
	case EventAssessmentReleased:
		subject = "Your assessment is ready"
	case EventAssessmentSubmitted:
		subject = "Assessment submitted"
	case EventInterviewAssigned:
		subject = "New interview assignment"
	case EventInterviewScheduled:
		subject = "Interview scheduled"
	case EventOfferReleased:
		subject = "You have an offer"
	case EventApplicationRejected:
		subject = "Application update"
	default:
		subject = "Application status update"
	}
	body = fmt.Sprintf("Application %s moved to status %s.", ev.ApplicationID, ev.NewStatus)
	return subject, body
}
