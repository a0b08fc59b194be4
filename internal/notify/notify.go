// Package notify turns queued background jobs into outgoing email.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/garnizeh/recruit/internal/jobs"
	"github.com/garnizeh/recruit/internal/otp"
	"github.com/garnizeh/recruit/pkg/models"
)

// JobApplicationNotify is the job type enqueued after an application is stored.
const JobApplicationNotify = "application.notify"

// Message is a plain-text email.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// LogMailer writes messages to the log instead of sending them. Bodies are
// only logged at debug level since they may carry verification codes.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info("mail", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	m.logger.Debug("mail body", slog.String("to", msg.To), slog.String("body", msg.Body))
	return nil
}

// WebhookMailer posts each message as JSON to a mail relay.
type WebhookMailer struct {
	client *resty.Client
	url    string
}

func NewWebhookMailer(url string, timeout time.Duration) *WebhookMailer {
	c := resty.New().SetTimeout(timeout).SetHeader("Content-Type", "application/json")
	return &WebhookMailer{client: c, url: url}
}

func (m *WebhookMailer) Send(ctx context.Context, msg Message) error {
	resp, err := m.client.R().SetContext(ctx).SetBody(msg).Post(m.url)
	if err != nil {
		return fmt.Errorf("post mail to relay: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mail relay returned %d", resp.StatusCode())
	}
	return nil
}

// ApplicationPayload is the payload of an application.notify job.
type ApplicationPayload struct {
	ApplicationID        int64  `json:"application_id"`
	MatchID              int64  `json:"match_id"`
	JobID                int64  `json:"job_id"`
	JobTitle             string `json:"job_title"`
	CandidateName        string `json:"candidate_name"`
	CandidateEmail       string `json:"candidate_email"`
	SatisfiedConstraints int    `json:"satisfied_constraints"`
	TotalConstraints     int    `json:"total_constraints"`
}

// Handlers returns the job handlers served by this package.
func Handlers(m Mailer, from string) map[string]jobs.Handler {
	return map[string]jobs.Handler{
		otp.JobDeliver:       deliverCode(m, from),
		JobApplicationNotify: confirmApplication(m, from),
	}
}

func deliverCode(m Mailer, from string) jobs.Handler {
	return func(ctx context.Context, j *models.BackgroundJob) error {
		var p otp.DeliverPayload
		if err := jobs.Decode(j, &p); err != nil {
			return err
		}
		if p.Email == "" {
			return fmt.Errorf("%w: otp.deliver without email", jobs.ErrPermanent)
		}
		if !p.ExpiresAt.IsZero() && time.Now().After(p.ExpiresAt) {
			// a late code is useless; the candidate will request a new one
			return nil
		}
		return m.Send(ctx, Message{
			From:    from,
			To:      p.Email,
			Subject: "Your verification code",
			Body:    fmt.Sprintf("Your verification code is %s. It expires at %s.", p.Code, p.ExpiresAt.UTC().Format(time.Kitchen+" MST")),
		})
	}
}

func confirmApplication(m Mailer, from string) jobs.Handler {
	return func(ctx context.Context, j *models.BackgroundJob) error {
		var p ApplicationPayload
		if err := jobs.Decode(j, &p); err != nil {
			return err
		}
		if p.CandidateEmail == "" {
			return fmt.Errorf("%w: application.notify without email", jobs.ErrPermanent)
		}
		title := p.JobTitle
		if title == "" {
			title = fmt.Sprintf("job #%d", p.JobID)
		}
		name := p.CandidateName
		if name == "" {
			name = "there"
		}
		return m.Send(ctx, Message{
			From:    from,
			To:      p.CandidateEmail,
			Subject: "Application received: " + title,
			Body:    fmt.Sprintf("Hi %s,\n\nWe received your application for %s. The hiring team will be in touch.", name, title),
		})
	}
}
