package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/assign-services-backend/internal/config"
	"github.com/onegreenvn/assign-services-backend/internal/models"
)

// Webhook events
const (
	WebhookAssigned   = "assigned"
	WebhookUnassigned = "unassigned"
)

// WebhookSignatureHeader carries the hex HMAC-SHA256 of the body when a
// secret is configured
const WebhookSignatureHeader = "X-Assign-Signature"

// WebhookPayload is the JSON body posted for every assignment change
type WebhookPayload struct {
	Event      string             `json:"event"`
	Assignment *models.Assignment `json:"assignment"`
	ActorID    uint64             `json:"actor_id"`
	SentAt     time.Time          `json:"sent_at"`
}

// WebhookNotifier posts assignment changes to an external URL through the
// job queue. A nil notifier, or one without a URL, does nothing.
type WebhookNotifier struct {
	url     string
	secret  string
	client  *http.Client
	queue   JobQueue
	clock   clock.Clock
	metrics *AssignMetrics
}

// WebhookDeps groups the notifier's collaborators
type WebhookDeps struct {
	Settings *config.AssignSettings
	Queue    JobQueue
	Client   *http.Client
	Clock    clock.Clock
	Metrics  *AssignMetrics
}

func NewWebhookNotifier(deps WebhookDeps) *WebhookNotifier {
	client := deps.Client
	if client == nil {
		client = &http.Client{Timeout: deps.Settings.WebhookTimeout}
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	return &WebhookNotifier{
		url:     deps.Settings.WebhookURL,
		secret:  deps.Settings.WebhookSecret,
		client:  client,
		queue:   deps.Queue,
		clock:   clk,
		metrics: deps.Metrics,
	}
}

// Enabled reports whether changes are posted anywhere
func (w *WebhookNotifier) Enabled() bool {
	return w != nil && w.url != ""
}

// SetQueue replaces the job queue
func (w *WebhookNotifier) SetQueue(queue JobQueue) {
	w.queue = queue
}

// RegisterJobs registers the assign_webhook handler on runner
func (w *WebhookNotifier) RegisterJobs(runner *JobRunner) {
	runner.Register(JobAssignWebhook, func(ctx context.Context, job Job) error {
		if job.Assignment == nil {
			return fmt.Errorf("job %s has no assignment", job.ID)
		}
		return w.Deliver(ctx, WebhookPayload{
			Event:      job.Event,
			Assignment: job.Assignment,
			ActorID:    job.ActorID,
			SentAt:     w.clock.Now(),
		})
	})
}

// Enqueue schedules a webhook for an assignment change. Failures are logged.
func (w *WebhookNotifier) Enqueue(ctx context.Context, event string, assignment *models.Assignment, actorID uint64) {
	if !w.Enabled() {
		return
	}

	job := NewJob(JobAssignWebhook)
	snapshot := *assignment
	job.Assignment = &snapshot
	job.ActorID = actorID
	job.Event = event

	if w.queue == nil {
		logrus.Warnf("No job queue configured, dropping %s webhook for assignment %d", event, assignment.ID)
		return
	}
	if err := w.queue.Enqueue(ctx, job); err != nil {
		logrus.WithFields(logrus.Fields{
			"job_id":        job.ID,
			"assignment_id": assignment.ID,
			"event":         event,
		}).Errorf("Failed to enqueue webhook job: %v", err)
		sentry.CaptureException(err)
	}
}

// Deliver posts one payload and fails on any non-2xx answer
func (w *WebhookNotifier) Deliver(ctx context.Context, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Assign-Services/1.0")
	if w.secret != "" {
		req.Header.Set(WebhookSignatureHeader, SignWebhook(w.secret, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		w.metrics.notification("webhook", "failed")
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		w.metrics.notification("webhook", "failed")
		logrus.Errorf("Webhook returned error status %d: %s", resp.StatusCode, string(snippet))
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	w.metrics.notification("webhook", "delivered")
	logrus.WithFields(logrus.Fields{
		"assignment_id": payload.Assignment.ID,
		"event":         payload.Event,
	}).Debug("Webhook delivered")
	return nil
}

// SignWebhook returns the hex HMAC-SHA256 of body under secret
func SignWebhook(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
