package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/skalra/auros/internal/model"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// SlackNotifier posts match alerts to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts each message to the given
// webhook URL. An empty URL produces a notifier whose Notify always reports
// failure, so callers never mark jobs as notified when Slack is unconfigured.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

type slackPayload struct {
	Text string `json:"text"`
}

// Notify posts the message and reports whether Slack accepted it.
// Failures are logged, never returned; the caller only needs the boolean
// to decide whether to mark the job as notified.
func (s *SlackNotifier) Notify(ctx context.Context, message string) bool {
	if s.webhookURL == "" {
		return false
	}

	body, err := json.Marshal(slackPayload{Text: message})
	if err != nil {
		s.logger.Error("marshal slack payload", "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("build slack request", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("post to slack", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("slack rejected notification", "status", resp.StatusCode)
		return false
	}

	s.logger.Info("slack notification sent")
	return true
}
