package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CycleReport summarises one ingestion cycle for operators.
type CycleReport struct {
	StartedAt  time.Time
	Generation uuid.UUID
	Candidates int
	Committed  int
	Skipped    int
	Unknown    int
	Failed     bool
	Err        string
}

// Notifier delivers cycle reports.
type Notifier interface {
	Notify(ctx context.Context, report CycleReport) error
}

// TelegramNotifier pushes cycle reports through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls the sendMessage API with a rendered report.
func (n *TelegramNotifier) Notify(ctx context.Context, report CycleReport) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderReport(report),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded with status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Time("cycle", report.StartedAt).
		Bool("failed", report.Failed).
		Msg("cycle report delivered (Telegram)")
	return nil
}

func renderReport(report CycleReport) string {
	builder := strings.Builder{}
	if report.Failed {
		builder.WriteString("[dealwatcher] ingestion cycle FAILED\n")
	} else {
		builder.WriteString("[dealwatcher] ingestion cycle complete\n")
	}
	builder.WriteString(fmt.Sprintf("Started: %s UTC\n", report.StartedAt.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Generation: %s\n", report.Generation))
	builder.WriteString(fmt.Sprintf("Candidates: %d\n", report.Candidates))
	builder.WriteString(fmt.Sprintf("Committed: %d\n", report.Committed))
	builder.WriteString(fmt.Sprintf("Skipped: %d (unknown %d)\n", report.Skipped, report.Unknown))
	if report.Err != "" {
		builder.WriteString(fmt.Sprintf("Error: %s\n", report.Err))
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
