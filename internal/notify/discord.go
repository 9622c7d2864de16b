package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

// Embed colors per run status.
const (
	colorSuccess = 0x2ecc71
	colorNoData  = 0xf1c40f
	colorFailed  = 0xe74c3c
)

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields"`
	Timestamp string         `json:"timestamp,omitempty"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// DiscordSender posts alerts to a Discord webhook as one embed per run.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts a as an embed colored by the run status.
func (d *DiscordSender) Send(ctx context.Context, a Alert) error {
	body, err := json.Marshal(discordPayload{Embeds: []discordEmbed{discordEmbedFor(a)}})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: order %d: %w", a.Summary.OrderID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord: order %d: status %d: %s", a.Summary.OrderID, resp.StatusCode, bytes.TrimSpace(detail))
	}
	return nil
}

func discordEmbedFor(a Alert) discordEmbed {
	e := discordEmbed{Title: a.Title, Color: statusColor(a.Summary.Status)}
	if !a.Summary.FinishedAt.IsZero() {
		e.Timestamp = a.Summary.FinishedAt.UTC().Format(time.RFC3339)
	}
	for _, f := range runFields(a.Summary) {
		e.Fields = append(e.Fields, discordField{
			Name:  f.name,
			Value: f.value,
			// Long values read better on their own row.
			Inline: len(f.value) <= 24,
		})
	}
	return e
}

func statusColor(s domain.Status) int {
	switch s {
	case domain.StatusSuccess:
		return colorSuccess
	case domain.StatusNoData:
		return colorNoData
	default:
		return colorFailed
	}
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string { return "discord" }
