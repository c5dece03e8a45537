// Package notify delivers qualifying listings to a chat webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"rentwatch/models"
)

const (
	ModeAll      = "all"      // every new/changed listing
	ModeFiltered = "filtered" // only listings passing the distance filter

	FilteredNotify = "notify" // normal delivery
	FilteredSilent = "silent" // delivered without an alert ping
)

// Options selects which listings are delivered and how loudly.
type Options struct {
	NotifyMode     string
	FilteredMode   string
	NotifyOnChange bool
}

// Item is one candidate notification: a distance decision plus the dedup
// classification that produced it.
type Item struct {
	Decision models.DistanceDecision
	Class    models.Classification
}

// Notifier is the outbound collaborator the engine hands its results to.
type Notifier interface {
	SendNotifications(ctx context.Context, items []Item, opts Options) error
}

// WebhookNotifier posts a digest message to a chat webhook.
type WebhookNotifier struct {
	client *http.Client
	url    string
}

func NewWebhookNotifier(client *http.Client, url string) *WebhookNotifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookNotifier{client: client, url: url}
}

type webhookPayload struct {
	Text   string `json:"text"`
	Silent bool   `json:"silent,omitempty"`
}

// SendNotifications applies the mode options and posts one digest. An empty
// selection sends nothing and returns nil.
func (n *WebhookNotifier) SendNotifications(ctx context.Context, items []Item, opts Options) error {
	selected := Select(items, opts)
	if len(selected) == 0 {
		return nil
	}
	if n.url == "" {
		log.Printf("[notify] webhook URL not configured, dropping %d notification(s)", len(selected))
		return nil
	}

	payload := webhookPayload{
		Text:   formatDigest(selected),
		Silent: opts.NotifyMode == ModeFiltered && opts.FilteredMode == FilteredSilent,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	log.Printf("[notify] delivered %d listing(s)", len(selected))
	return nil
}

// Select reduces candidate items to the ones the options actually deliver.
func Select(items []Item, opts Options) []Item {
	var out []Item
	for _, item := range items {
		if item.Class == models.ClassUnchanged {
			continue
		}
		if item.Class == models.ClassChanged && !opts.NotifyOnChange {
			continue
		}
		if opts.NotifyMode == ModeFiltered && !item.Decision.Qualifies {
			continue
		}
		out = append(out, item)
	}
	return out
}

func formatDigest(items []Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d rental listing(s):\n", len(items))
	for _, item := range items {
		l := item.Decision.Listing
		tag := "NEW"
		if item.Class == models.ClassChanged {
			tag = "CHANGED"
		}
		fmt.Fprintf(&b, "[%s] %s — $%d/mo", tag, l.Title, l.Price)
		if item.Decision.Reason == models.ReasonWithinThreshold {
			fmt.Fprintf(&b, " — %.0fm (%.0f min walk)", item.Decision.DistanceM, item.Decision.WalkMinutes)
		}
		fmt.Fprintf(&b, "\n%s\n", l.Link)
	}
	return b.String()
}
