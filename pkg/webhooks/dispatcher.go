// Package webhooks delivers outgoing webhook calls for topic publishes:
// template substitution, custom headers and fixed-delay retries.
package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pushbolt/pushbolt/pkg/metrics"
	"github.com/pushbolt/pushbolt/pkg/models"
	"github.com/pushbolt/pushbolt/pkg/store"
)

// Dispatcher looks up enabled outgoing configs for a topic and delivers
// each asynchronously. In-flight retries stop when the base context is
// cancelled at shutdown.
type Dispatcher struct {
	store  *store.Store
	client *http.Client
	base   context.Context
	logger *slog.Logger
}

func NewDispatcher(base context.Context, st *store.Store) *Dispatcher {
	return &Dispatcher{
		store:  st,
		client: &http.Client{Timeout: 10 * time.Second},
		base:   base,
		logger: slog.With("component", "webhooks"),
	}
}

// FireTopic spawns one delivery per matching config and returns
// immediately.
func (d *Dispatcher) FireTopic(topicID int64, topicName string, v *models.MessageView) {
	go func() {
		ctx, cancel := context.WithTimeout(d.base, 5*time.Second)
		configs, err := d.store.Webhooks.ListOutgoingForTopic(ctx, topicID)
		cancel()
		if err != nil {
			d.logger.Error("loading outgoing webhooks", "topic", topicName, "error", err)
			return
		}
		for _, cfg := range configs {
			go d.deliver(cfg, topicName, v)
		}
	}()
}

// RenderTemplate substitutes message fields into a body template.
// Supported placeholders: {{message}}, {{title}}, {{topic}},
// {{priority}}, {{json}}.
func RenderTemplate(tmpl, topicName string, v *models.MessageView) string {
	title := ""
	if v.Title != nil {
		title = *v.Title
	}
	full, err := json.Marshal(v)
	if err != nil {
		full = []byte("{}")
	}
	r := strings.NewReplacer(
		"{{message}}", v.Message,
		"{{title}}", title,
		"{{topic}}", topicName,
		"{{priority}}", strconv.Itoa(v.Priority),
		"{{json}}", string(full),
	)
	return r.Replace(tmpl)
}

func (d *Dispatcher) deliver(cfg *models.WebhookConfig, topicName string, v *models.MessageView) {
	if cfg.TargetURL == nil || *cfg.TargetURL == "" {
		d.logger.Warn("outgoing webhook without target_url", "webhook_id", cfg.ID)
		return
	}

	method := strings.ToUpper(cfg.HTTPMethod)
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		method = http.MethodPost
	}

	body := ""
	if cfg.BodyTemplate != nil && *cfg.BodyTemplate != "" {
		body = RenderTemplate(*cfg.BodyTemplate, topicName, v)
	} else if method != http.MethodGet {
		b, err := json.Marshal(v)
		if err == nil {
			body = string(b)
		}
	}

	var customHeaders map[string]string
	if cfg.Headers != nil && *cfg.Headers != "" {
		if err := json.Unmarshal([]byte(*cfg.Headers), &customHeaders); err != nil {
			d.logger.Warn("unparseable webhook headers", "webhook_id", cfg.ID, "error", err)
		}
	}

	attempt := func() error {
		req, err := http.NewRequestWithContext(d.base, method, *cfg.TargetURL, strings.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, val := range customHeaders {
			req.Header.Set(k, val)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("webhook target returned %d", resp.StatusCode)
		}
		return nil
	}

	// A negative max_retries must not wrap around in the uint64 cap; it
	// degrades to a single attempt.
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := backoff.NewConstantBackOff(time.Duration(cfg.RetryDelaySecs) * time.Second)
	policy := backoff.WithContext(backoff.WithMaxRetries(delay, uint64(maxRetries)), d.base)

	if err := backoff.Retry(attempt, policy); err != nil {
		d.logger.Error("outgoing webhook failed",
			"webhook_id", cfg.ID, "name", cfg.Name, "url", *cfg.TargetURL, "error", err)
		metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
		return
	}
	metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
}
