package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushbolt/pushbolt/pkg/models"
	"github.com/pushbolt/pushbolt/pkg/store"
)

type fakeWebhooks struct {
	store.Webhooks
	configs []*models.WebhookConfig
}

func (f *fakeWebhooks) ListOutgoingForTopic(context.Context, int64) ([]*models.WebhookConfig, error) {
	return f.configs, nil
}

func strPtr(s string) *string { return &s }

func view(msg string) *models.MessageView {
	title := "Alert"
	topic := "alerts"
	return &models.MessageView{ID: 1, Topic: &topic, Title: &title, Message: msg, Priority: 4, Date: time.Now()}
}

func TestRenderTemplate(t *testing.T) {
	v := view("cpu high")
	out := RenderTemplate(`{"text":"{{title}}: {{message}} ({{topic}}/{{priority}})"}`, "alerts", v)
	assert.Equal(t, `{"text":"Alert: cpu high (alerts/4)"}`, out)

	out = RenderTemplate(`{{json}}`, "alerts", v)
	assert.Contains(t, out, `"message":"cpu high"`)
}

func TestRenderTemplateNilTitle(t *testing.T) {
	v := view("x")
	v.Title = nil
	assert.Equal(t, ": x", RenderTemplate("{{title}}: {{message}}", "alerts", v))
}

func TestFireTopicDeliversWithTemplateAndHeaders(t *testing.T) {
	got := make(chan *http.Request, 1)
	bodyCh := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got <- r
		bodyCh <- string(b)
	}))
	defer srv.Close()

	cfg := &models.WebhookConfig{
		ID: 1, Name: "slack", Enabled: true, Direction: models.WebhookOutgoing,
		TargetURL: strPtr(srv.URL), HTTPMethod: "post",
		Headers:      strPtr(`{"X-Auth":"secret"}`),
		BodyTemplate: strPtr(`{"text":"{{message}}"}`),
		MaxRetries:   3, RetryDelaySecs: 1,
	}
	d := NewDispatcher(context.Background(), &store.Store{Webhooks: &fakeWebhooks{configs: []*models.WebhookConfig{cfg}}})

	d.FireTopic(7, "alerts", view("cpu high"))

	select {
	case r := <-got:
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-Auth"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, `{"text":"cpu high"}`, <-bodyCh)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook never delivered")
	}
}

func TestDeliverRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	cfg := &models.WebhookConfig{
		ID: 1, Name: "flaky", TargetURL: strPtr(srv.URL), HTTPMethod: "POST",
		MaxRetries: 5, RetryDelaySecs: 0,
	}
	d := NewDispatcher(context.Background(), &store.Store{})

	d.deliver(cfg, "alerts", view("retry me"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDeliverGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := &models.WebhookConfig{
		ID: 1, Name: "down", TargetURL: strPtr(srv.URL), HTTPMethod: "POST",
		MaxRetries: 2, RetryDelaySecs: 0,
	}
	d := NewDispatcher(context.Background(), &store.Store{})

	d.deliver(cfg, "alerts", view("doomed"))
	// Initial attempt plus two retries.
	assert.Equal(t, int32(3), calls.Load())
}

func TestDeliverNegativeMaxRetriesMeansOneAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := &models.WebhookConfig{
		ID: 1, Name: "misconfigured", TargetURL: strPtr(srv.URL), HTTPMethod: "POST",
		MaxRetries: -1, RetryDelaySecs: 0,
	}
	d := NewDispatcher(context.Background(), &store.Store{})

	d.deliver(cfg, "alerts", view("once"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDeliverSkipsMissingTarget(t *testing.T) {
	d := NewDispatcher(context.Background(), &store.Store{})
	cfg := &models.WebhookConfig{ID: 1, Name: "broken", HTTPMethod: "POST"}
	require.NotPanics(t, func() { d.deliver(cfg, "alerts", view("x")) })
}
