package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pushbolt/pushbolt/pkg/auth"
	"github.com/pushbolt/pushbolt/pkg/config"
	"github.com/pushbolt/pushbolt/pkg/fabric"
	"github.com/pushbolt/pushbolt/pkg/models"
	"github.com/pushbolt/pushbolt/pkg/pipeline"
	"github.com/pushbolt/pushbolt/pkg/pushrelay"
	"github.com/pushbolt/pushbolt/pkg/ratelimit"
	"github.com/pushbolt/pushbolt/pkg/store"
)

// In-memory store fakes. Each embeds the capability interface so only the
// methods a handler actually hits need an implementation.

type fakeUsers struct {
	store.Users
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: make(map[int64]*models.User)}
}

func (f *fakeUsers) Create(_ context.Context, username, passwordHash string, email *string, isAdmin bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == username {
			return nil, store.ErrAlreadyExists
		}
	}
	f.nextID++
	u := &models.User{
		ID:           f.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		Email:        email,
		IsAdmin:      isAdmin,
		CreatedAt:    time.Now(),
	}
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsers) ByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
}

func (f *fakeUsers) ByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
}

func (f *fakeUsers) List(_ context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsers) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.byID)), nil
}

func (f *fakeUsers) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	delete(f.byID, id)
	return nil
}

type fakeApplications struct {
	store.Applications
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.Application
}

func newFakeApplications() *fakeApplications {
	return &fakeApplications{byID: make(map[int64]*models.Application)}
}

func (f *fakeApplications) Create(_ context.Context, userID int64, name string, description *string, token string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	a := &models.Application{
		ID:              f.nextID,
		UserID:          userID,
		Name:            name,
		Token:           token,
		Description:     description,
		DefaultPriority: 5,
		CreatedAt:       time.Now(),
	}
	f.byID[a.ID] = a
	return a, nil
}

func (f *fakeApplications) ByID(_ context.Context, id int64) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.byID[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("application %d: %w", id, store.ErrNotFound)
}

func (f *fakeApplications) ByToken(_ context.Context, token string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.Token == token {
			return a, nil
		}
	}
	return nil, fmt.Errorf("application token: %w", store.ErrNotFound)
}

func (f *fakeApplications) ListByUser(_ context.Context, userID int64) ([]*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Application{}
	for _, a := range f.byID {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeApplications) Update(_ context.Context, id int64, name, description *string, defaultPriority *int) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("application %d: %w", id, store.ErrNotFound)
	}
	if name != nil {
		a.Name = *name
	}
	if description != nil {
		a.Description = description
	}
	if defaultPriority != nil {
		a.DefaultPriority = *defaultPriority
	}
	return a, nil
}

type fakeTopics struct {
	store.Topics
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.Topic
	perms  []*models.TopicPermission
}

func newFakeTopics() *fakeTopics {
	return &fakeTopics{byID: make(map[int64]*models.Topic)}
}

func (f *fakeTopics) Create(_ context.Context, name string, ownerID *int64, description *string, everyoneRead, everyoneWrite bool) (*models.Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.byID {
		if t.Name == name {
			return nil, store.ErrAlreadyExists
		}
	}
	f.nextID++
	t := &models.Topic{
		ID:            f.nextID,
		Name:          name,
		OwnerID:       ownerID,
		Description:   description,
		EveryoneRead:  everyoneRead,
		EveryoneWrite: everyoneWrite,
		CreatedAt:     time.Now(),
	}
	f.byID[t.ID] = t
	return t, nil
}

func (f *fakeTopics) ByID(_ context.Context, id int64) (*models.Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.byID[id]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("topic %d: %w", id, store.ErrNotFound)
}

func (f *fakeTopics) ByName(_ context.Context, name string) (*models.Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.byID {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("topic %q: %w", name, store.ErrNotFound)
}

func (f *fakeTopics) List(_ context.Context) ([]*models.Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Topic, 0, len(f.byID))
	for _, t := range f.byID {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTopics) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.byID)), nil
}

func (f *fakeTopics) PermissionsForUser(_ context.Context, userID int64) ([]*models.TopicPermission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.TopicPermission{}
	for _, p := range f.perms {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeTopics) CreatePermission(_ context.Context, userID int64, pattern string, canRead, canWrite bool) (*models.TopicPermission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &models.TopicPermission{
		ID:       int64(len(f.perms) + 1),
		UserID:   userID,
		Pattern:  pattern,
		CanRead:  canRead,
		CanWrite: canWrite,
	}
	f.perms = append(f.perms, p)
	return p, nil
}

type fakeMessages struct {
	store.Messages
	mu     sync.Mutex
	nextID int64
	rows   []*models.Message
}

func newFakeMessages() *fakeMessages { return &fakeMessages{} }

func (f *fakeMessages) Create(_ context.Context, p store.MessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m := &models.Message{
		ID:            f.nextID,
		ApplicationID: p.ApplicationID,
		TopicID:       p.TopicID,
		UserID:        p.UserID,
		Title:         p.Title,
		Message:       p.Message,
		Priority:      p.Priority,
		Tags:          p.Tags,
		ClickURL:      p.ClickURL,
		IconURL:       p.IconURL,
		Actions:       p.Actions,
		Extras:        p.Extras,
		ContentType:   p.ContentType,
		ScheduledFor:  p.ScheduledFor,
		ExpiresAt:     p.ExpiresAt,
		CreatedAt:     time.Now(),
	}
	f.rows = append(f.rows, m)
	return m, nil
}

func (f *fakeMessages) ByID(_ context.Context, id int64) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.rows {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
}

func (f *fakeMessages) ListByUserApps(_ context.Context, userID int64, limit int, since int64) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Message{}
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		m := f.rows[i]
		if m.ApplicationID == nil || m.UserID == nil || *m.UserID != userID {
			continue
		}
		if since > 0 && m.ID <= since {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMessages) ListByTopic(_ context.Context, topicID int64, limit int, since int64) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Message{}
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		m := f.rows[i]
		if m.TopicID == nil || *m.TopicID != topicID {
			continue
		}
		if since > 0 && m.ID <= since {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMessages) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.rows {
		if m.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("message %d: %w", id, store.ErrNotFound)
}

func (f *fakeMessages) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), nil
}

func (f *fakeMessages) CountSince(_ context.Context, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.rows {
		if m.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

type fakeWebhooks struct {
	store.Webhooks
	mu    sync.Mutex
	hooks []*models.WebhookConfig
}

func newFakeWebhooks() *fakeWebhooks { return &fakeWebhooks{} }

func (f *fakeWebhooks) add(h *models.WebhookConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h.ID = int64(len(f.hooks) + 1)
	f.hooks = append(f.hooks, h)
}

func (f *fakeWebhooks) ByToken(_ context.Context, token string) (*models.WebhookConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.hooks {
		if h.Token == token {
			return h, nil
		}
	}
	return nil, fmt.Errorf("webhook token: %w", store.ErrNotFound)
}

type fakePushRegistrations struct {
	store.PushRegistrations
}

func (fakePushRegistrations) ByToken(_ context.Context, token string) (*models.PushRegistration, error) {
	return nil, fmt.Errorf("registration %q: %w", token, store.ErrNotFound)
}

type nullDispatcher struct{}

func (nullDispatcher) FireTopic(int64, string, *models.MessageView) {}

// env bundles a server over in-memory fakes with request helpers.
type env struct {
	t      *testing.T
	server *Server
	users  *fakeUsers
	apps   *fakeApplications
	topics *fakeTopics
	msgs   *fakeMessages
	hooks  *fakeWebhooks
}

func newEnv(t *testing.T) *env {
	users := newFakeUsers()
	apps := newFakeApplications()
	topics := newFakeTopics()
	msgs := newFakeMessages()
	hooks := newFakeWebhooks()

	st := &store.Store{
		Users:             users,
		Applications:      apps,
		Topics:            topics,
		Messages:          msgs,
		Webhooks:          hooks,
		PushRegistrations: fakePushRegistrations{},
	}

	cfg := &config.Config{
		ListenAddr:         "127.0.0.1:0",
		JWTSecret:          "unit-test-secret-0123456789abcdef",
		UploadDir:          t.TempDir(),
		MaxMessageSize:     1 << 20,
		JWTExpiryHours:     1,
		RequestTimeoutSecs: 5,
	}

	hub := fabric.NewHub()
	pl := pipeline.New(st, hub, nullDispatcher{}, nil)
	limiter := ratelimit.New(100000, 100000)
	server := NewServer(cfg, nil, st, hub, pl, limiter, pushrelay.NewForwarder())

	return &env{t: t, server: server, users: users, apps: apps, topics: topics, msgs: msgs, hooks: hooks}
}

// addUser creates an account and returns it with a valid session token.
func (e *env) addUser(username string, isAdmin bool) (*models.User, string) {
	e.t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(e.t, err)
	u, err := e.users.Create(nil, username, hash, nil, isAdmin)
	require.NoError(e.t, err)
	token, err := auth.NewSessionToken(u.ID, u.Username, u.IsAdmin, e.server.cfg.JWTSecret, time.Hour)
	require.NoError(e.t, err)
	return u, token
}

// newRawRequest builds a request whose body is opaque bytes rather than
// JSON, for the metadata-header publish path.
func newRawRequest(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "text/plain")
	return req
}

func serve(e *env, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *env) do(method, path, token, body string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}
