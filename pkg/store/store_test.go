package store

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pushbolt/pushbolt/pkg/database"
)

// testDB returns a migrated database. CI provides CI_DATABASE_URL;
// locally a throwaway postgres container is started, which requires
// Docker.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	url := os.Getenv("CI_DATABASE_URL")
	if url == "" {
		container, err := postgres.Run(ctx, "postgres:16-alpine",
			postgres.WithDatabase("pushbolt_test"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			t.Skipf("starting postgres container (is Docker running?): %v", err)
		}
		t.Cleanup(func() {
			_ = container.Terminate(context.Background())
		})
		url, err = container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	db, err := sql.Open("pgx", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(ctx, db))
	return db
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, database.Migrate(ctx, db))

	var n int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM _migrations`).Scan(&n))
	assert.Equal(t, 8, n)
}

func TestUserLifecycle(t *testing.T) {
	db := testDB(t)
	s := New(db)
	ctx := context.Background()

	u, err := s.Users.Create(ctx, "alice", "hash", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.False(t, u.IsAdmin)

	_, err = s.Users.Create(ctx, "alice", "hash2", nil, false)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := s.Users.ByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	email := "alice@example.com"
	admin := true
	updated, err := s.Users.Update(ctx, u.ID, nil, &email, &admin)
	require.NoError(t, err)
	assert.Equal(t, "alice", updated.Username)
	require.NotNil(t, updated.Email)
	assert.Equal(t, email, *updated.Email)
	assert.True(t, updated.IsAdmin)

	n, err := s.Users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.Users.Delete(ctx, u.ID))
	assert.ErrorIs(t, s.Users.Delete(ctx, u.ID), ErrNotFound)
	_, err = s.Users.ByID(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplicationTokenLookup(t *testing.T) {
	db := testDB(t)
	s := New(db)
	ctx := context.Background()

	u, err := s.Users.Create(ctx, "owner", "hash", nil, false)
	require.NoError(t, err)

	app, err := s.Applications.Create(ctx, u.ID, "mon", nil, "AP_deadbeefdeadbeefdeadbeefdeadbeef")
	require.NoError(t, err)

	got, err := s.Applications.ByToken(ctx, app.Token)
	require.NoError(t, err)
	assert.Equal(t, app.ID, got.ID)

	_, err = s.Applications.ByToken(ctx, "AP_0000")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting the owner cascades to the application.
	require.NoError(t, s.Users.Delete(ctx, u.ID))
	_, err = s.Applications.ByID(ctx, app.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimDueDeliversEachMessageOnce(t *testing.T) {
	db := testDB(t)
	s := New(db)
	ctx := context.Background()

	u, err := s.Users.Create(ctx, "pub", "hash", nil, false)
	require.NoError(t, err)
	topic, err := s.Topics.Create(ctx, "alerts", &u.ID, nil, true, true)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	mkMsg := func(sched *time.Time, body string) {
		_, err := s.Messages.Create(ctx, MessageParams{
			TopicID:      &topic.ID,
			UserID:       &u.ID,
			Message:      body,
			Priority:     5,
			ScheduledFor: sched,
		})
		require.NoError(t, err)
	}
	mkMsg(&past, "due")
	mkMsg(&future, "not yet")
	mkMsg(nil, "immediate")

	claimed, err := s.Messages.ClaimDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "due", claimed[0].Message)
	require.NotNil(t, claimed[0].DeliveredAt)

	// A second sweep at the same instant claims nothing.
	claimed, err = s.Messages.ClaimDue(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestDeleteAllForUserSparesOtherAuthors(t *testing.T) {
	db := testDB(t)
	s := New(db)
	ctx := context.Background()

	alice, err := s.Users.Create(ctx, "alice", "hash", nil, false)
	require.NoError(t, err)
	bob, err := s.Users.Create(ctx, "bob", "hash", nil, false)
	require.NoError(t, err)

	app, err := s.Applications.Create(ctx, alice.ID, "app", nil, "AP_11111111111111111111111111111111")
	require.NoError(t, err)
	topic, err := s.Topics.Create(ctx, "shared", nil, nil, true, true)
	require.NoError(t, err)

	_, err = s.Messages.Create(ctx, MessageParams{ApplicationID: &app.ID, UserID: &alice.ID, Message: "from app", Priority: 5})
	require.NoError(t, err)
	_, err = s.Messages.Create(ctx, MessageParams{TopicID: &topic.ID, UserID: &alice.ID, Message: "alice topic", Priority: 5})
	require.NoError(t, err)
	bobMsg, err := s.Messages.Create(ctx, MessageParams{TopicID: &topic.ID, UserID: &bob.ID, Message: "bob topic", Priority: 5})
	require.NoError(t, err)

	n, err := s.Messages.DeleteAllForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	survivor, err := s.Messages.ByID(ctx, bobMsg.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob topic", survivor.Message)
}

func TestMessagePagingBySince(t *testing.T) {
	db := testDB(t)
	s := New(db)
	ctx := context.Background()

	u, err := s.Users.Create(ctx, "pager", "hash", nil, false)
	require.NoError(t, err)
	topic, err := s.Topics.Create(ctx, "page", &u.ID, nil, true, true)
	require.NoError(t, err)

	var ids []int64
	for i := 0; i < 5; i++ {
		m, err := s.Messages.Create(ctx, MessageParams{TopicID: &topic.ID, UserID: &u.ID, Message: "m", Priority: 5})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	page, err := s.Messages.ListByTopic(ctx, topic.ID, 100, ids[2])
	require.NoError(t, err)
	require.Len(t, page, 2)
	// Newest first.
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)
}

func TestOutgoingWebhookSelection(t *testing.T) {
	db := testDB(t)
	s := New(db)
	ctx := context.Background()

	u, err := s.Users.Create(ctx, "hook", "hash", nil, false)
	require.NoError(t, err)
	topic, err := s.Topics.Create(ctx, "hooked", &u.ID, nil, true, true)
	require.NoError(t, err)

	target := "http://example.com/sink"
	out, err := s.Webhooks.Create(ctx, WebhookParams{
		UserID: u.ID, Name: "out", Token: "WH_aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		WebhookType: "generic", TargetTopicID: &topic.ID, Direction: "outgoing",
		TargetURL: &target, HTTPMethod: "POST", MaxRetries: 3, RetryDelaySecs: 5,
	})
	require.NoError(t, err)
	_, err = s.Webhooks.Create(ctx, WebhookParams{
		UserID: u.ID, Name: "in", Token: "WH_bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		WebhookType: "generic", TargetTopicID: &topic.ID, Direction: "incoming",
		HTTPMethod: "POST", MaxRetries: 3, RetryDelaySecs: 5,
	})
	require.NoError(t, err)

	hooks, err := s.Webhooks.ListOutgoingForTopic(ctx, topic.ID)
	require.NoError(t, err)
	require.Len(t, hooks, 1)
	assert.Equal(t, out.ID, hooks[0].ID)

	disabled := false
	_, err = s.Webhooks.Update(ctx, out.ID, WebhookUpdate{Enabled: &disabled})
	require.NoError(t, err)

	hooks, err = s.Webhooks.ListOutgoingForTopic(ctx, topic.ID)
	require.NoError(t, err)
	assert.Empty(t, hooks)
}
