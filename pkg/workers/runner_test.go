package workers

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushbolt/pushbolt/pkg/models"
	"github.com/pushbolt/pushbolt/pkg/pipeline"
	"github.com/pushbolt/pushbolt/pkg/ratelimit"
	"github.com/pushbolt/pushbolt/pkg/store"
)

type fakeMessages struct {
	store.Messages
	mu      sync.Mutex
	due     []*models.Message
	claims  int
	expired int64
}

func (f *fakeMessages) ClaimDue(context.Context, time.Time) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims++
	out := f.due
	f.due = nil
	return out, nil
}

func (f *fakeMessages) DeleteExpired(context.Context, time.Time) (int64, error) {
	return f.expired, nil
}

type fakeTopics struct {
	store.Topics
}

func (f *fakeTopics) ByID(_ context.Context, id int64) (*models.Topic, error) {
	return &models.Topic{ID: id, Name: "alerts"}, nil
}

type fakeAttachments struct {
	store.Attachments
	mu      sync.Mutex
	expired []*models.Attachment
	deleted []int64
}

func (f *fakeAttachments) ListExpired(context.Context, time.Time) ([]*models.Attachment, error) {
	return f.expired, nil
}

func (f *fakeAttachments) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

type nullFabric struct {
	mu     sync.Mutex
	topics []string
}

func (n *nullFabric) BroadcastToUser(int64, *models.MessageView) {}
func (n *nullFabric) BroadcastToTopic(name string, _ *models.MessageView) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.topics = append(n.topics, name)
}

type nullDispatcher struct{}

func (nullDispatcher) FireTopic(int64, string, *models.MessageView) {}

func TestDeliverDueFansOutClaimedRows(t *testing.T) {
	topicID := int64(7)
	msgs := &fakeMessages{due: []*models.Message{
		{ID: 1, TopicID: &topicID, Message: "due", Priority: 5},
	}}
	st := &store.Store{Messages: msgs, Topics: &fakeTopics{}}
	fab := &nullFabric{}
	r := NewRunner(st, pipeline.New(st, fab, nullDispatcher{}, nil), ratelimit.NewDefault())

	r.deliverDue(context.Background(), testLogger())
	assert.Equal(t, []string{"alerts"}, fab.topics)

	// Nothing left to claim on the next sweep.
	r.deliverDue(context.Background(), testLogger())
	assert.Equal(t, []string{"alerts"}, fab.topics)
	assert.Equal(t, 2, msgs.claims)
}

func TestReapAttachmentsRemovesFileThenRow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	atts := &fakeAttachments{expired: []*models.Attachment{
		{ID: 4, StoragePath: path},
		{ID: 5, StoragePath: filepath.Join(dir, "never-existed.bin")},
	}}
	st := &store.Store{Attachments: atts}
	r := NewRunner(st, nil, ratelimit.NewDefault())

	r.reapAttachments(context.Background(), testLogger())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, []int64{4, 5}, atts.deleted)
}

func TestStartStopTerminatesPromptly(t *testing.T) {
	st := &store.Store{Messages: &fakeMessages{}, Attachments: &fakeAttachments{}, Topics: &fakeTopics{}}
	fab := &nullFabric{}
	r := NewRunner(st, pipeline.New(st, fab, nullDispatcher{}, nil), ratelimit.NewDefault())

	r.Start(context.Background())

	done := make(chan struct{})
	go func() {
		r.Stop()
		r.Stop() // idempotent
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop")
	}
}
