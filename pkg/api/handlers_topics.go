package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/pushbolt/pushbolt/pkg/auth"
	"github.com/pushbolt/pushbolt/pkg/models"
)

const sseKeepAlive = 15 * time.Second

// validTopicName checks length 1..128 and the allowed charset of letters,
// digits, '-', '_' and '.'.
func validTopicName(name string) bool {
	if len(name) < 1 || len(name) > 128 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

// canReadTopic applies the read ACL. A nil user is an anonymous caller and
// is admitted only on everyone-read topics.
func (s *Server) canReadTopic(ctx context.Context, user *models.User, topic *models.Topic) bool {
	if topic.EveryoneRead {
		return true
	}
	if user == nil {
		return false
	}
	if user.IsAdmin {
		return true
	}
	if topic.OwnerID != nil && *topic.OwnerID == user.ID {
		return true
	}
	perms, err := s.store.Topics.PermissionsForUser(ctx, user.ID)
	if err != nil {
		return false
	}
	for _, p := range perms {
		if p.CanRead && auth.TopicMatches(p.Pattern, topic.Name) {
			return true
		}
	}
	return false
}

// canWriteTopic applies the write ACL, same shape as the read side.
func (s *Server) canWriteTopic(ctx context.Context, user *models.User, topic *models.Topic) bool {
	if topic.EveryoneWrite {
		return true
	}
	if user == nil {
		return false
	}
	if user.IsAdmin {
		return true
	}
	if topic.OwnerID != nil && *topic.OwnerID == user.ID {
		return true
	}
	perms, err := s.store.Topics.PermissionsForUser(ctx, user.ID)
	if err != nil {
		return false
	}
	for _, p := range perms {
		if p.CanWrite && auth.TopicMatches(p.Pattern, topic.Name) {
			return true
		}
	}
	return false
}

// namedTopic resolves the :name path segment.
func (s *Server) namedTopic(c *gin.Context) (*models.Topic, bool) {
	topic, err := s.store.Topics.ByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		abortError(c, err)
		return nil, false
	}
	return topic, true
}

// sessionUser is the optional user-level principal for topic streams,
// where anonymous access is legitimate on everyone-read topics.
func sessionUser(c *gin.Context) *models.User {
	p := principalFrom(c)
	if p == nil || p.app != nil {
		return nil
	}
	return p.user
}

func (s *Server) createTopic(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.CreateTopic
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if !validTopicName(name) {
		badRequest(c, "topic name must be 1 to 128 characters of letters, digits, '-', '_' or '.'")
		return
	}

	everyoneRead := req.EveryoneRead == nil || *req.EveryoneRead
	everyoneWrite := req.EveryoneWrite == nil || *req.EveryoneWrite

	topic, err := s.store.Topics.Create(c.Request.Context(), name, &user.ID, req.Description, everyoneRead, everyoneWrite)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, topic)
}

func (s *Server) listTopics(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	topics, err := s.store.Topics.List(ctx)
	if err != nil {
		abortError(c, err)
		return
	}
	if user.IsAdmin {
		c.JSON(http.StatusOK, topics)
		return
	}
	visible := make([]*models.Topic, 0, len(topics))
	for _, t := range topics {
		if s.canReadTopic(ctx, user, t) {
			visible = append(visible, t)
		}
	}
	c.JSON(http.StatusOK, visible)
}

func (s *Server) getTopic(c *gin.Context) {
	topic, ok := s.namedTopic(c)
	if !ok {
		return
	}
	if !s.canReadTopic(c.Request.Context(), sessionUser(c), topic) {
		forbidden(c, "no read permission on this topic")
		return
	}
	c.JSON(http.StatusOK, topic)
}

func (s *Server) deleteTopic(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	topic, ok := s.namedTopic(c)
	if !ok {
		return
	}
	owned := topic.OwnerID != nil && *topic.OwnerID == user.ID
	if !owned && !user.IsAdmin {
		forbidden(c, "not your topic")
		return
	}
	if err := s.store.Topics.Delete(c.Request.Context(), topic.ID); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) publishTopicMessage(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	topic, ok := s.namedTopic(c)
	if !ok {
		return
	}
	if !s.canWriteTopic(c.Request.Context(), user, topic) {
		forbidden(c, "no write permission on this topic")
		return
	}

	var req models.CreateTopicMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	view, err := s.pipeline.PublishToTopic(c.Request.Context(), topic, user.ID, req)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) topicWebSocket(c *gin.Context) {
	topic, ok := s.namedTopic(c)
	if !ok {
		return
	}
	if !s.canReadTopic(c.Request.Context(), sessionUser(c), topic) {
		forbidden(c, "no read permission on this topic")
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}

	sub := s.hub.SubscribeTopic(topic.Name)
	defer sub.Close()

	s.pumpWebSocket(c.Request.Context(), conn, sub)
}

// topicSSE streams topic messages as server-sent events, with comment
// lines as keep-alives so intermediaries do not drop the connection.
func (s *Server) topicSSE(c *gin.Context) {
	topic, ok := s.namedTopic(c)
	if !ok {
		return
	}
	if !s.canReadTopic(c.Request.Context(), sessionUser(c), topic) {
		forbidden(c, "no read permission on this topic")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		abortStatus(c, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	fmt.Fprint(c.Writer, ": connected\n\n")
	flusher.Flush()

	sub := s.hub.SubscribeTopic(topic.Name)
	defer sub.Close()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(c.Writer, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case view, open := <-sub.C():
			if !open {
				return
			}
			payload, err := json.Marshal(view)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) listTopicMessages(c *gin.Context) {
	topic, ok := s.namedTopic(c)
	if !ok {
		return
	}
	if !s.canReadTopic(c.Request.Context(), sessionUser(c), topic) {
		forbidden(c, "no read permission on this topic")
		return
	}

	limit, since := pagingParams(c)
	msgs, err := s.store.Messages.ListByTopic(c.Request.Context(), topic.ID, limit, since)
	if err != nil {
		abortError(c, err)
		return
	}
	views := make([]*models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, m.View(&topic.Name))
	}
	c.JSON(http.StatusOK, pagedViews(views, limit, since))
}

func (s *Server) createPermission(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}

	var req models.CreateTopicPermission
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Pattern) == "" {
		badRequest(c, "topic_pattern is required")
		return
	}
	canRead := req.CanRead == nil || *req.CanRead
	canWrite := req.CanWrite != nil && *req.CanWrite

	perm, err := s.store.Topics.CreatePermission(c.Request.Context(), req.UserID, req.Pattern, canRead, canWrite)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, perm)
}

func (s *Server) listPermissions(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}
	perms, err := s.store.Topics.Permissions(c.Request.Context())
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, perms)
}

func (s *Server) deletePermission(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := s.store.Topics.DeletePermission(c.Request.Context(), id); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
