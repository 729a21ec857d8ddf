package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pushbolt/pushbolt/pkg/models"
	"github.com/pushbolt/pushbolt/pkg/pipeline"
	"github.com/pushbolt/pushbolt/pkg/store"
	"github.com/pushbolt/pushbolt/pkg/version"
)

func (s *Server) health(c *gin.Context) {
	status := s.db.Health(c.Request.Context())
	if !status.Healthy {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) versionInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": version.Full()})
}

func (s *Server) stats(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}

	ctx := c.Request.Context()
	users, err := s.store.Users.Count(ctx)
	if err != nil {
		abortError(c, err)
		return
	}
	topics, err := s.store.Topics.Count(ctx)
	if err != nil {
		abortError(c, err)
		return
	}
	messages, err := s.store.Messages.Count(ctx)
	if err != nil {
		abortError(c, err)
		return
	}
	last24, err := s.store.Messages.CountSince(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.Stats{
		Users:          users,
		Topics:         topics,
		Messages:       messages,
		MessagesLast24: last24,
	})
}

// catchAll handles POST/PUT on a bare single-segment path as a
// metadata-header topic publish. Every other unrouted request falls
// through to the web UI page.
func (s *Server) catchAll(c *gin.Context) {
	method := c.Request.Method
	name := strings.Trim(c.Request.URL.Path, "/")

	if (method == http.MethodPost || method == http.MethodPut) &&
		!strings.Contains(name, "/") && validTopicName(name) {
		s.publishByHeaders(c, name)
		return
	}
	s.webUI(c)
}

func (s *Server) publishByHeaders(c *gin.Context, name string) {
	ctx := c.Request.Context()
	topic, err := s.store.Topics.ByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			abortStatus(c, http.StatusNotFound, "unknown topic")
			return
		}
		abortError(c, err)
		return
	}

	user := sessionUser(c)
	if !s.canWriteTopic(ctx, user, topic) {
		forbidden(c, "no write permission on this topic")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortStatus(c, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	var userID *int64
	if user != nil {
		userID = &user.ID
	}
	meta := pipeline.ParseMetadata(c.Request.Header, time.Now())
	view, err := s.pipeline.PublishHeaders(ctx, topic, userID, string(body), meta)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

const webUIPage = `<!DOCTYPE html>
<html>
<head><title>pushbolt</title></head>
<body>
<h1>pushbolt</h1>
<p>This server speaks the application/client API under /message and the
topic API under /api/topics. POST to /&lt;topic&gt; to publish.</p>
</body>
</html>
`

func (s *Server) webUI(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, webUIPage)
}
