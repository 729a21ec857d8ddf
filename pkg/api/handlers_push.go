package api

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pushbolt/pushbolt/pkg/models"
)

// pushRelay forwards an opaque push body to the registered endpoint. The
// response is always a success: relay delivery is best-effort and callers
// retry on their own schedule.
func (s *Server) pushRelay(c *gin.Context) {
	ctx := c.Request.Context()
	token := c.Query("token")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortStatus(c, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	reg, err := s.store.PushRegistrations.ByToken(ctx, token)
	if err != nil {
		slog.Warn("push relay for unknown token", "error", err)
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	if err := s.relay.Forward(ctx, reg.Endpoint, body, c.ContentType()); err != nil {
		slog.Warn("push relay forward failed", "endpoint", reg.Endpoint, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) registerPushEndpoint(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.CreatePushRegistration
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !strings.HasPrefix(req.Endpoint, "http://") && !strings.HasPrefix(req.Endpoint, "https://") {
		badRequest(c, "endpoint must be an http(s) URL")
		return
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	reg, err := s.store.PushRegistrations.Create(c.Request.Context(), &user.ID, token, req.Endpoint)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reg)
}

func (s *Server) listPushRegistrations(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	regs, err := s.store.PushRegistrations.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, regs)
}

func (s *Server) deletePushRegistration(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := s.store.PushRegistrations.Delete(c.Request.Context(), id, user.ID); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
