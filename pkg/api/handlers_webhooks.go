package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pushbolt/pushbolt/pkg/auth"
	"github.com/pushbolt/pushbolt/pkg/models"
	"github.com/pushbolt/pushbolt/pkg/store"
)

func (s *Server) ownedWebhook(c *gin.Context) (*models.WebhookConfig, bool) {
	user, ok := requireUser(c)
	if !ok {
		return nil, false
	}
	id, ok := paramID(c)
	if !ok {
		return nil, false
	}
	cfg, err := s.store.Webhooks.ByID(c.Request.Context(), id)
	if err != nil {
		abortError(c, err)
		return nil, false
	}
	if cfg.UserID != user.ID && !user.IsAdmin {
		forbidden(c, "not your webhook")
		return nil, false
	}
	return cfg, true
}

func (s *Server) createWebhook(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.CreateWebhook
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Name == "" {
		badRequest(c, "name is required")
		return
	}

	params := store.WebhookParams{
		UserID:              user.ID,
		Name:                req.Name,
		Token:               auth.NewWebhookToken(),
		WebhookType:         models.WebhookTypeGeneric,
		TargetTopicID:       req.TargetTopicID,
		TargetApplicationID: req.TargetApplicationID,
		Template:            req.Template,
		Direction:           models.WebhookIncoming,
		TargetURL:           req.TargetURL,
		HTTPMethod:          http.MethodPost,
		Headers:             req.Headers,
		BodyTemplate:        req.BodyTemplate,
		MaxRetries:          3,
		RetryDelaySecs:      5,
	}
	if req.WebhookType != nil {
		params.WebhookType = *req.WebhookType
	}
	if req.Direction != nil {
		params.Direction = *req.Direction
	}
	if req.HTTPMethod != nil {
		params.HTTPMethod = *req.HTTPMethod
	}
	if req.MaxRetries != nil {
		if *req.MaxRetries < 0 {
			badRequest(c, "max_retries must not be negative")
			return
		}
		params.MaxRetries = *req.MaxRetries
	}
	if req.RetryDelaySecs != nil {
		if *req.RetryDelaySecs < 0 {
			badRequest(c, "retry_delay_secs must not be negative")
			return
		}
		params.RetryDelaySecs = *req.RetryDelaySecs
	}
	if params.Direction == models.WebhookIncoming && req.TargetTopicID == nil && req.TargetApplicationID == nil {
		badRequest(c, "incoming webhooks need a target topic or application")
		return
	}

	cfg, err := s.store.Webhooks.Create(c.Request.Context(), params)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

func (s *Server) listWebhooks(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	hooks, err := s.store.Webhooks.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, hooks)
}

func (s *Server) updateWebhook(c *gin.Context) {
	cfg, ok := s.ownedWebhook(c)
	if !ok {
		return
	}

	var req models.UpdateWebhook
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.MaxRetries != nil && *req.MaxRetries < 0 {
		badRequest(c, "max_retries must not be negative")
		return
	}
	if req.RetryDelaySecs != nil && *req.RetryDelaySecs < 0 {
		badRequest(c, "retry_delay_secs must not be negative")
		return
	}

	updated, err := s.store.Webhooks.Update(c.Request.Context(), cfg.ID, store.WebhookUpdate{
		Name:           req.Name,
		Template:       req.Template,
		Enabled:        req.Enabled,
		TargetURL:      req.TargetURL,
		HTTPMethod:     req.HTTPMethod,
		Headers:        req.Headers,
		BodyTemplate:   req.BodyTemplate,
		MaxRetries:     req.MaxRetries,
		RetryDelaySecs: req.RetryDelaySecs,
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteWebhook(c *gin.Context) {
	cfg, ok := s.ownedWebhook(c)
	if !ok {
		return
	}
	if err := s.store.Webhooks.Delete(c.Request.Context(), cfg.ID); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// incomingWebhook accepts a third-party payload and projects it into a
// message on the config's target.
func (s *Server) incomingWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	cfg, err := s.store.Webhooks.ByToken(ctx, c.Param("token"))
	if err != nil {
		abortStatus(c, http.StatusNotFound, "unknown webhook")
		return
	}
	if !cfg.Enabled || cfg.Direction != models.WebhookIncoming {
		abortStatus(c, http.StatusNotFound, "unknown webhook")
		return
	}

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid JSON payload")
		return
	}

	view, err := s.pipeline.PublishInbound(ctx, cfg, payload)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message_id": view.ID})
}
