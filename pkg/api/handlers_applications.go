package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pushbolt/pushbolt/pkg/auth"
	"github.com/pushbolt/pushbolt/pkg/models"
	"github.com/pushbolt/pushbolt/pkg/pipeline"
)

const maxIconSize = 1 << 20

var iconContentTypes = map[string]struct{}{
	"image/png":     {},
	"image/jpeg":    {},
	"image/gif":     {},
	"image/svg+xml": {},
	"image/webp":    {},
}

// ownedApplication loads the application and enforces owner-or-admin.
func (s *Server) ownedApplication(c *gin.Context) (*models.Application, bool) {
	user, ok := requireUser(c)
	if !ok {
		return nil, false
	}
	id, ok := paramID(c)
	if !ok {
		return nil, false
	}
	app, err := s.store.Applications.ByID(c.Request.Context(), id)
	if err != nil {
		abortError(c, err)
		return nil, false
	}
	if app.UserID != user.ID && !user.IsAdmin {
		forbidden(c, "not your application")
		return nil, false
	}
	return app, true
}

func (s *Server) listApplications(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	apps, err := s.store.Applications.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

func (s *Server) createApplication(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.CreateApplication
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Name == "" {
		badRequest(c, "name is required")
		return
	}

	ctx := c.Request.Context()
	app, err := s.store.Applications.Create(ctx, user.ID, req.Name, req.Description, auth.NewAppToken())
	if err != nil {
		abortError(c, err)
		return
	}
	if req.DefaultPriority != nil {
		app, err = s.store.Applications.Update(ctx, app.ID, nil, nil, req.DefaultPriority)
		if err != nil {
			abortError(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, app)
}

func (s *Server) updateApplication(c *gin.Context) {
	app, ok := s.ownedApplication(c)
	if !ok {
		return
	}

	var req models.UpdateApplication
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	updated, err := s.store.Applications.Update(c.Request.Context(), app.ID, req.Name, req.Description, req.DefaultPriority)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteApplication(c *gin.Context) {
	app, ok := s.ownedApplication(c)
	if !ok {
		return
	}
	if app.Image != nil {
		os.Remove(*app.Image)
	}
	if err := s.store.Applications.Delete(c.Request.Context(), app.ID); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) uploadApplicationIcon(c *gin.Context) {
	app, ok := s.ownedApplication(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "multipart file field required")
		return
	}
	if file.Size > maxIconSize {
		abortStatus(c, http.StatusRequestEntityTooLarge, "icon must be at most 1 MiB")
		return
	}
	contentType := file.Header.Get("Content-Type")
	if _, ok := iconContentTypes[contentType]; !ok {
		badRequest(c, fmt.Sprintf("unsupported icon content type %q", contentType))
		return
	}

	dir := filepath.Join(s.cfg.UploadDir, "icons")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		abortError(c, err)
		return
	}
	name := uuid.NewString() + "_" + pipeline.SanitizeFilename(file.Filename)
	path := filepath.Join(dir, name)

	src, err := file.Open()
	if err != nil {
		abortError(c, err)
		return
	}
	defer src.Close()
	dst, err := os.Create(path)
	if err != nil {
		abortError(c, err)
		return
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		abortError(c, err)
		return
	}
	if err := dst.Close(); err != nil {
		abortError(c, err)
		return
	}

	if app.Image != nil {
		os.Remove(*app.Image)
	}
	if err := s.store.Applications.UpdateImage(c.Request.Context(), app.ID, &path); err != nil {
		os.Remove(path)
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image": path})
}

func (s *Server) getApplicationIcon(c *gin.Context) {
	app, ok := s.ownedApplication(c)
	if !ok {
		return
	}
	if app.Image == nil {
		abortStatus(c, http.StatusNotFound, "application has no icon")
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.File(*app.Image)
}

func (s *Server) deleteApplicationIcon(c *gin.Context) {
	app, ok := s.ownedApplication(c)
	if !ok {
		return
	}
	if app.Image != nil {
		os.Remove(*app.Image)
	}
	if err := s.store.Applications.UpdateImage(c.Request.Context(), app.ID, nil); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) listApplicationMessages(c *gin.Context) {
	app, ok := s.ownedApplication(c)
	if !ok {
		return
	}
	limit, since := pagingParams(c)
	msgs, err := s.store.Messages.ListByApplication(c.Request.Context(), app.ID, limit, since)
	if err != nil {
		abortError(c, err)
		return
	}
	views := make([]*models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, m.View(nil))
	}
	c.JSON(http.StatusOK, pagedViews(views, limit, since))
}
