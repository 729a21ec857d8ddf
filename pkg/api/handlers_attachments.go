package api

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pushbolt/pushbolt/pkg/pipeline"
)

func (s *Server) uploadAttachment(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	msg, err := s.store.Messages.ByID(ctx, id)
	if err != nil {
		abortError(c, err)
		return
	}
	owned := msg.UserID != nil && *msg.UserID == user.ID
	if !owned && !user.IsAdmin {
		forbidden(c, "not your message")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "multipart file field required")
		return
	}

	dir := filepath.Join(s.cfg.UploadDir, "attachments")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		abortError(c, err)
		return
	}
	filename := pipeline.SanitizeFilename(file.Filename)
	path := filepath.Join(dir, uuid.NewString()+"_"+filename)

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
	written, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		os.Remove(path)
		abortError(c, err)
		return
	}
	if err := dst.Close(); err != nil {
		abortError(c, err)
		return
	}

	var contentType *string
	if ct := file.Header.Get("Content-Type"); ct != "" {
		contentType = &ct
	}

	att, err := s.store.Attachments.Create(ctx, msg.ID, filename, contentType, written, path, msg.ExpiresAt)
	if err != nil {
		os.Remove(path)
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, att)
}

func (s *Server) downloadAttachment(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	att, err := s.store.Attachments.ByID(c.Request.Context(), id)
	if err != nil {
		abortError(c, err)
		return
	}
	if att.ContentType != nil {
		c.Header("Content-Type", *att.ContentType)
	}
	c.FileAttachment(att.StoragePath, att.Filename)
}
