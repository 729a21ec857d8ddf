package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pushbolt/pushbolt/pkg/auth"
	"github.com/pushbolt/pushbolt/pkg/models"
)

func (s *Server) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := s.store.Users.ByUsername(c.Request.Context(), req.Username)
	if err != nil {
		slog.Warn("login failed", "username", req.Username, "reason", "unknown user")
		unauthorized(c, "invalid credentials")
		return
	}
	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		slog.Warn("login failed", "username", req.Username, "reason", "wrong password")
		unauthorized(c, "invalid credentials")
		return
	}

	token, err := auth.NewSessionToken(user.ID, user.Username, user.IsAdmin, s.cfg.JWTSecret, s.cfg.SessionTTL())
	if err != nil {
		abortError(c, err)
		return
	}

	slog.Info("login succeeded", "username", user.Username, "user_id", user.ID)
	c.JSON(http.StatusOK, models.LoginResponse{Token: token})
}

func (s *Server) currentUser(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) changePassword(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.ChangePassword
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !auth.VerifyPassword(req.CurrentPassword, user.PasswordHash) {
		unauthorized(c, "current password is incorrect")
		return
	}
	if len(req.NewPassword) < 8 || len(req.NewPassword) > 256 {
		badRequest(c, "password must be between 8 and 256 characters")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		abortError(c, err)
		return
	}
	if err := s.store.Users.UpdatePassword(c.Request.Context(), user.ID, hash); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
