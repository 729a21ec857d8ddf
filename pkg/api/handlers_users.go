package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pushbolt/pushbolt/pkg/auth"
	"github.com/pushbolt/pushbolt/pkg/models"
)

func validUsername(name string) bool {
	return len(name) >= 1 && len(name) <= 64
}

func (s *Server) listUsers(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}
	users, err := s.store.Users.List(c.Request.Context())
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) createUser(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}

	var req models.CreateUser
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !validUsername(req.Username) {
		badRequest(c, "username must be between 1 and 64 characters")
		return
	}
	if len(req.Password) < 8 || len(req.Password) > 256 {
		badRequest(c, "password must be between 8 and 256 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		abortError(c, err)
		return
	}
	isAdmin := req.IsAdmin != nil && *req.IsAdmin

	user, err := s.store.Users.Create(c.Request.Context(), req.Username, hash, req.Email, isAdmin)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) getUser(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	user, err := s.store.Users.ByID(c.Request.Context(), id)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) updateUser(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req models.UpdateUser
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Username != nil && !validUsername(*req.Username) {
		badRequest(c, "username must be between 1 and 64 characters")
		return
	}

	ctx := c.Request.Context()
	if req.Password != nil {
		if len(*req.Password) < 8 || len(*req.Password) > 256 {
			badRequest(c, "password must be between 8 and 256 characters")
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			abortError(c, err)
			return
		}
		if err := s.store.Users.UpdatePassword(ctx, id, hash); err != nil {
			abortError(c, err)
			return
		}
	}

	user, err := s.store.Users.Update(ctx, id, req.Username, req.Email, req.IsAdmin)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) deleteUser(c *gin.Context) {
	admin, ok := requireAdmin(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	if id == admin.ID {
		badRequest(c, "cannot delete your own account")
		return
	}
	if err := s.store.Users.Delete(c.Request.Context(), id); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
