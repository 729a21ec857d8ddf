package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pushbolt/pushbolt/pkg/auth"
	"github.com/pushbolt/pushbolt/pkg/models"
)

func (s *Server) ownedClient(c *gin.Context) (*models.Client, bool) {
	user, ok := requireUser(c)
	if !ok {
		return nil, false
	}
	id, ok := paramID(c)
	if !ok {
		return nil, false
	}
	client, err := s.store.Clients.ByID(c.Request.Context(), id)
	if err != nil {
		abortError(c, err)
		return nil, false
	}
	if client.UserID != user.ID && !user.IsAdmin {
		forbidden(c, "not your client")
		return nil, false
	}
	return client, true
}

func (s *Server) listClients(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	clients, err := s.store.Clients.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

func (s *Server) createClient(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.CreateClient
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Name == "" {
		badRequest(c, "name is required")
		return
	}

	client, err := s.store.Clients.Create(c.Request.Context(), user.ID, req.Name, auth.NewClientToken())
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (s *Server) updateClient(c *gin.Context) {
	client, ok := s.ownedClient(c)
	if !ok {
		return
	}

	var req models.UpdateClient
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	name := client.Name
	if req.Name != nil {
		name = *req.Name
	}

	updated, err := s.store.Clients.Update(c.Request.Context(), client.ID, name)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteClient(c *gin.Context) {
	client, ok := s.ownedClient(c)
	if !ok {
		return
	}
	if err := s.store.Clients.Delete(c.Request.Context(), client.ID); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
