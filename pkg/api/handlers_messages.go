package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/pushbolt/pushbolt/pkg/fabric"
	"github.com/pushbolt/pushbolt/pkg/models"
)

func (s *Server) publishAppMessage(c *gin.Context) {
	app, ok := requireApp(c)
	if !ok {
		return
	}

	var req models.CreateAppMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	view, err := s.pipeline.PublishToApplication(c.Request.Context(), app, req)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) listMessages(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	limit, since := pagingParams(c)
	msgs, err := s.store.Messages.ListByUserApps(c.Request.Context(), user.ID, limit, since)
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

func (s *Server) deleteAllMessages(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	deleted, err := s.store.Messages.DeleteAllForUser(c.Request.Context(), user.ID)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) deleteMessage(c *gin.Context) {
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
	if err := s.store.Messages.Delete(ctx, id); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// stream upgrades to a websocket and pushes the user's messages as text
// frames. The client token usually arrives via the token query parameter.
func (s *Server) stream(c *gin.Context) {
	p := principalFrom(c)
	if p == nil || p.client == nil {
		unauthorized(c, "client token required")
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}

	sub := s.hub.SubscribeUser(p.user.ID)
	defer sub.Close()

	s.pumpWebSocket(c.Request.Context(), conn, sub)
}

// pumpWebSocket forwards subscription frames to the socket until either
// side goes away. Reads are drained so control frames keep flowing.
func (s *Server) pumpWebSocket(ctx context.Context, conn *websocket.Conn, sub *fabric.Subscription) {
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	readCtx := conn.CloseRead(ctx)
	for {
		select {
		case <-readCtx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case view, ok := <-sub.C():
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			payload, err := json.Marshal(view)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(readCtx, writeTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
