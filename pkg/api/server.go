// Package api is the HTTP surface: routing, middleware and handlers for
// both the application/client surface and the topic surface.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pushbolt/pushbolt/pkg/config"
	"github.com/pushbolt/pushbolt/pkg/database"
	"github.com/pushbolt/pushbolt/pkg/fabric"
	"github.com/pushbolt/pushbolt/pkg/pipeline"
	"github.com/pushbolt/pushbolt/pkg/pushrelay"
	"github.com/pushbolt/pushbolt/pkg/ratelimit"
	"github.com/pushbolt/pushbolt/pkg/store"
)

type Server struct {
	cfg      *config.Config
	db       *database.Client
	store    *store.Store
	hub      *fabric.Hub
	pipeline *pipeline.Pipeline
	limiter  *ratelimit.Limiter
	relay    *pushrelay.Forwarder

	engine *gin.Engine
	http   *http.Server
}

func NewServer(cfg *config.Config, db *database.Client, st *store.Store, hub *fabric.Hub, pl *pipeline.Pipeline, limiter *ratelimit.Limiter, relay *pushrelay.Forwarder) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:      cfg,
		db:       db,
		store:    st,
		hub:      hub,
		pipeline: pl,
		limiter:  limiter,
		relay:    relay,
		engine:   gin.New(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) corsConfig() cors.Config {
	if len(s.cfg.CORSOrigins) == 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowAllOrigins = true
		cfg.AllowHeaders = []string{"*"}
		cfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
		return cfg
	}
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = s.cfg.CORSOrigins
	cfg.AllowHeaders = []string{"Authorization", "Content-Type", "X-Pushbolt-Key"}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	return cfg
}

func (s *Server) registerRoutes() {
	r := s.engine
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(cors.New(s.corsConfig()))
	r.Use(s.rateLimit())
	r.Use(bodyLimit(s.cfg.MaxMessageSize))
	r.Use(s.authenticate())

	// Liveness, identity, metrics.
	r.GET("/health", s.health)
	r.GET("/version", s.versionInfo)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Session.
	r.POST("/api/auth/login", s.login)
	r.GET("/current/user", s.currentUser)
	r.POST("/current/user/password", s.changePassword)

	// Admin user CRUD.
	r.GET("/user", s.listUsers)
	r.POST("/user", s.createUser)
	r.GET("/user/:id", s.getUser)
	r.PUT("/user/:id", s.updateUser)
	r.DELETE("/user/:id", s.deleteUser)

	// Applications.
	r.GET("/application", s.listApplications)
	r.POST("/application", s.createApplication)
	r.PUT("/application/:id", s.updateApplication)
	r.DELETE("/application/:id", s.deleteApplication)
	r.POST("/application/:id/icon", s.uploadApplicationIcon)
	r.GET("/application/:id/icon", s.getApplicationIcon)
	r.DELETE("/application/:id/icon", s.deleteApplicationIcon)
	r.GET("/application/:id/messages", s.listApplicationMessages)

	// Clients.
	r.GET("/client", s.listClients)
	r.POST("/client", s.createClient)
	r.PUT("/client/:id", s.updateClient)
	r.DELETE("/client/:id", s.deleteClient)

	// Application-surface messages and the user stream.
	r.POST("/message", s.publishAppMessage)
	r.GET("/message", s.listMessages)
	r.DELETE("/message", s.deleteAllMessages)
	r.DELETE("/message/:id", s.deleteMessage)
	r.GET("/stream", s.stream)

	// Topic surface.
	topics := r.Group("/api/topics")
	{
		topics.POST("", s.createTopic)
		topics.GET("", s.listTopics)
		topics.GET("/:name", s.getTopic)
		topics.DELETE("/:name", s.deleteTopic)
		topics.POST("/:name/publish", s.publishTopicMessage)
		topics.GET("/:name/ws", s.topicWebSocket)
		topics.GET("/:name/sse", s.topicSSE)
		topics.GET("/:name/json", s.listTopicMessages)
		topics.GET("/:name/messages", s.listTopicMessages)
	}

	// Permissions (admin).
	r.POST("/api/permissions", s.createPermission)
	r.GET("/api/permissions", s.listPermissions)
	r.DELETE("/api/permissions/:id", s.deletePermission)

	// Stats.
	r.GET("/api/stats", s.stats)

	// Attachments.
	r.POST("/api/messages/:id/attachments", s.uploadAttachment)
	r.GET("/api/attachments/:id", s.downloadAttachment)

	// Webhooks.
	r.POST("/api/webhooks", s.createWebhook)
	r.GET("/api/webhooks", s.listWebhooks)
	r.PUT("/api/webhooks/:id", s.updateWebhook)
	r.DELETE("/api/webhooks/:id", s.deleteWebhook)
	r.POST("/api/wh/:token", s.incomingWebhook)

	// Push relay.
	r.POST("/UP", s.pushRelay)
	r.POST("/api/up/register", s.registerPushEndpoint)
	r.GET("/api/up/registrations", s.listPushRegistrations)
	r.DELETE("/api/up/registrations/:id", s.deletePushRegistration)

	// POST/PUT on a bare topic path publish via headers; everything else
	// falls back to the web UI.
	r.NoRoute(s.catchAll)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.RequestTimeout(),
	}
	slog.Info("http server listening", "addr", s.cfg.ListenAddr)
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests within the grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout())
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// writeTimeout bounds a single streamed frame write.
const writeTimeout = 10 * time.Second
