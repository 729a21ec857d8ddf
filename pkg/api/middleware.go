package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pushbolt/pushbolt/pkg/auth"
	"github.com/pushbolt/pushbolt/pkg/metrics"
	"github.com/pushbolt/pushbolt/pkg/models"
	"github.com/pushbolt/pushbolt/pkg/ratelimit"
)

const principalKey = "pushbolt.principal"

// principal is the resolved caller identity. Exactly one of the token
// kinds resolved it; user is set for session, client and app tokens.
type principal struct {
	user   *models.User
	client *models.Client
	app    *models.Application
}

// extractToken pulls the credential from, in order: Authorization Bearer,
// the X-Pushbolt-Key header, and the token query parameter.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if h := r.Header.Get("X-Pushbolt-Key"); h != "" {
		return h
	}
	return r.URL.Query().Get("token")
}

// authenticate resolves a presented token to a principal and stores it on
// the context. Requests without a token pass through anonymously; the
// per-handler helpers enforce what each endpoint requires. A token that
// is present but invalid is rejected here.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c.Request)
		if token == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		switch auth.Classify(token) {
		case auth.TokenSession:
			claims, err := auth.ValidateSessionToken(token, s.cfg.JWTSecret)
			if err != nil {
				unauthorized(c, "invalid or expired token")
				return
			}
			user, err := s.store.Users.ByID(ctx, claims.UserID)
			if err != nil {
				unauthorized(c, "unknown user")
				return
			}
			c.Set(principalKey, &principal{user: user})
		case auth.TokenClient:
			client, err := s.store.Clients.ByToken(ctx, token)
			if err != nil {
				unauthorized(c, "invalid client token")
				return
			}
			user, err := s.store.Users.ByID(ctx, client.UserID)
			if err != nil {
				unauthorized(c, "unknown user")
				return
			}
			c.Set(principalKey, &principal{user: user, client: client})
		case auth.TokenApp:
			app, err := s.store.Applications.ByToken(ctx, token)
			if err != nil {
				unauthorized(c, "invalid application token")
				return
			}
			user, err := s.store.Users.ByID(ctx, app.UserID)
			if err != nil {
				unauthorized(c, "unknown user")
				return
			}
			c.Set(principalKey, &principal{user: user, app: app})
		case auth.TokenWebhook:
			// Webhook tokens are resolved by their own endpoint.
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) *principal {
	if v, ok := c.Get(principalKey); ok {
		return v.(*principal)
	}
	return nil
}

// requireUser admits session and client principals.
func requireUser(c *gin.Context) (*models.User, bool) {
	p := principalFrom(c)
	if p == nil || p.user == nil || p.app != nil {
		unauthorized(c, "authentication required")
		return nil, false
	}
	return p.user, true
}

// requireAdmin admits user-level principals with the admin flag.
func requireAdmin(c *gin.Context) (*models.User, bool) {
	user, ok := requireUser(c)
	if !ok {
		return nil, false
	}
	if !user.IsAdmin {
		forbidden(c, "admin access required")
		return nil, false
	}
	return user, true
}

// requireApp admits application-token principals only.
func requireApp(c *gin.Context) (*models.Application, bool) {
	p := principalFrom(c)
	if p == nil || p.app == nil {
		unauthorized(c, "application token required")
		return nil, false
	}
	return p.app, true
}

// rateLimit rejects over-budget clients with 429 and Retry-After: 1.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow(ratelimit.ClientKey(c.Request)) {
			metrics.RateLimited.Inc()
			c.Header("Retry-After", "1")
			abortStatus(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}

// bodyLimit caps request body size.
func bodyLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		c.Next()
	}
}

// requestLogger logs one line per request with latency and status.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}
