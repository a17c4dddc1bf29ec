package httpapi

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kandev/agentd/internal/config"
	"github.com/kandev/agentd/internal/logging"
	"github.com/kandev/agentd/internal/universal"
)

// RequestLogger emits one structured log line per request, grounded on the
// teacher's internal/common/httpmw/logging.go.
func RequestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// OtelTracing starts one span per request, grounded on the teacher's
// internal/common/httpmw/tracing.go.
func OtelTracing(serviceName string) gin.HandlerFunc {
	tracer := otel.Tracer(serviceName)
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		span.SetAttributes(attribute.String("http.method", c.Request.Method), attribute.String("http.path", c.Request.URL.Path))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}

// extractToken reads the bearer token from any of the three accepted forms
// (spec §4.5): "Authorization: Bearer <token>", "Authorization: Token
// <token>", or "x-sandbox-token: <token>".
func extractToken(c *gin.Context) (string, bool) {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if tok, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return tok, true
		}
		if tok, ok := strings.CutPrefix(auth, "Token "); ok {
			return tok, true
		}
	}
	if tok := c.GetHeader("x-sandbox-token"); tok != "" {
		return tok, true
	}
	return "", false
}

// Auth enforces the configured bearer token on every route except /health.
// It is always mounted and lets every request through when
// cfg.AuthEnabled() is false.
func Auth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/v1/health" {
			c.Next()
			return
		}
		if !cfg.AuthEnabled() {
			c.Next()
			return
		}
		token, ok := extractToken(c)
		if !ok || token != cfg.Token {
			WriteProblem(c, universal.TokenInvalid())
			c.Abort()
			return
		}
		c.Next()
	}
}

// CORS mounts a hand-rolled CORS layer, matching the teacher's
// cmd/kandev/middleware.go corsMiddleware(), only when any CORS setting was
// supplied (spec §4.5: "mounted only if any CORS setting is supplied").
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	origins := joinOrWildcard(cfg.AllowOrigins)
	methods := joinOrDefault(cfg.AllowMethods, "GET,POST,PUT,DELETE,OPTIONS")
	headers := joinOrDefault(cfg.AllowHeaders, "Authorization,Content-Type,x-sandbox-token")

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origins)
		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		if cfg.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func joinOrWildcard(values []string) string {
	if len(values) == 0 {
		return "*"
	}
	return strings.Join(values, ",")
}

func joinOrDefault(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ",")
}
