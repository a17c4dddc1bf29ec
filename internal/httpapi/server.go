package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/kandev/agentd/internal/config"
	"github.com/kandev/agentd/internal/logging"
)

// NewRouter builds the gin engine for the daemon's HTTP surface (spec
// §4.5), grounded on the teacher's server/api/server.go route grouping.
func NewRouter(cfg *config.Config, handlers *Handlers, log *logging.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(OtelTracing("agentd"))
	r.Use(Auth(cfg))
	if cfg.CORS.Enabled() {
		r.Use(CORS(cfg.CORS))
	}

	r.GET("/health", handlers.Health)

	v1 := r.Group("/v1")
	{
		v1.GET("/health", handlers.Health)
		v1.GET("/agents", handlers.ListAgents)
		v1.POST("/agents/:agent/install", handlers.InstallAgent)
		v1.GET("/agents/:agent/modes", handlers.AgentModes)
		v1.GET("/agents/:agent/models", handlers.AgentModels)

		v1.POST("/sessions/:session_id", handlers.CreateSession)
		v1.GET("/sessions", handlers.ListSessions)
		v1.POST("/sessions/:session_id/messages", handlers.PostMessage)
		v1.GET("/sessions/:session_id/events", handlers.ReadEvents)
		v1.GET("/sessions/:session_id/events/sse", handlers.StreamEvents)
		v1.GET("/sessions/:session_id/turns/sse", handlers.StreamTurns)
		v1.POST("/sessions/:session_id/questions/:qid/reply", handlers.ReplyQuestion)
		v1.POST("/sessions/:session_id/questions/:qid/reject", handlers.RejectQuestion)
		v1.POST("/sessions/:session_id/permissions/:pid/reply", handlers.ReplyPermission)
	}

	return r
}
