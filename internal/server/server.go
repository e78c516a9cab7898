package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rberts/delibera/internal/config"
	"github.com/rberts/delibera/internal/handlers"
	"github.com/rberts/delibera/internal/middleware"
	"github.com/rberts/delibera/internal/realtime"
	"github.com/rberts/delibera/internal/services"
	"github.com/rberts/delibera/internal/storage/postgres"
)

// Server bundles the HTTP engine with its wired dependencies
type Server struct {
	engine *gin.Engine
	config *config.Config
}

// New wires services, handlers and routes into a ready-to-run server
func New(cfg *config.Config, db *gorm.DB, archiver services.RosterArchiver) *Server {
	gin.SetMode(cfg.Server.GinMode)

	broadcaster := realtime.NewBroadcaster()

	assemblyService := services.NewAssemblyService(db)
	rosterService := services.NewRosterService(db, archiver)
	credentialService := services.NewCredentialService(db)
	checkinService := services.NewCheckinService(db, broadcaster)
	agendaService := services.NewAgendaService(db, broadcaster)
	votingService := services.NewVotingService(db, broadcaster)
	resultsService := services.NewResultsService(db)

	assemblyHandler := handlers.NewAssemblyHandler(assemblyService, rosterService, resultsService)
	checkinHandler := handlers.NewCheckinHandler(checkinService)
	agendaHandler := handlers.NewAgendaHandler(agendaService, resultsService)
	credentialHandler := handlers.NewCredentialHandler(credentialService)
	votingHandler := handlers.NewVotingHandler(votingService)
	streamHandler := handlers.NewStreamHandler(broadcaster, assemblyService)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLog())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     splitCSV(cfg.CORS.AllowOrigins),
		AllowMethods:     splitCSV(cfg.CORS.AllowMethods),
		AllowHeaders:     splitCSV(cfg.CORS.AllowHeaders),
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	engine.GET("/health", func(c *gin.Context) {
		if err := postgres.HealthCheck(c.Request.Context(), db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")

	// Voter endpoints authenticate by credential token alone.
	votingGroup := api.Group("/voting")
	{
		votingGroup.GET("/:token/status", votingHandler.Status)
		votingGroup.POST("/:token/vote", votingHandler.Cast)
	}

	protected := api.Group("")
	protected.Use(middleware.RequireAuth(cfg.Auth.JWTSecret))
	{
		assemblies := protected.Group("/assemblies")
		{
			assemblies.POST("", assemblyHandler.Create)
			assemblies.GET("", assemblyHandler.List)
			assemblies.GET("/:id", assemblyHandler.Get)
			assemblies.PATCH("/:id", assemblyHandler.Update)

			assemblies.POST("/:id/units", assemblyHandler.ImportRoster)
			assemblies.GET("/:id/units", assemblyHandler.ListUnits)
			assemblies.GET("/:id/units/by-owner", checkinHandler.SearchUnits)

			assemblies.POST("/:id/checkin", checkinHandler.CheckIn)
			assemblies.DELETE("/:id/checkin/:assignmentId", checkinHandler.Undo)
			assemblies.GET("/:id/attendance", checkinHandler.Attendance)
			assemblies.GET("/:id/attendance/summary", checkinHandler.Summary)
			assemblies.GET("/:id/quorum", assemblyHandler.Quorum)

			assemblies.POST("/:id/agendas", agendaHandler.Create)
			assemblies.GET("/:id/agendas", agendaHandler.List)

			assemblies.GET("/:id/stream", streamHandler.Stream)
		}

		agendas := protected.Group("/agendas")
		{
			agendas.GET("/:id", agendaHandler.Get)
			agendas.PATCH("/:id", agendaHandler.Update)
			agendas.DELETE("/:id", agendaHandler.Cancel)
			agendas.GET("/:id/results", agendaHandler.Results)
		}

		qrcodes := protected.Group("/qrcodes")
		{
			qrcodes.POST("", credentialHandler.CreateBatch)
			qrcodes.GET("", credentialHandler.List)
			qrcodes.GET("/resolve", credentialHandler.Resolve)
			qrcodes.GET("/:id", credentialHandler.Get)
			qrcodes.PATCH("/:id", credentialHandler.SetStatus)
			qrcodes.DELETE("/:id", credentialHandler.Deactivate)
		}

		protected.POST("/votes/:id/invalidate", votingHandler.Invalidate)
	}

	return &Server{engine: engine, config: cfg}
}

// Handler returns the underlying HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return ":" + s.config.Server.Port
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
