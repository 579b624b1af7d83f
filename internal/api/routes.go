// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/journal-monitor/backend/internal/logging"
	"github.com/journal-monitor/backend/internal/parser"
	"github.com/journal-monitor/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	SessionMgr SessionManager
	Decoder    *parser.Decoder
	Archive    storage.Store
	Version    string
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Journal JournalHandler
	Session SessionHandler
	Stream  StreamHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	dec := deps.Decoder
	if dec == nil {
		dec = parser.NewDecoder(nil)
	}
	return &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.SessionMgr, dec.Registry()),
		Journal: NewJournalHandler(dec, deps.Archive),
		Session: NewSessionHandler(deps.SessionMgr),
		Stream:  NewWebSocketHandler(deps.SessionMgr),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Stateless journal routes
	apiGroup.GET("/events/tags", handlers.Journal.HandleListTags)
	apiGroup.POST("/journal/decode", handlers.Journal.HandleDecode)

	// Archived journal routes
	fileGroup := apiGroup.Group("/files")
	fileGroup.POST("/upload", handlers.Journal.HandleUploadFile)
	fileGroup.POST("/upload/chunk", handlers.Journal.HandleUploadChunk)
	fileGroup.POST("/upload/complete", handlers.Journal.HandleCompleteUpload)
	fileGroup.GET("/recent", handlers.Journal.HandleGetRecentFiles)
	fileGroup.GET("/:id", handlers.Journal.HandleGetFile)
	fileGroup.DELETE("/:id", handlers.Journal.HandleDeleteFile)
	fileGroup.PUT("/:id", handlers.Journal.HandleRenameFile)
	fileGroup.GET("/:id/entries", handlers.Journal.HandleFileEntries)

	// Monitor session routes
	sessionGroup := apiGroup.Group("/sessions")
	sessionGroup.POST("", handlers.Session.HandleStartSession)
	sessionGroup.GET("", handlers.Session.HandleListSessions)
	sessionGroup.GET("/:id", handlers.Session.HandleGetSession)
	sessionGroup.DELETE("/:id", handlers.Session.HandleStopSession)
	sessionGroup.POST("/:id/keepalive", handlers.Session.HandleSessionKeepAlive)
	sessionGroup.POST("/:id/poll", handlers.Session.HandlePoll)
	sessionGroup.GET("/:id/status", handlers.Session.HandleStatus)
	sessionGroup.GET("/:id/entries", handlers.Session.HandleEntries)
	sessionGroup.GET("/:id/entries/msgpack", handlers.Session.HandleEntriesMsgpack)
	sessionGroup.GET("/:id/entries/:entryId", handlers.Session.HandleGetEntry)
	sessionGroup.PUT("/:id/entries/:entryId/sync", handlers.Session.HandleUpdateSyncFlags)
	sessionGroup.GET("/:id/entries/:entryId/associated", handlers.Session.HandleAssociatedFile)
	sessionGroup.GET("/:id/materials", handlers.Session.HandleMaterials)
	sessionGroup.GET("/:id/events", handlers.Session.HandleEventStream)
	sessionGroup.GET("/:id/ws", handlers.Stream.HandleWebSocket)
}

// MiddlewareConfig tunes SetupMiddleware.
type MiddlewareConfig struct {
	RequestLogging bool
	RequestTimeout time.Duration
	BodyLimit      string
	AllowOrigins   []string
}

// isStreaming reports whether the request holds its connection open.
func isStreaming(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasSuffix(path, "/ws") ||
		strings.HasSuffix(path, "/events") ||
		c.Request().Header.Get("Accept") == "text/event-stream"
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if cfg.RequestLogging {
		e.Use(requestLogger(logging.Component("http")))
	}

	if cfg.RequestTimeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout:      cfg.RequestTimeout,
			Skipper:      isStreaming,
			ErrorMessage: "Request timeout",
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if len(cfg.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}

// requestLogger logs each request through zerolog and attaches the logger
// to the request context.
func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/api/health" || strings.HasSuffix(path, "/poll")
		},
		BeforeNextFunc: func(c echo.Context) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithLogger(req.Context(), &logger)))
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := logger.Info()
			if v.Error != nil {
				ev = logger.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).
				Dur("latency", v.Latency).Msg("Request")
			return nil
		},
	})
}
