// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/journal-monitor/backend/internal/models"
	"github.com/journal-monitor/backend/internal/parser"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// JournalHandler handles stateless journal operations and archived journals
type JournalHandler interface {
	HandleListTags(c echo.Context) error
	HandleDecode(c echo.Context) error
	HandleUploadFile(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
	HandleFileEntries(c echo.Context) error
}

// SessionHandler handles monitor session operations
type SessionHandler interface {
	HandleStartSession(c echo.Context) error
	HandleListSessions(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleStopSession(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandlePoll(c echo.Context) error
	HandleStatus(c echo.Context) error
	HandleEntries(c echo.Context) error
	HandleEntriesMsgpack(c echo.Context) error
	HandleGetEntry(c echo.Context) error
	HandleUpdateSyncFlags(c echo.Context) error
	HandleAssociatedFile(c echo.Context) error
	HandleMaterials(c echo.Context) error
	HandleEventStream(c echo.Context) error
}

// StreamHandler handles the websocket timeline stream
type StreamHandler interface {
	HandleWebSocket(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	Start(ctx context.Context, folder string) (*models.MonitorSession, error)
	GetSession(id string) (*models.MonitorSession, bool)
	List() []*models.MonitorSession
	TouchSession(id string) bool
	Stop(id string) error
	Poll(ctx context.Context, id string) (*models.Timeline, error)
	Status(id string) (models.OverallStatus, error)
	Materials(id string) ([]parser.MaterialCount, error)
	QueryEntries(ctx context.Context, id string, q parser.EntryQuery) ([]*models.Entry, int, error)
	GetEntry(ctx context.Context, id string, entryID int64) (*models.Entry, error)
	UpdateSyncFlags(ctx context.Context, id string, entryID int64, set, clear models.SyncFlags) (*models.Entry, error)
	AssociatedFile(ctx context.Context, id string, entryID int64, wait bool) (parser.Fields, error)
	Subscribe(id string) (<-chan *models.Timeline, func(), error)
}
