// handlers_session.go - Monitor session operation handlers
package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/journal-monitor/backend/internal/logging"
	"github.com/journal-monitor/backend/internal/models"
	"github.com/journal-monitor/backend/internal/parser"
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	sessionMgr SessionManager
}

// NewSessionHandler creates a new session handler instance
func NewSessionHandler(sessionMgr SessionManager) SessionHandler {
	return &SessionHandlerImpl{sessionMgr: sessionMgr}
}

type startSessionRequest struct {
	Folder string `json:"folder"`
}

// HandleStartSession starts monitoring a journal folder
func (h *SessionHandlerImpl) HandleStartSession(c echo.Context) error {
	var req startSessionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if strings.TrimSpace(req.Folder) == "" {
		return NewValidationError("folder")
	}

	sess, err := h.sessionMgr.Start(c.Request().Context(), req.Folder)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// HandleListSessions returns all sessions
func (h *SessionHandlerImpl) HandleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessionMgr.List())
}

// HandleGetSession returns the current state of a session
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("id")
	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.sessionMgr.TouchSession(id)

	return c.JSON(http.StatusOK, sess)
}

// HandleStopSession stops a session and releases its storage
func (h *SessionHandlerImpl) HandleStopSession(c echo.Context) error {
	if err := h.sessionMgr.Stop(c.Param("id")); err != nil {
		return FromError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *SessionHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if ok := h.sessionMgr.TouchSession(id); !ok {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandlePoll polls the session once and returns the merged timeline
func (h *SessionHandlerImpl) HandlePoll(c echo.Context) error {
	id := c.Param("id")
	tl, err := h.sessionMgr.Poll(c.Request().Context(), id)
	if err != nil {
		return FromError(err)
	}
	h.sessionMgr.TouchSession(id)
	return c.JSON(http.StatusOK, tl)
}

// HandleStatus returns the summary of the last status snapshot
func (h *SessionHandlerImpl) HandleStatus(c echo.Context) error {
	status, err := h.sessionMgr.Status(c.Param("id"))
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, status)
}

type entriesResponse struct {
	Entries  []*models.Entry `json:"entries"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
	Total    int             `json:"total"`
}

// buildEntryQuery reads page, pageSize, event, start and end (unix ms) query parameters.
func buildEntryQuery(c echo.Context) (parser.EntryQuery, int, int, error) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if pageSize < 1 || pageSize > 1000 {
		pageSize = 100
	}

	q := parser.EntryQuery{Limit: pageSize, Offset: (page - 1) * pageSize}

	types, err := parseEventTypes(c.QueryParam("event"))
	if err != nil {
		return q, 0, 0, err
	}
	q.Types = types

	if s := c.QueryParam("start"); s != "" {
		t, err := parseTimestamp(s)
		if err != nil {
			return q, 0, 0, NewValidationError("start")
		}
		q.Start = t
	}
	if s := c.QueryParam("end"); s != "" {
		t, err := parseTimestamp(s)
		if err != nil {
			return q, 0, 0, NewValidationError("end")
		}
		q.End = t
	}
	return q, page, pageSize, nil
}

// HandleEntries returns stored journal entries of a session with pagination and filters
func (h *SessionHandlerImpl) HandleEntries(c echo.Context) error {
	id := c.Param("id")
	q, page, pageSize, err := buildEntryQuery(c)
	if err != nil {
		return err
	}

	entries, total, err := h.sessionMgr.QueryEntries(c.Request().Context(), id, q)
	if err != nil {
		return FromError(err)
	}
	if entries == nil {
		entries = []*models.Entry{}
	}

	return c.JSON(http.StatusOK, entriesResponse{
		Entries:  entries,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

// HandleEntriesMsgpack returns entries in MessagePack format
func (h *SessionHandlerImpl) HandleEntriesMsgpack(c echo.Context) error {
	id := c.Param("id")
	q, page, pageSize, err := buildEntryQuery(c)
	if err != nil {
		return err
	}

	entries, total, err := h.sessionMgr.QueryEntries(c.Request().Context(), id, q)
	if err != nil {
		return FromError(err)
	}

	rows := make([]map[string]interface{}, len(entries))
	for i, e := range entries {
		rows[i] = map[string]interface{}{
			"id":          e.ID,
			"tluId":       e.TLUID,
			"commanderId": e.CommanderID,
			"event":       parser.EventTag(e),
			"timestamp":   e.EventTimeUTC.UnixMilli(),
			"synced":      int(e.SyncFlags()),
			"payload":     e.Payload,
		}
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(map[string]interface{}{
		"entries":  rows,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	}); err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", buf.Bytes())
}

// HandleGetEntry returns one stored entry
func (h *SessionHandlerImpl) HandleGetEntry(c echo.Context) error {
	entryID, err := strconv.ParseInt(c.Param("entryId"), 10, 64)
	if err != nil {
		return NewValidationError("entryId")
	}

	entry, err := h.sessionMgr.GetEntry(c.Request().Context(), c.Param("id"), entryID)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, newDecodedEntry(entry))
}

type syncFlagsRequest struct {
	EDSM *bool  `json:"edsm"`
	EDDN *bool  `json:"eddn"`
	Mark string `json:"mark"` // "start", "stop" or "clear"
}

func (r syncFlagsRequest) bits() (set, clear models.SyncFlags, err error) {
	if r.EDSM != nil {
		if *r.EDSM {
			set |= models.SyncEDSM
		} else {
			clear |= models.SyncEDSM
		}
	}
	if r.EDDN != nil {
		if *r.EDDN {
			set |= models.SyncEDDN
		} else {
			clear |= models.SyncEDDN
		}
	}
	switch r.Mark {
	case "":
	case "start":
		set |= models.SyncStartMarker
		clear |= models.SyncStopMarker
	case "stop":
		set |= models.SyncStopMarker
		clear |= models.SyncStartMarker
	case "clear":
		clear |= models.SyncStartMarker | models.SyncStopMarker
	default:
		return 0, 0, NewValidationError("mark")
	}
	return set, clear, nil
}

// HandleUpdateSyncFlags sets the sync state and markers of a stored entry
func (h *SessionHandlerImpl) HandleUpdateSyncFlags(c echo.Context) error {
	entryID, err := strconv.ParseInt(c.Param("entryId"), 10, 64)
	if err != nil {
		return NewValidationError("entryId")
	}

	var req syncFlagsRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	set, clear, err := req.bits()
	if err != nil {
		return err
	}

	entry, err := h.sessionMgr.UpdateSyncFlags(c.Request().Context(), c.Param("id"), entryID, set, clear)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":          entry.ID,
		"edsm":        entry.SyncedEDSM(),
		"eddn":        entry.SyncedEDDN(),
		"startMarker": entry.StartMarker(),
		"stopMarker":  entry.StopMarker(),
	})
}

// HandleAssociatedFile returns the side file holding the full version of an entry.
// With ?wait=true the read is retried while the file is locked or stale.
func (h *SessionHandlerImpl) HandleAssociatedFile(c echo.Context) error {
	entryID, err := strconv.ParseInt(c.Param("entryId"), 10, 64)
	if err != nil {
		return NewValidationError("entryId")
	}
	wait, _ := strconv.ParseBool(c.QueryParam("wait"))

	obj, err := h.sessionMgr.AssociatedFile(c.Request().Context(), c.Param("id"), entryID, wait)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, obj)
}

// HandleMaterials returns the material counts collected from the session's journal
func (h *SessionHandlerImpl) HandleMaterials(c echo.Context) error {
	mats, err := h.sessionMgr.Materials(c.Param("id"))
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, mats)
}

// HandleEventStream streams the timelines of a session via SSE. Listening
// does not count as access; clients call keepalive.
func (h *SessionHandlerImpl) HandleEventStream(c echo.Context) error {
	id := c.Param("id")
	updates, unsubscribe, err := h.sessionMgr.Subscribe(id)
	if err != nil {
		return FromError(err)
	}
	defer unsubscribe()

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	if sess, ok := h.sessionMgr.GetSession(id); ok {
		h.sendSSEData(c, "session", sess)
	}

	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case tl, ok := <-updates:
			if !ok {
				h.sendSSEData(c, "closed", map[string]string{"id": id})
				return nil
			}
			h.sendSSEData(c, "timeline", tl)
		case <-keepAlive.C:
			fmt.Fprint(c.Response(), ": keepalive\n\n")
			c.Response().Flush()
		case <-ctx.Done():
			return nil
		}
	}
}

// sendSSEData writes one SSE frame. A value that fails to encode is logged
// and skipped.
func (h *SessionHandlerImpl) sendSSEData(c echo.Context, event string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		logging.FromContext(c.Request().Context()).Error().Err(err).Str("event", event).Msg("Failed to encode SSE frame")
		return
	}
	fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", event, jsonData)
	c.Response().Flush()
}

func parseTimestamp(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
