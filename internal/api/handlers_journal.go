// handlers_journal.go - Journal decoding, tag listing and archived journal handlers
package api

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/journal-monitor/backend/internal/models"
	"github.com/journal-monitor/backend/internal/parser"
	"github.com/journal-monitor/backend/internal/storage"
)

// maxDecodeLines bounds one decode request.
const maxDecodeLines = 10000

// JournalHandlerImpl implements the JournalHandler interface
type JournalHandlerImpl struct {
	decoder *parser.Decoder
	store   storage.Store
}

// NewJournalHandler creates a new journal handler instance. store may be nil,
// which disables the archive routes.
func NewJournalHandler(decoder *parser.Decoder, store storage.Store) JournalHandler {
	if decoder == nil {
		decoder = parser.NewDecoder(nil)
	}
	return &JournalHandlerImpl{
		decoder: decoder,
		store:   store,
	}
}

// capabilities maps the capability query value to a registry filter.
var capabilities = map[string]parser.Filter{
	"materials": parser.Implementing[parser.MaterialJournalEntry](),
}

type tagInfo struct {
	ID   int    `json:"id"`
	Tag  string `json:"tag"`
	Name string `json:"name"`
}

// HandleListTags lists the known event types, optionally only those with a capability
func (h *JournalHandlerImpl) HandleListTags(c echo.Context) error {
	var filter parser.Filter
	if capability := c.QueryParam("capability"); capability != "" {
		f, ok := capabilities[strings.ToLower(capability)]
		if !ok {
			return NewBadRequestError("unknown capability: "+capability, nil)
		}
		filter = f
	}

	types := h.decoder.Registry().Enumerate(filter)
	tags := make([]tagInfo, len(types))
	for i, t := range types {
		tags[i] = tagInfo{ID: int(t), Tag: t.String(), Name: t.DisplayName()}
	}
	return c.JSON(http.StatusOK, tags)
}

// decodedEntry adds the written tag, which differs from the event type for
// records with no registered variant.
type decodedEntry struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
	*models.Entry
}

func newDecodedEntry(e *models.Entry) decodedEntry {
	tag := parser.EventTag(e)
	return decodedEntry{Tag: tag, Name: models.SplitCaps(tag), Entry: e}
}

type decodeRequest struct {
	Text  string   `json:"text"`
	Lines []string `json:"lines"`
}

type decodeResponse struct {
	Entries []decodedEntry `json:"entries"`
	Unknown int            `json:"unknown"`
}

// HandleDecode decodes journal lines sent as JSON {"text"} / {"lines"} or as a plain text body
func (h *JournalHandlerImpl) HandleDecode(c echo.Context) error {
	var lines []string
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var req decodeRequest
		if err := c.Bind(&req); err != nil {
			return NewBadRequestError("invalid request body", err)
		}
		lines = append(parser.SplitLines(req.Text), req.Lines...)
	} else {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return NewBadRequestError("failed to read body", err)
		}
		lines = parser.SplitLines(string(body))
	}

	if len(lines) == 0 {
		return NewValidationError("text")
	}
	if len(lines) > maxDecodeLines {
		return NewBadRequestError("too many lines, limit is "+strconv.Itoa(maxDecodeLines), nil)
	}

	return c.JSON(http.StatusOK, h.decodeLines(lines, 0, 0, nil))
}

func (h *JournalHandlerImpl) decodeLines(lines []string, offset, limit int, types map[models.EventType]bool) decodeResponse {
	resp := decodeResponse{Entries: make([]decodedEntry, 0, len(lines))}
	matched := 0
	for _, line := range lines {
		e := h.decoder.Decode(line)
		if e.Type == models.EventTypeUnknown {
			resp.Unknown++
		}
		if types != nil && !types[e.Type] {
			continue
		}
		matched++
		if matched <= offset || (limit > 0 && len(resp.Entries) >= limit) {
			continue
		}
		resp.Entries = append(resp.Entries, newDecodedEntry(e))
	}
	return resp
}

func (h *JournalHandlerImpl) requireStore() error {
	if h.store == nil {
		return NewServiceUnavailableError("journal archive disabled")
	}
	return nil
}

// HandleUploadFile accepts a journal as multipart/form-data and archives it
func (h *JournalHandlerImpl) HandleUploadFile(c echo.Context) error {
	if err := h.requireStore(); err != nil {
		return err
	}

	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleUploadChunk accepts a single base64 chunk of a chunked upload
func (h *JournalHandlerImpl) HandleUploadChunk(c echo.Context) error {
	if err := h.requireStore(); err != nil {
		return err
	}

	var req uploadChunkRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	if err := h.store.SaveChunk(req.UploadID, req.ChunkIndex, bytes.NewReader(decoded)); err != nil {
		return FromError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

// HandleCompleteUpload assembles a chunked upload into an archived journal
func (h *JournalHandlerImpl) HandleCompleteUpload(c echo.Context) error {
	if err := h.requireStore(); err != nil {
		return err
	}

	var req completeUploadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	info, err := h.store.CompleteChunkedUpload(req.UploadID, req.Name, req.TotalChunks)
	if err != nil {
		return NewBadRequestError("failed to complete upload", err)
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleGetRecentFiles returns the recently archived journals
func (h *JournalHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	if err := h.requireStore(); err != nil {
		return err
	}

	files, err := h.store.List(20)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific file
func (h *JournalHandlerImpl) HandleGetFile(c echo.Context) error {
	if err := h.requireStore(); err != nil {
		return err
	}

	id := c.Param("id")
	info, err := h.store.Get(id)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile deletes an archived journal
func (h *JournalHandlerImpl) HandleDeleteFile(c echo.Context) error {
	if err := h.requireStore(); err != nil {
		return err
	}

	if err := h.store.Delete(c.Param("id")); err != nil {
		return FromError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates the name of a file
func (h *JournalHandlerImpl) HandleRenameFile(c echo.Context) error {
	if err := h.requireStore(); err != nil {
		return err
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Name == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(c.Param("id"), req.Name)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleFileEntries decodes an archived journal. Supports ?event=Docked,Undocked, offset and limit.
func (h *JournalHandlerImpl) HandleFileEntries(c echo.Context) error {
	if err := h.requireStore(); err != nil {
		return err
	}

	path, err := h.store.GetFilePath(c.Param("id"))
	if err != nil {
		return FromError(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return NewInternalError("failed to read file", err)
	}

	types, err := parseEventTypes(c.QueryParam("event"))
	if err != nil {
		return err
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	var typeSet map[models.EventType]bool
	if len(types) > 0 {
		typeSet = make(map[models.EventType]bool, len(types))
		for _, t := range types {
			typeSet[t] = true
		}
	}
	return c.JSON(http.StatusOK, h.decodeLines(parser.SplitLines(string(data)), offset, limit, typeSet))
}

// parseEventTypes parses a comma separated tag list.
func parseEventTypes(s string) ([]models.EventType, error) {
	if s == "" {
		return nil, nil
	}
	var out []models.EventType
	for _, tag := range strings.Split(s, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		t, ok := models.ParseEventType(tag)
		if !ok {
			apiErr := NewValidationError("event")
			apiErr.Details = "unknown event tag: " + tag
			return nil, apiErr
		}
		out = append(out, t)
	}
	return out, nil
}

// Request/Response types

type uploadChunkRequest struct {
	UploadID   string `json:"uploadId"`
	ChunkIndex int    `json:"chunkIndex"`
	Data       string `json:"data"` // Base64-encoded chunk
}

func (r *uploadChunkRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type completeUploadRequest struct {
	UploadID    string `json:"uploadId"`
	Name        string `json:"name"`
	TotalChunks int    `json:"totalChunks"`
}

func (r *completeUploadRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.TotalChunks <= 0 {
		return NewBadRequestError("totalChunks must be positive", nil)
	}
	return nil
}

type renameFileRequest struct {
	Name string `json:"name"`
}
