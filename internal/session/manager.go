package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	pkgerrors "github.com/journal-monitor/backend/internal/errors"
	"github.com/journal-monitor/backend/internal/logging"
	"github.com/journal-monitor/backend/internal/models"
	"github.com/journal-monitor/backend/internal/parser"
	"github.com/journal-monitor/backend/internal/status"
)

// MaxSessions limits concurrently monitored folders
const MaxSessions = 10

// SessionMaxAge is how long to keep idle sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// JournalPattern matches journal file names in a folder.
const JournalPattern = "Journal.*.log"

// ErrTooManySessions is returned by Start when MaxSessions sessions are active.
var ErrTooManySessions = fmt.Errorf("too many active sessions: %w", pkgerrors.ErrLimitReached)

// Options configures a Manager.
type Options struct {
	TempDir     string
	MaxSessions int
	Thresholds  status.Thresholds
	Associated  parser.AssociatedFileOptions
	Merge       parser.MergeConfig
	// Journals keeps one persistent database per folder. Nil uses a
	// temporary database per session.
	Journals *JournalStore
}

// DefaultOptions returns options using ./data/temp and the default tunables.
func DefaultOptions() Options {
	return Options{
		TempDir:     "./data/temp",
		MaxSessions: MaxSessions,
		Thresholds:  status.DefaultThresholds(),
		Associated:  parser.DefaultAssociatedFileOptions(),
		Merge:       parser.DefaultMergeConfig(),
	}
}

// Manager handles monitor sessions, one per journal folder.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex
	startMu  sync.Mutex // serialises Start so a folder gets one session
	decoder  *parser.Decoder
	opts     Options
	logger   zerolog.Logger
}

// SessionState holds the session metadata and its pollers.
type SessionState struct {
	Session      *models.MonitorSession
	Reader       *status.Reader
	Scanner      *parser.Scanner
	Store        *parser.DuckStore
	Ledger       *parser.MaterialLedger
	LastAccessed time.Time

	// pollMu serialises polls; the reader and scanner are single-owner.
	pollMu sync.Mutex

	subMu       sync.Mutex
	subscribers map[int]chan *models.Timeline
	nextSub     int
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = MaxSessions
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	os.MkdirAll(opts.TempDir, 0755)

	return &Manager{
		sessions: make(map[string]*SessionState),
		decoder:  parser.NewDecoder(nil),
		opts:     opts,
		logger:   logging.Component("session"),
	}
}

// Decoder returns the decoder shared by all sessions.
func (m *Manager) Decoder() *parser.Decoder {
	return m.decoder
}

// Start begins monitoring folder. A folder that is already monitored
// returns its existing session.
func (m *Manager) Start(ctx context.Context, folder string) (*models.MonitorSession, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, pkgerrors.NewValidationError("folder", folder, "folder does not exist")
	}
	if !info.IsDir() {
		return nil, pkgerrors.NewValidationError("folder", folder, "not a directory")
	}
	if abs, err := filepath.Abs(folder); err == nil {
		folder = abs
	}

	m.startMu.Lock()
	defer m.startMu.Unlock()

	if existing := m.findByFolder(folder); existing != nil {
		return existing, nil
	}

	m.cleanupOldSessionsIfNeeded()
	m.mu.RLock()
	full := len(m.sessions) >= m.opts.MaxSessions
	m.mu.RUnlock()
	if full {
		return nil, ErrTooManySessions
	}

	sessionID := uuid.New().String()
	log := m.logger.With().Str("session", shortID(sessionID)).Logger()

	var store *parser.DuckStore
	if m.opts.Journals != nil {
		store, err = m.opts.Journals.Open(folder, m.decoder)
	} else {
		store, err = parser.NewDuckStore(m.opts.TempDir, sessionID, m.decoder)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	reader := status.NewFolderReader(folder,
		status.WithThresholds(m.opts.Thresholds),
		status.WithLogger(log))

	session := models.NewMonitorSession(sessionID, folder, reader.Path())
	state := &SessionState{
		Session:      session,
		Reader:       reader,
		Store:        store,
		Ledger:       parser.NewMaterialLedger(),
		LastAccessed: time.Now(),
		subscribers:  make(map[int]chan *models.Timeline),
	}

	if journal := LatestJournal(folder); journal != "" {
		if err := m.openJournal(ctx, state, journal); err != nil {
			store.Close()
			return nil, err
		}
	}

	m.mu.Lock()
	m.sessions[sessionID] = state
	m.mu.Unlock()

	log.Info().Str("folder", folder).Str("journal", session.JournalPath).Msg("Monitoring started")
	return session, nil
}

func (m *Manager) findByFolder(folder string) *models.MonitorSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, state := range m.sessions {
		if state.Session.Folder == folder && state.Session.Status == models.SessionStatusActive {
			return state.Session
		}
	}
	return nil
}

// openJournal points the session at a journal file, resuming its stored unit.
func (m *Manager) openJournal(ctx context.Context, state *SessionState, journal string) error {
	unit, err := state.Store.FindUnit(ctx, journal)
	if err != nil {
		if !pkgerrors.IsNotFound(err) {
			return err
		}
		unit = &models.TravelLogUnit{Path: journal}
		if err := state.Store.AddUnit(ctx, unit); err != nil {
			return err
		}
	}

	state.Scanner = parser.NewScanner(journal, m.decoder,
		parser.WithEntryStore(state.Store),
		parser.WithUnit(*unit),
		parser.WithScannerLogger(m.logger))

	m.mu.Lock()
	state.Session.JournalPath = journal
	m.mu.Unlock()
	return nil
}

// LatestJournal returns the most recently modified journal in folder, or "".
func LatestJournal(folder string) string {
	matches, err := filepath.Glob(filepath.Join(folder, JournalPattern))
	if err != nil || len(matches) == 0 {
		return ""
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var files []candidate
	for _, p := range matches {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			files = append(files, candidate{p, info.ModTime()})
		}
	}
	if len(files) == 0 {
		return ""
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].mod.Equal(files[j].mod) {
			return files[i].path > files[j].path
		}
		return files[i].mod.After(files[j].mod)
	})
	return files[0].path
}

// Poll reads the journal and the status file of a session once and returns
// the new items as one timeline. Subscribers receive non-empty timelines.
// Polling does not count as access for idle cleanup.
func (m *Manager) Poll(ctx context.Context, id string) (*models.Timeline, error) {
	state, ok := m.peekState(id)
	if !ok {
		return nil, pkgerrors.NewNotFoundError("session", id)
	}

	state.pollMu.Lock()
	defer state.pollMu.Unlock()

	entries, err := m.readJournal(ctx, state)
	if err != nil {
		m.recordError(state, err)
		if ctx.Err() != nil {
			return nil, err
		}
	}

	events := state.Reader.Poll()
	for _, e := range entries {
		if e.Type == models.EventTypeShipTargeted {
			events = append(events, models.NewShipTargetedEvent(e, false))
		}
	}

	parser.ApplyMaterials(state.Ledger, entries)
	timeline := parser.MergeTimeline(entries, events, m.opts.Merge)

	m.mu.Lock()
	state.Session.LastPollAt = time.Now()
	state.Session.PollCount++
	state.Session.EntryCount += len(entries)
	state.Session.UIEventCount += len(events)
	m.mu.Unlock()

	if timeline.Len() > 0 {
		state.publish(timeline)
	}
	return timeline, nil
}

// readJournal reads the current journal and follows a switch to a newer one.
func (m *Manager) readJournal(ctx context.Context, state *SessionState) ([]*models.Entry, error) {
	var entries []*models.Entry

	if state.Scanner != nil {
		read, err := state.Scanner.ReadNew(ctx)
		entries = append(entries, read...)
		if err != nil {
			return entries, err
		}
		if err := state.Store.UpdateUnit(ctx, state.Scanner.Unit()); err != nil {
			return entries, err
		}
	}

	latest := LatestJournal(state.Session.Folder)
	if latest == "" || (state.Scanner != nil && latest == state.Scanner.Path()) {
		return entries, nil
	}

	m.logger.Info().Str("session", shortID(state.Session.ID)).Str("journal", latest).Msg("Switching to newer journal")
	if err := m.openJournal(ctx, state, latest); err != nil {
		return entries, err
	}
	read, err := state.Scanner.ReadNew(ctx)
	entries = append(entries, read...)
	if err != nil {
		return entries, err
	}
	return entries, state.Store.UpdateUnit(ctx, state.Scanner.Unit())
}

func (m *Manager) recordError(state *SessionState, err error) {
	m.logger.Warn().Err(err).Str("session", shortID(state.Session.ID)).Msg("Poll failed")

	m.mu.Lock()
	defer m.mu.Unlock()
	state.Session.Errors = append(state.Session.Errors, err.Error())
	if len(state.Session.Errors) > 20 {
		state.Session.Errors = state.Session.Errors[len(state.Session.Errors)-20:]
	}
}

// Subscribe registers for the timelines produced by polls of a session.
// The returned function unsubscribes and closes the channel.
func (m *Manager) Subscribe(id string) (<-chan *models.Timeline, func(), error) {
	state, ok := m.getState(id)
	if !ok {
		return nil, nil, pkgerrors.NewNotFoundError("session", id)
	}

	ch := make(chan *models.Timeline, 16)
	state.subMu.Lock()
	subID := state.nextSub
	state.nextSub++
	state.subscribers[subID] = ch
	state.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			state.subMu.Lock()
			if c, ok := state.subscribers[subID]; ok {
				delete(state.subscribers, subID)
				close(c)
			}
			state.subMu.Unlock()
		})
	}
	return ch, cancel, nil
}

// publish drops the timeline for subscribers that are not keeping up.
func (s *SessionState) publish(tl *models.Timeline) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- tl:
		default:
		}
	}
}

func (s *SessionState) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}

func (m *Manager) peekState(id string) (*SessionState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.sessions[id]
	return state, ok
}

func (m *Manager) getState(id string) (*SessionState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.sessions[id]
	if ok {
		state.LastAccessed = time.Now()
	}
	return state, ok
}

// GetSession returns a copy of a session by ID.
func (m *Manager) GetSession(id string) (*models.MonitorSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	s := *state.Session
	s.Errors = append([]string(nil), state.Session.Errors...)
	return &s, true
}

// List returns copies of all sessions, oldest first.
func (m *Manager) List() []*models.MonitorSession {
	m.mu.RLock()
	out := make([]*models.MonitorSession, 0, len(m.sessions))
	for _, state := range m.sessions {
		s := *state.Session
		out = append(out, &s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// ActiveIDs returns the ids of sessions that should be polled.
func (m *Manager) ActiveIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id, state := range m.sessions {
		if state.Session.Status == models.SessionStatusActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// TouchSession updates the LastAccessed timestamp for a session.
func (m *Manager) TouchSession(id string) bool {
	_, ok := m.getState(id)
	return ok
}

// Status returns the current status summary of a session.
func (m *Manager) Status(id string) (models.OverallStatus, error) {
	state, ok := m.getState(id)
	if !ok {
		return models.OverallStatus{}, pkgerrors.NewNotFoundError("session", id)
	}
	state.pollMu.Lock()
	defer state.pollMu.Unlock()
	return state.Reader.Current(), nil
}

// Materials returns the material counts collected from the session's journal.
func (m *Manager) Materials(id string) ([]parser.MaterialCount, error) {
	state, ok := m.getState(id)
	if !ok {
		return nil, pkgerrors.NewNotFoundError("session", id)
	}
	state.pollMu.Lock()
	defer state.pollMu.Unlock()
	return state.Ledger.Snapshot(), nil
}

// QueryEntries returns filtered, paginated stored entries of a session.
func (m *Manager) QueryEntries(ctx context.Context, id string, q parser.EntryQuery) ([]*models.Entry, int, error) {
	state, ok := m.getState(id)
	if !ok {
		return nil, 0, pkgerrors.NewNotFoundError("session", id)
	}
	return state.Store.QueryEntries(ctx, q)
}

// GetEntry returns one stored entry of a session.
func (m *Manager) GetEntry(ctx context.Context, id string, entryID int64) (*models.Entry, error) {
	state, ok := m.getState(id)
	if !ok {
		return nil, pkgerrors.NewNotFoundError("session", id)
	}
	return state.Store.GetEntry(ctx, entryID)
}

// AssociatedFile returns the side file (<Event>.json in the session folder)
// carrying the full version of a stored entry.
func (m *Manager) AssociatedFile(ctx context.Context, id string, entryID int64, wait bool) (parser.Fields, error) {
	state, ok := m.getState(id)
	if !ok {
		return nil, pkgerrors.NewNotFoundError("session", id)
	}
	entry, err := state.Store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(state.Session.Folder, parser.EventTag(entry)+".json")
	opts := m.opts.Associated
	opts.Logger = &m.logger
	obj := parser.ReadAssociatedFile(ctx, path, entry, wait, false, opts)
	if obj == nil {
		return nil, pkgerrors.NewNotFoundError("associated file", path)
	}
	return obj, nil
}

// UpdateSyncFlags sets and clears sync bits of a stored entry.
func (m *Manager) UpdateSyncFlags(ctx context.Context, id string, entryID int64, set, clear models.SyncFlags) (*models.Entry, error) {
	state, ok := m.getState(id)
	if !ok {
		return nil, pkgerrors.NewNotFoundError("session", id)
	}
	entry, err := state.Store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := state.Store.UpdateSyncFlags(ctx, entry, set, clear); err != nil {
		return nil, err
	}
	return entry, nil
}

// Stop ends a session and releases its storage.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		state.Session.Status = models.SessionStatusStopped
	}
	m.mu.Unlock()

	if !ok {
		return pkgerrors.NewNotFoundError("session", id)
	}

	state.pollMu.Lock()
	defer state.pollMu.Unlock()
	state.closeSubscribers()
	if err := state.Store.Close(); err != nil {
		m.logger.Warn().Err(err).Str("session", shortID(id)).Msg("Closing store failed")
	}
	m.logger.Info().Str("session", shortID(id)).Msg("Monitoring stopped")
	return nil
}

// cleanupOldSessionsIfNeeded removes the least recently used sessions outside the keep-alive window if at capacity
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.RLock()
	if len(m.sessions) < m.opts.MaxSessions {
		m.mu.RUnlock()
		return
	}

	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)
	type idle struct {
		id   string
		last time.Time
	}
	var candidates []idle
	for id, state := range m.sessions {
		if state.LastAccessed.Before(keepAliveCutoff) {
			candidates = append(candidates, idle{id, state.LastAccessed})
		}
	}
	toFree := len(m.sessions) - m.opts.MaxSessions + 1
	m.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].last.Before(candidates[j].last) })
	for i := 0; i < len(candidates) && i < toFree; i++ {
		m.Stop(candidates[i].id)
		m.logger.Info().Str("session", shortID(candidates[i].id)).Msg("Cleaned up idle session to make room")
	}
}

// CleanupOldSessions stops sessions not accessed for maxAge,
// but keeps sessions that have been accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)

	m.mu.RLock()
	var expired []string
	for id, state := range m.sessions {
		// Don't clean up sessions that are actively being used
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		if err := m.Stop(id); err == nil {
			m.logger.Info().Str("session", shortID(id)).Msg("Cleaned up aged session")
		}
	}
	return len(expired)
}

// Close stops every session.
func (m *Manager) Close() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Stop(id)
	}
}
