package parser

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog"

	pkgerrors "github.com/journal-monitor/backend/internal/errors"
	"github.com/journal-monitor/backend/internal/logging"
	"github.com/journal-monitor/backend/internal/models"
)

// DuckStore persists journal entries and travel log units in a DuckDB file.
// The stored JSON is the record as read, so equivalence checks can fetch it
// back by id.
type DuckStore struct {
	db      *sql.DB
	dbPath  string
	temp    bool
	decoder *Decoder
	logger  zerolog.Logger

	mu         sync.Mutex
	nextID     int64
	nextUnitID int64

	// Cache for total counts by filter to avoid repeated COUNT queries
	countCache   map[string]int
	countCacheMu sync.RWMutex

	// Semaphore to limit concurrent queries
	querySem chan struct{}
}

// NewDuckStore creates a store in tempDir that is removed on Close.
func NewDuckStore(tempDir string, sessionID string, dec *Decoder) (*DuckStore, error) {
	dbPath := filepath.Join(tempDir, fmt.Sprintf("session_%s.duckdb", sessionID))
	ds, err := NewDuckStoreAtPath(dbPath, dec)
	if err != nil {
		return nil, err
	}
	ds.temp = true
	return ds, nil
}

// NewDuckStoreAtPath opens or creates a persistent store at dbPath.
func NewDuckStoreAtPath(dbPath string, dec *Decoder) (*DuckStore, error) {
	if dec == nil {
		dec = NewDecoder(nil)
	}
	log := logging.Component("duckstore").With().Str("path", dbPath).Logger()
	log.Debug().Msg("Opening database")

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='512MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				log.Error().Err(err).Str("pragma", pragma).Msg("Pragma failed")
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS travel_units (
			id           BIGINT PRIMARY KEY,
			path         VARCHAR NOT NULL,
			commander_id INTEGER NOT NULL,
			size         BIGINT NOT NULL,
			beta         BOOLEAN NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			id           BIGINT PRIMARY KEY,
			tlu_id       BIGINT NOT NULL,
			commander_id INTEGER NOT NULL,
			event_type   INTEGER NOT NULL,
			event_name   VARCHAR NOT NULL,
			event_time   BIGINT NOT NULL,
			json         VARCHAR NOT NULL,
			synced       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_unit_time ON entries(tlu_id, event_time)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	ds := &DuckStore{
		db:         db,
		dbPath:     dbPath,
		decoder:    dec,
		logger:     log,
		countCache: make(map[string]int),
		querySem:   make(chan struct{}, 3), // Max 3 concurrent queries
	}

	if err := db.QueryRow("SELECT COALESCE(MAX(id), 0) FROM entries").Scan(&ds.nextID); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read entry ids: %w", err)
	}
	if err := db.QueryRow("SELECT COALESCE(MAX(id), 0) FROM travel_units").Scan(&ds.nextUnitID); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read unit ids: %w", err)
	}

	log.Debug().Int64("entries", ds.nextID).Msg("Database ready")
	return ds, nil
}

// AddUnit stores a travel log unit and records its id on it.
func (ds *DuckStore) AddUnit(ctx context.Context, unit *models.TravelLogUnit) error {
	ds.mu.Lock()
	ds.nextUnitID++
	id := ds.nextUnitID
	ds.mu.Unlock()

	_, err := ds.db.ExecContext(ctx,
		"INSERT INTO travel_units (id, path, commander_id, size, beta) VALUES (?, ?, ?, ?, ?)",
		id, unit.Path, unit.CommanderID, unit.Size, unit.Beta)
	if err != nil {
		return fmt.Errorf("insert unit: %w", err)
	}
	unit.ID = id
	return nil
}

// UpdateUnit writes back the size and beta flag of a unit.
func (ds *DuckStore) UpdateUnit(ctx context.Context, unit models.TravelLogUnit) error {
	_, err := ds.db.ExecContext(ctx,
		"UPDATE travel_units SET size = ?, beta = ?, commander_id = ? WHERE id = ?",
		unit.Size, unit.Beta, unit.CommanderID, unit.ID)
	if err != nil {
		return fmt.Errorf("update unit %d: %w", unit.ID, err)
	}
	return nil
}

// GetUnit returns the unit with the given id.
func (ds *DuckStore) GetUnit(ctx context.Context, id int64) (*models.TravelLogUnit, error) {
	u := &models.TravelLogUnit{}
	err := ds.db.QueryRowContext(ctx,
		"SELECT id, path, commander_id, size, beta FROM travel_units WHERE id = ?", id).
		Scan(&u.ID, &u.Path, &u.CommanderID, &u.Size, &u.Beta)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.NewNotFoundError("travel log unit", fmt.Sprint(id))
	}
	if err != nil {
		return nil, fmt.Errorf("get unit %d: %w", id, err)
	}
	return u, nil
}

// FindUnit returns the most recent unit stored for path.
func (ds *DuckStore) FindUnit(ctx context.Context, path string) (*models.TravelLogUnit, error) {
	u := &models.TravelLogUnit{}
	err := ds.db.QueryRowContext(ctx,
		"SELECT id, path, commander_id, size, beta FROM travel_units WHERE path = ? ORDER BY id DESC LIMIT 1", path).
		Scan(&u.ID, &u.Path, &u.CommanderID, &u.Size, &u.Beta)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.NewNotFoundError("travel log unit", path)
	}
	if err != nil {
		return nil, fmt.Errorf("find unit %s: %w", path, err)
	}
	return u, nil
}

// IsBeta reports whether an entry's unit was written by a beta client.
// Unknown units are not beta.
func (ds *DuckStore) IsBeta(ctx context.Context, e *models.Entry) bool {
	u, err := ds.GetUnit(ctx, e.TLUID)
	if err != nil {
		return false
	}
	return u.Beta
}

// Add stores e and records its id on it.
func (ds *DuckStore) Add(ctx context.Context, e *models.Entry) error {
	text, err := entryJSON(e)
	if err != nil {
		return err
	}

	ds.mu.Lock()
	ds.nextID++
	id := ds.nextID
	ds.mu.Unlock()

	_, err = ds.db.ExecContext(ctx, `
		INSERT INTO entries (id, tlu_id, commander_id, event_type, event_name, event_time, json, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.TLUID, e.CommanderID, int(e.Type), EventTag(e), e.EventTimeUTC.UnixMilli(), text, int(e.SyncFlags()))
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	e.SetStorageID(id)
	ds.ClearCountCache()
	return nil
}

// AddBatch stores entries through the DuckDB Appender, for bulk imports.
func (ds *DuckStore) AddBatch(ctx context.Context, entries []*models.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	startTime := time.Now()

	texts := make([]string, len(entries))
	for i, e := range entries {
		text, err := entryJSON(e)
		if err != nil {
			return err
		}
		texts[i] = text
	}

	ds.mu.Lock()
	baseID := ds.nextID + 1
	ds.nextID += int64(len(entries))
	ds.mu.Unlock()

	// Get a single connection from the pool
	conn, err := ds.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	// Access the raw driver connection to use the Appender API
	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "entries")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, e := range entries {
			err := appender.AppendRow(
				baseID+int64(i),
				e.TLUID,
				int32(e.CommanderID),
				int32(e.Type),
				EventTag(e),
				e.EventTimeUTC.UnixMilli(),
				texts[i],
				int32(e.SyncFlags()),
			)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	for i, e := range entries {
		e.SetStorageID(baseID + int64(i))
	}
	ds.ClearCountCache()
	ds.logger.Debug().Int("entries", len(entries)).Dur("elapsed", time.Since(startTime)).Msg("Batch stored")
	return nil
}

// EntryJSON returns the stored record of entry id.
func (ds *DuckStore) EntryJSON(ctx context.Context, id int64) (Fields, error) {
	var text string
	err := ds.db.QueryRowContext(ctx, "SELECT json FROM entries WHERE id = ?", id).Scan(&text)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.NewNotFoundError("entry", fmt.Sprint(id))
	}
	if err != nil {
		return nil, fmt.Errorf("get entry json %d: %w", id, err)
	}
	return ParseObject([]byte(text))
}

// GetEntry decodes the stored entry id. The record is not retained on it.
func (ds *DuckStore) GetEntry(ctx context.Context, id int64) (*models.Entry, error) {
	row := ds.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM entries WHERE id = ?", id)
	e, err := ds.scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.NewNotFoundError("entry", fmt.Sprint(id))
	}
	return e, err
}

// EntriesAt returns the stored entries of a unit with the given time.
func (ds *DuckStore) EntriesAt(ctx context.Context, tluID int64, t time.Time) ([]*models.Entry, error) {
	rows, err := ds.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE tlu_id = ? AND event_time = ? ORDER BY id",
		tluID, t.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query entries at %v: %w", t, err)
	}
	defer rows.Close()
	return ds.scanEntries(rows)
}

// EntryQuery filters QueryEntries.
type EntryQuery struct {
	TLUID  int64
	Types  []models.EventType
	Start  time.Time
	End    time.Time
	Limit  int
	Offset int
}

// QueryEntries returns matching entries in id order plus the total match count.
func (ds *DuckStore) QueryEntries(ctx context.Context, q EntryQuery) ([]*models.Entry, int, error) {
	// Acquire semaphore to limit concurrent queries
	select {
	case ds.querySem <- struct{}{}:
		defer func() { <-ds.querySem }()
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}

	where, args := buildWhereClause(q)

	cacheKey := fmt.Sprintf("%s|%v", where, args)
	ds.countCacheMu.RLock()
	total, found := ds.countCache[cacheKey]
	ds.countCacheMu.RUnlock()

	if !found {
		countQuery := "SELECT COUNT(*) FROM entries"
		if where != "" {
			countQuery += " WHERE " + where
		}
		if err := ds.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count query failed: %w", err)
		}
		ds.countCacheMu.Lock()
		ds.countCache[cacheKey] = total
		ds.countCacheMu.Unlock()
	}

	if total == 0 {
		return []*models.Entry{}, 0, nil
	}

	query := "SELECT " + entryColumns + " FROM entries"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY id"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", q.Limit, max(q.Offset, 0))
	}

	rows, err := ds.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	entries, err := ds.scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func buildWhereClause(q EntryQuery) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if q.TLUID > 0 {
		clauses = append(clauses, "tlu_id = ?")
		args = append(args, q.TLUID)
	}
	if len(q.Types) > 0 {
		placeholders := make([]string, len(q.Types))
		for i, t := range q.Types {
			placeholders[i] = "?"
			args = append(args, int(t))
		}
		clauses = append(clauses, "event_type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if !q.Start.IsZero() {
		clauses = append(clauses, "event_time >= ?")
		args = append(args, q.Start.UnixMilli())
	}
	if !q.End.IsZero() {
		clauses = append(clauses, "event_time <= ?")
		args = append(args, q.End.UnixMilli())
	}
	return strings.Join(clauses, " AND "), args
}

// UpdateSyncFlags sets and clears sync bits of a stored entry and mirrors
// the result on e once persisted.
func (ds *DuckStore) UpdateSyncFlags(ctx context.Context, e *models.Entry, set, clear models.SyncFlags) error {
	next := e.SyncFlags().With(set, clear)
	res, err := ds.db.ExecContext(ctx, "UPDATE entries SET synced = ? WHERE id = ?", int(next), e.ID)
	if err != nil {
		return fmt.Errorf("update sync flags of %d: %w", e.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return pkgerrors.NewNotFoundError("entry", fmt.Sprint(e.ID))
	}
	e.SetSyncFlags(next)
	return nil
}

// SetStartMarker marks e as a distance measurement start.
func (ds *DuckStore) SetStartMarker(ctx context.Context, e *models.Entry) error {
	return ds.UpdateSyncFlags(ctx, e, models.SyncStartMarker, models.SyncStopMarker)
}

// SetStopMarker marks e as a distance measurement stop.
func (ds *DuckStore) SetStopMarker(ctx context.Context, e *models.Entry) error {
	return ds.UpdateSyncFlags(ctx, e, models.SyncStopMarker, models.SyncStartMarker)
}

// ClearStartStop removes both markers.
func (ds *DuckStore) ClearStartStop(ctx context.Context, e *models.Entry) error {
	return ds.UpdateSyncFlags(ctx, e, models.SyncNone, models.SyncStartMarker|models.SyncStopMarker)
}

func (ds *DuckStore) SetEDSMSynced(ctx context.Context, e *models.Entry) error {
	return ds.UpdateSyncFlags(ctx, e, models.SyncEDSM, models.SyncNone)
}

func (ds *DuckStore) SetEDDNSynced(ctx context.Context, e *models.Entry) error {
	return ds.UpdateSyncFlags(ctx, e, models.SyncEDDN, models.SyncNone)
}

// Len returns the number of stored entries.
func (ds *DuckStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := ds.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// ClearCountCache drops cached totals.
func (ds *DuckStore) ClearCountCache() {
	ds.countCacheMu.Lock()
	ds.countCache = make(map[string]int)
	ds.countCacheMu.Unlock()
}

// Close closes the database, removing the file of a temporary store.
func (ds *DuckStore) Close() error {
	var err error
	if ds.db != nil {
		err = ds.db.Close()
	}
	if ds.temp && ds.dbPath != "" {
		os.Remove(ds.dbPath)
		os.Remove(ds.dbPath + ".wal")
	}
	return err
}

const entryColumns = "id, tlu_id, commander_id, json, synced"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (ds *DuckStore) scanEntry(row rowScanner) (*models.Entry, error) {
	var id, tluID int64
	var cmdr, synced int
	var text string
	if err := row.Scan(&id, &tluID, &cmdr, &text, &synced); err != nil {
		return nil, err
	}
	e := ds.decoder.DecodeText(text, false)
	e.SetStorageID(id)
	e.SetUnitCommander(tluID, cmdr)
	e.SetSyncFlags(models.SyncFlags(synced))
	return e, nil
}

func (ds *DuckStore) scanEntries(rows *sql.Rows) ([]*models.Entry, error) {
	var out []*models.Entry
	for rows.Next() {
		e, err := ds.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// entryJSON is the record to persist: the retained raw record, or a minimal
// record rebuilt from the envelope.
func entryJSON(e *models.Entry) (string, error) {
	raw := e.Raw
	if raw == nil {
		raw = map[string]any{
			"event":     EventTag(e),
			"timestamp": e.EventTimeUTC.UTC().Format(time.RFC3339),
		}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return "", pkgerrors.WrapParse("json", "", err)
	}
	return string(b), nil
}

// EventTag returns the tag an entry was written with, keeping the original
// tag of unknown records.
func EventTag(e *models.Entry) string {
	if u, ok := e.Payload.(Unknown); ok && u.Name != "" {
		return u.Name
	}
	return e.EventName()
}
