package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/journal-monitor/backend/internal/logging"
	"github.com/journal-monitor/backend/internal/parser"
)

// shortID safely truncates an ID for logging (handles short IDs gracefully)
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// JournalStore manages persistent DuckDB files, one per journal folder.
// Restarting a session on a folder reopens its database, so entries already
// stored are recognised instead of being stored again.
type JournalStore struct {
	dbDir  string
	mu     sync.RWMutex
	logger zerolog.Logger
	// cache tracks known folder keys (key -> dbPath)
	cache map[string]string
}

// NewJournalStore creates a journal store in dbDir.
func NewJournalStore(dbDir string) (*JournalStore, error) {
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("create journal db dir: %w", err)
	}

	js := &JournalStore{
		dbDir:  dbDir,
		logger: logging.Component("journalstore"),
		cache:  make(map[string]string),
	}
	js.scanExisting()
	return js, nil
}

// scanExisting scans the directory for existing databases on startup.
func (js *JournalStore) scanExisting() {
	entries, err := os.ReadDir(js.dbDir)
	if err != nil {
		js.logger.Warn().Err(err).Str("dir", js.dbDir).Msg("Failed to scan journal db directory")
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// Look for files matching pattern: journal_<key>.duckdb
		name := entry.Name()
		if strings.HasPrefix(name, "journal_") && filepath.Ext(name) == ".duckdb" {
			key := strings.TrimSuffix(strings.TrimPrefix(name, "journal_"), ".duckdb")
			js.cache[key] = filepath.Join(js.dbDir, name)
		}
	}

	js.logger.Debug().Int("count", len(js.cache)).Msg("Scanned existing journal databases")
}

// KeyFor returns the stable key of a folder: a name-based UUID of its absolute path.
func (js *JournalStore) KeyFor(folder string) string {
	abs, err := filepath.Abs(folder)
	if err != nil {
		abs = folder
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(abs))).String()
}

// GetDBPath returns the database path for a folder key.
func (js *JournalStore) GetDBPath(key string) string {
	return filepath.Join(js.dbDir, fmt.Sprintf("journal_%s.duckdb", key))
}

// Has reports whether a database exists for folder.
func (js *JournalStore) Has(folder string) bool {
	key := js.KeyFor(folder)
	js.mu.RLock()
	_, ok := js.cache[key]
	js.mu.RUnlock()
	if ok {
		return true
	}

	if _, err := os.Stat(js.GetDBPath(key)); err == nil {
		js.mu.Lock()
		js.cache[key] = js.GetDBPath(key)
		js.mu.Unlock()
		return true
	}
	return false
}

// Open opens, or creates, the database of folder.
func (js *JournalStore) Open(folder string, dec *parser.Decoder) (*parser.DuckStore, error) {
	key := js.KeyFor(folder)
	dbPath := js.GetDBPath(key)

	store, err := parser.NewDuckStoreAtPath(dbPath, dec)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal DB: %w", err)
	}

	js.mu.Lock()
	js.cache[key] = dbPath
	js.mu.Unlock()

	js.logger.Debug().Str("key", shortID(key)).Str("folder", folder).Msg("Opened journal DB")
	return store, nil
}

// Delete removes the database of folder. The store must be closed.
func (js *JournalStore) Delete(folder string) error {
	key := js.KeyFor(folder)
	js.mu.Lock()
	delete(js.cache, key)
	js.mu.Unlock()

	dbPath := js.GetDBPath(key)
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete journal DB: %w", err)
	}
	os.Remove(dbPath + ".wal")

	js.logger.Info().Str("key", shortID(key)).Msg("Deleted journal DB")
	return nil
}

// List returns the keys of all known databases.
func (js *JournalStore) List() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()

	keys := make([]string, 0, len(js.cache))
	for k := range js.cache {
		keys = append(keys, k)
	}
	return keys
}

// Stats returns statistics about the stored databases.
func (js *JournalStore) Stats() map[string]interface{} {
	js.mu.Lock()
	defer js.mu.Unlock()

	var totalSize int64
	for key, dbPath := range js.cache {
		if info, err := os.Stat(dbPath); err == nil {
			totalSize += info.Size()
		} else {
			// File missing, remove from cache
			delete(js.cache, key)
		}
	}

	return map[string]interface{}{
		"journalCount": len(js.cache),
		"totalSize":    totalSize,
		"dbDir":        js.dbDir,
	}
}
