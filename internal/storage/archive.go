// Package storage keeps uploaded journal files for offline decoding.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	pkgerrors "github.com/journal-monitor/backend/internal/errors"
	"github.com/journal-monitor/backend/internal/logging"
	"github.com/journal-monitor/backend/internal/models"
)

const indexFile = "index.json"

// Store defines the interface for journal file storage.
type Store interface {
	Save(name string, r io.Reader) (*models.JournalFile, error)
	Get(id string) (*models.JournalFile, error)
	List(limit int) ([]*models.JournalFile, error)
	Delete(id string) error
	Rename(id string, newName string) (*models.JournalFile, error)
	GetFilePath(id string) (string, error)
	SaveChunk(uploadID string, chunkIndex int, r io.Reader) error
	CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.JournalFile, error)
}

// Archive implements Store on the local filesystem. File metadata is kept
// in index.json next to the files so it survives restarts.
type Archive struct {
	mu     sync.RWMutex
	dir    string
	files  map[string]*models.JournalFile
	logger zerolog.Logger
}

// NewArchive creates an archive in dir, loading its index when present.
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	a := &Archive{
		dir:    dir,
		files:  make(map[string]*models.JournalFile),
		logger: logging.Component("archive"),
	}
	if err := a.loadIndex(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archive) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(a.dir, indexFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return pkgerrors.WrapIO("read", indexFile, err)
	}

	var list []*models.JournalFile
	if err := json.Unmarshal(data, &list); err != nil {
		return pkgerrors.WrapParse("json", indexFile, err)
	}
	for _, f := range list {
		if _, err := os.Stat(filepath.Join(a.dir, f.ID)); err != nil {
			a.logger.Warn().Str("id", f.ID).Msg("Indexed journal missing, dropping")
			continue
		}
		a.files[f.ID] = f
	}
	return nil
}

// saveIndex must be called with mu held.
func (a *Archive) saveIndex() error {
	list := make([]*models.JournalFile, 0, len(a.files))
	for _, f := range a.files {
		list = append(list, f)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	tmp := filepath.Join(a.dir, indexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return pkgerrors.WrapIO("write", tmp, err)
	}
	return os.Rename(tmp, filepath.Join(a.dir, indexFile))
}

func (a *Archive) add(info *models.JournalFile) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files[info.ID] = info
	return a.saveIndex()
}

// Save stores a journal file.
func (a *Archive) Save(name string, r io.Reader) (*models.JournalFile, error) {
	id := uuid.New().String()
	path := filepath.Join(a.dir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.JournalFile{
		ID:         id,
		Name:       name,
		Size:       size,
		UploadedAt: time.Now(),
	}
	if err := a.add(info); err != nil {
		return nil, err
	}
	a.logger.Info().Str("id", id).Str("name", name).Int64("size", size).Msg("Journal archived")
	return info, nil
}

// Get retrieves file metadata by ID.
func (a *Archive) Get(id string) (*models.JournalFile, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	info, ok := a.files[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("file", id)
	}
	return info, nil
}

// List returns the most recent files.
func (a *Archive) List(limit int) ([]*models.JournalFile, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	list := make([]*models.JournalFile, 0, len(a.files))
	for _, info := range a.files {
		list = append(list, info)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Delete removes a file from storage.
func (a *Archive) Delete(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.files[id]; !ok {
		return pkgerrors.NewNotFoundError("file", id)
	}

	path := filepath.Join(a.dir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(a.files, id)
	return a.saveIndex()
}

// Rename updates the display name of a file.
func (a *Archive) Rename(id string, newName string) (*models.JournalFile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	info, ok := a.files[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("file", id)
	}

	info.Name = newName
	return info, a.saveIndex()
}

// GetFilePath returns the path of a stored file.
func (a *Archive) GetFilePath(id string) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, ok := a.files[id]; !ok {
		return "", pkgerrors.NewNotFoundError("file", id)
	}
	return filepath.Join(a.dir, id), nil
}

// SaveChunk saves a single chunk to a temporary location.
func (a *Archive) SaveChunk(uploadID string, chunkIndex int, r io.Reader) error {
	if uploadID == "" || filepath.Base(uploadID) != uploadID {
		return pkgerrors.NewValidationError("uploadId", uploadID, "invalid upload id")
	}
	chunkDir := filepath.Join(a.dir, "chunks", uploadID)
	if err := os.MkdirAll(chunkDir, 0755); err != nil {
		return fmt.Errorf("creating chunk directory: %w", err)
	}

	path := filepath.Join(chunkDir, fmt.Sprintf("chunk_%d", chunkIndex))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chunk file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("writing chunk: %w", err)
	}
	return nil
}

// CompleteChunkedUpload assembles all chunks into a stored file.
func (a *Archive) CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.JournalFile, error) {
	if uploadID == "" || filepath.Base(uploadID) != uploadID {
		return nil, pkgerrors.NewValidationError("uploadId", uploadID, "invalid upload id")
	}
	id := uuid.New().String()
	finalPath := filepath.Join(a.dir, id)
	chunkDir := filepath.Join(a.dir, "chunks", uploadID)

	out, err := os.Create(finalPath)
	if err != nil {
		return nil, fmt.Errorf("creating final file: %w", err)
	}
	defer out.Close()

	var totalSize int64
	for i := 0; i < totalChunks; i++ {
		chunkPath := filepath.Join(chunkDir, fmt.Sprintf("chunk_%d", i))
		in, err := os.Open(chunkPath)
		if err != nil {
			out.Close()
			os.Remove(finalPath)
			return nil, fmt.Errorf("opening chunk %d: %w", i, err)
		}

		n, err := io.Copy(out, in)
		in.Close()
		if err != nil {
			out.Close()
			os.Remove(finalPath)
			return nil, fmt.Errorf("copying chunk %d: %w", i, err)
		}
		totalSize += n
	}

	info := &models.JournalFile{
		ID:         id,
		Name:       name,
		Size:       totalSize,
		UploadedAt: time.Now(),
	}
	if err := a.add(info); err != nil {
		return nil, err
	}

	os.RemoveAll(chunkDir)
	return info, nil
}
