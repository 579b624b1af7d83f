package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/journal-monitor/backend/internal/errors"
	"github.com/journal-monitor/backend/internal/models"
	"github.com/journal-monitor/backend/internal/parser"
)

const (
	lineHeader   = `{"timestamp":"2024-03-01T10:00:00Z","event":"Fileheader","part":1,"gameversion":"4.0.0.1","build":"r1"}`
	lineDocked   = `{"timestamp":"2024-03-01T10:01:00Z","event":"Docked","StationName":"A","StarSystem":"Sol"}`
	lineUndock   = `{"timestamp":"2024-03-01T10:02:00Z","event":"Undocked","StationName":"A"}`
	lineMats     = `{"timestamp":"2024-03-01T10:03:00Z","event":"MaterialCollected","Category":"Raw","Name":"Iron","Count":3}`
	lineTargeted = `{"timestamp":"2024-03-01T10:04:00Z","event":"ShipTargeted","TargetLocked":true,"Ship":"anaconda","ScanStage":0}`
	statusDocked = `{"timestamp":"2024-03-01T10:01:00Z","event":"Status","Flags":16777217,"GuiFocus":0}`
)

func appendFile(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(text)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func newTestManager(t *testing.T, opts ...func(*Options)) *Manager {
	t.Helper()
	o := DefaultOptions()
	o.TempDir = t.TempDir()
	o.Associated.RetryCount = 1
	for _, fn := range opts {
		fn(&o)
	}
	m := NewManager(o)
	t.Cleanup(m.Close)
	return m
}

func TestStartValidatesFolder(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Start(ctx, filepath.Join(t.TempDir(), "missing"))
	assert.True(t, pkgerrors.IsValidationError(err))

	file := filepath.Join(t.TempDir(), "file.txt")
	appendFile(t, file, "x")
	_, err = m.Start(ctx, file)
	assert.True(t, pkgerrors.IsValidationError(err))
}

func TestStartReusesFolderSession(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()

	a, err := m.Start(context.Background(), dir)
	require.NoError(t, err)
	b, err := m.Start(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Len(t, m.List(), 1)
}

func TestStartConcurrentSameFolder(t *testing.T) {
	js, err := NewJournalStore(t.TempDir())
	require.NoError(t, err)
	m := newTestManager(t, func(o *Options) { o.Journals = js })
	dir := t.TempDir()
	appendFile(t, filepath.Join(dir, "Journal.2024-03-01T100000.01.log"), lineHeader+"\n")

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := m.Start(context.Background(), dir)
			if assert.NoError(t, err) {
				ids[i] = sess.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, m.List(), 1)
}

func TestStartLimit(t *testing.T) {
	m := newTestManager(t, func(o *Options) { o.MaxSessions = 1 })

	_, err := m.Start(context.Background(), t.TempDir())
	require.NoError(t, err)
	_, err = m.Start(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrTooManySessions)
}

func TestPollMergesJournalAndStatus(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	dir := t.TempDir()
	journal := filepath.Join(dir, "Journal.2024-03-01T100000.01.log")
	appendFile(t, journal, lineHeader+"\n"+lineDocked+"\n")
	appendFile(t, filepath.Join(dir, "Status.json"), statusDocked)

	sess, err := m.Start(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, journal, sess.JournalPath)

	updates, unsubscribe, err := m.Subscribe(sess.ID)
	require.NoError(t, err)
	defer unsubscribe()

	tl, err := m.Poll(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, tl.TimeRange)

	var journalItems, uiItems int
	for _, item := range tl.Items {
		if item.IsJournal() {
			journalItems++
		} else {
			uiItems++
		}
	}
	assert.Equal(t, 2, journalItems)
	assert.Greater(t, uiItems, 0)

	select {
	case got := <-updates:
		assert.Equal(t, tl.Len(), got.Len())
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the timeline")
	}

	status, err := m.Status(sess.ID)
	require.NoError(t, err)
	assert.True(t, status.HasFlag(models.UIDocked))

	tl, err = m.Poll(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, tl.Len(), "nothing changed")

	appendFile(t, journal, lineUndock+"\n"+lineMats+"\n"+lineTargeted+"\n")
	tl, err = m.Poll(ctx, sess.ID)
	require.NoError(t, err)

	var targeted int
	for _, item := range tl.Items {
		if item.UIEvent != nil && item.UIEvent.Kind == models.UIShipTargeted {
			targeted++
		}
	}
	assert.Equal(t, 1, targeted)

	mats, err := m.Materials(sess.ID)
	require.NoError(t, err)
	require.Len(t, mats, 1)
	assert.Equal(t, 3, mats[0].Count)

	got, ok := m.GetSession(sess.ID)
	require.True(t, ok)
	assert.Equal(t, 3, got.PollCount)
	assert.Equal(t, 5, got.EntryCount)

	entries, total, err := m.QueryEntries(ctx, sess.ID, parser.EntryQuery{Types: []models.EventType{models.EventTypeDocked}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, entries, 1)
}

func TestPollFollowsNewerJournal(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	dir := t.TempDir()
	old := filepath.Join(dir, "Journal.2024-03-01T100000.01.log")
	appendFile(t, old, lineHeader+"\n")

	sess, err := m.Start(ctx, dir)
	require.NoError(t, err)
	_, err = m.Poll(ctx, sess.ID)
	require.NoError(t, err)

	newer := filepath.Join(dir, "Journal.2024-03-01T110000.01.log")
	appendFile(t, newer, lineDocked+"\n")
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(newer, future, future))

	tl, err := m.Poll(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, 1, tl.Len())
	assert.Equal(t, models.EventTypeDocked, tl.Items[0].Entry.Type)

	got, _ := m.GetSession(sess.ID)
	assert.Equal(t, newer, got.JournalPath)
}

func TestPersistentJournalsResume(t *testing.T) {
	ctx := context.Background()
	js, err := NewJournalStore(t.TempDir())
	require.NoError(t, err)
	dir := t.TempDir()
	journal := filepath.Join(dir, "Journal.2024-03-01T100000.01.log")
	appendFile(t, journal, lineHeader+"\n"+lineDocked+"\n")

	m := newTestManager(t, func(o *Options) { o.Journals = js })
	sess, err := m.Start(ctx, dir)
	require.NoError(t, err)
	tl, err := m.Poll(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, tl.Len())
	require.NoError(t, m.Stop(sess.ID))

	appendFile(t, journal, lineUndock+"\n")
	sess, err = m.Start(ctx, dir)
	require.NoError(t, err)
	tl, err = m.Poll(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, 1, tl.Len(), "stored entries are not reported again")
	assert.Equal(t, models.EventTypeUndocked, tl.Items[0].Entry.Type)
}

func TestAssociatedFile(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	dir := t.TempDir()
	appendFile(t, filepath.Join(dir, "Journal.2024-03-01T100000.01.log"), lineDocked+"\n")
	appendFile(t, filepath.Join(dir, "Docked.json"), `{"timestamp":"2024-03-01T10:01:00Z","event":"Docked","StationServices":["refuel"],}`)

	sess, err := m.Start(ctx, dir)
	require.NoError(t, err)
	tl, err := m.Poll(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, 1, tl.Len())

	obj, err := m.AssociatedFile(ctx, sess.ID, tl.Items[0].Entry.ID, false)
	require.NoError(t, err)
	assert.Len(t, obj.Array("StationServices"), 1)

	_, err = m.AssociatedFile(ctx, sess.ID, 999, false)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestUpdateSyncFlags(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	dir := t.TempDir()
	appendFile(t, filepath.Join(dir, "Journal.2024-03-01T100000.01.log"), lineDocked+"\n")

	sess, err := m.Start(ctx, dir)
	require.NoError(t, err)
	tl, err := m.Poll(ctx, sess.ID)
	require.NoError(t, err)
	id := tl.Items[0].Entry.ID

	entry, err := m.UpdateSyncFlags(ctx, sess.ID, id, models.SyncEDSM|models.SyncStartMarker, models.SyncNone)
	require.NoError(t, err)
	assert.True(t, entry.SyncedEDSM())

	stored, err := m.GetEntry(ctx, sess.ID, id)
	require.NoError(t, err)
	assert.True(t, stored.StartMarker())
}

func TestStopAndUnknownSession(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	sess, err := m.Start(ctx, t.TempDir())
	require.NoError(t, err)

	updates, _, err := m.Subscribe(sess.ID)
	require.NoError(t, err)

	require.NoError(t, m.Stop(sess.ID))
	_, open := <-updates
	assert.False(t, open, "subscriptions close with the session")

	assert.True(t, pkgerrors.IsNotFound(m.Stop(sess.ID)))
	_, err = m.Poll(ctx, sess.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.False(t, m.TouchSession(sess.ID))
}

func TestCleanupOldSessions(t *testing.T) {
	m := newTestManager(t)
	sess, err := m.Start(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 0, m.CleanupOldSessions(time.Minute), "recently used")

	m.mu.Lock()
	m.sessions[sess.ID].LastAccessed = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	assert.Equal(t, 1, m.CleanupOldSessions(time.Minute))
	assert.Empty(t, m.ActiveIDs())
}

func TestSchedulerPollAll(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	dir := t.TempDir()
	appendFile(t, filepath.Join(dir, "Journal.2024-03-01T100000.01.log"), lineDocked+"\n")
	sess, err := m.Start(ctx, dir)
	require.NoError(t, err)

	s := NewScheduler(m, 0, 0, 0)
	assert.Equal(t, 0, s.PollAll(ctx))

	got, _ := m.GetSession(sess.ID)
	assert.Equal(t, 1, got.PollCount)
	assert.Equal(t, 1, got.EntryCount)
}

func TestLatestJournal(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, LatestJournal(dir))

	a := filepath.Join(dir, "Journal.2024-03-01T100000.01.log")
	b := filepath.Join(dir, "Journal.2024-03-01T100000.02.log")
	appendFile(t, a, "")
	appendFile(t, b, "")
	appendFile(t, filepath.Join(dir, "Status.json"), "{}")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(b, past, past))

	assert.Equal(t, a, LatestJournal(dir))
}
