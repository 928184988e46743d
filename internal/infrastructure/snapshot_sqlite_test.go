package infrastructure

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/vidfetch-go/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteSnapshotStore {
	t.Helper()
	store, err := NewSQLiteSnapshotStore(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSnapshotStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	task := domain.NewTask("https://example.com/v1", "best", false, 3)
	task.MarkDownloading()
	task.ApplyProgress(0.33)
	require.NoError(t, store.Save(task.Snapshot()))

	snapshots, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, task.ID, snapshots[0].ID)
	assert.Equal(t, string(domain.KindDownloading), snapshots[0].StatusKind)
	assert.Equal(t, 0.33, snapshots[0].Progress)
}

func TestSnapshotStore_RehydratesDownloadingAsPaused(t *testing.T) {
	store := newTestStore(t)

	task := domain.NewTask("https://example.com/v1", "", false, 3)
	task.MarkDownloading()
	task.ApplyProgress(0.71)
	require.NoError(t, store.Save(task.Snapshot()))

	snapshots, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	restored := domain.RestoreTask(snapshots[0])
	assert.Equal(t, domain.KindPaused, restored.Status.Kind)
	assert.Equal(t, 0.71, restored.Status.Progress)
}

func TestSnapshotStore_SaveIsUpsert(t *testing.T) {
	store := newTestStore(t)

	task := domain.NewTask("https://example.com/v1", "", false, 3)
	require.NoError(t, store.Save(task.Snapshot()))

	task.MarkCompleted("/downloads/out.mp4")
	require.NoError(t, store.Save(task.Snapshot()))

	snapshots, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, snapshots, 1, "second save must overwrite, not duplicate")
	assert.Equal(t, string(domain.KindCompleted), snapshots[0].StatusKind)
	assert.Equal(t, "/downloads/out.mp4", snapshots[0].OutputPath)
}

func TestSnapshotStore_Delete(t *testing.T) {
	store := newTestStore(t)

	task := domain.NewTask("https://example.com/v1", "", false, 3)
	require.NoError(t, store.Save(task.Snapshot()))
	require.NoError(t, store.Delete(task.ID))

	snapshots, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, snapshots)

	// Deleting an unknown ID is not an error.
	assert.NoError(t, store.Delete("missing"))
}

func TestSnapshotStore_Stats(t *testing.T) {
	store := newTestStore(t)

	completed := domain.NewTask("https://example.com/a", "", false, 3)
	completed.MarkCompleted("/downloads/a.mp4")
	require.NoError(t, store.Save(completed.Snapshot()))

	failed := domain.NewTask("https://example.com/b", "", false, 3)
	failed.MarkFailed("network error")
	require.NoError(t, store.Save(failed.Snapshot()))

	downloading := domain.NewTask("https://example.com/c", "", false, 3)
	downloading.MarkDownloading()
	require.NoError(t, store.Save(downloading.Snapshot()))

	pending := domain.NewTask("https://example.com/d", "", false, 3)
	require.NoError(t, store.Save(pending.Snapshot()))

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Active)
	assert.Equal(t, int64(1), stats.Pending)
}
