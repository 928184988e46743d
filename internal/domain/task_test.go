package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	task := NewTask("https://example.com/watch?v=abc", "best", false, 3)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "https://example.com/watch?v=abc", task.URL)
	assert.Equal(t, KindPending, task.Status.Kind)
	assert.Equal(t, 0, task.RetryCount)
	assert.Equal(t, 3, task.RetryLimit)
}

func TestApplyProgress_Monotonic(t *testing.T) {
	task := NewTask("https://example.com/v", "", false, 3)
	task.MarkDownloading()

	task.ApplyProgress(0.4)
	assert.Equal(t, 0.4, task.Status.Progress)

	// Raw percentages reset between video and audio phases; the visible
	// value must not go backwards.
	task.ApplyProgress(0.02)
	assert.Equal(t, 0.4, task.Status.Progress)

	task.ApplyProgress(0.9)
	assert.Equal(t, 0.9, task.Status.Progress)
}

func TestApplyProgress_IgnoredOutsideDownloading(t *testing.T) {
	task := NewTask("https://example.com/v", "", false, 3)
	task.MarkConverting()

	task.ApplyProgress(0.5)
	assert.Equal(t, KindConverting, task.Status.Kind)
	assert.Equal(t, 0.0, task.Status.Progress)
}

func TestMarkPaused_KeepsProgress(t *testing.T) {
	task := NewTask("https://example.com/v", "", false, 3)
	task.MarkDownloading()
	task.ApplyProgress(0.65)
	task.Speed = "1.2MiB/s"

	task.MarkPaused()

	assert.Equal(t, KindPaused, task.Status.Kind)
	assert.Equal(t, 0.65, task.Status.Progress)
	assert.Empty(t, task.Speed, "telemetry cleared when no process is live")
}

func TestResume_ContinuesFromPausedProgress(t *testing.T) {
	task := NewTask("https://example.com/v", "", false, 3)
	task.MarkDownloading()
	task.ApplyProgress(0.3)
	task.MarkPaused()

	task.MarkDownloading()
	assert.Equal(t, KindDownloading, task.Status.Kind)
	assert.Equal(t, 0.3, task.Status.Progress)
}

func TestIncrementRetry_BoundedByLimit(t *testing.T) {
	task := NewTask("https://example.com/v", "", false, 2)

	require.True(t, task.CanRetry())
	task.IncrementRetry()
	task.IncrementRetry()
	assert.Equal(t, 2, task.RetryCount)
	assert.False(t, task.CanRetry())

	// Further increments never push the counter past the ceiling.
	task.IncrementRetry()
	assert.Equal(t, 2, task.RetryCount)
}

func TestSnapshotRoundTrip_DowngradesInFlight(t *testing.T) {
	task := NewTask("https://example.com/v", "137+140", false, 3)
	task.MarkDownloading()
	task.ApplyProgress(0.42)
	task.Title = "some clip"

	restored := RestoreTask(task.Snapshot())

	assert.Equal(t, task.ID, restored.ID)
	assert.Equal(t, KindPaused, restored.Status.Kind, "downloading must rehydrate as paused")
	assert.Equal(t, 0.42, restored.Status.Progress)
	assert.Equal(t, "137+140", restored.Format)
	assert.Equal(t, "some clip", restored.Title)
}

func TestSnapshotRoundTrip_FetchingInfoBecomesPending(t *testing.T) {
	task := NewTask("https://example.com/v", "", true, 3)
	task.MarkFetchingInfo()

	restored := RestoreTask(task.Snapshot())
	assert.Equal(t, KindPending, restored.Status.Kind)
}

func TestSnapshotRoundTrip_TerminalUnchanged(t *testing.T) {
	task := NewTask("https://example.com/v", "", false, 3)
	task.MarkCompleted("/tmp/out.mp4")

	restored := RestoreTask(task.Snapshot())
	assert.Equal(t, KindCompleted, restored.Status.Kind)
	assert.Equal(t, "/tmp/out.mp4", restored.OutputPath)
}
