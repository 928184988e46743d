package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConcurrencyClass groups tasks that share one admission ceiling.
type ConcurrencyClass string

const (
	ClassDownload ConcurrencyClass = "download"
	ClassInfo     ConcurrencyClass = "info"
	ClassPlaylist ConcurrencyClass = "playlist"
)

// Task is one user-requested download tracked through its lifecycle.
// All field writes happen under the engine's lock; callers outside the
// engine only ever see copies.
type Task struct {
	ID         string     `json:"id"`
	URL        string     `json:"url"`
	Format     string     `json:"format,omitempty"`
	AudioOnly  bool       `json:"audio_only,omitempty"`
	Status     Status     `json:"status"`
	RetryCount int        `json:"retry_count"`
	RetryLimit int        `json:"retry_limit"`
	Title      string     `json:"title,omitempty"`
	OutputPath string     `json:"output_path,omitempty"`
	Speed      string     `json:"speed,omitempty"`
	ETA        string     `json:"eta,omitempty"`
	Diagnostic string     `json:"diagnostic,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewTask creates a pending task for the given URL.
func NewTask(url, format string, audioOnly bool, retryLimit int) *Task {
	now := time.Now()
	return &Task{
		ID:         uuid.New().String(),
		URL:        url,
		Format:     format,
		AudioOnly:  audioOnly,
		Status:     Pending(),
		RetryLimit: retryLimit,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (t *Task) touch() { t.UpdatedAt = time.Now() }

// MarkFetchingInfo marks the start of the metadata phase.
func (t *Task) MarkFetchingInfo() {
	t.Status = FetchingInfo()
	now := time.Now()
	if t.StartedAt == nil {
		t.StartedAt = &now
	}
	t.touch()
}

// MarkPreparing moves the task into a named preparation phase.
func (t *Task) MarkPreparing(phase string) {
	t.Status = Preparing(phase)
	t.touch()
}

// MarkDownloading enters the downloading state, keeping any progress already
// accumulated (a resumed task continues from its paused fraction).
func (t *Task) MarkDownloading() {
	t.Status = Downloading(t.Status.Progress)
	t.touch()
}

// ApplyProgress folds a raw parsed percentage into the visible progress.
// Raw values legitimately reset between the video and audio phases of a
// download, so regressions are suppressed here rather than in the parser.
func (t *Task) ApplyProgress(raw float64) {
	if t.Status.Kind != KindDownloading {
		return
	}
	if raw > t.Status.Progress {
		t.Status.Progress = raw
	}
	t.touch()
}

// MarkConverting enters the post-download conversion state.
func (t *Task) MarkConverting() {
	t.Status = Converting()
	t.Speed = ""
	t.ETA = ""
	t.touch()
}

// MarkPaused freezes the task at its current progress.
func (t *Task) MarkPaused() {
	t.Status = Paused(t.Status.Progress)
	t.Speed = ""
	t.ETA = ""
	t.touch()
}

// MarkCompleted records a successful run and its output file.
func (t *Task) MarkCompleted(outputPath string) {
	t.Status = Completed()
	if outputPath != "" {
		t.OutputPath = outputPath
	}
	t.Speed = ""
	t.ETA = ""
	now := time.Now()
	t.FinishedAt = &now
	t.touch()
}

// MarkFailed records a terminal failure with a concise message. The full
// diagnostic text is kept separately on the task.
func (t *Task) MarkFailed(message string) {
	t.Status = Failed(message)
	t.Speed = ""
	t.ETA = ""
	now := time.Now()
	t.FinishedAt = &now
	t.touch()
}

// IncrementRetry bumps the retry counter, never past the ceiling.
func (t *Task) IncrementRetry() {
	if t.RetryCount < t.RetryLimit {
		t.RetryCount++
	}
	t.touch()
}

// CanRetry reports whether another automatic attempt is allowed.
func (t *Task) CanRetry() bool {
	return t.RetryCount < t.RetryLimit
}

// Clone returns a copy safe to hand outside the engine's lock.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}

// Snapshot flattens the task for persistence by a collaborator.
func (t *Task) Snapshot() *TaskSnapshot {
	return &TaskSnapshot{
		ID:         t.ID,
		URL:        t.URL,
		Format:     t.Format,
		AudioOnly:  t.AudioOnly,
		StatusKind: string(t.Status.Kind),
		Progress:   t.Status.Progress,
		Phase:      t.Status.Phase,
		Message:    t.Status.Message,
		RetryCount: t.RetryCount,
		RetryLimit: t.RetryLimit,
		Title:      t.Title,
		OutputPath: t.OutputPath,
		Diagnostic: t.Diagnostic,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

// RestoreTask rebuilds a task from a snapshot, downgrading in-flight
// statuses to restartable ones.
func RestoreTask(s *TaskSnapshot) *Task {
	status := Status{
		Kind:     StatusKind(s.StatusKind),
		Progress: s.Progress,
		Phase:    s.Phase,
		Message:  s.Message,
	}.Rehydrated()

	return &Task{
		ID:         s.ID,
		URL:        s.URL,
		Format:     s.Format,
		AudioOnly:  s.AudioOnly,
		Status:     status,
		RetryCount: s.RetryCount,
		RetryLimit: s.RetryLimit,
		Title:      s.Title,
		OutputPath: s.OutputPath,
		Diagnostic: s.Diagnostic,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}
