package domain

import "time"

// TaskSnapshot is the flattened, persistable view of a task. The engine
// itself owns no storage; a SnapshotStore collaborator serializes these and
// hands them back at startup, where in-flight statuses are downgraded (see
// Status.Rehydrated).
type TaskSnapshot struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	URL        string    `json:"url" gorm:"not null"`
	Format     string    `json:"format"`
	AudioOnly  bool      `json:"audio_only"`
	StatusKind string    `json:"status_kind" gorm:"index"`
	Progress   float64   `json:"progress"`
	Phase      string    `json:"phase"`
	Message    string    `json:"message"`
	RetryCount int       `json:"retry_count"`
	RetryLimit int       `json:"retry_limit"`
	Title      string    `json:"title"`
	OutputPath string    `json:"output_path"`
	Diagnostic string    `json:"diagnostic" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TaskStats are aggregate counts per lifecycle bucket.
type TaskStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Active    int64 `json:"active"`
	Paused    int64 `json:"paused"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// SnapshotStore persists task snapshots on behalf of the engine.
type SnapshotStore interface {
	Save(snapshot *TaskSnapshot) error
	Delete(id string) error
	LoadAll() ([]*TaskSnapshot, error)
	Stats() (*TaskStats, error)
	Close() error
}
