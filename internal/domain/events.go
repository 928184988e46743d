package domain

import "time"

// LineEventKind classifies one parsed signal from tool output.
type LineEventKind string

const (
	LineProgress  LineEventKind = "progress"
	LineTelemetry LineEventKind = "telemetry"
	LinePhase     LineEventKind = "phase"
	LineTitle     LineEventKind = "title"
)

// LineEvent is a typed event derived from one line of subprocess output.
// Fields beyond Kind are populated per kind: Progress for progress events,
// Speed/ETA for telemetry (each optional), Phase for phase hints, and
// Title/Path for title hints (Path carries the raw destination when the
// line exposed one).
type LineEvent struct {
	Kind     LineEventKind
	Progress float64
	Speed    string
	ETA      string
	Phase    string
	Title    string
	Path     string
}

// TaskEvent is one observable change in a task, delivered to subscribers in
// the order the task emitted it.
type TaskEvent struct {
	TaskID     string    `json:"task_id"`
	Status     Status    `json:"status"`
	Title      string    `json:"title,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	Speed      string    `json:"speed,omitempty"`
	ETA        string    `json:"eta,omitempty"`
	Time       time.Time `json:"time"`
}
