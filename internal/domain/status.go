package domain

import "fmt"

// StatusKind identifies the lifecycle state of a task.
type StatusKind string

const (
	KindPending      StatusKind = "pending"
	KindFetchingInfo StatusKind = "fetching_info"
	KindPreparing    StatusKind = "preparing"
	KindDownloading  StatusKind = "downloading"
	KindPaused       StatusKind = "paused"
	KindConverting   StatusKind = "converting"
	KindCompleted    StatusKind = "completed"
	KindFailed       StatusKind = "failed"
)

// Status is a tagged lifecycle state with its payload. Progress is only
// meaningful for downloading/paused, Phase for preparing, Message for failed.
type Status struct {
	Kind     StatusKind `json:"kind"`
	Progress float64    `json:"progress,omitempty"`
	Phase    string     `json:"phase,omitempty"`
	Message  string     `json:"message,omitempty"`
}

func Pending() Status                { return Status{Kind: KindPending} }
func FetchingInfo() Status           { return Status{Kind: KindFetchingInfo} }
func Preparing(phase string) Status  { return Status{Kind: KindPreparing, Phase: phase} }
func Downloading(p float64) Status   { return Status{Kind: KindDownloading, Progress: p} }
func Paused(p float64) Status        { return Status{Kind: KindPaused, Progress: p} }
func Converting() Status             { return Status{Kind: KindConverting} }
func Completed() Status              { return Status{Kind: KindCompleted, Progress: 1.0} }
func Failed(message string) Status   { return Status{Kind: KindFailed, Message: message} }

// IsTerminal reports whether the status ends a run. Failed and Paused tasks
// may still be re-entered via retry or resume.
func (s Status) IsTerminal() bool {
	return s.Kind == KindCompleted || s.Kind == KindFailed
}

// IsActive reports whether the task currently has (or is about to have) a
// live subprocess behind it.
func (s Status) IsActive() bool {
	switch s.Kind {
	case KindFetchingInfo, KindPreparing, KindDownloading, KindConverting:
		return true
	}
	return false
}

// Rehydrated maps a persisted status back to a startable one. No subprocess
// survives a restart, so an in-flight download comes back as paused at its
// last progress and an in-flight metadata fetch comes back as pending.
func (s Status) Rehydrated() Status {
	switch s.Kind {
	case KindDownloading, KindConverting:
		return Paused(s.Progress)
	case KindFetchingInfo, KindPreparing:
		return Pending()
	}
	return s
}

// String returns a short human-readable rendering of the status.
func (s Status) String() string {
	switch s.Kind {
	case KindDownloading:
		return fmt.Sprintf("downloading %.1f%%", s.Progress*100)
	case KindPaused:
		return fmt.Sprintf("paused %.1f%%", s.Progress*100)
	case KindPreparing:
		if s.Phase != "" {
			return s.Phase
		}
		return string(KindPreparing)
	case KindFailed:
		if s.Message != "" {
			return "failed: " + s.Message
		}
		return string(KindFailed)
	}
	return string(s.Kind)
}
