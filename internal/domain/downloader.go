package domain

import "context"

// DownloadJob describes one external tool invocation for a task.
type DownloadJob struct {
	URL       string
	Format    string
	AudioOnly bool
	// Resume asks the tool to continue a partial transfer left behind by a
	// paused run of the same task.
	Resume bool
}

// ProcessResult is the outcome of one finished subprocess.
type ProcessResult struct {
	ExitCode  int
	Signalled bool
}

// Process is a live external tool run. The downloader that created it owns
// its lifecycle; the registry only holds it for targeted termination.
type Process interface {
	// Wait blocks until the process exits and both output streams are
	// drained, then returns the structured result.
	Wait() ProcessResult

	// Terminate sends a graceful termination signal. Safe to call
	// concurrently with Wait and more than once.
	Terminate()

	// Diagnostic returns the retained tail of the process output, stderr
	// first, for error classification and inspection.
	Diagnostic() string
}

// Downloader launches external tool runs. Implementations parse the tool's
// output and deliver typed line events from the stream-draining goroutines;
// the callback must therefore be fast and safe to call concurrently with
// other tasks' callbacks.
type Downloader interface {
	Start(job DownloadJob, onEvent func(LineEvent)) (Process, error)
	FetchMetadata(ctx context.Context, url string) (*VideoMetadata, error)
}
