package infrastructure

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/yourusername/vidfetch-go/internal/domain"
)

// maxCapturedBytes caps each retained stream buffer. A runaway tool can
// chatter for gigabytes; streaming callbacks keep firing past the cap but
// only the most recent output is kept for diagnostics.
const maxCapturedBytes = 512 * 1024

// StreamName identifies which output stream a chunk came from.
type StreamName string

const (
	StreamStdout StreamName = "stdout"
	StreamStderr StreamName = "stderr"
)

// Runner launches external subprocesses and supervises their output streams.
type Runner struct {
	logger *zap.Logger
}

// NewRunner creates a process runner.
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger}
}

// Handle owns one live subprocess and its two stream readers.
type Handle struct {
	cmd *exec.Cmd

	stdout *tailBuffer
	stderr *tailBuffer

	readers sync.WaitGroup

	mu         sync.Mutex
	terminated bool

	waitOnce sync.Once
	result   domain.ProcessResult
}

// Launch starts the executable and begins draining both output streams
// concurrently. onChunk is invoked from the draining goroutines as data
// arrives, never block-read to EOF, so progress lines reach the caller as
// soon as the child flushes them.
//
// extraPathDir, when non-empty, is prepended to the child's PATH so the tool
// can locate its companion binaries.
func (r *Runner) Launch(executable string, args []string, extraPathDir string, onChunk func(StreamName, []byte)) (*Handle, error) {
	resolved, err := exec.LookPath(executable)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrToolNotFound, executable)
	}

	cmd := exec.Command(resolved, args...)
	cmd.Env = childEnv(extraPathDir)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSpawnFailed, err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSpawnFailed, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSpawnFailed, err)
	}

	h := &Handle{
		cmd:    cmd,
		stdout: newTailBuffer(maxCapturedBytes),
		stderr: newTailBuffer(maxCapturedBytes),
	}

	r.logger.Debug("Process started",
		zap.String("executable", executable),
		zap.Int("pid", cmd.Process.Pid),
		zap.Int("args", len(args)))

	h.readers.Add(2)
	go h.drain(StreamStdout, stdoutPipe, h.stdout, onChunk)
	go h.drain(StreamStderr, stderrPipe, h.stderr, onChunk)

	return h, nil
}

// drain reads one stream incrementally until EOF, firing the callback per
// chunk and retaining a bounded tail for diagnostics.
func (h *Handle) drain(name StreamName, pipe io.Reader, tail *tailBuffer, onChunk func(StreamName, []byte)) {
	defer h.readers.Done()

	buf := make([]byte, 4096)
	for {
		n, err := pipe.Read(buf)
		if n > 0 {
			tail.Write(buf[:n])
			if onChunk != nil {
				onChunk(name, buf[:n])
			}
		}
		if err != nil {
			return
		}
	}
}

// Wait blocks until the subprocess exits and both streams are fully
// drained, then returns the structured result. Safe to call more than once.
func (h *Handle) Wait() domain.ProcessResult {
	h.waitOnce.Do(func() {
		// Readers hit EOF when the child closes its ends; waiting on them
		// first guarantees no trailing output is lost.
		h.readers.Wait()

		err := h.cmd.Wait()

		result := domain.ProcessResult{}
		if state := h.cmd.ProcessState; state != nil {
			result.ExitCode = state.ExitCode()
			if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				result.Signalled = true
			}
		} else if err != nil {
			result.ExitCode = -1
		}

		// A terminate requested by us counts as signalled even if the child
		// managed a normal-looking non-zero exit first.
		h.mu.Lock()
		if h.terminated && result.ExitCode != 0 {
			result.Signalled = true
		}
		h.mu.Unlock()

		h.result = result
	})
	return h.result
}

// Terminate sends a graceful termination signal and records that the stop
// was externally requested, so downstream handling can distinguish "user
// cancelled" from "tool failed". Safe to call concurrently and repeatedly.
func (h *Handle) Terminate() {
	h.mu.Lock()
	already := h.terminated
	h.terminated = true
	h.mu.Unlock()

	if already {
		return
	}
	if proc := h.cmd.Process; proc != nil {
		_ = proc.Signal(syscall.SIGTERM)
	}
}

// StdoutTail returns the retained tail of standard output.
func (h *Handle) StdoutTail() string { return h.stdout.String() }

// StderrTail returns the retained tail of standard error.
func (h *Handle) StderrTail() string { return h.stderr.String() }

// childEnv returns the inherited environment with extraPathDir prepended to
// PATH when set.
func childEnv(extraPathDir string) []string {
	env := os.Environ()
	if extraPathDir == "" {
		return env
	}
	for i, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			env[i] = "PATH=" + extraPathDir + string(os.PathListSeparator) + kv[len("PATH="):]
			return env
		}
	}
	return append(env, "PATH="+extraPathDir)
}

// tailBuffer retains the most recent max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
