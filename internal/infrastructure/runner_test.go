package infrastructure

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/vidfetch-go/internal/domain"
)

func testRunner() *Runner {
	return NewRunner(zap.NewNop())
}

func TestLaunch_ToolNotFound(t *testing.T) {
	_, err := testRunner().Launch("definitely-not-a-real-binary-12345", nil, "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
}

func TestLaunch_CapturesBothStreams(t *testing.T) {
	handle, err := testRunner().Launch("sh", []string{"-c", "echo out-line; echo err-line 1>&2"}, "", nil)
	require.NoError(t, err)

	result := handle.Wait()
	assert.Equal(t, 0, result.ExitCode)
	assert.False(t, result.Signalled)
	assert.Contains(t, handle.StdoutTail(), "out-line")
	assert.Contains(t, handle.StderrTail(), "err-line")
}

func TestLaunch_StreamsChunksAsTheyArrive(t *testing.T) {
	var mu sync.Mutex
	var chunks []string

	handle, err := testRunner().Launch("sh",
		[]string{"-c", "printf 'first\\n'; sleep 0.05; printf 'second\\n'"}, "",
		func(stream StreamName, chunk []byte) {
			if stream == StreamStdout {
				mu.Lock()
				chunks = append(chunks, string(chunk))
				mu.Unlock()
			}
		})
	require.NoError(t, err)

	result := handle.Wait()
	assert.Equal(t, 0, result.ExitCode)

	mu.Lock()
	defer mu.Unlock()
	joined := strings.Join(chunks, "")
	assert.Contains(t, joined, "first")
	assert.Contains(t, joined, "second")
	// The sleep between the writes forces at least two separate reads.
	assert.GreaterOrEqual(t, len(chunks), 2)
}

func TestWait_NonZeroExit(t *testing.T) {
	handle, err := testRunner().Launch("sh", []string{"-c", "echo boom 1>&2; exit 3"}, "", nil)
	require.NoError(t, err)

	result := handle.Wait()
	assert.Equal(t, 3, result.ExitCode)
	assert.False(t, result.Signalled)
	assert.Contains(t, handle.StderrTail(), "boom")
}

func TestTerminate_ReportsSignalled(t *testing.T) {
	handle, err := testRunner().Launch("sh", []string{"-c", "sleep 30"}, "", nil)
	require.NoError(t, err)

	done := make(chan domain.ProcessResult, 1)
	go func() { done <- handle.Wait() }()

	time.Sleep(50 * time.Millisecond)
	handle.Terminate()
	// Terminate is idempotent.
	handle.Terminate()

	select {
	case result := <-done:
		assert.True(t, result.Signalled, "externally requested stop must be distinguishable")
		assert.NotEqual(t, 0, result.ExitCode)
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after terminate")
	}
}

func TestWait_DrainsTrailingOutput(t *testing.T) {
	// Output written immediately before exit must not be lost.
	handle, err := testRunner().Launch("sh", []string{"-c", "printf 'tail-bytes'"}, "", nil)
	require.NoError(t, err)

	result := handle.Wait()
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "tail-bytes", handle.StdoutTail())
}

func TestTailBuffer_Bounded(t *testing.T) {
	buf := newTailBuffer(8)
	buf.Write([]byte("0123456789abcdef"))
	assert.Equal(t, "89abcdef", buf.String(), "only the most recent bytes are retained")
}

func TestChildEnv_PrependsPath(t *testing.T) {
	orig := os.Getenv("PATH")
	env := childEnv("/opt/ffmpeg/bin")

	var path string
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			path = kv[len("PATH="):]
		}
	}
	require.NotEmpty(t, path)
	assert.True(t, strings.HasPrefix(path, "/opt/ffmpeg/bin"+string(os.PathListSeparator)) || path == "/opt/ffmpeg/bin")
	assert.Contains(t, path, orig)
}

func TestChildEnv_NoExtraDir(t *testing.T) {
	assert.Equal(t, os.Environ(), childEnv(""))
}
