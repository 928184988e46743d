package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/vidfetch-go/internal/domain"
)

// YTDLPDownloader drives the yt-dlp binary for downloads and structured
// metadata queries. Conversion is delegated by yt-dlp itself to ffmpeg,
// which it finds via the PATH augmentation applied at launch.
type YTDLPDownloader struct {
	tools    *domain.ToolsConfig
	download *domain.DownloadConfig
	runner   *Runner
	logger   *zap.Logger
}

// NewYTDLPDownloader creates a yt-dlp backed downloader.
func NewYTDLPDownloader(tools *domain.ToolsConfig, download *domain.DownloadConfig, runner *Runner, logger *zap.Logger) *YTDLPDownloader {
	return &YTDLPDownloader{
		tools:    tools,
		download: download,
		runner:   runner,
		logger:   logger,
	}
}

// buildArgs assembles the argument list for one download run.
// Note: exec.Command passes args directly to the process, no shell quoting.
func (d *YTDLPDownloader) buildArgs(job domain.DownloadJob) []string {
	args := []string{
		"--newline",
		"--no-playlist",
		"--restrict-filenames",
		"-o", d.download.OutputTemplate,
		"-P", d.download.Dir,
	}

	if job.AudioOnly {
		args = append(args, "-x", "--audio-format", "mp3")
	} else if job.Format != "" {
		args = append(args, "-f", job.Format)
	}

	if job.Resume {
		args = append(args, "--continue")
	}

	return append(args, job.URL)
}

// Start launches one download run. Both output streams get their own line
// parser (interleaving chunks from two concurrent streams through one
// parser would corrupt line boundaries); events from either stream funnel
// into onEvent.
func (d *YTDLPDownloader) Start(job domain.DownloadJob, onEvent func(domain.LineEvent)) (domain.Process, error) {
	if err := os.MkdirAll(d.download.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	args := d.buildArgs(job)
	d.logger.Info("Starting yt-dlp",
		zap.String("url", job.URL),
		zap.Bool("resume", job.Resume),
		zap.String("command", ShellEscapeCommand(d.tools.YTDLPBinary, args...)))

	stdoutParser := NewLineParser(onEvent)
	stderrParser := NewLineParser(onEvent)

	handle, err := d.runner.Launch(d.tools.YTDLPBinary, args, d.tools.FFmpegDir, func(stream StreamName, chunk []byte) {
		switch stream {
		case StreamStdout:
			stdoutParser.Write(chunk)
		case StreamStderr:
			stderrParser.Write(chunk)
		}
	})
	if err != nil {
		return nil, err
	}

	return &ytdlpProcess{
		handle:       handle,
		stdoutParser: stdoutParser,
		stderrParser: stderrParser,
	}, nil
}

// ytdlpProcess adapts a runner handle to the domain.Process contract.
type ytdlpProcess struct {
	handle       *Handle
	stdoutParser *LineParser
	stderrParser *LineParser
}

func (p *ytdlpProcess) Wait() domain.ProcessResult {
	result := p.handle.Wait()
	// Streams are drained by now; parse any unterminated final line.
	p.stdoutParser.Flush()
	p.stderrParser.Flush()
	return result
}

func (p *ytdlpProcess) Terminate() {
	p.handle.Terminate()
}

func (p *ytdlpProcess) Diagnostic() string {
	stderr := strings.TrimSpace(p.handle.StderrTail())
	stdout := strings.TrimSpace(p.handle.StdoutTail())
	switch {
	case stderr != "" && stdout != "":
		return stderr + "\n" + stdout
	case stderr != "":
		return stderr
	default:
		return stdout
	}
}

// FetchMetadata runs yt-dlp in its documented single-video JSON output mode
// and decodes the result into a typed record.
func (d *YTDLPDownloader) FetchMetadata(ctx context.Context, url string) (*domain.VideoMetadata, error) {
	args := []string{
		"--dump-json",
		"--no-playlist",
		"--skip-download",
		url,
	}

	// The JSON document can exceed the runner's diagnostic tail cap, so the
	// full stdout is collected here via the streaming callback.
	var body bytes.Buffer
	handle, err := d.runner.Launch(d.tools.YTDLPBinary, args, d.tools.FFmpegDir, func(stream StreamName, chunk []byte) {
		if stream == StreamStdout {
			body.Write(chunk)
		}
	})
	if err != nil {
		return nil, err
	}

	done := make(chan domain.ProcessResult, 1)
	go func() { done <- handle.Wait() }()

	var result domain.ProcessResult
	select {
	case result = <-done:
	case <-ctx.Done():
		// The caller gave up; stop the probe but keep the goroutine from
		// leaking by letting Wait finish in the background.
		handle.Terminate()
		<-done
		return nil, ctx.Err()
	}

	if result.ExitCode != 0 {
		return nil, fmt.Errorf("metadata query failed: %s", firstLine(handle.StderrTail()))
	}

	var meta domain.VideoMetadata
	if err := json.Unmarshal(body.Bytes(), &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidMetadata, err)
	}
	if meta.ID == "" && meta.Title == "" {
		return nil, domain.ErrInvalidMetadata
	}

	return &meta, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
