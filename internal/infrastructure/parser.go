package infrastructure

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/yourusername/vidfetch-go/internal/domain"
)

// maxPendingLine caps the partial-line buffer so a tool that never emits a
// newline cannot grow memory without bound.
const maxPendingLine = 64 * 1024

var (
	// "[download]  42.7% of 10.32MiB at 1.23MiB/s ETA 00:05"
	progressRe = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%`)
	speedRe    = regexp.MustCompile(`\sat\s+([^\s]+)`)
	etaRe      = regexp.MustCompile(`\sETA\s+([^\s]+)`)

	// "[download] Destination: /downloads/Some Clip.f137.mp4"
	destinationRe = regexp.MustCompile(`^\[download\]\s+Destination:\s+(.+)$`)

	// "[Merger] Merging formats into "/downloads/Some Clip.mp4""
	mergerRe = regexp.MustCompile(`^\[Merger\]\s+Merging formats into\s+"(.+)"`)

	// "[download] /downloads/Some Clip.mp4 has already been downloaded"
	alreadyRe = regexp.MustCompile(`^\[download\]\s+(.+?)\s+has already been downloaded`)

	// "[ExtractAudio] Destination: /downloads/Some Clip.mp3"
	tagRe     = regexp.MustCompile(`^\[([A-Za-z][\w+-]*)\]`)
	tagDestRe = regexp.MustCompile(`Destination:\s+(.+)$`)
)

// conversionPhases maps post-download tool stages to human-readable phase
// hints. Tags outside this map are opaque diagnostics and emit nothing.
var conversionPhases = map[string]string{
	"Merger":         "merging formats",
	"ExtractAudio":   "extracting audio",
	"VideoConvertor": "converting video",
	"VideoRemuxer":   "remuxing video",
	"FixupM4a":       "fixing container",
	"EmbedThumbnail": "embedding thumbnail",
	"Metadata":       "writing metadata",
}

// LineParser turns incremental, not necessarily line-aligned fragments of
// subprocess output into typed events. One parser drains exactly one stream,
// so it needs no internal locking; the emit callback runs on the draining
// goroutine and must not block it.
//
// Every parse here is best-effort: a line that matches nothing is ignored,
// never an error, because the tool's text output is not a format this engine
// controls.
type LineParser struct {
	pending []byte
	emit    func(domain.LineEvent)
}

// NewLineParser creates a parser delivering events to emit.
func NewLineParser(emit func(domain.LineEvent)) *LineParser {
	return &LineParser{emit: emit}
}

// Write consumes the next fragment of stream output. Complete lines are
// parsed immediately and in order; a trailing partial line is held until its
// newline arrives (or Flush is called).
func (p *LineParser) Write(fragment []byte) {
	p.pending = append(p.pending, fragment...)

	for {
		idx := bytes.IndexByte(p.pending, '\n')
		if idx < 0 {
			break
		}
		line := string(p.pending[:idx])
		p.pending = p.pending[idx+1:]
		p.parseLine(line)
	}

	if len(p.pending) > maxPendingLine {
		p.pending = p.pending[len(p.pending)-maxPendingLine:]
	}
}

// Flush parses any trailing partial line. Called once the stream hits EOF so
// a final unterminated progress line is not lost.
func (p *LineParser) Flush() {
	if len(p.pending) == 0 {
		return
	}
	line := string(p.pending)
	p.pending = nil
	p.parseLine(line)
}

func (p *LineParser) parseLine(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}

	if m := progressRe.FindStringSubmatch(line); m != nil {
		percent, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			p.emit(domain.LineEvent{Kind: domain.LineProgress, Progress: percent / 100})
		}

		// Telemetry only appears on the "% of <size>" progress lines; both
		// fields are independently optional.
		if strings.Contains(line, "% of ") {
			var speed, eta string
			if sm := speedRe.FindStringSubmatch(line); sm != nil && sm[1] != "Unknown" {
				speed = sm[1]
			}
			if em := etaRe.FindStringSubmatch(line); em != nil && em[1] != "Unknown" {
				eta = em[1]
			}
			if speed != "" || eta != "" {
				p.emit(domain.LineEvent{Kind: domain.LineTelemetry, Speed: speed, ETA: eta})
			}
		}
		return
	}

	if m := destinationRe.FindStringSubmatch(line); m != nil {
		p.emitTitle(m[1])
		return
	}

	if m := alreadyRe.FindStringSubmatch(line); m != nil {
		p.emit(domain.LineEvent{Kind: domain.LineProgress, Progress: 1.0})
		p.emitTitle(m[1])
		return
	}

	if m := mergerRe.FindStringSubmatch(line); m != nil {
		p.emit(domain.LineEvent{Kind: domain.LinePhase, Phase: conversionPhases["Merger"]})
		p.emitTitle(m[1])
		return
	}

	if m := tagRe.FindStringSubmatch(line); m != nil {
		if phase, ok := conversionPhases[m[1]]; ok {
			p.emit(domain.LineEvent{Kind: domain.LinePhase, Phase: phase})
			if dm := tagDestRe.FindStringSubmatch(line); dm != nil {
				p.emitTitle(dm[1])
			}
		}
	}
}

// emitTitle derives a best-effort title hint from a destination path:
// directory components and the trailing extension stripped. The raw path
// rides along so the caller can track the resolved output file.
func (p *LineParser) emitTitle(path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	title := filepath.Base(path)
	if ext := filepath.Ext(title); ext != "" {
		title = strings.TrimSuffix(title, ext)
	}
	if title == "" || title == "." {
		return
	}
	p.emit(domain.LineEvent{Kind: domain.LineTitle, Title: title, Path: path})
}
