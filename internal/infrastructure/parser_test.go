package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/vidfetch-go/internal/domain"
)

func collectEvents(t *testing.T) (*LineParser, *[]domain.LineEvent) {
	t.Helper()
	events := &[]domain.LineEvent{}
	parser := NewLineParser(func(ev domain.LineEvent) {
		*events = append(*events, ev)
	})
	return parser, events
}

func eventsOfKind(events []domain.LineEvent, kind domain.LineEventKind) []domain.LineEvent {
	var out []domain.LineEvent
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func TestParseProgressLine(t *testing.T) {
	parser, events := collectEvents(t)

	parser.Write([]byte("[download]  42.7% of 10.32MiB at 1.23MiB/s ETA 00:05\n"))

	progress := eventsOfKind(*events, domain.LineProgress)
	require.Len(t, progress, 1)
	assert.InDelta(t, 0.427, progress[0].Progress, 1e-9)

	telemetry := eventsOfKind(*events, domain.LineTelemetry)
	require.Len(t, telemetry, 1)
	assert.Equal(t, "1.23MiB/s", telemetry[0].Speed)
	assert.Equal(t, "00:05", telemetry[0].ETA)
}

func TestParseTelemetry_FieldsIndependentlyOptional(t *testing.T) {
	parser, events := collectEvents(t)

	parser.Write([]byte("[download]  10.0% of 5.00MiB at Unknown speed ETA 01:23\n"))
	parser.Write([]byte("[download]  20.0% of 5.00MiB at 2.00MiB/s ETA Unknown\n"))

	telemetry := eventsOfKind(*events, domain.LineTelemetry)
	require.Len(t, telemetry, 2)
	assert.Empty(t, telemetry[0].Speed)
	assert.Equal(t, "01:23", telemetry[0].ETA)
	assert.Equal(t, "2.00MiB/s", telemetry[1].Speed)
	assert.Empty(t, telemetry[1].ETA)
}

func TestParseMultipleProgressLinesInOneFragment(t *testing.T) {
	parser, events := collectEvents(t)

	// The tool may flush several lines in one read; each percentage must be
	// emitted independently and in order.
	parser.Write([]byte("[download]  10.0% of 1.00MiB at 1.00MiB/s ETA 00:10\n" +
		"[download]  55.5% of 1.00MiB at 1.00MiB/s ETA 00:04\n" +
		"[download] 100.0% of 1.00MiB at 1.00MiB/s ETA 00:00\n"))

	progress := eventsOfKind(*events, domain.LineProgress)
	require.Len(t, progress, 3)
	assert.InDelta(t, 0.10, progress[0].Progress, 1e-9)
	assert.InDelta(t, 0.555, progress[1].Progress, 1e-9)
	assert.InDelta(t, 1.0, progress[2].Progress, 1e-9)
}

func TestParseFragmentedLine(t *testing.T) {
	parser, events := collectEvents(t)

	// Line split across arbitrary chunk boundaries.
	parser.Write([]byte("[down"))
	parser.Write([]byte("load]  77.0% of 2.0"))
	assert.Empty(t, *events, "no event before the newline arrives")

	parser.Write([]byte("0MiB at 512.00KiB/s ETA 00:01\n"))
	progress := eventsOfKind(*events, domain.LineProgress)
	require.Len(t, progress, 1)
	assert.InDelta(t, 0.77, progress[0].Progress, 1e-9)
}

func TestParseDestinationTitleHint(t *testing.T) {
	parser, events := collectEvents(t)

	parser.Write([]byte("[download] Destination: /downloads/Some_Clip.f137.mp4\n"))

	titles := eventsOfKind(*events, domain.LineTitle)
	require.Len(t, titles, 1)
	assert.Equal(t, "Some_Clip.f137", titles[0].Title)
	assert.Equal(t, "/downloads/Some_Clip.f137.mp4", titles[0].Path)
}

func TestParseMergerLine(t *testing.T) {
	parser, events := collectEvents(t)

	parser.Write([]byte("[Merger] Merging formats into \"/downloads/Some_Clip.mp4\"\n"))

	phases := eventsOfKind(*events, domain.LinePhase)
	require.Len(t, phases, 1)
	assert.Equal(t, "merging formats", phases[0].Phase)

	titles := eventsOfKind(*events, domain.LineTitle)
	require.Len(t, titles, 1)
	assert.Equal(t, "Some_Clip", titles[0].Title)
	assert.Equal(t, "/downloads/Some_Clip.mp4", titles[0].Path)
}

func TestParseAlreadyDownloaded(t *testing.T) {
	parser, events := collectEvents(t)

	parser.Write([]byte("[download] /downloads/Old_Clip.mp4 has already been downloaded\n"))

	progress := eventsOfKind(*events, domain.LineProgress)
	require.Len(t, progress, 1)
	assert.Equal(t, 1.0, progress[0].Progress)

	titles := eventsOfKind(*events, domain.LineTitle)
	require.Len(t, titles, 1)
	assert.Equal(t, "Old_Clip", titles[0].Title)
}

func TestParseExtractAudioPhase(t *testing.T) {
	parser, events := collectEvents(t)

	parser.Write([]byte("[ExtractAudio] Destination: /downloads/Song.mp3\n"))

	phases := eventsOfKind(*events, domain.LinePhase)
	require.Len(t, phases, 1)
	assert.Equal(t, "extracting audio", phases[0].Phase)

	titles := eventsOfKind(*events, domain.LineTitle)
	require.Len(t, titles, 1)
	assert.Equal(t, "Song", titles[0].Title)
}

func TestParseUnrecognizedLinesIgnored(t *testing.T) {
	parser, events := collectEvents(t)

	parser.Write([]byte("[youtube] abc123: Downloading webpage\n"))
	parser.Write([]byte("WARNING: unable to extract channel id\n"))
	parser.Write([]byte("random chatter without structure\n"))
	parser.Write([]byte("\r\n"))

	assert.Empty(t, *events, "unknown lines must be silently ignored, never an error")
}

func TestFlushParsesTrailingPartialLine(t *testing.T) {
	parser, events := collectEvents(t)

	parser.Write([]byte("[download] 100.0% of 1.00MiB at 1.00MiB/s ETA 00:00"))
	assert.Empty(t, *events)

	parser.Flush()
	progress := eventsOfKind(*events, domain.LineProgress)
	require.Len(t, progress, 1)
	assert.Equal(t, 1.0, progress[0].Progress)
}

func TestPendingBufferBounded(t *testing.T) {
	parser, events := collectEvents(t)

	chunk := make([]byte, 32*1024)
	for i := range chunk {
		chunk[i] = 'x'
	}
	for i := 0; i < 10; i++ {
		parser.Write(chunk)
	}

	assert.LessOrEqual(t, len(parser.pending), maxPendingLine)
	assert.Empty(t, *events)
}
