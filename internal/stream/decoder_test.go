package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBody = "event: start\ndata: {}\n\n" +
	"event: progress\ndata: {\"agent\":\"warren_buffett_agent\",\"status\":\"分析中\",\"ticker\":\"AAPL\"}\n\n" +
	": keepalive\n\n" +
	"event: progress\ndata: {\"agent\":\"cathie_wood_agent\",\"status\":\"Done\",\"analysis\":\"📈 bullish\"}\n\n" +
	"event: complete\ndata: {\"data\":{\"decisions\":{},\"analyst_signals\":{}}}\n\n"

func feedAll(d *FrameDecoder, chunks ...[]byte) []string {
	var frames []string
	for _, c := range chunks {
		frames = append(frames, d.Feed(c)...)
	}
	return frames
}

func TestFeedWholeBody(t *testing.T) {
	frames := NewFrameDecoder().Feed([]byte(sampleBody))
	require.Len(t, frames, 5)
	assert.Equal(t, "event: start\ndata: {}", frames[0])
	assert.Equal(t, ": keepalive", frames[2])
	assert.True(t, strings.HasPrefix(frames[4], "event: complete"))
}

func TestFeedSplitInvariance(t *testing.T) {
	body := []byte(sampleBody)
	want := NewFrameDecoder().Feed(body)

	// Every single split point, including ones inside multi-byte runes.
	for i := 0; i <= len(body); i++ {
		got := feedAll(NewFrameDecoder(), body[:i], body[i:])
		require.Equal(t, want, got, "split at byte %d", i)
	}

	// Byte-at-a-time.
	d := NewFrameDecoder()
	var got []string
	for i := range body {
		got = append(got, d.Feed(body[i:i+1])...)
	}
	assert.Equal(t, want, got)
	assert.Zero(t, d.Buffered())
}

func TestFeedCRLFSplitInvariance(t *testing.T) {
	body := []byte(strings.ReplaceAll(sampleBody, "\n", "\r\n"))
	want := NewFrameDecoder().Feed([]byte(sampleBody))

	for i := 0; i <= len(body); i++ {
		got := feedAll(NewFrameDecoder(), body[:i], body[i:])
		require.Equal(t, want, got, "split at byte %d", i)
	}
}

func TestFeedDelimiterSplitAcrossChunks(t *testing.T) {
	d := NewFrameDecoder()

	assert.Empty(t, d.Feed([]byte("event: start\ndata: {}\n")))
	assert.Equal(t, []string{"event: start\ndata: {}"}, d.Feed([]byte("\n")))
	assert.Zero(t, d.Buffered())
}

func TestFeedEmptyChunkIsNoop(t *testing.T) {
	d := NewFrameDecoder()
	d.Feed([]byte("event: start\n"))
	before := d.Buffered()

	assert.Nil(t, d.Feed(nil))
	assert.Nil(t, d.Feed([]byte{}))
	assert.Equal(t, before, d.Buffered())
}

func TestFeedCarriesPartialRune(t *testing.T) {
	d := NewFrameDecoder()
	rune3 := []byte("分") // 3 bytes

	assert.Empty(t, d.Feed(append([]byte("event: x\ndata: \""), rune3[:2]...)))
	frames := d.Feed(append(rune3[2:], []byte("\"\n\n")...))
	require.Len(t, frames, 1)
	assert.Equal(t, "event: x\ndata: \"分\"", frames[0])
	assert.NotContains(t, frames[0], "�")
}

func TestFeedReplacesInvalidUTF8(t *testing.T) {
	frames := NewFrameDecoder().Feed([]byte("event: x\ndata: \"a\xffb\"\n\n"))
	require.Len(t, frames, 1)
	assert.Equal(t, "event: x\ndata: \"a�b\"", frames[0])
}

func TestFlushReturnsTail(t *testing.T) {
	d := NewFrameDecoder()
	assert.Empty(t, d.Feed([]byte("event: complete\ndata: {}\n")))
	assert.Equal(t, []string{"event: complete\ndata: {}"}, d.Flush())
	assert.Empty(t, d.Flush())
}

func TestFlushDropsWhitespaceTail(t *testing.T) {
	d := NewFrameDecoder()
	d.Feed([]byte("event: start\ndata: {}\n\n\n"))
	assert.Empty(t, d.Flush())
}

func TestResetDiscardsBuffer(t *testing.T) {
	d := NewFrameDecoder()
	d.Feed([]byte("event: progress\ndata: {\"agent\":"))
	require.NotZero(t, d.Buffered())

	d.Reset()
	assert.Zero(t, d.Buffered())
	assert.Equal(t, []string{"event: start\ndata: {}"}, d.Feed([]byte("event: start\ndata: {}\n\n")))
}
