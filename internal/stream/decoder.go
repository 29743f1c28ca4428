// Package stream decodes the backend's server-sent event body into typed
// domain events.
package stream

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const frameDelimiter = "\n\n"

// FrameDecoder incrementally splits a streamed body into frames terminated by
// a blank line. Partial UTF-8 sequences are carried by the decoder between
// Feed calls and never reach the frame buffer.
//
// A FrameDecoder is not safe for concurrent use.
type FrameDecoder struct {
	utf8    transform.Transformer
	carry   []byte
	pending string
}

// NewFrameDecoder returns an empty decoder.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{utf8: unicode.UTF8.NewDecoder()}
}

// Feed appends chunk to the buffer and returns every frame it completes, in
// order. Whitespace-only frames are skipped.
func (d *FrameDecoder) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	return d.split(d.decode(chunk, false))
}

// Flush ends the stream: it flushes any dangling UTF-8 bytes and returns the
// unterminated tail as a final frame when it holds anything but whitespace.
func (d *FrameDecoder) Flush() []string {
	frames := d.split(d.decode(nil, true))
	rest := strings.TrimRight(d.pending, "\r\n")
	d.pending = ""
	if strings.TrimSpace(rest) != "" {
		frames = append(frames, rest)
	}
	return frames
}

// Reset discards all buffered input.
func (d *FrameDecoder) Reset() {
	d.utf8.Reset()
	d.carry = nil
	d.pending = ""
}

// Buffered returns the number of bytes held back waiting for more input.
func (d *FrameDecoder) Buffered() int {
	return len(d.pending) + len(d.carry)
}

func (d *FrameDecoder) decode(chunk []byte, atEOF bool) string {
	src := make([]byte, 0, len(d.carry)+len(chunk))
	src = append(src, d.carry...)
	src = append(src, chunk...)
	d.carry = nil

	var out strings.Builder
	dst := make([]byte, len(src)+4)
	for {
		nDst, nSrc, err := d.utf8.Transform(dst, src, atEOF)
		out.Write(dst[:nDst])
		src = src[nSrc:]
		switch {
		case err == nil:
			return out.String()
		case errors.Is(err, transform.ErrShortSrc):
			// Incomplete trailing rune; wait for the rest of it.
			d.carry = append([]byte(nil), src...)
			return out.String()
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				dst = make([]byte, 2*len(dst))
			}
		default:
			return out.String()
		}
	}
}

func (d *FrameDecoder) split(text string) []string {
	// A CR ending the previous chunk may be the first half of a CRLF.
	if strings.HasSuffix(d.pending, "\r") {
		d.pending = d.pending[:len(d.pending)-1]
		text = "\r" + text
	}
	s := d.pending + strings.ReplaceAll(text, "\r\n", "\n")

	var frames []string
	for {
		i := strings.Index(s, frameDelimiter)
		if i < 0 {
			break
		}
		if frame := s[:i]; strings.TrimSpace(frame) != "" {
			frames = append(frames, frame)
		}
		s = s[i+len(frameDelimiter):]
	}
	d.pending = s
	return frames
}
