// Package protocol implements the newline-delimited frame protocol spoken by the game server.
//
// TCP is a byte stream, so a single read may carry half a message, exactly one message,
// or several messages glued together. Every message on this wire is a single-line JSON
// document terminated by '\n'; the receiver accumulates bytes and cuts them at newlines.
//
// Stream layout:
//
//	┌──────────────────┬──┬──────────────────┬──┬─────────────┐
//	│ {"Method":...}   │\n│ {"Method":...}   │\n│ {"Meth...   │
//	│ complete frame   │  │ complete frame   │  │ pending     │
//	└──────────────────┴──┴──────────────────┴──┴─────────────┘
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	Delimiter       byte = '\n'
	DefaultReadSize int  = 4096    // Bytes requested per read call
	DefaultMaxFrame int  = 1 << 20 // Upper bound on a single pending frame
	minFeedCapacity int  = 512
)

// ErrFrameTooLarge is returned when the pending fragment grows past the frame limit
// without a delimiter in sight. The stream cannot be resynchronised safely after that.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

// FrameBuffer turns an unbounded byte stream into discrete frames.
//
// Invariant: buf holds only the trailing fragment after the last delimiter seen so far.
// Complete frames are handed back from Feed and never retained.
type FrameBuffer struct {
	buf      []byte
	maxFrame int
}

// NewFrameBuffer creates a buffer that rejects fragments longer than maxFrame bytes.
// A non-positive maxFrame selects DefaultMaxFrame.
func NewFrameBuffer(maxFrame int) *FrameBuffer {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrame
	}
	return &FrameBuffer{
		buf:      make([]byte, 0, minFeedCapacity),
		maxFrame: maxFrame,
	}
}

// Feed appends chunk to the pending fragment and returns every frame completed by it,
// in arrival order. Frames are trimmed of surrounding whitespace; blank lines are skipped.
//
// Splitting happens on raw bytes before any text conversion, so a multi-byte rune cut
// in half by the network is glued back together before it is decoded.
func (b *FrameBuffer) Feed(chunk []byte) ([]string, error) {
	b.buf = append(b.buf, chunk...)

	var frames []string
	start := 0
	for {
		idx := bytes.IndexByte(b.buf[start:], Delimiter)
		if idx < 0 {
			break
		}
		line := bytes.TrimSpace(b.buf[start : start+idx])
		if len(line) > 0 {
			frames = append(frames, strings.ToValidUTF8(string(line), "\uFFFD"))
		}
		start += idx + 1
	}

	// Keep only the trailing fragment, reusing the backing array
	rest := copy(b.buf, b.buf[start:])
	b.buf = b.buf[:rest]

	if len(b.buf) > b.maxFrame {
		size := len(b.buf)
		b.Reset()
		return frames, fmt.Errorf("%w: %d bytes pending, limit %d", ErrFrameTooLarge, size, b.maxFrame)
	}
	return frames, nil
}

// Pending returns the incomplete trailing fragment carried over to the next Feed.
func (b *FrameBuffer) Pending() string {
	return string(b.buf)
}

// Reset drops any pending fragment.
func (b *FrameBuffer) Reset() {
	b.buf = b.buf[:0]
}

// WriteFrame writes body as one frame. When terminate is set the delimiter is appended
// and the whole frame goes out in a single Write, so a concurrent reader on the other
// side never observes a frame without its terminator.
func WriteFrame(w io.Writer, body []byte, terminate bool) error {
	if bytes.IndexByte(body, Delimiter) >= 0 {
		return fmt.Errorf("protocol: frame body contains a raw delimiter")
	}
	frame := body
	if terminate {
		frame = make([]byte, 0, len(body)+1)
		frame = append(frame, body...)
		frame = append(frame, Delimiter)
	}
	_, err := w.Write(frame)
	return err
}
