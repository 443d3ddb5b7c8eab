// Package sse turns a raw server-sent-event byte stream into newline
// delimited text frames.
//
// Chunks may split or merge frame boundaries arbitrarily; frames are emitted
// in arrival order and only once their terminating newline has been seen.
// Interpreting a frame is left to the caller.
package sse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
)

const (
	// DefaultMaxFrameSize bounds how many bytes a single frame may buffer
	// before its delimiter arrives.
	DefaultMaxFrameSize = 1 << 20
	// DefaultReadSize is the size of a single read from the underlying stream.
	DefaultReadSize = 4 << 10
)

var ErrFrameTooLarge = errors.New("sse frame exceeds maximum size")

type Reassembler struct {
	buf          []byte
	maxFrameSize int
}

type ReassemblerOption func(*Reassembler)

// WithMaxFrameSize overrides DefaultMaxFrameSize. Non-positive values are
// ignored.
func WithMaxFrameSize(size int) ReassemblerOption {
	return func(r *Reassembler) {
		if size > 0 {
			r.maxFrameSize = size
		}
	}
}

func NewReassembler(opts ...ReassemblerOption) *Reassembler {
	r := &Reassembler{maxFrameSize: DefaultMaxFrameSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Push appends chunk to the buffer and returns every frame completed by it.
// Blank frames are returned as empty strings. The trailing partial frame, if
// any, stays buffered for the next call.
func (r *Reassembler) Push(chunk []byte) ([]string, error) {
	r.buf = append(r.buf, chunk...)

	var frames []string
	for {
		i := bytes.IndexByte(r.buf, '\n')
		if i < 0 {
			break
		}

		frame := r.buf[:i]
		frame = bytes.TrimSuffix(frame, []byte{'\r'})
		frames = append(frames, string(frame))
		r.buf = r.buf[i+1:]
	}

	if len(r.buf) > r.maxFrameSize {
		pending := len(r.buf)
		r.Reset()
		return frames, fmt.Errorf("%w: %d bytes buffered without delimiter", ErrFrameTooLarge, pending)
	}

	// Compact so the backing array does not grow without bound on long
	// streams.
	if len(r.buf) == 0 {
		r.buf = r.buf[:0:0]
	} else if cap(r.buf) > 2*len(r.buf) && cap(r.buf) > DefaultReadSize {
		r.buf = append([]byte(nil), r.buf...)
	}

	return frames, nil
}

// Pending returns the buffered bytes of the incomplete trailing frame.
func (r *Reassembler) Pending() string {
	return string(r.buf)
}

func (r *Reassembler) Reset() {
	r.buf = nil
}

// Frames reads rd until EOF and yields every complete frame in order. A read
// error is yielded once and ends the sequence. A trailing partial frame that
// was never terminated is dropped at EOF.
func Frames(rd io.Reader, opts ...ReassemblerOption) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		reassembler := NewReassembler(opts...)
		chunk := make([]byte, DefaultReadSize)

		for {
			n, readErr := rd.Read(chunk)
			if n > 0 {
				frames, err := reassembler.Push(chunk[:n])
				for _, frame := range frames {
					if !yield(frame, nil) {
						return
					}
				}
				if err != nil {
					yield("", err)
					return
				}
			}

			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					return
				}
				yield("", fmt.Errorf("error reading stream: %w", readErr))
				return
			}
		}
	}
}
