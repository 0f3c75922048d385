package cushion

import "io"

// sink is a deferred output target: a queue of buffered byte chunks that
// accumulates writes until it is marked finished, at which point a prefix
// of finished sinks (in creation order) flushes to the real writer.
type sink struct {
	chunks     [][]byte
	unfinished bool
	origin     SourcePos
	next       *sink
}

// SinkWriter multiplexes output between the real underlying writer and any
// number of in-flight deferred sinks, preserving the invariant that for any
// two sinks S1 created before S2, every byte written to S1 reaches the
// underlying writer before any byte written to S2 (§4.5, §8).
type SinkWriter struct {
	out io.Writer

	head *sink // oldest still-unflushed sink
	tail *sink // most recently created sink
	// selected is the sink writes currently target; nil means writes go
	// straight to out.
	selected *sink
}

// NewSinkWriter wraps out for direct writes plus any number of deferred
// sinks layered on top of it.
func NewSinkWriter(out io.Writer) *SinkWriter {
	return &SinkWriter{out: out}
}

// Write sends p to the currently selected sink, or directly to the
// underlying writer if no sink is selected.
func (w *SinkWriter) Write(p []byte) (int, error) {
	if w.selected == nil {
		return w.out.Write(p)
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	w.selected.chunks = append(w.selected.chunks, cp)
	return len(p), nil
}

// WriteString is a convenience wrapper matching the teacher's habit of
// building output with strings rather than raw byte slices.
func (w *SinkWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// NewSink reserves a new unfinished sink's position at the end of the
// queue without selecting it for writes — used to claim a statement
// accumulator's output position at declaration time, well before its
// entries (pushed from anywhere in the translation unit) are known.
// A newly created sink's writes are always queued behind every earlier
// still-unfinished sink, never interleaved with them.
func (w *SinkWriter) NewSink(origin SourcePos) *sink {
	s := &sink{unfinished: true, origin: origin}
	if w.tail == nil {
		w.head = s
		w.tail = s
	} else {
		w.tail.next = s
		w.tail = s
	}
	return s
}

// Select changes the current write target without creating a new sink; a
// nil target resumes writing straight to the underlying writer. Used when
// the lexer temporarily restores direct output while a sink it opened
// earlier (e.g. a statement accumulator's site) stays open for later
// entries.
func (w *SinkWriter) Select(s *sink) {
	w.selected = s
}

// Current returns the sink currently selected, or nil when writing direct.
func (w *SinkWriter) Current() *sink {
	return w.selected
}

// Finish marks s as finished and flushes every finished sink at the head
// of the queue, in creation order.
func (w *SinkWriter) Finish(s *sink) error {
	s.unfinished = false
	return w.flush()
}

func (w *SinkWriter) flush() error {
	for w.head != nil && !w.head.unfinished {
		for _, c := range w.head.chunks {
			if _, err := w.out.Write(c); err != nil {
				return err
			}
		}
		w.head.chunks = nil
		if w.head == w.selected {
			w.selected = nil
		}
		w.head = w.head.next
	}
	if w.head == nil {
		w.tail = nil
	}
	return nil
}

// Flush is a no-op convenience for callers that flush unconditionally
// after finishing every sink they opened; actual flushing always happens
// as a side effect of Finish.
func (w *SinkWriter) Flush() error {
	return w.flush()
}
