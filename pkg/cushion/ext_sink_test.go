package cushion

import (
	"strings"
	"testing"
)

func TestSinkWriterDirectWritesPassThrough(t *testing.T) {
	var buf strings.Builder
	w := NewSinkWriter(&buf)
	w.WriteString("hello ")
	w.WriteString("world")
	if buf.String() != "hello world" {
		t.Fatalf("got %q, want %q", buf.String(), "hello world")
	}
}

func TestSinkWriterReservedSinkDeferOrdering(t *testing.T) {
	var buf strings.Builder
	w := NewSinkWriter(&buf)

	// Reserve a sink's position before anything is known to go into it
	// (as a statement accumulator does at its declaration site), then
	// keep writing directly while it stays open.
	s := w.NewSink(SourcePos{File: "a.c", Line: 1})
	w.WriteString("before\n")

	// Content destined for the sink arrives later, from elsewhere in the
	// translation unit.
	w.Select(s)
	w.WriteString("deferred\n")
	w.Select(nil)

	w.WriteString("after\n")

	if buf.String() != "before\nafter\n" {
		t.Fatalf("got %q, want direct writes only before Finish", buf.String())
	}

	if err := w.Finish(s); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	want := "before\nafter\ndeferred\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestSinkWriterMultipleSinksFlushInCreationOrder(t *testing.T) {
	var buf strings.Builder
	w := NewSinkWriter(&buf)

	s1 := w.NewSink(SourcePos{Line: 1})
	s2 := w.NewSink(SourcePos{Line: 2})

	w.Select(s2)
	w.WriteString("second\n")
	w.Select(s1)
	w.WriteString("first\n")
	w.Select(nil)

	// Finishing s2 first must not flush it ahead of the still-open s1.
	if err := w.Finish(s2); err != nil {
		t.Fatalf("Finish(s2): %v", err)
	}
	if buf.String() != "" {
		t.Fatalf("got %q, want nothing flushed while s1 is still open", buf.String())
	}

	if err := w.Finish(s1); err != nil {
		t.Fatalf("Finish(s1): %v", err)
	}
	want := "first\nsecond\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestSinkWriterCurrentAndSelect(t *testing.T) {
	var buf strings.Builder
	w := NewSinkWriter(&buf)
	if w.Current() != nil {
		t.Fatal("Current() should start nil")
	}
	s := w.NewSink(SourcePos{})
	w.Select(s)
	if w.Current() != s {
		t.Fatal("Current() should return the selected sink")
	}
	w.Select(nil)
	if w.Current() != nil {
		t.Fatal("Current() should be nil after Select(nil)")
	}
	w.Finish(s)
}
