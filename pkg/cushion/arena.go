// Package cushion implements a standalone C preprocessor aimed at feeding
// cleaned-up translation units to downstream code generators.
package cushion

import "fmt"

// AllocClass selects which end of an arena page an allocation is carved
// from: Persistent allocations live for the whole execution, Transient
// allocations are released in bulk when their owning scope exits.
type AllocClass int

const (
	Transient AllocClass = iota
	Persistent
)

// pageSize is the size of each arena page. Not load-bearing; chosen large
// enough that most files fit in one page.
const pageSize = 64 * 1024

// arenaPage is a single page of a double-ended stack allocator: Persistent
// data grows down from the top, Transient data grows up from the bottom,
// and allocation fails once the two cursors would cross.
type arenaPage struct {
	buf            []byte
	transientCur   int // next free byte, growing upward
	persistentCur  int // next free byte, growing downward (exclusive bound)
}

func newArenaPage(size int) *arenaPage {
	return &arenaPage{
		buf:           make([]byte, size),
		transientCur:  0,
		persistentCur: size,
	}
}

func (p *arenaPage) allocate(size, align int, class AllocClass) ([]byte, bool) {
	if class == Transient {
		start := alignUp(p.transientCur, align)
		end := start + size
		if end > p.persistentCur {
			return nil, false
		}
		p.transientCur = end
		return p.buf[start:end:end], true
	}
	end := p.persistentCur
	start := alignDown(end-size, align)
	if start < p.transientCur || start < 0 {
		return nil, false
	}
	p.persistentCur = start
	return p.buf[start:end:end], true
}

func alignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

func alignDown(v, align int) int {
	if align <= 1 {
		return v
	}
	return v &^ (align - 1)
}

// TransientMarker is a rewindable bookmark into an Arena's transient space,
// obtained from Arena.MarkTransient and consumed by Arena.ResetTransient.
type TransientMarker struct {
	pageIndex    int
	transientCur int
}

// Arena is a page-based double-ended stack allocator. It never frees
// individual objects; transient allocations are rewound in bulk via
// ResetTransient, and everything is released at once via ResetAll/Shutdown.
type Arena struct {
	pages []*arenaPage
	// highWater is the number of pages ever allocated, used by Shrink to
	// decide how much to release back.
	highWater int
}

// NewArena creates an empty arena. Pages are allocated lazily on first use.
func NewArena() *Arena {
	return &Arena{}
}

// Allocate reserves size bytes aligned to align from the requested class.
// It chains additional pages as needed; it fails only if a single
// allocation cannot fit in one fresh page.
func (a *Arena) Allocate(size, align int, class AllocClass) ([]byte, error) {
	if size < 0 || align <= 0 {
		return nil, fmt.Errorf("cushion: invalid allocation request (size=%d align=%d)", size, align)
	}
	if size == 0 {
		return nil, nil
	}
	for _, p := range a.pages {
		if b, ok := p.allocate(size, align, class); ok {
			return b, nil
		}
	}
	newSize := pageSize
	if size+align > newSize {
		newSize = size + align
	}
	p := newArenaPage(newSize)
	a.pages = append(a.pages, p)
	if len(a.pages) > a.highWater {
		a.highWater = len(a.pages)
	}
	b, ok := p.allocate(size, align, class)
	if !ok {
		return nil, fmt.Errorf("cushion: allocation of %d bytes does not fit in a fresh page", size)
	}
	return b, nil
}

// MarkTransient returns a marker that ResetTransient can later rewind to.
// The marker only rewinds transient space; persistent allocations made
// after the mark are unaffected.
func (a *Arena) MarkTransient() TransientMarker {
	return TransientMarker{
		pageIndex:    len(a.pages) - 1,
		transientCur: a.curTransient(),
	}
}

func (a *Arena) curTransient() int {
	if len(a.pages) == 0 {
		return 0
	}
	return a.pages[len(a.pages)-1].transientCur
}

// ResetTransient rewinds the arena's transient cursor to a previously
// obtained marker, zeroing the transient cursors of every later page so
// they can be reused without carrying stale high-water marks.
func (a *Arena) ResetTransient(m TransientMarker) {
	if m.pageIndex < 0 {
		for _, p := range a.pages {
			p.transientCur = 0
		}
		return
	}
	if m.pageIndex >= len(a.pages) {
		return
	}
	a.pages[m.pageIndex].transientCur = m.transientCur
	for i := m.pageIndex + 1; i < len(a.pages); i++ {
		a.pages[i].transientCur = 0
	}
}

// ResetAll rewinds every page's transient cursor to zero, without touching
// persistent allocations or releasing pages.
func (a *Arena) ResetAll() {
	for _, p := range a.pages {
		p.transientCur = 0
	}
}

// Shrink releases pages beyond the current high-water mark of live pages.
// It is a no-op unless the caller has first dropped references into the
// trailing pages (ResetAll alone does not make that safe for Persistent
// data, so Shrink only ever discards fully-idle trailing pages appended
// since the last Shrink).
func (a *Arena) Shrink() {
	if len(a.pages) == 0 {
		return
	}
	kept := a.pages[:1]
	for _, p := range a.pages[1:] {
		if p.transientCur == 0 && p.persistentCur == len(p.buf) {
			continue
		}
		kept = append(kept, p)
	}
	a.pages = kept
	a.highWater = len(a.pages)
}

// Shutdown releases every page. The arena must not be used afterward.
func (a *Arena) Shutdown() {
	a.pages = nil
	a.highWater = 0
}

// AllocString copies s into persistent arena storage and returns the copy.
// Used for macro/parameter names which must outlive any single file scope.
func (a *Arena) AllocString(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	b, err := a.Allocate(len(s), 1, Persistent)
	if err != nil {
		return "", err
	}
	copy(b, s)
	return string(b), nil
}

// AllocBytes copies src into arena storage of the requested class.
func (a *Arena) AllocBytes(src []byte, class AllocClass) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	b, err := a.Allocate(len(src), 1, class)
	if err != nil {
		return nil, err
	}
	copy(b, src)
	return b, nil
}
