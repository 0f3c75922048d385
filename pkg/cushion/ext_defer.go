package cushion

// deferFrame tracks the CUSHION_DEFER bodies registered directly inside one
// brace-delimited scope, innermost first.
type deferFrame struct {
	entries [][]TokenListItem
}

// DeferManager implements the CUSHION_DEFER extension: bodies registered
// inside a scope are replayed, in reverse registration order, at every
// point that scope is exited. Exact reachability analysis of goto/return
// is not attempted (the specification itself leaves it unresolved beyond
// the test fixtures); instead every candidate exit point gets the
// applicable replay inserted, which is always safe for idempotent cleanup
// code even when it produces a harmless duplicate after an early return.
type DeferManager struct {
	frames []*deferFrame
}

// NewDeferManager creates an empty manager.
func NewDeferManager() *DeferManager {
	return &DeferManager{}
}

// EnterScope pushes a new, empty scope frame, called when the lexer is
// about to emit a '{'.
func (dm *DeferManager) EnterScope() {
	dm.frames = append(dm.frames, &deferFrame{})
}

// ExitScope pops the innermost scope frame and returns its entries in
// replay order (most recently registered first), called when the lexer is
// about to emit the matching '}'.
func (dm *DeferManager) ExitScope() [][]TokenListItem {
	if len(dm.frames) == 0 {
		return nil
	}
	top := dm.frames[len(dm.frames)-1]
	dm.frames = dm.frames[:len(dm.frames)-1]
	return reverseEntries(top.entries)
}

// Register records body against the innermost open scope.
func (dm *DeferManager) Register(body []TokenListItem, pos SourcePos) error {
	if len(dm.frames) == 0 {
		return errf(KindExtension, pos, "CUSHION_DEFER used outside any scope")
	}
	top := dm.frames[len(dm.frames)-1]
	top.entries = append(top.entries, body)
	return nil
}

// ReplayForReturn returns every entry from every currently open scope,
// innermost scope first and each scope's own entries in reverse
// registration order, without popping any frame — a function-leaving
// return or goto must run all of them.
func (dm *DeferManager) ReplayForReturn() [][]TokenListItem {
	var out [][]TokenListItem
	for i := len(dm.frames) - 1; i >= 0; i-- {
		out = append(out, reverseEntries(dm.frames[i].entries)...)
	}
	return out
}

// ReplayForLoopExit returns the innermost scope's entries in reverse
// order, the approximation used for break/continue (which in typical use
// exit only the loop body they appear directly inside).
func (dm *DeferManager) ReplayForLoopExit() [][]TokenListItem {
	if len(dm.frames) == 0 {
		return nil
	}
	return reverseEntries(dm.frames[len(dm.frames)-1].entries)
}

func reverseEntries(entries [][]TokenListItem) [][]TokenListItem {
	out := make([][]TokenListItem, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}
