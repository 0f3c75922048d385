package cushion

// AccumulatorEntry is one pushed body, in the order it was pushed.
type AccumulatorEntry struct {
	Pos    SourcePos
	Tokens []TokenListItem
}

// Accumulator is a named insertion point: bodies pushed to it, from
// anywhere in the translation unit, are emitted at its declaration site in
// push order.
type Accumulator struct {
	Name    string
	Sink    *sink
	Entries []AccumulatorEntry
}

type pendingPush struct {
	target   string
	entry    AccumulatorEntry
	unique   bool
	optional bool
}

// AccumulatorTable owns every accumulator, its ref aliases, and the
// unordered-push parking list for names not yet declared.
type AccumulatorTable struct {
	byName map[string]*Accumulator
	order  []string // declaration order, for deterministic finalization
	refs   map[string]string // ref name -> real accumulator name
	parked []*pendingPush
}

// NewAccumulatorTable creates an empty table.
func NewAccumulatorTable() *AccumulatorTable {
	return &AccumulatorTable{byName: make(map[string]*Accumulator), refs: make(map[string]string)}
}

// Declare creates a new accumulator named name with the given sink, then
// drains any unordered pushes already parked under that name.
func (t *AccumulatorTable) Declare(name string, s *sink, pos SourcePos) (*Accumulator, error) {
	if _, exists := t.byName[name]; exists {
		return nil, errf(KindExtension, pos, "statement accumulator %q already declared", name)
	}
	acc := &Accumulator{Name: name, Sink: s}
	t.byName[name] = acc
	t.order = append(t.order, name)
	t.drain(name)
	return acc, nil
}

// All returns every declared accumulator in declaration order.
func (t *AccumulatorTable) All() []*Accumulator {
	out := make([]*Accumulator, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.byName[name])
	}
	return out
}

// Resolve looks up name as a real accumulator, then as a ref alias.
func (t *AccumulatorTable) Resolve(name string) (*Accumulator, bool) {
	if acc, ok := t.byName[name]; ok {
		return acc, true
	}
	if target, ok := t.refs[name]; ok {
		acc, ok2 := t.byName[target]
		return acc, ok2
	}
	return nil, false
}

// Ref aliases refName to accumulatorName, which must already be a real,
// non-aliased accumulator.
func (t *AccumulatorTable) Ref(refName, accumulatorName string, pos SourcePos) error {
	if _, ok := t.byName[accumulatorName]; !ok {
		return errf(KindExtension, pos, "CUSHION_STATEMENT_ACCUMULATOR_REF target %q is not a declared accumulator", accumulatorName)
	}
	if _, exists := t.refs[refName]; exists {
		return errf(KindExtension, pos, "duplicate CUSHION_STATEMENT_ACCUMULATOR_REF %q", refName)
	}
	t.refs[refName] = accumulatorName
	t.drain(refName)
	return nil
}

// Unref removes a previously created alias. Removing an unknown alias is
// not an error.
func (t *AccumulatorTable) Unref(refName string) {
	delete(t.refs, refName)
}

// Push appends entry to the accumulator (or ref) named target, parks it for
// later binding, discards it, or reports an error, per the combination of
// unique/optional/unordered flags.
func (t *AccumulatorTable) Push(target string, entry AccumulatorEntry, unique, optional, unordered bool) error {
	if acc, ok := t.Resolve(target); ok {
		appendEntry(acc, entry, unique)
		return nil
	}
	if unordered {
		t.parked = append(t.parked, &pendingPush{target: target, entry: entry, unique: unique, optional: optional})
		return nil
	}
	if optional {
		return nil
	}
	return errf(KindExtension, entry.Pos, "CUSHION_STATEMENT_ACCUMULATOR_PUSH target %q not found", target)
}

// drain binds every parked push targeting name to its now-existing
// accumulator, in original push order.
func (t *AccumulatorTable) drain(name string) {
	acc, ok := t.Resolve(name)
	if !ok {
		return
	}
	kept := t.parked[:0]
	for _, p := range t.parked {
		if p.target == name {
			appendEntry(acc, p.entry, p.unique)
			continue
		}
		kept = append(kept, p)
	}
	t.parked = kept
}

func appendEntry(acc *Accumulator, entry AccumulatorEntry, unique bool) {
	if unique {
		for _, existing := range acc.Entries {
			if tokensEqual(existing.Tokens, entry.Tokens) {
				return
			}
		}
	}
	acc.Entries = append(acc.Entries, entry)
}

// Finalize reports an error for every still-parked push that was not
// marked optional; those pushes never found their target accumulator.
func (t *AccumulatorTable) Finalize() error {
	for _, p := range t.parked {
		if !p.optional {
			return errf(KindExtension, p.entry.Pos, "CUSHION_STATEMENT_ACCUMULATOR_PUSH target %q was never bound", p.target)
		}
	}
	return nil
}

func tokensEqual(a, b []TokenListItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Tok.Kind != b[i].Tok.Kind || a[i].Tok.Text != b[i].Tok.Text {
			return false
		}
	}
	return true
}
