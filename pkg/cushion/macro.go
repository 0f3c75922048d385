package cushion

// MacroKind distinguishes the handful of shapes a macro definition can take.
type MacroKind int

const (
	MacroObjectLike MacroKind = iota
	MacroFunctionLike
	// MacroBuiltin covers __FILE__/__LINE__, whose replacement is computed
	// at the point of use rather than stored as a token list.
	MacroBuiltin
)

// Macro is one entry of the macro table: either an object-like or
// function-like definition, or a marker for one of the handful of builtins
// the driver substitutes specially.
type Macro struct {
	Name       string
	NameHash   uint64
	Kind       MacroKind
	Params     []string
	ParamHash  []uint64
	IsVariadic bool
	// VariadicName is "__VA_ARGS__" unless the definition named its final
	// parameter "args..." (the GNU named-variadic spelling), in which case
	// it is that name.
	VariadicName string
	Replacement  []TokenListItem
	// IsWrapper marks a function-like macro whose invocation is expected to
	// be followed by a braced block, per the wrapper-macro extension.
	IsWrapper bool
	// Preserved marks a macro defined with __CUSHION_PRESERVE__ as the
	// first token of its replacement list: the driver echoes such a
	// #define back out unchanged rather than installing an expansion, and
	// every later use of the name is left untouched rather than expanded.
	Preserved bool
	DefPos    SourcePos

	next *Macro // collision chain within the owning bucket
}

// macroBucketCount is the table's fixed bucket count; spec §4.3 calls for a
// bucketed hash table rather than a growable map so the arena can own every
// node without ever reallocating the index itself.
const macroBucketCount = 512

// MacroTable is a bucketed hash table keyed by DJB2(name) mod
// macroBucketCount, with singly-linked collision chains. It owns every
// Macro it stores; definitions never move once inserted, so a *Macro handed
// back by Lookup stays valid until Undefine or redefinition removes it.
type MacroTable struct {
	buckets [macroBucketCount]*Macro
	// ForbidRedefinition makes a changed redefinition (one whose
	// replacement list differs token-for-token) an error instead of a
	// silent overwrite, per the --forbid-macro-redefinition flag.
	ForbidRedefinition bool
}

// NewMacroTable creates an empty table.
func NewMacroTable() *MacroTable {
	return &MacroTable{}
}

func (mt *MacroTable) bucketFor(hash uint64) int {
	return int(hash % macroBucketCount)
}

// Lookup returns the macro named name, or nil if undefined.
func (mt *MacroTable) Lookup(name string) *Macro {
	hash := hashIdentString(name)
	for m := mt.buckets[mt.bucketFor(hash)]; m != nil; m = m.next {
		if m.NameHash == hash && m.Name == name {
			return m
		}
	}
	return nil
}

// IsDefined reports whether name currently has a definition.
func (mt *MacroTable) IsDefined(name string) bool {
	return mt.Lookup(name) != nil
}

// Define installs m, replacing any prior definition of the same name. If
// ForbidRedefinition is set and a prior definition exists with a
// token-for-token different replacement, an error is returned and the old
// definition is left in place (matching #define's identical-redefinition
// carve-out: redefining a macro with the exact same replacement is always
// allowed).
func (mt *MacroTable) Define(m *Macro) error {
	m.NameHash = hashIdentString(m.Name)
	bucket := mt.bucketFor(m.NameHash)
	if prev := mt.Lookup(m.Name); prev != nil {
		if mt.ForbidRedefinition && !macrosEquivalent(prev, m) {
			return errf(KindSemantics, m.DefPos, "redefinition of macro %q with a different replacement", m.Name)
		}
		mt.removeFromBucket(bucket, m.Name)
	}
	m.next = mt.buckets[bucket]
	mt.buckets[bucket] = m
	return nil
}

// Undefine removes name's definition, if any. Undefining a name with no
// definition is not an error (matches #undef's lenient semantics).
func (mt *MacroTable) Undefine(name string) {
	hash := hashIdentString(name)
	mt.removeFromBucket(mt.bucketFor(hash), name)
}

func (mt *MacroTable) removeFromBucket(bucket int, name string) {
	var prev *Macro
	for m := mt.buckets[bucket]; m != nil; m = m.next {
		if m.Name == name {
			if prev == nil {
				mt.buckets[bucket] = m.next
			} else {
				prev.next = m.next
			}
			return
		}
		prev = m
	}
}

// macrosEquivalent compares two definitions token-for-token, ignoring
// source position, as required to allow an identical #define to repeat.
func macrosEquivalent(a, b *Macro) bool {
	if a.Kind != b.Kind || a.IsVariadic != b.IsVariadic || a.IsWrapper != b.IsWrapper {
		return false
	}
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	if len(a.Replacement) != len(b.Replacement) {
		return false
	}
	for i := range a.Replacement {
		at, bt := a.Replacement[i].Tok, b.Replacement[i].Tok
		if at.Kind != bt.Kind || at.Text != bt.Text {
			return false
		}
	}
	return true
}

// ParamIndex returns the position of name among m's parameters, or -1 if
// name is not a parameter of m (including when m is object-like).
func (m *Macro) ParamIndex(name string) int {
	for i, p := range m.Params {
		if p == name {
			return i
		}
	}
	return -1
}
