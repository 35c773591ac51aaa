// Package wire decodes the event envelope and row-payload formats the
// replication peer sends: a tagged JSON envelope per
// message, and a recordData body that is either a flat JSON object or a
// minimal XML tag-flatten grammar, optionally split into <new>/<old>
// subtrees.
package wire

import "strings"

// Field is one key/value pair from a decoded row payload, preserved in
// wire order. Order matters: the INSERT column list is built
// "using every key in the payload, in payload order".
type Field struct {
	Key   string
	Value string
}

// OldPrefix is prepended to keys that came from a payload's <old>/"old"
// pre-image subtree.
const OldPrefix = "old_"

// Payload is the flat, ordered decoding of one RowOp's recordData.
type Payload []Field

// Get returns the first value for key, in wire order.
func (p Payload) Get(key string) (string, bool) {
	for _, f := range p {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// NewFields returns the subset of the payload that is not a pre-image
// field (i.e. not prefixed old_), in wire order. This is the column set
// used to build INSERT's column list and UPDATE's SET list.
func (p Payload) NewFields() Payload {
	out := make(Payload, 0, len(p))
	for _, f := range p {
		if strings.HasPrefix(f.Key, OldPrefix) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// OldValue looks up the pre-image value for col, i.e. old_<col>.
func (p Payload) OldValue(col string) (string, bool) {
	return p.Get(OldPrefix + col)
}

// Resolve returns the value to use for building a WHERE predicate on
// col: the pre-image value if the payload carries one, else the
// col's own current value. This backs the UPDATE
// rule ("WHERE values are taken from old_<PKcol> if present else
// <PKcol>").
func (p Payload) Resolve(col string) (string, bool) {
	if v, ok := p.OldValue(col); ok {
		return v, true
	}
	return p.Get(col)
}
