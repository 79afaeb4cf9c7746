package ir

import (
	"go/token"
)

// Positioner allows finding the location in the original source file.
// The easiest way to be a Positioner is to embed a Range
type Positioner interface {
	Pos() token.Pos // position of first character belonging to the node
	End() token.Pos // position of first character immediately after the node
}

type Range struct {
	PosStart token.Pos
	PosEnd   token.Pos
}

func (r Range) Pos() token.Pos { return r.PosStart }
func (r Range) End() token.Pos { return r.PosEnd }

var _ Positioner = Origin{}

// Origin names the source construct a type, verdict or diagnostic belongs to,
// like "fn max" or "impl Ord for i32", together with where it was written.
//
// Positions only mean something against the token.FileSet they were issued
// from, so String leaves them out; Position resolves them.
type Origin struct {
	Range
	Construct string
}

func (o Origin) String() string { return o.Construct }

// Position resolves where o was written, or reports false when o carries no
// position or fset does not know it
func (o Origin) Position(fset *token.FileSet) (token.Position, bool) {
	if o.PosStart == token.NoPos || fset == nil || fset.File(o.PosStart) == nil {
		return token.Position{}, false
	}
	return fset.Position(o.PosStart), true
}
