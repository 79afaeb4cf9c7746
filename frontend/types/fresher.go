package types

// Fresher keeps track of new variable IDs
// it is mutable and not suitable for concurrent use
type Fresher struct {
	freshCount VarID
}

func NewFresher() *Fresher {
	return &Fresher{}
}

// NewFresherAfter returns a Fresher whose variables do not clash with any variable in ts
func NewFresherAfter(ts ...Type) *Fresher {
	f := NewFresher()
	for _, t := range ts {
		for _, id := range FreeVars(t) {
			if id >= f.freshCount {
				f.freshCount = id + 1
			}
		}
	}
	return f
}

func (f *Fresher) Fresh() Variable {
	v := Variable{ID: f.freshCount}
	f.freshCount++
	return v
}

// RenameApart replaces every variable of t with a fresh one. renaming records
// the replacements made and is reused across calls, so several types can be
// renamed consistently. It may be nil when a single type is renamed.
func (f *Fresher) RenameApart(t Type, renaming map[VarID]Variable) Type {
	if renaming == nil {
		renaming = make(map[VarID]Variable)
	}
	return Rewrite(t, func(t Type) (Type, bool) {
		v, ok := t.(Variable)
		if !ok {
			return nil, false
		}
		fresh, ok := renaming[v.ID]
		if !ok {
			fresh = f.Fresh()
			renaming[v.ID] = fresh
		}
		return fresh, true
	})
}
