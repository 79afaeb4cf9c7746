package types

// Variance says in which directions a parameter may vary while keeping the
// enclosing type a subtype of the original.
type Variance struct {
	covariant, contravariant bool
}

var (
	Bivariant     = Variance{covariant: true, contravariant: true}
	Covariant     = Variance{covariant: true}
	Contravariant = Variance{contravariant: true}
	Invariant     = Variance{}
)

// Flip swaps co- and contra-variance, as happens in a function parameter position
func (v Variance) Flip() Variance {
	return Variance{covariant: v.contravariant, contravariant: v.covariant}
}

// Meet is the variance allowed by both v and other
func (v Variance) Meet(other Variance) Variance {
	return Variance{covariant: v.covariant && other.covariant, contravariant: v.contravariant && other.contravariant}
}

func (v Variance) String() string {
	switch v {
	case Bivariant:
		return "bivariant"
	case Covariant:
		return "covariant"
	case Contravariant:
		return "contravariant"
	default:
		return "invariant"
	}
}

// ParseVariance reads the names produced by Variance.String, plus the "+" and "-" shorthands
func ParseVariance(s string) (Variance, bool) {
	switch s {
	case "bivariant":
		return Bivariant, true
	case "covariant", "+":
		return Covariant, true
	case "contravariant", "-":
		return Contravariant, true
	case "invariant", "":
		return Invariant, true
	}
	return Invariant, false
}
