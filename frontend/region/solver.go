// Package region resolves the regions of references: elided regions in
// signatures, region variables constrained by outlives relations, and the
// bounds declared on region parameters.
package region

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/hashicorp/go-set/v3"
	"github.com/rill-lang/rill/frontend/ilerr"
	"github.com/rill-lang/rill/frontend/types"
	"github.com/rill-lang/rill/internal/log"
)

// DefaultIterationLimit bounds the passes Solve makes over the constraints
const DefaultIterationLimit = 100

var logger = slog.New(types.SlogHandler(log.DefaultLogger.Handler())).With("section", "region")

type Region = types.Region

// Parameter is a declared region parameter like `'a: 'b + 'c`:
// Name outlives every region in Bounds.
type Parameter struct {
	Name   Region
	Bounds []Region
}

// Constraint is one of Outlives, Equal or OutlivesType
type Constraint interface {
	String() string
	isConstraint()
}

// Outlives requires Longer to be valid for at least as long as Shorter
type Outlives struct {
	Longer, Shorter Region
}

type Equal struct {
	A, B Region
}

// OutlivesType requires every region in Type to outlive Region, as in `T: 'a`
type OutlivesType struct {
	Region Region
	Type   types.Type
}

func (Outlives) isConstraint()     {}
func (Equal) isConstraint()        {}
func (OutlivesType) isConstraint() {}

func (c Outlives) String() string     { return string(c.Longer) + ": " + string(c.Shorter) }
func (c Equal) String() string        { return string(c.A) + " == " + string(c.B) }
func (c OutlivesType) String() string { return c.Type.String() + ": " + string(c.Region) }

// IsVariable reports whether r was synthesized by a Solver rather than declared
func IsVariable(r Region) bool {
	digits, ok := strings.CutPrefix(string(r), "'_")
	if !ok || digits == "" {
		return false
	}
	_, err := strconv.Atoi(digits)
	return err == nil
}

// Solver collects the region constraints of one function or impl and solves them.
// It is discarded once solved.
type Solver struct {
	params         []Parameter
	declared       *set.Set[Region]
	outlives       map[Region][]Region
	placeholders   *set.Set[Region]
	constraints    []Constraint
	resolution     map[Region]Region
	vars           []Region
	subst          *types.Substitution
	iterationLimit int
	variance       map[Region]types.Variance
}

type Option func(*Solver)

func WithIterationLimit(limit int) Option {
	return func(s *Solver) {
		s.iterationLimit = limit
	}
}

// WithSubstitution makes OutlivesType constraints see the types inferred so far
func WithSubstitution(subst *types.Substitution) Option {
	return func(s *Solver) {
		s.subst = subst
	}
}

func NewSolver(opts ...Option) *Solver {
	s := &Solver{
		declared:       set.From([]Region{types.Static}),
		outlives:       make(map[Region][]Region),
		placeholders:   set.New[Region](0),
		resolution:     make(map[Region]Region),
		subst:          types.NewSubstitution(),
		iterationLimit: DefaultIterationLimit,
		variance:       make(map[Region]types.Variance),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Declare adds region parameters. Every bound must name 'static, a region
// declared earlier, or one of params.
func (s *Solver) Declare(params ...Parameter) error {
	for _, p := range params {
		s.declared.Insert(p.Name)
	}
	for _, p := range params {
		for _, b := range p.Bounds {
			if !s.declared.Contains(b) {
				return ilerr.New(ilerr.NewUnknownLifetimeBound{Region: string(p.Name), Bound: string(b)})
			}
		}
		s.outlives[p.Name] = append(s.outlives[p.Name], p.Bounds...)
		s.params = append(s.params, p)
	}
	clear(s.variance)
	return nil
}

// Fresh returns a new region variable, like '_3
func (s *Solver) Fresh() Region {
	r := Region("'_" + strconv.Itoa(len(s.vars)))
	s.vars = append(s.vars, r)
	return r
}

// Add queues constraints for the next Solve
func (s *Solver) Add(constraints ...Constraint) {
	s.constraints = append(s.constraints, constraints...)
	clear(s.variance)
}

// EnterHigherRanked replaces the quantified regions of t with placeholders.
// A placeholder has no declared bounds, so only 'static outlives it and it
// outlives only itself.
func (s *Solver) EnterHigherRanked(t types.Type, quantified ...Region) (types.Type, []Region) {
	placeholders := make(map[Region]Region, len(quantified))
	created := make([]Region, len(quantified))
	for i, q := range quantified {
		p := Region(fmt.Sprintf("'^%s%d", strings.TrimPrefix(string(q), "'"), s.placeholders.Size()))
		s.placeholders.Insert(p)
		placeholders[q] = p
		created[i] = p
	}
	return types.MapRegions(t, func(r Region) Region {
		if p, ok := placeholders[r]; ok {
			return p
		}
		return r
	}), created
}

// known returns the region r stands for, if that is already decided
func (s *Solver) known(r Region) (Region, bool) {
	if resolved, ok := s.resolution[r]; ok {
		return resolved, true
	}
	if IsVariable(r) {
		return "", false
	}
	return r, true
}

// checkNamed requires both sides of longer: shorter to be known to s
func (s *Solver) checkNamed(longer, shorter Region) error {
	if s.isNamed(longer) && s.isNamed(shorter) {
		return nil
	}
	return ilerr.New(ilerr.NewUnknownLifetimeBound{Region: string(longer), Bound: string(shorter)})
}

func (s *Solver) isNamed(r Region) bool {
	return IsVariable(r) || s.declared.Contains(r) || s.placeholders.Contains(r)
}

// provablyOutlives decides longer: shorter from the declared bounds, closed
// transitively, where 'static outlives everything
func (s *Solver) provablyOutlives(longer, shorter Region) bool {
	if longer == shorter || longer == types.Static {
		return true
	}
	visited := set.From([]Region{longer})
	frontier := []Region{longer}
	for len(frontier) > 0 {
		r := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for _, next := range s.outlives[r] {
			if next == shorter || next == types.Static {
				return true
			}
			if visited.Insert(next) {
				frontier = append(frontier, next)
			}
		}
	}
	return false
}

// Solution is the outcome of Solve
type Solution struct {
	// Resolved maps every decided region variable to a known region
	Resolved map[Region]Region
	// Unresolved lists the variables nothing constrained enough to decide
	Unresolved []Region
	// Pending are the constraints that could not be decided, like those on
	// types that still hold inference variables
	Pending    []Constraint
	Iterations int
}

// Resolve returns what r was resolved to, or r itself
func (sol *Solution) Resolve(r Region) Region {
	if resolved, ok := sol.Resolved[r]; ok {
		return resolved
	}
	return r
}

// Apply rewrites every resolved region variable in t
func (sol *Solution) Apply(t types.Type) types.Type {
	return types.MapRegions(t, sol.Resolve)
}

type outcome uint8

const (
	waiting outcome = iota
	done
)

// Solve repeatedly passes over the pending constraints, deciding those whose
// regions are known and binding region variables to known regions, until a
// pass decides nothing new. Bindings are never retracted.
//
// A pass that still makes progress once the iteration limit is reached is an
// ilerr.SolverIterationLimit error.
func (s *Solver) Solve() (*Solution, error) {
	pending := slices.Clone(s.constraints)
	iterations := 0
	for len(pending) > 0 {
		if iterations >= s.iterationLimit {
			return nil, ilerr.New(ilerr.NewSolverIterationLimit{Limit: s.iterationLimit, Pending: len(pending)})
		}
		iterations++
		var waitingOn []Constraint
		progress := false
		for i := 0; i < len(pending); i++ {
			c := pending[i]
			result, expanded, err := s.step(c)
			if err != nil {
				logger.Debug("region constraint failed", "constraint", c.String(), "err", err)
				return nil, err
			}
			if result == waiting {
				waitingOn = append(waitingOn, c)
				continue
			}
			progress = true
			pending = append(pending, expanded...)
		}
		pending = waitingOn
		if !progress {
			break
		}
	}

	solution := &Solution{
		Resolved:   make(map[Region]Region, len(s.resolution)),
		Pending:    pending,
		Iterations: iterations,
	}
	for _, v := range s.vars {
		if r, ok := s.resolution[v]; ok {
			solution.Resolved[v] = r
		} else {
			solution.Unresolved = append(solution.Unresolved, v)
		}
	}
	logger.Debug("solved region constraints", "iterations", iterations, "resolved", len(solution.Resolved), "pending", len(pending))
	return solution, nil
}

func (s *Solver) bind(v, r Region) {
	s.resolution[v] = r
	logger.Debug("resolved region variable", "var", string(v), "region", string(r))
}

func (s *Solver) step(c Constraint) (outcome, []Constraint, error) {
	switch c := c.(type) {
	case Outlives:
		longer, longerKnown := s.known(c.Longer)
		shorter, shorterKnown := s.known(c.Shorter)
		switch {
		case longerKnown && shorterKnown:
			if err := s.checkNamed(longer, shorter); err != nil {
				return done, nil, err
			}
			if !s.provablyOutlives(longer, shorter) {
				return done, nil, ilerr.New(ilerr.NewRegionConstraintViolated{Longer: string(longer), Shorter: string(shorter)})
			}
		case longerKnown:
			s.bind(c.Shorter, longer)
		case shorterKnown:
			s.bind(c.Longer, shorter)
		default:
			return waiting, nil, nil
		}
		return done, nil, nil
	case Equal:
		a, aKnown := s.known(c.A)
		b, bKnown := s.known(c.B)
		switch {
		case aKnown && bKnown:
			if !s.provablyOutlives(a, b) || !s.provablyOutlives(b, a) {
				return done, nil, ilerr.New(ilerr.NewRegionConstraintViolated{Longer: string(a), Shorter: string(b)})
			}
		case aKnown:
			s.bind(c.B, a)
		case bKnown:
			s.bind(c.A, b)
		default:
			return waiting, nil, nil
		}
		return done, nil, nil
	case OutlivesType:
		t := s.subst.Apply(c.Type)
		if !types.IsGround(t) {
			return waiting, nil, nil
		}
		var expanded []Constraint
		for _, r := range types.Regions(t) {
			expanded = append(expanded, Outlives{Longer: r, Shorter: c.Region})
		}
		return done, expanded, nil
	default:
		panic(fmt.Sprintf("unhandled region constraint %T", c))
	}
}

// CheckBounds checks the bounds declared for region r. Only 'static can
// satisfy a 'static bound, and every other bound must be a declared region.
func (s *Solver) CheckBounds(r Region, bounds []Region) error {
	for _, b := range bounds {
		if b == types.Static {
			if r != types.Static {
				return ilerr.New(ilerr.NewRegionBoundNotSatisfied{Region: string(r), Bound: string(b)})
			}
			continue
		}
		if !s.declared.Contains(b) && !IsVariable(b) && !s.placeholders.Contains(b) {
			return ilerr.New(ilerr.NewUnknownLifetimeBound{Region: string(r), Bound: string(b)})
		}
	}
	return nil
}

// ResolveVariance classifies r by the direction of the outlives relations
// it takes part in: a region that only outlives others is covariant, one
// that is only outlived is contravariant, and any other region is
// invariant. Equal constraints count both ways.
//
// Results are remembered until the next Add or Declare.
func (s *Solver) ResolveVariance(r Region) types.Variance {
	if v, ok := s.variance[r]; ok {
		return v
	}
	v, related := types.Bivariant, false
	mark := func(l, sh Region) {
		if l == r {
			v, related = v.Meet(types.Covariant), true
		}
		if sh == r {
			v, related = v.Meet(types.Covariant.Flip()), true
		}
	}
	for _, p := range s.params {
		for _, b := range p.Bounds {
			mark(p.Name, b)
		}
	}
	for _, c := range s.constraints {
		switch c := c.(type) {
		case Outlives:
			mark(c.Longer, c.Shorter)
		case Equal:
			mark(c.A, c.B)
			mark(c.B, c.A)
		case OutlivesType:
			for _, inner := range types.Regions(s.subst.Apply(c.Type)) {
				mark(inner, c.Region)
			}
		}
	}
	if !related {
		v = types.Invariant
	}
	s.variance[r] = v
	return v
}
