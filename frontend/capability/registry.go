package capability

import (
	"fmt"
	"iter"
	"slices"
	"sort"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/hashicorp/go-set/v3"
	"github.com/rill-lang/rill/frontend/ilerr"
	"github.com/rill-lang/rill/frontend/types"
	"github.com/rill-lang/rill/util"
	sortedset "github.com/xtgo/set"
)

// MaxSupertraitDepth bounds how deep CollectSupertraitBounds follows supertrait declarations
const MaxSupertraitDepth = 64

// Snapshot is a read-only view of a Registry at one point in time.
// Later registrations do not affect it, so it may be handed to other sessions.
type Snapshot struct {
	capabilities *immutable.SortedMap[string, *Capability]
	impls        *immutable.SortedMap[string, *immutable.List[*Implementation]]
	generation   uint64
}

func (s Snapshot) Lookup(name string) (*Capability, bool) {
	return s.capabilities.Get(name)
}

// Capabilities iterates over the names of the registered capabilities, in order
func (s Snapshot) Capabilities() iter.Seq[string] {
	return util.SortedKeys(s.capabilities)
}

// Implementations of capability, in registration order
func (s Snapshot) Implementations(capability string) []*Implementation {
	list, ok := s.impls.Get(capability)
	if !ok {
		return nil
	}
	impls := make([]*Implementation, 0, list.Len())
	itr := list.Iterator()
	for !itr.Done() {
		_, impl := itr.Next()
		impls = append(impls, impl)
	}
	return impls
}

// Generation counts the registrations made so far
func (s Snapshot) Generation() uint64 { return s.generation }

type cacheEntry struct {
	generation uint64
	err        error
}

// Registry is append-only: capabilities and implementations can be added
// but never changed or removed. Bound checks are memoized, failures
// included; an entry only counts while no registration happened since it
// was made.
type Registry struct {
	snap       Snapshot
	cache      map[string]cacheEntry
	inProgress *set.Set[string]
}

func NewRegistry() *Registry {
	return &Registry{
		snap: Snapshot{
			capabilities: immutable.NewSortedMap[string, *Capability](nil),
			impls:        immutable.NewSortedMap[string, *immutable.List[*Implementation]](nil),
		},
		cache:      make(map[string]cacheEntry),
		inProgress: set.New[string](0),
	}
}

func (r *Registry) Snapshot() Snapshot { return r.snap }

func (r *Registry) Generation() uint64 { return r.snap.generation }

func (r *Registry) Lookup(name string) (*Capability, bool) { return r.snap.Lookup(name) }

func (r *Registry) lookup(name string) (*Capability, error) {
	c, ok := r.snap.Lookup(name)
	if !ok {
		return nil, ilerr.New(ilerr.NewCapabilityNotFound{Name: name})
	}
	return c, nil
}

// CacheLen is the number of memoized bound checks, including stale ones
func (r *Registry) CacheLen() int { return len(r.cache) }

func (r *Registry) ClearCache() { clear(r.cache) }

func (r *Registry) RegisterCapability(c *Capability) error {
	if _, exists := r.snap.Lookup(c.Name); exists {
		return ilerr.New(ilerr.NewConflictingCapability{Name: c.Name})
	}
	for _, name := range c.Supertraits {
		super, ok := r.snap.Lookup(name)
		if !ok {
			continue
		}
		if _, err := fillArgs(super, nil); err != nil {
			return ilerr.New(ilerr.NewTypeMismatch{
				Expected: "a supertrait whose parameters all have defaults",
				Found:    name,
				Context:  "supertraits of capability " + c.Name,
			})
		}
	}
	r.snap.capabilities = r.snap.capabilities.Set(c.Name, c)
	r.snap.generation++
	logger.Debug("registered capability", "name", c.Name, "supertraits", c.Supertraits)
	return nil
}

// RegisterImplementation adds impl after checking that its capability
// exists, that it does not overlap an existing implementation, and that it
// provides exactly the associated types the capability declares.
//
// Missing capability arguments are filled in from the parameter defaults.
func (r *Registry) RegisterImplementation(impl *Implementation) error {
	c, err := r.lookup(impl.Capability)
	if err != nil {
		return err
	}
	if err := r.CheckImplCoherence(impl); err != nil {
		return err
	}
	for name := range impl.AssociatedTypes {
		if !c.hasAssociatedType(name) {
			return ilerr.New(ilerr.NewUnknownAssociatedType{Capability: c.Name, Name: name})
		}
	}
	for _, name := range c.AssociatedTypes {
		if _, ok := impl.AssociatedTypes[name]; !ok {
			return ilerr.New(ilerr.NewMissingAssociatedType{Capability: c.Name, Type: impl.Type.String(), Name: name})
		}
	}
	args, err := fillArgs(c, impl.Args)
	if err != nil {
		return err
	}
	stored := *impl
	stored.Args = args

	list, ok := r.snap.impls.Get(c.Name)
	if !ok {
		list = immutable.NewList[*Implementation]()
	}
	r.snap.impls = r.snap.impls.Set(c.Name, list.Append(&stored))
	r.snap.generation++
	logger.Debug("registered implementation", "impl", stored.String())
	return nil
}

// CheckImplCoherence fails if impl would overlap an implementation already
// registered: two implementations of the same capability overlap when their
// types and capability arguments unify once their generics are renamed apart.
//
// It does not modify the registry.
func (r *Registry) CheckImplCoherence(impl *Implementation) error {
	c, err := r.lookup(impl.Capability)
	if err != nil {
		return err
	}
	args, err := fillArgs(c, impl.Args)
	if err != nil {
		return err
	}
	candidate := header(impl.Type, args)
	for _, existing := range r.snap.Implementations(c.Name) {
		renamed := types.NewFresherAfter(candidate).RenameApart(header(existing.Type, existing.Args), nil)
		if types.Unify(types.NewSubstitution(), candidate, renamed) == nil {
			return ilerr.New(ilerr.NewConflictingImplementation{
				Capability: c.Name,
				Type:       impl.Type.String(),
				Existing:   existing.String(),
			})
		}
	}
	return nil
}

func fillArgs(c *Capability, args []types.Type) ([]types.Type, error) {
	if len(args) > len(c.Params) {
		return nil, ilerr.New(ilerr.NewTypeMismatch{
			Expected: fmt.Sprintf("at most %d arguments", len(c.Params)),
			Found:    fmt.Sprintf("%d arguments", len(args)),
			Context:  "arguments of capability " + c.Name,
		})
	}
	filled := slices.Clone(args)
	for _, p := range c.Params[len(args):] {
		if p.Default == nil {
			return nil, ilerr.New(ilerr.NewTypeMismatch{
				Expected: fmt.Sprintf("%d arguments", len(c.Params)),
				Found:    fmt.Sprintf("%d arguments", len(args)),
				Context:  "parameter " + p.Name + " of capability " + c.Name + " has no default",
			})
		}
		filled = append(filled, p.Default)
	}
	return filled, nil
}

func cacheKey(t types.Type, bounds []Bound) string {
	rendered := make([]string, len(bounds))
	for i, b := range bounds {
		rendered[i] = b.String()
	}
	sort.Strings(rendered)
	rendered = rendered[:sortedset.Uniq(sort.StringSlice(rendered))]
	return t.String() + ": " + strings.Join(rendered, " + ")
}

// CheckBounds reports the first bound that t does not satisfy.
//
// Higher-ranked and region bounds are always satisfied here; they are the
// region solver's concern. Any other bound holds when an implementation
// matches t, the where clauses of that implementation hold, and t
// implements every supertrait of the capability.
func (r *Registry) CheckBounds(t types.Type, bounds []Bound) error {
	key := cacheKey(t, bounds)
	if entry, ok := r.cache[key]; ok && entry.generation == r.snap.generation {
		return entry.err
	}
	var err error
	for _, b := range bounds {
		if err = r.checkBound(t, b); err != nil {
			break
		}
	}
	r.cache[key] = cacheEntry{generation: r.snap.generation, err: err}
	if err != nil {
		logger.Debug("bound check failed", "type", t, "bounds", key, "err", err)
	}
	return err
}

func (r *Registry) checkBound(t types.Type, b Bound) error {
	if b.Kind == HigherRanked || b.Kind == RegionBound {
		return nil
	}
	c, err := r.lookup(b.Capability)
	if err != nil {
		return err
	}
	args, err := fillArgs(c, b.Args)
	if err != nil {
		return err
	}
	obligation := t.String() + ": " + b.String()
	if !r.inProgress.Insert(obligation) {
		return ilerr.New(ilerr.NewBoundNotSatisfied{Type: t.String(), Bound: b.String(), Reason: "the bound requires itself"})
	}
	defer r.inProgress.Remove(obligation)

	if _, err := r.selectImpl(c, t, args); err != nil {
		return err
	}
	for i, p := range c.Params {
		for _, pb := range p.Bounds {
			if err := r.checkBound(args[i], pb); err != nil {
				return ilerr.New(ilerr.NewBoundNotSatisfied{
					Type:   t.String(),
					Bound:  b.String(),
					Reason: "argument " + p.Name + " = " + args[i].String() + ": " + err.Error(),
				})
			}
		}
	}
	supertraits, err := r.CollectSupertraitBounds(c.Name)
	if err != nil {
		return err
	}
	for _, name := range supertraits {
		super, err := r.lookup(name)
		if err != nil {
			return err
		}
		superArgs, err := fillArgs(super, nil)
		if err != nil {
			return ilerr.New(ilerr.NewBoundNotSatisfied{
				Type:   t.String(),
				Bound:  b.String(),
				Reason: "supertrait " + name + " has parameters without defaults",
			})
		}
		if _, err := r.selectImpl(super, t, superArgs); err != nil {
			return ilerr.New(ilerr.NewBoundNotSatisfied{
				Type:   t.String(),
				Bound:  b.String(),
				Reason: "supertrait " + name + " is not implemented",
			})
		}
	}
	return nil
}

// Selection is an implementation chosen for a type, together with the
// instantiation of the implementation's generics
type Selection struct {
	Impl     *Implementation
	subst    *types.Substitution
	fresher  *types.Fresher
	renaming map[types.VarID]types.Variable
}

// Instantiate rewrites t, written in terms of the generics of the selected
// implementation, in terms of the type it was selected for
func (s *Selection) Instantiate(t types.Type) types.Type {
	return s.subst.Apply(s.fresher.RenameApart(t, s.renaming))
}

func (s *Selection) instantiateBound(b Bound) Bound {
	args := make([]types.Type, len(b.Args))
	for i, arg := range b.Args {
		args[i] = s.Instantiate(arg)
	}
	b.Args = args
	return b
}

func (r *Registry) selectImpl(c *Capability, t types.Type, args []types.Type) (*Selection, error) {
	target := header(t, args)
	for _, impl := range r.snap.Implementations(c.Name) {
		sel := &Selection{
			Impl:     impl,
			subst:    types.NewSubstitution(),
			fresher:  types.NewFresherAfter(target),
			renaming: make(map[types.VarID]types.Variable),
		}
		pattern := sel.fresher.RenameApart(header(impl.Type, impl.Args), sel.renaming)
		if !types.Match(sel.subst, pattern, target) {
			continue
		}
		for _, clause := range impl.Where {
			bounds := make([]Bound, len(clause.Bounds))
			for i, b := range clause.Bounds {
				bounds[i] = sel.instantiateBound(b)
			}
			clauseType := sel.Instantiate(clause.Type)
			if err := r.CheckBounds(clauseType, bounds); err != nil {
				return nil, ilerr.New(ilerr.NewBoundNotSatisfied{
					Type:   t.String(),
					Bound:  Bound{Kind: Parameterized, Capability: c.Name, Args: args}.String(),
					Reason: "where clause of " + impl.String() + " fails: " + err.Error(),
				})
			}
		}
		return sel, nil
	}
	return nil, ilerr.New(ilerr.NewBoundNotSatisfied{
		Type:   t.String(),
		Bound:  Bound{Kind: Parameterized, Capability: c.Name, Args: args}.String(),
		Reason: "no implementation matches",
	})
}

// FindImplementation selects the implementation of capability for t,
// checking where clauses but not supertraits
func (r *Registry) FindImplementation(capability string, t types.Type, args ...types.Type) (*Selection, error) {
	c, err := r.lookup(capability)
	if err != nil {
		return nil, err
	}
	filled, err := fillArgs(c, args)
	if err != nil {
		return nil, err
	}
	return r.selectImpl(c, t, filled)
}

// AssociatedType projects `<t as capability>::name`
func (r *Registry) AssociatedType(capability string, t types.Type, name string) (types.Type, error) {
	c, err := r.lookup(capability)
	if err != nil {
		return nil, err
	}
	if !c.hasAssociatedType(name) {
		return nil, ilerr.New(ilerr.NewUnknownAssociatedType{Capability: capability, Name: name})
	}
	sel, err := r.FindImplementation(capability, t)
	if err != nil {
		return nil, err
	}
	return sel.Instantiate(sel.Impl.AssociatedTypes[name]), nil
}

// MethodSignature returns the declared signature of method in capability
func (r *Registry) MethodSignature(capability, method string) (types.Function, bool, error) {
	c, err := r.lookup(capability)
	if err != nil {
		return types.Function{}, false, err
	}
	sig, ok := c.Methods[method]
	return sig, ok, nil
}

// CollectSupertraitBounds returns every capability that name transitively
// requires, each exactly once, in depth-first order of declaration.
func (r *Registry) CollectSupertraitBounds(name string) ([]string, error) {
	c, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	visited := set.From([]string{name})
	pending := util.Stack[util.Pair[string, int]]{}
	for super := range util.Reverse(c.Supertraits) {
		pending.Push(util.NewPair(super, 1))
	}
	var collected []string
	for {
		next, ok := pending.Pop()
		if !ok {
			return collected, nil
		}
		if visited.Contains(next.Fst) {
			continue
		}
		if next.Snd > MaxSupertraitDepth {
			return nil, ilerr.New(ilerr.NewRecursionDepthExceeded{Name: name, Limit: MaxSupertraitDepth})
		}
		super, err := r.lookup(next.Fst)
		if err != nil {
			return nil, err
		}
		visited.Insert(next.Fst)
		collected = append(collected, next.Fst)
		for s := range util.Reverse(super.Supertraits) {
			pending.Push(util.NewPair(s, next.Snd+1))
		}
	}
}
