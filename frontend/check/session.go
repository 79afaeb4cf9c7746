// Package check drives the type-checking core for one unit of code, like a
// function body: it owns the substitution built by unification and records
// the verdicts, region assignments and diagnostics the unit produces.
package check

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rill-lang/rill/frontend/alias"
	"github.com/rill-lang/rill/frontend/capability"
	"github.com/rill-lang/rill/frontend/constgen"
	"github.com/rill-lang/rill/frontend/ilerr"
	"github.com/rill-lang/rill/frontend/ir"
	"github.com/rill-lang/rill/frontend/region"
	"github.com/rill-lang/rill/frontend/types"
	"github.com/rill-lang/rill/internal/log"
)

// Hole is written in annotations for a type left to inference, like `Vec<_>`
const Hole = "_"

// Diagnostic is an error tied to the construct that caused it
type Diagnostic struct {
	Origin ir.Origin
	Err    error
}

func (d Diagnostic) Error() string {
	if ileErr, ok := ilerr.As(d.Err); ok {
		return d.Origin.String() + ": " + ilerr.FormatWithCode(ileErr)
	}
	return d.Origin.String() + ": " + d.Err.Error()
}

func (d Diagnostic) Unwrap() error { return d.Err }

// Binding is a named value whose type is reported in the Result
type Binding struct {
	Origin ir.Origin
	Name   string
	Type   types.Type
}

// Verdict is the outcome of a bound check. Err is nil when the bounds hold.
type Verdict struct {
	Origin ir.Origin
	Type   types.Type
	Bounds []capability.Bound
	Err    error
}

func (v Verdict) Passed() bool { return v.Err == nil }

// SignatureCheck is a signature with its regions elided and solved
type SignatureCheck struct {
	Origin   ir.Origin
	Elision  *region.Elision
	Solution *region.Solution
}

// Function is the signature with every resolved region substituted in
func (c SignatureCheck) Function() types.Function {
	return c.Solution.Apply(c.Elision.Signature.Function()).(types.Function)
}

// Instance is a monomorphized instantiation of a const-generic item
type Instance struct {
	Origin ir.Origin
	Owner  string
	ID     string
}

// ConstArg is a const-generic argument, written as a const expression
type ConstArg struct {
	Name string
	Expr string
}

type obligation struct {
	origin ir.Origin
	t      types.Type
	bounds []capability.Bound
}

// Session checks one unit against declarations shared with other sessions.
//
// Errors reported by the core (every ilerr.IleError) are collected in
// Errors and checking goes on; any other error is unexpected and is
// collected in Failures.
type Session struct {
	ID uuid.UUID

	registry *capability.Registry
	aliases  *alias.Normalizer
	consts   *constgen.Evaluator
	subst    *types.Substitution
	fresher  *types.Fresher
	logger   *slog.Logger

	bindings   []Binding
	deferred   []obligation
	verdicts   []Verdict
	signatures []SignatureCheck
	instances  []Instance
	errors     []Diagnostic
	failures   []Diagnostic
}

func NewSession(registry *capability.Registry, aliases *alias.Normalizer) *Session {
	id := uuid.New()
	return &Session{
		ID:       id,
		registry: registry,
		aliases:  aliases,
		consts:   constgen.NewEvaluator(),
		subst:    types.NewSubstitution(),
		fresher:  types.NewFresher(),
		logger: slog.New(types.SlogHandler(log.DefaultLogger.Handler())).
			With("section", "check").
			With("session", id.String()),
	}
}

// Substitution is the substitution built so far; it belongs to the session
func (s *Session) Substitution() *types.Substitution { return s.subst }

func (s *Session) Fresh() types.Variable { return s.fresher.Fresh() }

// Apply resolves t as far as the session has inferred
func (s *Session) Apply(t types.Type) types.Type { return s.subst.Apply(t) }

// Report records err, if any, as a diagnostic of origin and returns it
// wrapped in a Diagnostic
func (s *Session) Report(origin ir.Origin, err error) error {
	if err == nil {
		return nil
	}
	d := Diagnostic{Origin: origin, Err: err}
	if _, ok := ilerr.As(err); ok {
		s.errors = append(s.errors, d)
		s.logger.Debug("type error", "origin", origin.String(), "err", err)
	} else {
		s.failures = append(s.failures, d)
		s.logger.Warn("unexpected failure", "origin", origin.String(), "err", err)
	}
	return d
}

// Annotate turns a written type into a Type, expanding aliases. Every
// Hole becomes a fresh variable, as does every explicit ?N, consistently
// within the annotation. A Hole passed to a generic alias stays a single
// variable wherever the alias uses its parameter.
func (s *Session) Annotate(origin ir.Origin, text string) (types.Type, error) {
	named, holes := nameHoles(text)
	expanded, err := s.aliases.ExpandType(named)
	if err != nil {
		return nil, s.Report(origin, err)
	}
	renamed := s.fresher.RenameApart(expanded, nil)
	fresh := make(map[string]types.Variable, len(holes))
	return types.Rewrite(renamed, func(t types.Type) (types.Type, bool) {
		n, ok := t.(types.Named)
		if !ok || n.IsApplied() || !slices.Contains(holes, n.Name) {
			return nil, false
		}
		v, ok := fresh[n.Name]
		if !ok {
			v = s.fresher.Fresh()
			fresh[n.Name] = v
		}
		return v, true
	}), nil
}

// nameHoles gives every Hole in text its own name, `_0`, `_1`..., so that
// holes survive alias expansion as distinct types
func nameHoles(text string) (string, []string) {
	runes := []rune(text)
	isWord := func(i int) bool {
		return i >= 0 && i < len(runes) && (runes[i] == '_' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]))
	}
	var holes []string
	sb := strings.Builder{}
	for i, r := range runes {
		if string(r) != Hole || isWord(i-1) || isWord(i+1) || (i > 0 && runes[i-1] == '\'') {
			sb.WriteRune(r)
			continue
		}
		name := Hole + strconv.Itoa(len(holes))
		holes = append(holes, name)
		sb.WriteString(name)
	}
	return sb.String(), holes
}

// Record reports the type of name in the Result
func (s *Session) Record(origin ir.Origin, name string, t types.Type) {
	s.bindings = append(s.bindings, Binding{Origin: origin, Name: name, Type: t})
}

func (s *Session) Unify(origin ir.Origin, a, b types.Type) error {
	return s.Report(origin, types.Unify(s.subst, a, b))
}

// RequireBounds checks bounds on t now if t is fully inferred, or else
// when the session finishes. It only returns an error for a check that
// could be made now.
func (s *Session) RequireBounds(origin ir.Origin, t types.Type, bounds ...capability.Bound) error {
	applied := s.subst.Apply(t)
	if !types.IsGround(applied) {
		s.deferred = append(s.deferred, obligation{origin: origin, t: t, bounds: bounds})
		s.logger.Debug("deferred bound check", "type", applied, "bounds", len(bounds))
		return nil
	}
	return s.checkBounds(origin, applied, bounds)
}

func (s *Session) checkBounds(origin ir.Origin, t types.Type, bounds []capability.Bound) error {
	err := s.registry.CheckBounds(t, bounds)
	s.verdicts = append(s.verdicts, Verdict{Origin: origin, Type: t, Bounds: bounds, Err: err})
	return s.Report(origin, err)
}

// Project resolves the associated type `<t as capability>::name`
func (s *Session) Project(origin ir.Origin, capabilityName string, t types.Type, name string) (types.Type, error) {
	projected, err := s.registry.AssociatedType(capabilityName, s.subst.Apply(t), name)
	if err != nil {
		return nil, s.Report(origin, err)
	}
	return projected, nil
}

// CheckSignature elides the regions of sig, checks the bounds of its region
// parameters and solves constraints over them. Constraints on types see the
// types inferred by the session so far.
func (s *Session) CheckSignature(origin ir.Origin, sig region.Signature, params []region.Parameter, constraints ...region.Constraint) (*SignatureCheck, error) {
	solver := region.NewSolver(region.WithSubstitution(s.subst))
	if err := solver.Declare(params...); err != nil {
		return nil, s.Report(origin, err)
	}
	for _, p := range params {
		if err := solver.CheckBounds(p.Name, p.Bounds); err != nil {
			return nil, s.Report(origin, err)
		}
	}
	elision, err := solver.Elide(sig)
	if err != nil {
		return nil, s.Report(origin, err)
	}
	solver.Add(constraints...)
	solution, err := solver.Solve()
	if err != nil {
		return nil, s.Report(origin, err)
	}
	checked := SignatureCheck{Origin: origin, Elision: elision, Solution: solution}
	s.signatures = append(s.signatures, checked)
	s.logger.Debug("checked signature", "fn", sig.Name, "sig", checked.Function())
	return &checked, nil
}

// Instantiate evaluates args and returns the identifier of the
// instantiation of ctx they make
func (s *Session) Instantiate(origin ir.Origin, ctx *constgen.Context, args ...ConstArg) (string, error) {
	bindings := make([]constgen.Binding, 0, len(args))
	for _, arg := range args {
		v, err := s.consts.Evaluate(arg.Expr)
		if err != nil {
			return "", s.Report(origin, err)
		}
		bindings = append(bindings, constgen.Binding{Name: arg.Name, Value: v})
	}
	id, err := constgen.Monomorphize(ctx, bindings)
	if err != nil {
		return "", s.Report(origin, err)
	}
	s.instances = append(s.instances, Instance{Origin: origin, Owner: ctx.Owner, ID: id})
	return id, nil
}

// Result is everything a session found out
type Result struct {
	Session    uuid.UUID
	Bindings   []Binding
	Verdicts   []Verdict
	Signatures []SignatureCheck
	Instances  []Instance
	Errors     []Diagnostic
	Failures   []Diagnostic
}

func (r *Result) HasErrors() bool { return len(r.Errors)+len(r.Failures) > 0 }

// Finish checks the deferred bounds and reports the final types of the
// recorded bindings. A deferred bound on a type that is still not fully
// inferred fails.
func (s *Session) Finish() *Result {
	for _, o := range s.deferred {
		t := s.subst.Apply(o.t)
		if !types.IsGround(t) {
			err := ilerr.New(ilerr.NewBoundNotSatisfied{
				Type:   t.String(),
				Bound:  fmt.Sprint(o.bounds),
				Reason: "the type could not be inferred",
			})
			s.verdicts = append(s.verdicts, Verdict{Origin: o.origin, Type: t, Bounds: o.bounds, Err: err})
			_ = s.Report(o.origin, err)
			continue
		}
		_ = s.checkBounds(o.origin, t, o.bounds)
	}
	s.deferred = nil

	bindings := make([]Binding, len(s.bindings))
	for i, b := range s.bindings {
		bindings[i] = Binding{Origin: b.Origin, Name: b.Name, Type: s.subst.Apply(b.Type)}
	}
	var ileErrs *ilerr.Errors
	for _, d := range s.errors {
		if e, ok := ilerr.As(d.Err); ok {
			ileErrs = ileErrs.With(e)
		}
	}
	s.logger.Info("session finished", "bindings", len(bindings), "errors", ileErrs, "failures", len(s.failures))
	return &Result{
		Session:    s.ID,
		Bindings:   bindings,
		Verdicts:   s.verdicts,
		Signatures: s.signatures,
		Instances:  s.instances,
		Errors:     s.errors,
		Failures:   s.failures,
	}
}
