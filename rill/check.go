package rill

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/rill-lang/rill/frontend/alias"
	"github.com/rill-lang/rill/frontend/capability"
	"github.com/rill-lang/rill/frontend/check"
	"github.com/rill-lang/rill/frontend/constgen"
	"github.com/rill-lang/rill/frontend/ilerr"
	"github.com/rill-lang/rill/frontend/ir"
	"github.com/rill-lang/rill/frontend/region"
	"github.com/rill-lang/rill/frontend/types"
	"github.com/rill-lang/rill/util"
)

// Declarations is what a manifest declares, shared by all of its units
type Declarations struct {
	Registry *capability.Registry
	Aliases  *alias.Normalizer
	// Consts maps owners to their const parameters
	Consts map[string]*constgen.Context
}

// Report is the outcome of checking a manifest
type Report struct {
	manifest *Manifest
	// Declarations are the diagnostics of declarations that could not be registered
	Declarations []check.Diagnostic
	Units        []UnitReport
}

type UnitReport struct {
	Name string
	*check.Result
}

func (r *Report) HasErrors() bool {
	if len(r.Declarations) > 0 {
		return true
	}
	return slices.ContainsFunc(r.Units, func(u UnitReport) bool { return u.HasErrors() })
}

// Diagnostics lists every diagnostic of the report, declarations first
func (r *Report) Diagnostics() []check.Diagnostic {
	all := slices.Clone(r.Declarations)
	for _, u := range r.Units {
		all = append(all, u.Errors...)
		all = append(all, u.Failures...)
	}
	return all
}

// Format renders d with its position in the manifest
func (r *Report) Format(d check.Diagnostic) string {
	msg := d.Err.Error()
	if ileErr, ok := ilerr.As(d.Err); ok {
		msg = ilerr.FormatWithCode(ileErr)
	}
	return fmt.Sprintf("%s: %s: %s", r.manifest.Locate(d.Origin), d.Origin.Construct, msg)
}

// Locate renders where o was written as file:line:col, or just the
// manifest path when o carries no position
func (m *Manifest) Locate(o ir.Origin) string {
	if pos, ok := o.Position(m.fset); ok {
		return pos.String()
	}
	return m.path
}

func (m *Manifest) origin(line, column int, construct string) ir.Origin {
	pos := m.pos(line, column)
	return ir.Origin{Range: ir.Range{PosStart: pos, PosEnd: pos}, Construct: construct}
}

// Check registers the declarations of m and checks each of its units in
// its own session. Declarations that fail to register are reported and
// left out.
func Check(m *Manifest) *Report {
	decls, diagnostics := Declare(m)
	report := &Report{manifest: m, Declarations: diagnostics}
	for _, u := range m.Units {
		report.Units = append(report.Units, UnitReport{Name: u.Name, Result: decls.checkUnit(m, u)})
	}
	return report
}

// Declare registers the aliases, capabilities, const items and
// implementations of m, in that order
func Declare(m *Manifest) (*Declarations, []check.Diagnostic) {
	d := &Declarations{
		Registry: capability.NewRegistry(),
		Aliases:  alias.NewNormalizer(),
		Consts:   make(map[string]*constgen.Context),
	}
	var diagnostics []check.Diagnostic
	fail := func(origin ir.Origin, err error) {
		diagnostics = append(diagnostics, check.Diagnostic{Origin: origin, Err: err})
	}

	for _, a := range m.Aliases {
		origin := m.origin(a.Line, a.Column, "alias "+a.Value.Name)
		err := d.Aliases.Register(alias.TypeAlias{Name: a.Value.Name, Params: a.Value.Params, Target: a.Value.Target})
		if err != nil {
			fail(origin, err)
		}
	}
	for _, c := range m.Capabilities {
		origin := m.origin(c.Line, c.Column, "capability "+c.Value.Name)
		declared, err := d.capability(c.Value)
		if err == nil {
			err = d.Registry.RegisterCapability(declared)
		}
		if err != nil {
			fail(origin, err)
		}
	}
	evaluator := constgen.NewEvaluator()
	for _, c := range m.Consts {
		origin := m.origin(c.Line, c.Column, "const "+c.Value.Owner)
		ctx, err := d.constContext(evaluator, c.Value)
		if err != nil {
			fail(origin, err)
			continue
		}
		d.Consts[ctx.Owner] = ctx
	}
	for _, impl := range m.Implementations {
		origin := m.origin(impl.Line, impl.Column, "impl "+impl.Value.Capability+" for "+impl.Value.Type)
		declared, err := d.implementation(impl.Value)
		if err == nil {
			err = d.Registry.RegisterImplementation(declared)
		}
		if err != nil {
			fail(origin, err)
		}
	}
	manifestLogger.Info("registered declarations", "manifest", m.path,
		"generation", d.Registry.Generation(), "failed", len(diagnostics))
	return d, diagnostics
}

func (d *Declarations) expandAll(texts []string) ([]types.Type, error) {
	ts := make([]types.Type, len(texts))
	for i, text := range texts {
		t, err := d.Aliases.ExpandType(text)
		if err != nil {
			return nil, err
		}
		ts[i] = t
	}
	return ts, nil
}

func (d *Declarations) bounds(texts []string) ([]capability.Bound, error) {
	bounds := make([]capability.Bound, len(texts))
	for i, text := range texts {
		b, err := parseBound(d.Aliases, text)
		if err != nil {
			return nil, err
		}
		bounds[i] = b
	}
	return bounds, nil
}

// parseBound reads a bound as written after `T:`, like `Display`,
// `Into<i32>`, `for<'a> Fn<&'a u8>` or `'a`
func parseBound(aliases *alias.Normalizer, text string) (capability.Bound, error) {
	text = strings.TrimSpace(text)
	if isRegion(text) {
		return capability.Bound{Kind: capability.RegionBound, Region: types.Region(text)}, nil
	}
	var quantified []types.Region
	if rest, ok := strings.CutPrefix(text, "for<"); ok {
		regions, body := util.StringTakeUntil(rest, '>')
		for _, r := range util.SplitTopLevel(regions, ',') {
			quantified = append(quantified, types.Region(r))
		}
		text = strings.TrimSpace(body)
	}
	t, err := aliases.ExpandType(text)
	if err != nil {
		return capability.Bound{}, err
	}
	named, ok := t.(types.Named)
	if !ok {
		return capability.Bound{}, ilerr.New(ilerr.NewMalformedType{Text: text, Reason: "a bound must name a capability"})
	}
	b := capability.SimpleBound(named.Name)
	if len(named.Args) > 0 {
		b = capability.ParameterizedBound(named.Name, named.Args...)
	}
	if len(quantified) > 0 {
		b.Kind = capability.HigherRanked
		b.Quantified = quantified
	}
	return b, nil
}

func (d *Declarations) capability(decl CapabilityDecl) (*capability.Capability, error) {
	c := &capability.Capability{
		Name:            decl.Name,
		AssociatedTypes: decl.Associated,
		Supertraits:     decl.Supertraits,
	}
	for _, p := range decl.Params {
		variance, ok := types.ParseVariance(p.Variance)
		if !ok {
			return nil, errors.Errorf("parameter %s: unknown variance %q", p.Name, p.Variance)
		}
		bounds, err := d.bounds(p.Bounds)
		if err != nil {
			return nil, errors.Wrapf(err, "parameter %s", p.Name)
		}
		param := capability.Param{Name: p.Name, Variance: variance, Bounds: bounds}
		if p.Default != "" {
			if param.Default, err = d.Aliases.ExpandType(p.Default); err != nil {
				return nil, err
			}
		}
		c.Params = append(c.Params, param)
	}
	if len(decl.Methods) > 0 {
		c.Methods = make(map[string]types.Function, len(decl.Methods))
	}
	for name, text := range decl.Methods {
		t, err := d.Aliases.ExpandType(text)
		if err != nil {
			return nil, err
		}
		fn, ok := t.(types.Function)
		if !ok {
			return nil, ilerr.New(ilerr.NewMalformedType{Text: text, Reason: "method " + name + " must have a function type"})
		}
		c.Methods[name] = fn
	}
	return c, nil
}

func (d *Declarations) implementation(decl ImplDecl) (*capability.Implementation, error) {
	t, err := d.Aliases.ExpandType(decl.Type)
	if err != nil {
		return nil, err
	}
	args, err := d.expandAll(decl.Args)
	if err != nil {
		return nil, err
	}
	impl := &capability.Implementation{Capability: decl.Capability, Type: t, Args: args}
	for _, w := range decl.Where {
		wt, err := d.Aliases.ExpandType(w.Type)
		if err != nil {
			return nil, err
		}
		bounds, err := d.bounds(w.Bounds)
		if err != nil {
			return nil, err
		}
		impl.Where = append(impl.Where, capability.WhereClause{Type: wt, Bounds: bounds})
	}
	if len(decl.Associated) > 0 {
		impl.AssociatedTypes = make(map[string]types.Type, len(decl.Associated))
	}
	for name, text := range decl.Associated {
		at, err := d.Aliases.ExpandType(text)
		if err != nil {
			return nil, err
		}
		impl.AssociatedTypes[name] = at
	}
	return impl, nil
}

// constContext declares the const parameters of an item. Defaults are
// evaluated and checked against the parameter types.
func (d *Declarations) constContext(evaluator *constgen.Evaluator, decl ConstDecl) (*constgen.Context, error) {
	params := make([]constgen.Param, len(decl.Params))
	for i, p := range decl.Params {
		t, err := d.Aliases.ExpandType(p.Type)
		if err != nil {
			return nil, err
		}
		params[i] = constgen.Param{Name: p.Name, Type: t}
	}
	probe := constgen.NewContext(decl.Owner, params...)
	for i, p := range decl.Params {
		if p.Default == "" {
			continue
		}
		if err := constgen.BindExpr(evaluator, probe, p.Name, p.Default); err != nil {
			return nil, err
		}
		params[i].Default = probe.Values[p.Name]
	}
	return constgen.NewContext(decl.Owner, params...), nil
}

// unit runs the steps of one unit in a session
type unit struct {
	decls    *Declarations
	session  *check.Session
	bindings map[string]types.Type
}

func (d *Declarations) checkUnit(m *Manifest, decl UnitDecl) *check.Result {
	u := &unit{
		decls:    d,
		session:  check.NewSession(d.Registry, d.Aliases),
		bindings: make(map[string]types.Type),
	}
	for _, step := range decl.Steps {
		origin := m.origin(step.Line, step.Column, decl.Name+": "+describe(&step.Value))
		u.run(origin, &step.Value)
	}
	return u.session.Finish()
}

func describe(s *Step) string {
	switch s.Kind() {
	case "let":
		return "let " + s.Let + ": " + s.Type
	case "unify":
		return "unify " + strings.Join(s.Unify, " = ")
	case "require":
		return s.Require + ": " + strings.Join(s.Bounds, " + ")
	case "project":
		return "<" + s.Project + " as " + s.Capability + ">::" + s.Item
	case "signature":
		return "fn " + s.Signature
	case "instantiate":
		return "instantiate " + s.Instantiate
	}
	return s.Kind()
}

// term is the type of the binding named text, or else text as an annotation
func (u *unit) term(origin ir.Origin, text string) (types.Type, error) {
	if t, ok := u.bindings[strings.TrimSpace(text)]; ok {
		return t, nil
	}
	return u.session.Annotate(origin, text)
}

func (u *unit) terms(origin ir.Origin, texts []string) ([]types.Type, error) {
	ts := make([]types.Type, len(texts))
	for i, text := range texts {
		t, err := u.term(origin, text)
		if err != nil {
			return nil, err
		}
		ts[i] = t
	}
	return ts, nil
}

func (u *unit) bind(origin ir.Origin, name string, t types.Type) {
	u.session.Record(origin, name, t)
	u.bindings[name] = t
}

// run makes the request of s. Every error is recorded by the session, so
// it is dropped here.
func (u *unit) run(origin ir.Origin, s *Step) {
	switch s.Kind() {
	case "let":
		if t, err := u.term(origin, s.Type); err == nil {
			u.bind(origin, s.Let, t)
		}
	case "unify":
		sides, err := u.terms(origin, s.Unify)
		if err != nil {
			return
		}
		_ = u.session.Unify(origin, sides[0], sides[1])
	case "require":
		t, err := u.term(origin, s.Require)
		if err != nil {
			return
		}
		bounds, err := u.decls.bounds(s.Bounds)
		if err != nil {
			_ = u.session.Report(origin, err)
			return
		}
		_ = u.session.RequireBounds(origin, t, bounds...)
	case "project":
		t, err := u.term(origin, s.Project)
		if err != nil {
			return
		}
		projected, err := u.session.Project(origin, s.Capability, t, s.Item)
		if err == nil && s.As != "" {
			u.bind(origin, s.As, projected)
		}
	case "signature":
		u.signature(origin, s)
	case "instantiate":
		ctx, ok := u.decls.Consts[s.Instantiate]
		if !ok {
			_ = u.session.Report(origin, errors.Errorf("%s has no const parameters declared", s.Instantiate))
			return
		}
		var args []check.ConstArg
		for _, name := range slices.Sorted(maps.Keys(s.Args)) {
			args = append(args, check.ConstArg{Name: name, Expr: s.Args[name]})
		}
		_, _ = u.session.Instantiate(origin, ctx, args...)
	}
}

func (u *unit) signature(origin ir.Origin, s *Step) {
	sig := region.Signature{Name: s.Signature}
	var err error
	if s.Receiver != "" {
		if sig.Receiver, err = u.term(origin, s.Receiver); err != nil {
			return
		}
	}
	if sig.Params, err = u.terms(origin, s.Params); err != nil {
		return
	}
	if s.Ret != "" {
		if sig.Ret, err = u.term(origin, s.Ret); err != nil {
			return
		}
	}
	params := make([]region.Parameter, len(s.Regions))
	for i, r := range s.Regions {
		params[i] = region.Parameter{Name: types.Region(r.Name)}
		for _, b := range r.Bounds {
			params[i].Bounds = append(params[i].Bounds, types.Region(b))
		}
	}
	var constraints []region.Constraint
	for _, text := range s.Constraints {
		// validated when the manifest was parsed
		c, _ := parseConstraint(text)
		switch {
		case c.equal:
			constraints = append(constraints, region.Equal{A: types.Region(c.lhs), B: types.Region(c.rhs)})
		case c.onType:
			t, err := u.term(origin, c.lhs)
			if err != nil {
				return
			}
			constraints = append(constraints, region.OutlivesType{Region: types.Region(c.rhs), Type: t})
		default:
			constraints = append(constraints, region.Outlives{Longer: types.Region(c.lhs), Shorter: types.Region(c.rhs)})
		}
	}
	_, _ = u.session.CheckSignature(origin, sig, params, constraints...)
}
