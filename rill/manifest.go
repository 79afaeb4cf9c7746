// Package rill loads declaration manifests and checks the units they
// describe with the type-checking core.
//
// A manifest is a YAML file that declares capabilities, implementations,
// type aliases and const-generic items, followed by units. A unit is a list
// of steps checked in one session, in order:
//
//	units:
//	  - name: main
//	    steps:
//	      - let: xs
//	        type: Vec<_>
//	      - unify: [xs, Vec<i32>]
//	      - require: xs
//	        bounds: [Display]
package rill

import (
	"fmt"
	"go/token"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rill-lang/rill/internal/log"
	"github.com/rill-lang/rill/util"
	"gopkg.in/yaml.v3"
)

var manifestLogger = log.Section("manifest")

// Located is a manifest entry together with where it was written
type Located[T any] struct {
	Value        T
	Line, Column int
}

func (l *Located[T]) UnmarshalYAML(node *yaml.Node) error {
	l.Line, l.Column = node.Line, node.Column
	return node.Decode(&l.Value)
}

// Manifest is the top-level structure of a manifest file
type Manifest struct {
	Capabilities    []Located[CapabilityDecl] `yaml:"capabilities"`
	Implementations []Located[ImplDecl]       `yaml:"impls"`
	Aliases         []Located[AliasDecl]      `yaml:"aliases"`
	Consts          []Located[ConstDecl]      `yaml:"consts"`
	Units           []UnitDecl                `yaml:"units"`

	path string
	file *token.File
	fset *token.FileSet
}

type CapabilityDecl struct {
	Name string `yaml:"name"`
	// Params are the generic parameters after Self
	Params      []ParamDecl `yaml:"params,omitempty"`
	Associated  []string    `yaml:"associated,omitempty"`
	Supertraits []string    `yaml:"supertraits,omitempty"`
	// Methods maps method names to function types, like `fn(&Self) -> u8`
	Methods map[string]string `yaml:"methods,omitempty"`
}

type ParamDecl struct {
	Name string `yaml:"name"`
	// Variance is one of covariant, contravariant, invariant or bivariant
	Variance string   `yaml:"variance,omitempty"`
	Bounds   []string `yaml:"bounds,omitempty"`
	Default  string   `yaml:"default,omitempty"`
}

// ImplDecl declares an implementation. Its generics are written as
// variables, so `impl<T: Display> Display for Vec<T>` is
//
//	capability: Display
//	type: Vec<?0>
//	where:
//	  - type: ?0
//	    bounds: [Display]
type ImplDecl struct {
	Capability string            `yaml:"capability"`
	Type       string            `yaml:"type"`
	Args       []string          `yaml:"args,omitempty"`
	Where      []WhereDecl       `yaml:"where,omitempty"`
	Associated map[string]string `yaml:"associated,omitempty"`
}

type WhereDecl struct {
	Type   string   `yaml:"type"`
	Bounds []string `yaml:"bounds"`
}

type AliasDecl struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params,omitempty"`
	Target string   `yaml:"target"`
}

// ConstDecl declares the const parameters of a generic item
type ConstDecl struct {
	Owner  string           `yaml:"owner"`
	Params []ConstParamDecl `yaml:"params"`
}

type ConstParamDecl struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	// Default is a const expression
	Default string `yaml:"default,omitempty"`
}

type UnitDecl struct {
	Name  string          `yaml:"name"`
	Steps []Located[Step] `yaml:"steps"`
}

// Step is one request of a unit. Exactly one of Let, Unify, Require,
// Project, Signature or Instantiate is set; the other fields qualify it.
//
// Wherever a step takes a type, the name of a binding made by an earlier
// let step stands for the type of that binding.
type Step struct {
	// Let binds a name to Type
	Let  string `yaml:"let,omitempty"`
	Type string `yaml:"type,omitempty"`

	Unify []string `yaml:"unify,omitempty"`

	// Require checks Bounds on a type
	Require string   `yaml:"require,omitempty"`
	Bounds  []string `yaml:"bounds,omitempty"`

	// Project resolves the associated type Item of Capability for a type,
	// and binds it to As when As is set
	Project    string `yaml:"project,omitempty"`
	Capability string `yaml:"capability,omitempty"`
	Item       string `yaml:"item,omitempty"`
	As         string `yaml:"as,omitempty"`

	// Signature names a function whose signature is checked
	Signature   string       `yaml:"signature,omitempty"`
	Receiver    string       `yaml:"receiver,omitempty"`
	Params      []string     `yaml:"params,omitempty"`
	Ret         string       `yaml:"ret,omitempty"`
	Regions     []RegionDecl `yaml:"regions,omitempty"`
	Constraints []string     `yaml:"constraints,omitempty"`

	// Instantiate names a declared const-generic item; Args are const expressions
	Instantiate string            `yaml:"instantiate,omitempty"`
	Args        map[string]string `yaml:"args,omitempty"`
}

type RegionDecl struct {
	Name   string   `yaml:"name"`
	Bounds []string `yaml:"bounds,omitempty"`
}

// Kind is the name of the request the step makes
func (s *Step) Kind() string {
	var kinds []string
	for _, k := range []struct {
		name string
		set  bool
	}{
		{"let", s.Let != ""},
		{"unify", len(s.Unify) > 0},
		{"require", s.Require != ""},
		{"project", s.Project != ""},
		{"signature", s.Signature != ""},
		{"instantiate", s.Instantiate != ""},
	} {
		if k.set {
			kinds = append(kinds, k.name)
		}
	}
	return strings.Join(kinds, "+")
}

// LoadManifest reads and parses the manifest at path
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest %s", path)
	}
	return ParseManifest(data, path)
}

// ParseManifest parses manifest content. path is used for positions in
// diagnostics only.
func ParseManifest(data []byte, path string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "parsing manifest %s", path)
	}
	if err := m.validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid manifest %s", path)
	}
	m.path = path
	m.fset = token.NewFileSet()
	m.file = m.fset.AddFile(path, -1, len(data))
	m.file.SetLinesForContent(data)
	manifestLogger.Debug("parsed manifest", "path", path,
		"capabilities", len(m.Capabilities), "impls", len(m.Implementations), "units", len(m.Units))
	return &m, nil
}

func (m *Manifest) Path() string { return m.path }

func (m *Manifest) pos(line, column int) token.Pos {
	if m.file == nil || line < 1 || line > m.file.LineCount() {
		return token.NoPos
	}
	return m.file.LineStart(line) + token.Pos(column-1)
}

func (m *Manifest) validate() error {
	var errs []error
	fail := func(line int, format string, args ...any) {
		errs = append(errs, fmt.Errorf("line %d: %s", line, fmt.Sprintf(format, args...)))
	}
	for _, c := range m.Capabilities {
		if c.Value.Name == "" {
			fail(c.Line, "capability without a name")
		}
	}
	for _, impl := range m.Implementations {
		if impl.Value.Capability == "" || impl.Value.Type == "" {
			fail(impl.Line, "impl needs both a capability and a type")
		}
	}
	owners := util.NewEmptySet[string]()
	for _, c := range m.Consts {
		if c.Value.Owner == "" {
			fail(c.Line, "const declaration without an owner")
		}
		owners.Add(c.Value.Owner)
	}
	units := util.NewEmptySet[string]()
	for _, u := range m.Units {
		if units.Contains(u.Name) {
			errs = append(errs, fmt.Errorf("unit %q: declared twice", u.Name))
		}
		units.Add(u.Name)
		for _, step := range u.Steps {
			s := step.Value
			switch kind := s.Kind(); kind {
			case "":
				fail(step.Line, "unit %s: step makes no request", u.Name)
			case "let":
				if s.Type == "" {
					fail(step.Line, "let %s has no type", s.Let)
				}
			case "unify":
				if len(s.Unify) != 2 {
					fail(step.Line, "unify takes 2 types, got %d", len(s.Unify))
				}
			case "project":
				if s.Capability == "" || s.Item == "" {
					fail(step.Line, "project needs a capability and an item")
				}
			case "signature":
				for _, c := range s.Constraints {
					if _, err := parseConstraint(c); err != nil {
						fail(step.Line, "%v", err)
					}
				}
			case "instantiate":
				if !owners.Contains(s.Instantiate) {
					fail(step.Line, "instantiate %s: no const declaration for it", s.Instantiate)
				}
			case "require":
			default:
				fail(step.Line, "step makes several requests: %s", kind)
			}
		}
	}
	if len(errs) > 0 {
		return errors.New(util.JoinErrorsWith("\n  ", errs, ""))
	}
	return nil
}

// constraintDecl is a region constraint as written: `'a: 'b` (outlives),
// `'a == 'b` (equal) or `T: 'a` (every region of T outlives 'a)
type constraintDecl struct {
	lhs, rhs string
	equal    bool
	onType   bool
}

func parseConstraint(text string) (constraintDecl, error) {
	if lhs, rhs, ok := strings.Cut(text, "=="); ok {
		c := constraintDecl{lhs: strings.TrimSpace(lhs), rhs: strings.TrimSpace(rhs), equal: true}
		if !isRegion(c.lhs) || !isRegion(c.rhs) {
			return c, errors.Errorf("constraint %q: both sides of == must be regions", text)
		}
		return c, nil
	}
	i := strings.LastIndex(text, ":")
	if i < 0 {
		return constraintDecl{}, errors.Errorf("constraint %q: expected `a: b` or `a == b`", text)
	}
	c := constraintDecl{lhs: strings.TrimSpace(text[:i]), rhs: strings.TrimSpace(text[i+1:])}
	if !isRegion(c.rhs) {
		return c, errors.Errorf("constraint %q: the right side must be a region", text)
	}
	c.onType = !isRegion(c.lhs)
	return c, nil
}

func isRegion(s string) bool {
	return strings.HasPrefix(s, "'") && len(s) > 1 && !strings.ContainsAny(s, " \t,<>()&")
}
