// Package alias expands type aliases, generic or not, into the structural
// types that unification works on.
package alias

import (
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"github.com/rill-lang/rill/frontend/ilerr"
	"github.com/rill-lang/rill/frontend/types"
	"github.com/rill-lang/rill/internal/log"
	"github.com/rill-lang/rill/util"
)

// DefaultMaxDepth bounds how many aliases may be expanded while resolving a single reference
const DefaultMaxDepth = 32

var logger = slog.New(types.SlogHandler(log.DefaultLogger.Handler())).With("section", "alias")

// TypeAlias is a declared alias, like `type Pair<T> = (T, T)`.
// Target is kept as written; it is only parsed once generics are substituted.
type TypeAlias struct {
	Name   string
	Params []string
	Target string
}

func (a TypeAlias) IsGeneric() bool { return len(a.Params) > 0 }

type cacheEntry struct {
	t   types.Type
	err error
}

// Normalizer holds the alias declarations of a program.
//
// Aliases are registered during declaration collection; after that the
// Normalizer is only read, apart from its resolution cache. The cache
// remembers failures too, so a bad alias is diagnosed once.
type Normalizer struct {
	aliases  map[string]TypeAlias
	cache    map[string]cacheEntry
	maxDepth int
}

type Option func(*Normalizer)

// WithMaxDepth changes the recursion limit from DefaultMaxDepth
func WithMaxDepth(depth int) Option {
	return func(n *Normalizer) {
		n.maxDepth = depth
	}
}

func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		aliases:  make(map[string]TypeAlias),
		cache:    make(map[string]cacheEntry),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Register declares alias. Names must be unique, the target must be
// non-empty, and an alias may not name itself in its own target.
//
// Registering clears the resolution cache.
func (n *Normalizer) Register(alias TypeAlias) error {
	alias.Name = strings.TrimSpace(alias.Name)
	alias.Target = strings.TrimSpace(alias.Target)
	switch {
	case alias.Name == "":
		return ilerr.New(ilerr.NewInvalidAlias{Name: alias.Name, Reason: "alias name is empty"})
	case alias.Target == "":
		return ilerr.New(ilerr.NewInvalidAlias{Name: alias.Name, Reason: "alias target is empty"})
	}
	if _, exists := n.aliases[alias.Name]; exists {
		return ilerr.New(ilerr.NewInvalidAlias{Name: alias.Name, Reason: "alias is already defined"})
	}
	if mentions(alias.Target, alias.Name) {
		return ilerr.New(ilerr.NewCyclicAlias{Name: alias.Name})
	}
	n.aliases[alias.Name] = alias
	clear(n.cache)
	logger.Debug("registered alias", "name", alias.Name, "params", alias.Params, "target", alias.Target)
	return nil
}

func (n *Normalizer) Lookup(name string) (TypeAlias, bool) {
	a, ok := n.aliases[name]
	return a, ok
}

// CacheLen is the number of remembered resolutions, successful or not.
// Resolve, ResolveWithGenerics and ExpandType keep separate entries.
func (n *Normalizer) CacheLen() int { return len(n.cache) }

// Resolve expands the alias called name, following chains of aliases until a
// type that is not an alias is reached.
func (n *Normalizer) Resolve(name string) (types.Type, error) {
	return n.cached("resolve:"+name, func() (types.Type, error) {
		return n.resolve(name, nil)
	})
}

// ResolveWithGenerics expands the generic alias name applied to args.
// Each argument is written in type syntax and replaces its parameter
// wherever the parameter appears as a whole word in the alias target.
func (n *Normalizer) ResolveWithGenerics(name string, args []string) (types.Type, error) {
	key := "generic:" + name + "<" + strings.Join(args, ", ") + ">"
	return n.cached(key, func() (types.Type, error) {
		return n.resolveWithGenerics(name, args, nil)
	})
}

// ExpandType normalizes a type written in surface syntax. A generic
// application `Name<A, B>` of an alias goes through ResolveWithGenerics, a
// bare alias name through Resolve, and anything else is parsed with every
// alias inside it expanded.
func (n *Normalizer) ExpandType(text string) (types.Type, error) {
	text = strings.TrimSpace(text)
	return n.cached("expand:"+text, func() (types.Type, error) {
		return n.expand(text, nil)
	})
}

func (n *Normalizer) cached(key string, resolve func() (types.Type, error)) (types.Type, error) {
	if entry, ok := n.cache[key]; ok {
		return entry.t, entry.err
	}
	t, err := resolve()
	n.cache[key] = cacheEntry{t: t, err: err}
	if err != nil {
		logger.Debug("alias resolution failed", "ref", key, "err", err)
	}
	return t, err
}

func (n *Normalizer) checkDepth(name string, chain []string) error {
	if len(chain) >= n.maxDepth {
		top := name
		if len(chain) > 0 {
			top = chain[0]
		}
		return ilerr.New(ilerr.NewRecursionDepthExceeded{
			Name:  top,
			Limit: n.maxDepth,
			Chain: append(slices.Clone(chain), name),
		})
	}
	return nil
}

func (n *Normalizer) resolve(name string, chain []string) (types.Type, error) {
	alias, ok := n.aliases[name]
	if !ok {
		return nil, ilerr.New(ilerr.NewAliasNotFound{Name: name})
	}
	if alias.IsGeneric() {
		return nil, ilerr.New(ilerr.NewTypeMismatch{
			Expected: genericArity(alias),
			Found:    name,
			Context:  "use of generic alias without arguments",
		})
	}
	if err := n.checkDepth(name, chain); err != nil {
		return nil, err
	}
	return n.expand(alias.Target, append(chain[:len(chain):len(chain)], name))
}

func (n *Normalizer) resolveWithGenerics(name string, args []string, chain []string) (types.Type, error) {
	alias, ok := n.aliases[name]
	if !ok {
		return nil, ilerr.New(ilerr.NewAliasNotFound{Name: name})
	}
	if len(args) != len(alias.Params) {
		return nil, ilerr.New(ilerr.NewTypeMismatch{
			Expected: genericArity(alias),
			Found:    name + "<" + strings.Join(args, ", ") + ">",
			Context:  "generic alias arguments",
		})
	}
	if err := n.checkDepth(name, chain); err != nil {
		return nil, err
	}
	target := alias.Target
	if len(args) > 0 {
		target = substitute(target, alias.Params, args)
	}
	return n.expand(target, append(chain[:len(chain):len(chain)], name))
}

// expand parses text and replaces every alias reference inside it
func (n *Normalizer) expand(text string, chain []string) (types.Type, error) {
	if head, args, ok := splitApplication(text); ok {
		if _, isAlias := n.aliases[head]; isAlias {
			return n.resolveWithGenerics(head, args, chain)
		}
	}
	if _, isAlias := n.aliases[text]; isAlias {
		return n.resolve(text, chain)
	}
	parsed, err := types.ParseType(text)
	if err != nil {
		return nil, err
	}
	var expandErr error
	expanded := types.Rewrite(parsed, func(t types.Type) (types.Type, bool) {
		named, ok := t.(types.Named)
		if !ok || expandErr != nil {
			return nil, false
		}
		if _, isAlias := n.aliases[named.Name]; !isAlias {
			// arguments of a nominal type are still rewritten
			return nil, false
		}
		var resolved types.Type
		var err error
		if named.IsApplied() {
			// region arguments count against the alias parameters, as they do
			// when the application is written at the top level
			args := make([]string, 0, len(named.Regions)+len(named.Args))
			for _, r := range named.Regions {
				args = append(args, string(r))
			}
			for _, arg := range named.Args {
				args = append(args, arg.String())
			}
			resolved, err = n.resolveWithGenerics(named.Name, args, chain)
		} else {
			resolved, err = n.resolve(named.Name, chain)
		}
		if err != nil {
			expandErr = err
			return named, true
		}
		return resolved, true
	})
	if expandErr != nil {
		return nil, expandErr
	}
	return expanded, nil
}

func genericArity(alias TypeAlias) string {
	return alias.Name + "<" + strings.Join(alias.Params, ", ") + ">"
}

// splitApplication splits `Name<A, B<C, D>>` into Name and [A, B<C, D>]
func splitApplication(text string) (head string, args []string, ok bool) {
	open := strings.IndexByte(text, '<')
	if open <= 0 || !strings.HasSuffix(text, ">") {
		return "", nil, false
	}
	head = strings.TrimSpace(text[:open])
	if !isIdent(head) {
		return "", nil, false
	}
	inner := strings.TrimSpace(text[open+1 : len(text)-1])
	if inner == "" {
		return head, nil, true
	}
	return head, util.SplitTopLevel(inner, ','), true
}

func isIdent(s string) bool {
	for i, r := range s {
		if !(r == '_' || r == ':' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r))) {
			return false
		}
	}
	return s != ""
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// substitute replaces whole-word occurrences of params[i] in text with args[i].
// Replacement text is not rescanned, so an argument may mention a parameter name.
func substitute(text string, params, args []string) string {
	replacements := make(map[string]string, len(params))
	for i, param := range params {
		replacements[param] = args[i]
	}
	sb := strings.Builder{}
	forEachWord(text, func(word string, ident bool) {
		if replacement, ok := replacements[word]; ok && ident {
			if isIdent(replacement) || isNumber(replacement) {
				sb.WriteString(replacement)
			} else {
				sb.WriteString("(" + replacement + ")")
			}
			return
		}
		sb.WriteString(word)
	})
	return sb.String()
}

// mentions reports whether name appears as a whole word in text
func mentions(text, name string) bool {
	found := false
	forEachWord(text, func(word string, ident bool) {
		found = found || (ident && word == name)
	})
	return found
}

// forEachWord splits text into identifier runs and everything in between.
// Region names like 'a count as non-identifiers so that a parameter called
// `a` does not capture them.
func forEachWord(text string, f func(word string, isIdent bool)) {
	runes := []rune(text)
	identRune := func(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }
	for i := 0; i < len(runes); {
		start := i
		if identRune(runes[i]) && !(i > 0 && runes[i-1] == '\'') {
			for i < len(runes) && (identRune(runes[i]) || runes[i] == ':') {
				i++
			}
			f(string(runes[start:i]), true)
			continue
		}
		for i < len(runes) && !(identRune(runes[i]) && !(i > 0 && runes[i-1] == '\'')) {
			if runes[i] == '\'' {
				// skip the region name along with its quote
				i++
				for i < len(runes) && identRune(runes[i]) {
					i++
				}
				continue
			}
			i++
		}
		f(string(runes[start:i]), false)
	}
}
