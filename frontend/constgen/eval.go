// Package constgen evaluates const-generic arguments and produces the
// mangled names of generic instantiations.
package constgen

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/rill-lang/rill/frontend/ilerr"
	"github.com/rill-lang/rill/frontend/types"
	"github.com/rill-lang/rill/internal/log"
)

var logger = slog.New(types.SlogHandler(log.DefaultLogger.Handler())).With("section", "constgen")

// Evaluator computes the value of const expressions:
// integer, boolean and double-quoted string literals combined with
// left-associative + and * (where * binds tighter) and parentheses.
//
// Results are memoized by expression text. An Evaluator is owned by one
// compilation session.
type Evaluator struct {
	cache map[string]ConstValue
}

func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string]ConstValue)}
}

// CacheLen is the number of memoized expressions
func (e *Evaluator) CacheLen() int { return len(e.cache) }

func (e *Evaluator) Evaluate(expr string) (ConstValue, error) {
	if v, ok := e.cache[expr]; ok {
		return v, nil
	}
	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &exprParser{expr: expr, toks: toks}
	v, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		return nil, p.fail("unexpected '%s'", p.toks[p.pos].text)
	}
	e.cache[expr] = v
	logger.Debug("evaluated const expression", "expr", expr, "value", v.String())
	return v, nil
}

type constTokKind uint8

const (
	ctInt constTokKind = iota
	ctString
	ctWord
	ctOp
)

type constTok struct {
	kind constTokKind
	text string
}

func lex(expr string) ([]constTok, error) {
	var toks []constTok
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c >= '0' && c <= '9':
			start := i
			for i < len(expr) && (expr[i] >= '0' && expr[i] <= '9' || expr[i] == '_') {
				i++
			}
			toks = append(toks, constTok{kind: ctInt, text: strings.ReplaceAll(expr[start:i], "_", "")})
		case c == '"':
			start := i
			i++
			for i < len(expr) && expr[i] != '"' {
				if expr[i] == '\\' {
					i++
				}
				i++
			}
			if i >= len(expr) {
				return nil, evalError(expr, "unterminated string literal")
			}
			i++
			toks = append(toks, constTok{kind: ctString, text: expr[start:i]})
		case c == '_' || unicode.IsLetter(rune(c)):
			start := i
			for i < len(expr) && (expr[i] == '_' || unicode.IsLetter(rune(expr[i])) || unicode.IsDigit(rune(expr[i]))) {
				i++
			}
			toks = append(toks, constTok{kind: ctWord, text: expr[start:i]})
		case strings.IndexByte("+*()-", c) >= 0:
			toks = append(toks, constTok{kind: ctOp, text: string(c)})
			i++
		default:
			return nil, evalError(expr, fmt.Sprintf("unexpected character '%c'", c))
		}
	}
	if len(toks) == 0 {
		return nil, evalError(expr, "empty expression")
	}
	return toks, nil
}

func evalError(expr, reason string) error {
	return ilerr.New(ilerr.NewConstEval{Expr: expr, Reason: reason})
}

type exprParser struct {
	expr string
	toks []constTok
	pos  int
}

func (p *exprParser) fail(format string, args ...any) error {
	return evalError(p.expr, fmt.Sprintf(format, args...))
}

func (p *exprParser) isOp(op string) bool {
	return p.pos < len(p.toks) && p.toks[p.pos].kind == ctOp && p.toks[p.pos].text == op
}

func (p *exprParser) parseSum() (ConstValue, error) {
	lhs, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") {
		p.pos++
		rhs, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		if lhs, err = p.add(lhs, rhs); err != nil {
			return nil, err
		}
	}
	return lhs, nil
}

func (p *exprParser) parseProduct() (ConstValue, error) {
	lhs, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") {
		p.pos++
		rhs, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		if lhs, err = p.mul(lhs, rhs); err != nil {
			return nil, err
		}
	}
	return lhs, nil
}

func (p *exprParser) parseAtom() (ConstValue, error) {
	if p.pos >= len(p.toks) {
		return nil, p.fail("operand expected at end of expression")
	}
	tok := p.toks[p.pos]
	p.pos++
	switch tok.kind {
	case ctInt:
		i, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, p.fail("integer literal %s out of range", tok.text)
		}
		return Integer(i), nil
	case ctString:
		s, err := strconv.Unquote(tok.text)
		if err != nil {
			return nil, p.fail("bad string literal %s", tok.text)
		}
		return String(s), nil
	case ctWord:
		switch tok.text {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
		return nil, p.fail("unknown name '%s'", tok.text)
	}
	switch tok.text {
	case "(":
		v, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if !p.isOp(")") {
			return nil, p.fail("missing ')'")
		}
		p.pos++
		return v, nil
	case "-":
		v, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		i, ok := v.(Integer)
		if !ok {
			return nil, p.operandMismatch("-", v, v)
		}
		if i == math.MinInt64 {
			return nil, p.fail("integer overflow")
		}
		return -i, nil
	}
	return nil, p.fail("operand expected but found '%s'", tok.text)
}

func (p *exprParser) operandMismatch(op string, lhs, rhs ConstValue) error {
	return ilerr.New(ilerr.NewTypeMismatch{
		Expected: "integer operands",
		Found:    lhs.Kind().String() + " " + op + " " + rhs.Kind().String(),
		Context:  "const expression '" + p.expr + "'",
	})
}

func (p *exprParser) add(lhs, rhs ConstValue) (ConstValue, error) {
	switch l := lhs.(type) {
	case Integer:
		if r, ok := rhs.(Integer); ok {
			sum := l + r
			if (r > 0 && sum < l) || (r < 0 && sum > l) {
				return nil, p.fail("integer overflow")
			}
			return sum, nil
		}
	case String:
		if r, ok := rhs.(String); ok {
			return l + r, nil
		}
	}
	return nil, p.operandMismatch("+", lhs, rhs)
}

func (p *exprParser) mul(lhs, rhs ConstValue) (ConstValue, error) {
	l, lok := lhs.(Integer)
	r, rok := rhs.(Integer)
	if !lok || !rok {
		return nil, p.operandMismatch("*", lhs, rhs)
	}
	if l == 0 || r == 0 {
		return Integer(0), nil
	}
	product := l * r
	if product/r != l || (l == -1 && r == math.MinInt64) || (r == -1 && l == math.MinInt64) {
		return nil, p.fail("integer overflow")
	}
	return product, nil
}
