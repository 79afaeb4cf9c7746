package types

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/rill-lang/rill/frontend/ilerr"
)

// ParseType reads a type written in surface syntax:
//
//	i32  (A, B)  (A,)  ()  [T; 4]  &T  &'a mut T  *const T  *mut T
//	fn(A, B) -> R  ?3  Name  Name<A, 'a>  path::Name
//
// Generic applications are kept as Named types with their arguments in
// canonical form, so that "Vec< i32 >" and "Vec<i32>" are the same type.
func ParseType(text string) (Type, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &typeParser{text: text, toks: toks}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, p.errorf("unexpected '%s' after type", p.peek().text)
	}
	return t, nil
}

// MustParseType is ParseType for types known to be well-formed, like the ones
// written in tests. It panics on malformed input.
func MustParseType(text string) Type {
	t, err := ParseType(text)
	if err != nil {
		panic(err)
	}
	return t
}

type tokenKind uint8

const (
	tokIdent tokenKind = iota
	tokRegion
	tokNumber
	tokVar
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(text string) ([]token, error) {
	var toks []token
	runes := []rune(text)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(runes) && (runes[i] == '_' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) ||
				(runes[i] == ':' && i+1 < len(runes) && runes[i+1] == ':')) {
				if runes[i] == ':' {
					i++
				}
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: string(runes[start:i])})
		case r == '\'':
			start := i
			i++
			for i < len(runes) && (runes[i] == '_' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			if i == start+1 {
				return nil, malformed(text, "region name expected after '")
			}
			toks = append(toks, token{kind: tokRegion, text: string(runes[start:i])})
		case unicode.IsDigit(r):
			start := i
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: string(runes[start:i])})
		case r == '?':
			start := i
			i++
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
			}
			if i == start+1 {
				return nil, malformed(text, "variable number expected after ?")
			}
			toks = append(toks, token{kind: tokVar, text: string(runes[start+1 : i])})
		case r == '-' && i+1 < len(runes) && runes[i+1] == '>':
			toks = append(toks, token{kind: tokPunct, text: "->"})
			i += 2
		case strings.ContainsRune("()[];,&*<>!", r):
			toks = append(toks, token{kind: tokPunct, text: string(r)})
			i++
		default:
			return nil, malformed(text, fmt.Sprintf("unexpected character '%c'", r))
		}
	}
	return toks, nil
}

// regionNamed reads a region token; the anonymous region '_ is elided
func regionNamed(text string) Region {
	if text == "'_" {
		return Elided
	}
	return Region(text)
}

func malformed(text, reason string) error {
	return ilerr.New(ilerr.NewMalformedType{Text: text, Reason: reason})
}

type typeParser struct {
	text string
	toks []token
	pos  int
}

func (p *typeParser) done() bool { return p.pos >= len(p.toks) }

func (p *typeParser) peek() token {
	if p.done() {
		return token{kind: tokPunct, text: "<end>"}
	}
	return p.toks[p.pos]
}

func (p *typeParser) next() token {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *typeParser) isPunct(text string) bool {
	tok := p.peek()
	return !p.done() && tok.kind == tokPunct && tok.text == text
}

func (p *typeParser) isKeyword(text string) bool {
	tok := p.peek()
	return !p.done() && tok.kind == tokIdent && tok.text == text
}

func (p *typeParser) expect(text string) error {
	if !p.isPunct(text) {
		return p.errorf("expected '%s' but found '%s'", text, p.peek().text)
	}
	p.pos++
	return nil
}

func (p *typeParser) errorf(format string, args ...any) error {
	return malformed(p.text, fmt.Sprintf(format, args...))
}

func (p *typeParser) parseType() (Type, error) {
	tok := p.peek()
	if p.done() {
		return nil, p.errorf("type expected")
	}
	switch tok.kind {
	case tokVar:
		p.next()
		id, err := strconv.ParseUint(tok.text, 10, 64)
		if err != nil {
			return nil, p.errorf("bad variable number %s", tok.text)
		}
		return Variable{ID: VarID(id)}, nil
	case tokIdent:
		return p.parseNamed()
	case tokPunct:
		switch tok.text {
		case "&":
			return p.parseReference()
		case "*":
			return p.parsePointer()
		case "(":
			return p.parseTuple()
		case "[":
			return p.parseArray()
		case "!":
			p.next()
			return Never, nil
		}
	}
	return nil, p.errorf("unexpected '%s'", tok.text)
}

func (p *typeParser) parseNamed() (Type, error) {
	name := p.next().text
	if name == "fn" {
		return p.parseFunction()
	}
	if prim, ok := PrimitiveNamed(name); ok && !p.isPunct("<") {
		return prim, nil
	}
	if !p.isPunct("<") {
		return Named{Name: name}, nil
	}
	p.next()
	named := Named{Name: name}
	for !p.isPunct(">") {
		if p.peek().kind == tokRegion && !p.done() {
			named.Regions = append(named.Regions, regionNamed(p.next().text))
		} else {
			arg, err := p.parseType()
			if err != nil {
				return nil, err
			}
			named.Args = append(named.Args, arg)
		}
		if !p.isPunct(",") {
			break
		}
		p.next()
	}
	if err := p.expect(">"); err != nil {
		return nil, err
	}
	return named, nil
}

func (p *typeParser) parseReference() (Type, error) {
	p.next()
	ref := Reference{}
	if p.peek().kind == tokRegion && !p.done() {
		ref.Region = regionNamed(p.next().text)
	}
	if p.isKeyword("mut") {
		p.next()
		ref.Mutable = true
	}
	inner, err := p.parseType()
	if err != nil {
		return nil, err
	}
	ref.Inner = inner
	return ref, nil
}

func (p *typeParser) parsePointer() (Type, error) {
	p.next()
	ptr := RawPointer{}
	switch {
	case p.isKeyword("mut"):
		ptr.Mutable = true
	case p.isKeyword("const"):
	default:
		return nil, p.errorf("expected 'const' or 'mut' after '*'")
	}
	p.next()
	inner, err := p.parseType()
	if err != nil {
		return nil, err
	}
	ptr.Inner = inner
	return ptr, nil
}

// parseList reads types separated by commas up to close, allowing a trailing comma
func (p *typeParser) parseList(close string) (elems []Type, trailingComma bool, err error) {
	for !p.isPunct(close) {
		elem, err := p.parseType()
		if err != nil {
			return nil, false, err
		}
		elems = append(elems, elem)
		trailingComma = false
		if !p.isPunct(",") {
			break
		}
		p.next()
		trailingComma = true
	}
	return elems, trailingComma, p.expect(close)
}

func (p *typeParser) parseTuple() (Type, error) {
	p.next()
	elems, trailingComma, err := p.parseList(")")
	if err != nil {
		return nil, err
	}
	// (T) is T in parentheses, (T,) is a 1-tuple
	if len(elems) == 1 && !trailingComma {
		return elems[0], nil
	}
	return Tuple{Elems: elems}, nil
}

func (p *typeParser) parseArray() (Type, error) {
	p.next()
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	sizeTok := p.next()
	if sizeTok.kind != tokNumber {
		return nil, p.errorf("array size expected but found '%s'", sizeTok.text)
	}
	size, err := strconv.ParseUint(sizeTok.text, 10, 64)
	if err != nil {
		return nil, p.errorf("bad array size %s", sizeTok.text)
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	return Array{Elem: elem, Size: size}, nil
}

func (p *typeParser) parseFunction() (Type, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	params, _, err := p.parseList(")")
	if err != nil {
		return nil, err
	}
	var ret Type = Unit
	if p.isPunct("->") {
		p.next()
		ret, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	return Function{Params: params, Ret: ret}, nil
}
