package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// -----------------------------------------------------------------------
// AST nodes
// -----------------------------------------------------------------------

// node is the common interface for all AST nodes.
type node interface {
	eval(env Env) (any, error)
	vars(names map[string]struct{})
}

// binaryNode represents 'and' / 'or' with short-circuit evaluation.
type binaryNode struct {
	op    string // "and" | "or"
	left  node
	right node
}

// notNode represents logical negation.
type notNode struct {
	inner node
}

// cmpNode represents <left> <op> <right> for ==, !=, <, >, <=, >=.
type cmpNode struct {
	op    string
	left  node
	right node
}

// arithNode represents +, -, *, /, %.
type arithNode struct {
	op    string
	left  node
	right node
}

// negNode represents unary minus.
type negNode struct {
	inner node
}

// callNode represents a builtin function call.
type callNode struct {
	name string
	args []node
}

// literalNode holds a pre-parsed constant (float64, string, bool, or nil).
type literalNode struct {
	value any
}

// identNode holds an identifier resolved against the Env at eval time.
type identNode struct {
	name string
}

// -----------------------------------------------------------------------
// Tokenizer
// -----------------------------------------------------------------------

type tokenKind int

const (
	tokWord   tokenKind = iota // identifier or keyword
	tokOp                      // ==, !=, >=, <=, >, <, +, -, *, /, %, !, &&, ||
	tokString                  // "…" or '…'
	tokNumber                  // 42 | 3.14
	tokLParen
	tokRParen
	tokComma
	tokEOF
)

type token struct {
	kind tokenKind
	val  string
}

func tokenize(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		ch := src[i]
		// Skip whitespace.
		if unicode.IsSpace(rune(ch)) {
			i++
			continue
		}
		switch ch {
		case '(':
			tokens = append(tokens, token{tokLParen, "("})
			i++
			continue
		case ')':
			tokens = append(tokens, token{tokRParen, ")"})
			i++
			continue
		case ',':
			tokens = append(tokens, token{tokComma, ","})
			i++
			continue
		}
		// Two-char operators first, then single-char.
		if i+1 < len(src) {
			two := src[i : i+2]
			switch two {
			case "==", "!=", ">=", "<=", "&&", "||":
				tokens = append(tokens, token{tokOp, two})
				i += 2
				continue
			}
		}
		if strings.ContainsRune("=!<>+-*/%", rune(ch)) {
			if ch == '=' {
				return nil, fmt.Errorf("single '=' at position %d (use '==')", i)
			}
			tokens = append(tokens, token{tokOp, string(ch)})
			i++
			continue
		}
		// String literals.
		if ch == '"' || ch == '\'' {
			quote := ch
			j := i + 1
			for j < len(src) && src[j] != quote {
				if src[j] == '\\' {
					j++ // skip escaped char
				}
				j++
			}
			if j >= len(src) {
				return nil, fmt.Errorf("unterminated string starting at position %d", i)
			}
			inner := src[i+1 : j]
			inner = strings.ReplaceAll(inner, `\"`, `"`)
			inner = strings.ReplaceAll(inner, `\'`, `'`)
			inner = strings.ReplaceAll(inner, `\\`, `\`)
			tokens = append(tokens, token{tokString, inner})
			i = j + 1
			continue
		}
		// Numbers. Unary minus is left to the parser so "a-1" works.
		if unicode.IsDigit(rune(ch)) || (ch == '.' && i+1 < len(src) && unicode.IsDigit(rune(src[i+1]))) {
			j := i
			for j < len(src) && (unicode.IsDigit(rune(src[j])) || src[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokNumber, src[i:j]})
			i = j
			continue
		}
		// Words: identifiers and the keyword operators and/or/not/true/false/nil.
		if unicode.IsLetter(rune(ch)) || ch == '_' {
			j := i
			for j < len(src) && (unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j])) || src[j] == '_') {
				j++
			}
			tokens = append(tokens, token{tokWord, src[i:j]})
			i = j
			continue
		}
		return nil, fmt.Errorf("unexpected character %q at position %d", ch, i)
	}
	tokens = append(tokens, token{tokEOF, ""})
	return tokens, nil
}

// -----------------------------------------------------------------------
// Recursive-descent parser
// -----------------------------------------------------------------------

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) consume() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) atOp(vals ...string) bool {
	t := p.peek()
	if t.kind != tokOp {
		return false
	}
	for _, v := range vals {
		if t.val == v {
			return true
		}
	}
	return false
}

func (p *parser) atKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokWord && strings.EqualFold(t.val, word)
}

// Expr is a parsed, reusable expression.
// Parse once at schema load; Eval per entity. An Expr is immutable and
// safe for concurrent evaluation.
type Expr struct {
	src  string
	root node
}

// Parse compiles an expression string.
func Parse(src string) (*Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	tokens, err := tokenize(src)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("parse %q: unexpected token %q after expression", src, p.peek().val)
	}
	return &Expr{src: src, root: root}, nil
}

// MustParse is Parse that panics on error, for static initializers.
func MustParse(src string) *Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the original source text.
func (e *Expr) String() string { return e.src }

// or = and ( ('or' | '||') and )*
func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("or") || p.atOp("||") {
		p.consume()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "or", left: left, right: right}
	}
	return left, nil
}

// and = unary ( ('and' | '&&') unary )*
func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("and") || p.atOp("&&") {
		p.consume()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "and", left: left, right: right}
	}
	return left, nil
}

// unary = ('not' | '!') unary | cmp
func (p *parser) parseUnary() (node, error) {
	if p.atKeyword("not") || p.atOp("!") {
		p.consume()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{inner: inner}, nil
	}
	return p.parseComparison()
}

// cmp = sum ( op sum )?   A bare sum is valid and evaluated for truthiness.
func (p *parser) parseComparison() (node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if p.atOp("==", "!=", "<", ">", "<=", ">=") {
		op := p.consume().val
		right, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		return &cmpNode{op: op, left: left, right: right}, nil
	}
	return left, nil
}

// sum = term ( ('+' | '-') term )*
func (p *parser) parseSum() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.atOp("+", "-") {
		op := p.consume().val
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &arithNode{op: op, left: left, right: right}
	}
	return left, nil
}

// term = factor ( ('*' | '/' | '%') factor )*
func (p *parser) parseTerm() (node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.atOp("*", "/", "%") {
		op := p.consume().val
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &arithNode{op: op, left: left, right: right}
	}
	return left, nil
}

// factor = '-' factor | '(' or ')' | call | value
func (p *parser) parseFactor() (node, error) {
	if p.atOp("-") {
		p.consume()
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &negNode{inner: inner}, nil
	}
	if p.peek().kind == tokLParen {
		p.consume()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("expected ')' but got %q", p.peek().val)
		}
		p.consume()
		return inner, nil
	}
	return p.parseValue()
}

// value = string | number | true | false | nil | identifier | call
func (p *parser) parseValue() (node, error) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.consume()
		return &literalNode{value: t.val}, nil
	case tokNumber:
		p.consume()
		f, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.val)
		}
		return &literalNode{value: f}, nil
	case tokWord:
		p.consume()
		switch strings.ToLower(t.val) {
		case "true":
			return &literalNode{value: true}, nil
		case "false":
			return &literalNode{value: false}, nil
		case "nil", "null", "none":
			return &literalNode{value: nil}, nil
		}
		// A word followed by '(' is a builtin call.
		if p.peek().kind == tokLParen {
			return p.parseCall(t.val)
		}
		return &identNode{name: t.val}, nil
	default:
		return nil, fmt.Errorf("expected value, got %q", t.val)
	}
}

func (p *parser) parseCall(name string) (node, error) {
	if _, ok := builtins[name]; !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}
	p.consume() // '('
	var args []node
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.consume()
		}
	}
	if p.peek().kind != tokRParen {
		return nil, fmt.Errorf("expected ')' in call to %q, got %q", name, p.peek().val)
	}
	p.consume()
	if want := builtins[name].arity; len(args) != want {
		return nil, fmt.Errorf("%s expects %d argument(s), got %d", name, want, len(args))
	}
	return &callNode{name: name, args: args}, nil
}
