package solver

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	maxExprLen   = 256
	maxExprDepth = 32
)

var (
	// ErrUnsafeInput is returned for any character outside the arithmetic grammar.
	ErrUnsafeInput     = errors.New("solver: input outside arithmetic grammar")
	ErrEmptyExpression = errors.New("solver: empty expression")
	ErrSyntax          = errors.New("solver: syntax error")
	ErrDivisionByZero  = errors.New("solver: division by zero")
	ErrTooComplex      = errors.New("solver: expression too complex")
	ErrNotFinite       = errors.New("solver: result is not finite")
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokOp
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	num  float64
	op   rune
	pos  int
}

// tokenize accepts digits, one decimal point per number, + - * / × ÷ ^,
// parentheses and spaces. Anything else is rejected before parsing.
func tokenize(expr string) ([]token, error) {
	var toks []token
	runes := []rune(expr)
	for i := 0; i < len(runes); {
		c := runes[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			dots := 0
			for i < len(runes) && (runes[i] >= '0' && runes[i] <= '9' || runes[i] == '.') {
				if runes[i] == '.' {
					dots++
				}
				i++
			}
			lit := string(runes[start:i])
			if dots > 1 || lit == "." {
				return nil, fmt.Errorf("%w: bad number %q at %d", ErrSyntax, lit, start)
			}
			v, err := strconv.ParseFloat(lit, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q at %d", ErrSyntax, lit, start)
			}
			toks = append(toks, token{kind: tokNumber, num: v, pos: start})
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '^':
			toks = append(toks, token{kind: tokOp, op: c, pos: i})
			i++
		case c == '×':
			toks = append(toks, token{kind: tokOp, op: '*', pos: i})
			i++
		case c == '÷':
			toks = append(toks, token{kind: tokOp, op: '/', pos: i})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, pos: i})
			i++
		default:
			return nil, fmt.Errorf("%w: %q at %d", ErrUnsafeInput, c, i)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(runes)})
	return toks, nil
}

type parser struct {
	toks  []token
	pos   int
	depth int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxExprDepth {
		return ErrTooComplex
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

// expr := term (('+' | '-') term)*
func (p *parser) expr() (float64, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.op != '+' && t.op != '-') {
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if t.op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

// term := unary (('*' | '/') unary)*
func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.op != '*' && t.op != '/') {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		if t.op == '*' {
			left *= right
			continue
		}
		if right == 0 {
			return 0, ErrDivisionByZero
		}
		left /= right
	}
}

// unary := ('+' | '-') unary | power
func (p *parser) unary() (float64, error) {
	t := p.peek()
	if t.kind == tokOp && (t.op == '+' || t.op == '-') {
		if err := p.enter(); err != nil {
			return 0, err
		}
		defer p.leave()
		p.next()
		v, err := p.unary()
		if err != nil {
			return 0, err
		}
		if t.op == '-' {
			return -v, nil
		}
		return v, nil
	}
	return p.power()
}

// power := primary ('^' unary)?   (right-associative)
func (p *parser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	t := p.peek()
	if t.kind != tokOp || t.op != '^' {
		return base, nil
	}
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()
	p.next()
	exp, err := p.unary()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

// primary := number | '(' expr ')'
func (p *parser) primary() (float64, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return t.num, nil
	case tokLParen:
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return 0, fmt.Errorf("%w: missing ')' at %d", ErrSyntax, closing.pos)
		}
		return v, nil
	case tokEOF:
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	default:
		return 0, fmt.Errorf("%w: unexpected token at %d", ErrSyntax, t.pos)
	}
}

// Evaluate computes a plain arithmetic expression. It never executes code:
// the input is tokenized against a closed grammar and any other character
// yields ErrUnsafeInput.
func Evaluate(expr string) (float64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, ErrEmptyExpression
	}
	if len(expr) > maxExprLen {
		return 0, ErrTooComplex
	}
	toks, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	p := &parser{toks: toks}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return 0, fmt.Errorf("%w: trailing input at %d", ErrSyntax, t.pos)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotFinite
	}
	return v, nil
}

// FormatNumber renders v without float noise (0.1+0.2 prints as 0.3).
func FormatNumber(v float64) string {
	if math.Abs(v) < 1e15 {
		v = math.Round(v*1e10) / 1e10
		if v == 0 {
			v = 0 // drop negative zero
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', 12, 64)
}
