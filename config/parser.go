package config

import (
	"fmt"
	"strconv"

	"github.com/couplex/couplex/model"
)

// SyntaxError reports an invalid expression, with the byte offset of the
// offending token.
type SyntaxError struct {
	Expr   string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid expression %q at offset %d: %s", e.Expr, e.Offset, e.Msg)
}

// ParseExpression parses the textual expression form used in YAML model
// definitions into a symbolic tree. The grammar covers identifiers, numbers
// with optional exponent, the infix operators + - * / @ == <= >= with the
// usual precedence, unary minus, parentheses and function calls such as
// sum(x) or shift(n, s). Relations and the Minimize/Maximize markers may only
// appear at the top of an expression.
func ParseExpression(src string) (model.Node, error) {
	p := parser{lex: &lexer{src: src}}
	expectOperand := true
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokEOF:
			if expectOperand {
				return nil, p.errf(tok.pos, "unexpected end of expression")
			}
			for len(p.ops) > 0 {
				e := p.popOp()
				if e.kind == opParen || e.kind == opCall {
					return nil, p.errf(e.pos, "missing closing parenthesis")
				}
				if err := p.reduce(e); err != nil {
					return nil, err
				}
			}
			if len(p.out) != 1 {
				return nil, p.errf(tok.pos, "malformed expression")
			}
			root := p.out[0]
			if err := checkNesting(root); err != nil {
				return nil, err
			}
			return root, nil

		case tokNumber:
			if !expectOperand {
				return nil, p.errf(tok.pos, "unexpected number %q", tok.text)
			}
			v, err := strconv.ParseFloat(tok.text, 64)
			if err != nil {
				return nil, p.errf(tok.pos, "invalid number %q", tok.text)
			}
			p.out = append(p.out, &model.Num{Value: v})
			expectOperand = false

		case tokIdent:
			if !expectOperand {
				return nil, p.errf(tok.pos, "unexpected identifier %q", tok.text)
			}
			next, err := p.peek()
			if err != nil {
				return nil, err
			}
			if next.kind == tokLParen {
				if _, err := p.next(); err != nil {
					return nil, err
				}
				p.ops = append(p.ops, opEntry{op: tok.text, kind: opCall, args: 1, pos: tok.pos})
				expectOperand = true
			} else {
				p.out = append(p.out, &model.Ref{Name: tok.text})
				expectOperand = false
			}

		case tokLParen:
			if !expectOperand {
				return nil, p.errf(tok.pos, "unexpected %q", "(")
			}
			p.ops = append(p.ops, opEntry{kind: opParen, pos: tok.pos})
			expectOperand = true

		case tokRParen:
			if expectOperand {
				return nil, p.errf(tok.pos, "unexpected %q", ")")
			}
			for {
				if len(p.ops) == 0 {
					return nil, p.errf(tok.pos, "unbalanced %q", ")")
				}
				e := p.popOp()
				if e.kind == opParen {
					break
				}
				if e.kind == opCall {
					if len(p.out) < e.args {
						return nil, p.errf(e.pos, "malformed call to %q", e.op)
					}
					args := make([]model.Node, e.args)
					for i := e.args - 1; i >= 0; i-- {
						args[i] = p.pop()
					}
					p.out = append(p.out, &model.Call{Op: e.op, Args: args})
					break
				}
				if err := p.reduce(e); err != nil {
					return nil, err
				}
			}
			expectOperand = false

		case tokComma:
			if expectOperand {
				return nil, p.errf(tok.pos, "unexpected %q", ",")
			}
			for {
				if len(p.ops) == 0 || p.ops[len(p.ops)-1].kind == opParen {
					return nil, p.errf(tok.pos, "%q outside a function call", ",")
				}
				if p.ops[len(p.ops)-1].kind == opCall {
					p.ops[len(p.ops)-1].args++
					break
				}
				if err := p.reduce(p.popOp()); err != nil {
					return nil, err
				}
			}
			expectOperand = true

		case tokOperator:
			if expectOperand {
				if tok.text == "-" {
					p.ops = append(p.ops, opEntry{op: "neg", kind: opPrefix, pos: tok.pos})
					continue
				}
				return nil, p.errf(tok.pos, "unexpected operator %q", tok.text)
			}
			prec := precedence(tok.text)
			for len(p.ops) > 0 {
				top := p.ops[len(p.ops)-1]
				if top.kind == opParen || top.kind == opCall || top.precedence() < prec {
					break
				}
				if err := p.reduce(p.popOp()); err != nil {
					return nil, err
				}
			}
			p.ops = append(p.ops, opEntry{op: tok.text, kind: opInfix, pos: tok.pos})
			expectOperand = true
		}
	}
}

type opKind uint8

const (
	opInfix opKind = iota
	opPrefix
	opCall
	opParen
)

type opEntry struct {
	op   string
	kind opKind
	args int
	pos  int
}

func (e opEntry) precedence() int {
	if e.kind == opPrefix {
		return 4
	}
	return precedence(e.op)
}

// precedence of the infix operators; relations bind loosest.
func precedence(op string) int {
	switch op {
	case "==", "<=", ">=":
		return 1
	case "+", "-":
		return 2
	default: // * / @
		return 3
	}
}

type parser struct {
	lex    *lexer
	peeked *token
	out    []model.Node
	ops    []opEntry
}

func (p *parser) next() (token, error) {
	if p.peeked != nil {
		t := *p.peeked
		p.peeked = nil
		return t, nil
	}
	return p.lex.next()
}

func (p *parser) peek() (token, error) {
	if p.peeked == nil {
		t, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.peeked = &t
	}
	return *p.peeked, nil
}

func (p *parser) pop() model.Node {
	n := p.out[len(p.out)-1]
	p.out = p.out[:len(p.out)-1]
	return n
}

func (p *parser) popOp() opEntry {
	e := p.ops[len(p.ops)-1]
	p.ops = p.ops[:len(p.ops)-1]
	return e
}

// reduce folds one pending operator over the output stack.
func (p *parser) reduce(e opEntry) error {
	switch e.kind {
	case opPrefix:
		if len(p.out) < 1 {
			return p.errf(e.pos, "missing operand")
		}
		a := p.pop()
		p.out = append(p.out, &model.Call{Op: "neg", Args: []model.Node{a}})
	case opInfix:
		if len(p.out) < 2 {
			return p.errf(e.pos, "missing operand for %q", e.op)
		}
		b := p.pop()
		a := p.pop()
		p.out = append(p.out, &model.Call{Op: e.op, Args: []model.Node{a, b}})
	}
	return nil
}

func (p *parser) errf(offset int, format string, args ...any) error {
	return &SyntaxError{Expr: p.lex.src, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// checkNesting rejects relations and objective markers anywhere below the
// root of the tree.
func checkNesting(root model.Node) error {
	var err error
	model.Walk(root, func(n model.Node) bool {
		if n == root {
			return true
		}
		if c, ok := n.(*model.Call); ok {
			switch c.Op {
			case "==", "<=", ">=", "Minimize", "Maximize":
				err = fmt.Errorf("%q must be the top of the expression", c.Op)
				return false
			}
		}
		return true
	})
	return err
}

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOperator
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}
	start := l.pos
	c := l.src[l.pos]
	switch {
	case isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		return l.number(), nil
	case isLetter(c):
		for l.pos < len(l.src) && isIdentChar(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], pos: start}, nil
	}
	l.pos++
	switch c {
	case '(':
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case ')':
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case ',':
		return token{kind: tokComma, text: ",", pos: start}, nil
	case '+', '-', '*', '/', '@':
		return token{kind: tokOperator, text: string(c), pos: start}, nil
	case '=', '<', '>':
		if l.pos < len(l.src) && l.src[l.pos] == '=' {
			l.pos++
			return token{kind: tokOperator, text: string(c) + "=", pos: start}, nil
		}
		return token{}, &SyntaxError{Expr: l.src, Offset: start,
			Msg: fmt.Sprintf("unexpected character %q, relations are ==, <= and >=", c)}
	}
	return token{}, &SyntaxError{Expr: l.src, Offset: start, Msg: fmt.Sprintf("unexpected character %q", c)}
}

// number scans digits with an optional fraction and exponent. A trailing
// 'e' without digits is left for the next token.
func (l *lexer) number() token {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		p := l.pos + 1
		if p < len(l.src) && (l.src[p] == '+' || l.src[p] == '-') {
			p++
		}
		if p < len(l.src) && isDigit(l.src[p]) {
			l.pos = p
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
	}
	return token{kind: tokNumber, text: l.src[start:l.pos], pos: start}
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentChar(c byte) bool { return isLetter(c) || isDigit(c) }
