package filter

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Parse compiles a filter expression. An empty or blank expression yields
// a nil Expression, which matches every record.
//
// The grammar, loosest binding first:
//
//	or         = and { ("||" | "or") and }
//	and        = unary { ("&&" | "and") unary }
//	unary      = ("!" | "not") unary | comparison
//	comparison = operand [ cmp operand | "in" list ]
//	operand    = field | string | number | true | false | null | "(" or ")"
//	list       = "[" [ operand { "," operand } ] "]"
//	field      = ident { "." ident }
func Parse(expr string) (Expression, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}

	p := &parser{lex: lexer{src: expr}}
	if err := p.advance(); err != nil {
		return nil, err
	}

	res, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %q", p.tok.text)
	}
	return res, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokOperator
	tokPunct
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

var twoCharOperators = []string{"==", "!=", ">=", "<=", "&&", "||"}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	rest := l.src[l.pos:]
	for _, op := range twoCharOperators {
		if strings.HasPrefix(rest, op) {
			l.pos += 2
			return token{kind: tokOperator, text: op, pos: start}, nil
		}
	}

	c := rest[0]
	switch {
	case c == '>' || c == '<' || c == '!':
		l.pos++
		return token{kind: tokOperator, text: string(c), pos: start}, nil
	case strings.IndexByte("()[],.-", c) >= 0:
		l.pos++
		return token{kind: tokPunct, text: string(c), pos: start}, nil
	case c == '"' || c == '\'':
		return l.lexString(c)
	case c >= '0' && c <= '9':
		for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
			l.pos++
		}
		return token{kind: tokNumber, text: l.src[start:l.pos], pos: start}, nil
	}

	r, size := utf8.DecodeRuneInString(rest)
	if r == '_' || unicode.IsLetter(r) {
		l.pos += size
		for l.pos < len(l.src) {
			r, size = utf8.DecodeRuneInString(l.src[l.pos:])
			if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				break
			}
			l.pos += size
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], pos: start}, nil
	}
	return token{}, &SyntaxError{Offset: start, Msg: "unexpected character " + strconv.QuoteRune(r)}
}

// lexString reads a quoted string. Double quotes follow Go escaping;
// single quotes are taken literally.
func (l *lexer) lexString(quote byte) (token, error) {
	start := l.pos
	l.pos++
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\\':
			l.pos += 2
			continue
		case quote:
			l.pos++
			raw := l.src[start:l.pos]
			if quote == '\'' {
				return token{kind: tokString, text: raw[1 : len(raw)-1], pos: start}, nil
			}
			s, err := strconv.Unquote(raw)
			if err != nil {
				return token{}, &SyntaxError{Offset: start, Msg: "invalid string literal"}
			}
			return token{kind: tokString, text: s, pos: start}, nil
		}
		l.pos++
	}
	return token{}, &SyntaxError{Offset: start, Msg: "unterminated string"}
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

type parser struct {
	lex lexer
	tok token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errorf(format string, args ...interface{}) error {
	if p.tok.kind == tokEOF {
		return &SyntaxError{Offset: p.tok.pos, Msg: "unexpected end of expression"}
	}
	return &SyntaxError{Offset: p.tok.pos, Msg: fmt.Sprintf(format, args...)}
}

// is reports whether the current token is the operator, punctuation or
// keyword text
func (p *parser) is(texts ...string) bool {
	if p.tok.kind == tokString || p.tok.kind == tokNumber || p.tok.kind == tokEOF {
		return false
	}
	for _, t := range texts {
		if p.tok.text == t {
			return true
		}
	}
	return false
}

func (p *parser) parseOr() (Expression, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.is("||", "or") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = &BinaryExpression{Left: lhs, Operator: OpOr, Right: rhs}
	}
	return lhs, nil
}

func (p *parser) parseAnd() (Expression, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.is("&&", "and") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = &BinaryExpression{Left: lhs, Operator: OpAnd, Right: rhs}
	}
	return lhs, nil
}

func (p *parser) parseUnary() (Expression, error) {
	if p.is("!", "not") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpression{Operator: OpNot, Operand: operand}, nil
	}
	return p.parseComparison()
}

var comparisonOperators = map[string]Operator{
	"==":       OpEqual,
	"!=":       OpNotEqual,
	">":        OpGreaterThan,
	"<":        OpLessThan,
	">=":       OpGreaterOrEqual,
	"<=":       OpLessOrEqual,
	"contains": OpContains,
}

func (p *parser) parseComparison() (Expression, error) {
	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	if p.is("in") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		list, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return &BinaryExpression{Left: lhs, Operator: OpIn, Right: list}, nil
	}

	op, ok := comparisonOperators[p.tok.text]
	if !ok || !p.is(p.tok.text) {
		return lhs, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	rhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &BinaryExpression{Left: lhs, Operator: op, Right: rhs}, nil
}

func (p *parser) parseList() (Expression, error) {
	if !p.is("[") {
		return nil, p.errorf("expected '[' after in, got %q", p.tok.text)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	list := &List{}
	for !p.is("]") {
		item, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		list.Items = append(list.Items, item)
		if !p.is(",") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if !p.is("]") {
		return nil, p.errorf("expected ']', got %q", p.tok.text)
	}
	return list, p.advance()
}

func (p *parser) parseOperand() (Expression, error) {
	tok := p.tok
	switch tok.kind {
	case tokString:
		return &Literal{Value: tok.text}, p.advance()
	case tokNumber:
		return p.number(tok, "")
	case tokIdent:
		switch tok.text {
		case "true", "false":
			return &Literal{Value: tok.text == "true"}, p.advance()
		case "null":
			return &Literal{Value: nil}, p.advance()
		}
		return p.parseField()
	}

	switch {
	case p.is("-"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokNumber {
			return nil, p.errorf("expected number after '-'")
		}
		return p.number(p.tok, "-")
	case p.is("("):
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.is(")") {
			return nil, p.errorf("expected ')', got %q", p.tok.text)
		}
		return expr, p.advance()
	}
	return nil, p.errorf("unexpected %q", tok.text)
}

func (p *parser) number(tok token, sign string) (Expression, error) {
	v, err := strconv.ParseFloat(sign+tok.text, 64)
	if err != nil {
		return nil, &SyntaxError{Offset: tok.pos, Msg: "invalid number " + strconv.Quote(tok.text)}
	}
	return &Literal{Value: v}, p.advance()
}

func (p *parser) parseField() (Expression, error) {
	field := &Field{Path: []string{p.tok.text}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	for p.is(".") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokIdent {
			return nil, p.errorf("expected field name after '.'")
		}
		field.Path = append(field.Path, p.tok.text)
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return field, nil
}
