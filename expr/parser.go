package expr

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

type tokKind int

const (
	tokEOF tokKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp     // + - * / ( ) [ ]
	tokCmp    // == != < <= > >=
	tokAnd    // and
	tokOr     // or
	tokNot    // not
	tokIn     // in
	tokTrue   // true
	tokFalse  // false
)

type token struct {
	kind tokKind
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func newLexer(src string) *lexer { return &lexer{src: src} }

func (l *lexer) lex() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]

	switch {
	case c == '"' || c == '\'':
		quote := c
		l.pos++
		for l.pos < len(l.src) && l.src[l.pos] != quote {
			l.pos++
		}
		if l.pos >= len(l.src) {
			return token{}, fmt.Errorf("expr: unterminated string at offset %d", start)
		}
		text := l.src[start+1 : l.pos]
		l.pos++ // closing quote
		return token{kind: tokString, text: text, pos: start}, nil

	case c >= '0' && c <= '9' || c == '.':
		for l.pos < len(l.src) && (l.src[l.pos] >= '0' && l.src[l.pos] <= '9' || l.src[l.pos] == '.') {
			l.pos++
		}
		return token{kind: tokNumber, text: l.src[start:l.pos], pos: start}, nil

	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		word := l.src[start:l.pos]
		switch word {
		case "and":
			return token{kind: tokAnd, text: word, pos: start}, nil
		case "or":
			return token{kind: tokOr, text: word, pos: start}, nil
		case "not":
			return token{kind: tokNot, text: word, pos: start}, nil
		case "in":
			return token{kind: tokIn, text: word, pos: start}, nil
		case "true", "True":
			return token{kind: tokTrue, text: word, pos: start}, nil
		case "false", "False":
			return token{kind: tokFalse, text: word, pos: start}, nil
		}
		return token{kind: tokIdent, text: word, pos: start}, nil

	case strings.ContainsRune("=!<>", rune(c)):
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokCmp, text: l.src[start : start+2], pos: start}, nil
		}
		l.pos++
		if c == '=' || c == '!' {
			return token{}, fmt.Errorf("expr: unexpected %q at offset %d", string(c), start)
		}
		return token{kind: tokCmp, text: string(c), pos: start}, nil

	case strings.ContainsRune("+-*/()[]", rune(c)):
		l.pos++
		return token{kind: tokOp, text: string(c), pos: start}, nil
	}

	return token{}, fmt.Errorf("expr: unexpected character %q at offset %d", string(c), start)
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

// parser is a plain recursive-descent parser, one precedence level per
// method: or < and < not < comparison < additive < multiplicative < unary.
type parser struct {
	lex *lexer
	tok token
}

func (p *parser) next() error {
	t, err := p.lex.lex()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) expectOp(text string) error {
	if p.tok.kind != tokOp || p.tok.text != text {
		return fmt.Errorf("expr: expected %q, got %q at offset %d", text, p.tok.text, p.tok.pos)
	}
	return p.next()
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOr {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "or", l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokAnd {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "and", l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.tok.kind == tokNot {
		if err := p.next(); err != nil {
			return nil, err
		}
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: "not", x: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	switch {
	case p.tok.kind == tokCmp:
		op := p.tok.text
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: op, l: left, r: right}, nil
	case p.tok.kind == tokIn:
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: "in", l: left, r: right}, nil
	}
	return left, nil
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/") {
		op := p.tok.text
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.tok.kind == tokOp && p.tok.text == "-" {
		if err := p.next(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: "-", x: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.tok
	switch tok.kind {
	case tokNumber:
		d, err := decimal.NewFromString(tok.text)
		if err != nil {
			return nil, fmt.Errorf("expr: bad number %q at offset %d", tok.text, tok.pos)
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		return numberNode{val: d}, nil

	case tokString:
		if err := p.next(); err != nil {
			return nil, err
		}
		return stringNode{val: tok.text}, nil

	case tokTrue, tokFalse:
		if err := p.next(); err != nil {
			return nil, err
		}
		return boolNode{val: tok.kind == tokTrue}, nil

	case tokIdent:
		if err := p.next(); err != nil {
			return nil, err
		}
		switch tok.text {
		case "tweet":
			return tweetNode{}, nil
		case "inside_bid":
			return bookNode{ask: false}, nil
		case "inside_ask":
			return bookNode{ask: true}, nil
		case "available":
			if err := p.expectOp("["); err != nil {
				return nil, err
			}
			idx := p.tok
			if idx.kind != tokIdent && idx.kind != tokString {
				return nil, fmt.Errorf("expr: available[...] wants a currency code, got %q at offset %d",
					idx.text, idx.pos)
			}
			if err := p.next(); err != nil {
				return nil, err
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			return availableNode{currency: idx.text}, nil
		}
		return nil, fmt.Errorf("expr: unknown name %q at offset %d (allowed: tweet, available, inside_bid, inside_ask)",
			tok.text, tok.pos)

	case tokOp:
		if tok.text == "(" {
			if err := p.next(); err != nil {
				return nil, err
			}
			inner, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return inner, nil
		}
	}
	return nil, fmt.Errorf("expr: unexpected %q at offset %d", tok.text, tok.pos)
}
