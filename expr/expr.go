// Package expr implements the restricted expression language used by rule
// files. The grammar covers boolean logic, numeric arithmetic, comparisons,
// string membership ("long" in tweet) and balance indexing (available[USD])
// over a fixed variable set: tweet, available, inside_bid, inside_ask.
// There are no function calls, no assignment and no user-defined names, so a
// rule file can never execute arbitrary code.
package expr

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Context supplies the variable bindings for one evaluation. A nil Available
// map means balances are not in scope (e.g. while matching a condition);
// HasBook gates inside_bid/inside_ask the same way.
type Context struct {
	Tweet     string
	Available map[string]decimal.Decimal
	InsideBid decimal.Decimal
	InsideAsk decimal.Decimal
	HasBook   bool
}

// Kind discriminates the three value types an expression can produce.
type Kind int

const (
	Number Kind = iota
	String
	Bool
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case String:
		return "string"
	case Bool:
		return "bool"
	}
	return "unknown"
}

// Value is the result of evaluating an expression or subexpression.
type Value struct {
	Kind Kind
	Num  decimal.Decimal
	Str  string
	Bool bool
}

func number(d decimal.Decimal) Value { return Value{Kind: Number, Num: d} }
func str(s string) Value             { return Value{Kind: String, Str: s} }
func boolean(b bool) Value           { return Value{Kind: Bool, Bool: b} }

// Expr is a parsed, immutable expression. Parse once at rule load, evaluate
// per event.
type Expr struct {
	src  string
	root node
}

// Parse compiles src into an Expr. Any name outside the declared variable
// set is a parse error.
func Parse(src string) (*Expr, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.next(); err != nil {
		return nil, err
	}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("expr: unexpected %q after expression", p.tok.text)
	}
	return &Expr{src: src, root: root}, nil
}

// MustParse is Parse for known-good literals; it panics on error.
func MustParse(src string) *Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the original source of the expression.
func (e *Expr) String() string { return e.src }

// Eval evaluates the expression against ctx.
func (e *Expr) Eval(ctx *Context) (Value, error) {
	return e.root.eval(ctx)
}

// EvalBool evaluates and requires a boolean result.
func (e *Expr) EvalBool(ctx *Context) (bool, error) {
	v, err := e.Eval(ctx)
	if err != nil {
		return false, err
	}
	if v.Kind != Bool {
		return false, fmt.Errorf("expr: %q yields a %s, want bool", e.src, v.Kind)
	}
	return v.Bool, nil
}

// EvalNumber evaluates and requires a numeric result.
func (e *Expr) EvalNumber(ctx *Context) (decimal.Decimal, error) {
	v, err := e.Eval(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if v.Kind != Number {
		return decimal.Decimal{}, fmt.Errorf("expr: %q yields a %s, want number", e.src, v.Kind)
	}
	return v.Num, nil
}

type node interface {
	eval(*Context) (Value, error)
}

type numberNode struct{ val decimal.Decimal }

func (n numberNode) eval(*Context) (Value, error) { return number(n.val), nil }

type stringNode struct{ val string }

func (n stringNode) eval(*Context) (Value, error) { return str(n.val), nil }

type boolNode struct{ val bool }

func (n boolNode) eval(*Context) (Value, error) { return boolean(n.val), nil }

type tweetNode struct{}

func (tweetNode) eval(ctx *Context) (Value, error) { return str(ctx.Tweet), nil }

type bookNode struct{ ask bool }

func (n bookNode) eval(ctx *Context) (Value, error) {
	if !ctx.HasBook {
		return Value{}, fmt.Errorf("expr: inside_bid/inside_ask not available in this context")
	}
	if n.ask {
		return number(ctx.InsideAsk), nil
	}
	return number(ctx.InsideBid), nil
}

type availableNode struct{ currency string }

func (n availableNode) eval(ctx *Context) (Value, error) {
	if ctx.Available == nil {
		return Value{}, fmt.Errorf("expr: available[%s] not available in this context", n.currency)
	}
	// An unknown currency is a zero balance, not an error: the venue simply
	// has no account for it.
	return number(ctx.Available[n.currency]), nil
}

type unaryNode struct {
	op string
	x  node
}

func (n unaryNode) eval(ctx *Context) (Value, error) {
	v, err := n.x.eval(ctx)
	if err != nil {
		return Value{}, err
	}
	switch n.op {
	case "-":
		if v.Kind != Number {
			return Value{}, fmt.Errorf("expr: cannot negate a %s", v.Kind)
		}
		return number(v.Num.Neg()), nil
	case "not":
		if v.Kind != Bool {
			return Value{}, fmt.Errorf("expr: 'not' wants a bool, got %s", v.Kind)
		}
		return boolean(!v.Bool), nil
	}
	return Value{}, fmt.Errorf("expr: unknown unary operator %q", n.op)
}

type binaryNode struct {
	op   string
	l, r node
}

func (n binaryNode) eval(ctx *Context) (Value, error) {
	// and/or short-circuit.
	if n.op == "and" || n.op == "or" {
		lv, err := n.l.eval(ctx)
		if err != nil {
			return Value{}, err
		}
		if lv.Kind != Bool {
			return Value{}, fmt.Errorf("expr: %q wants bool operands, got %s", n.op, lv.Kind)
		}
		if n.op == "and" && !lv.Bool {
			return boolean(false), nil
		}
		if n.op == "or" && lv.Bool {
			return boolean(true), nil
		}
		rv, err := n.r.eval(ctx)
		if err != nil {
			return Value{}, err
		}
		if rv.Kind != Bool {
			return Value{}, fmt.Errorf("expr: %q wants bool operands, got %s", n.op, rv.Kind)
		}
		return boolean(rv.Bool), nil
	}

	lv, err := n.l.eval(ctx)
	if err != nil {
		return Value{}, err
	}
	rv, err := n.r.eval(ctx)
	if err != nil {
		return Value{}, err
	}

	switch n.op {
	case "+", "-", "*", "/":
		if lv.Kind != Number || rv.Kind != Number {
			return Value{}, fmt.Errorf("expr: %q wants numbers, got %s and %s", n.op, lv.Kind, rv.Kind)
		}
		switch n.op {
		case "+":
			return number(lv.Num.Add(rv.Num)), nil
		case "-":
			return number(lv.Num.Sub(rv.Num)), nil
		case "*":
			return number(lv.Num.Mul(rv.Num)), nil
		case "/":
			if rv.Num.IsZero() {
				return Value{}, fmt.Errorf("expr: division by zero")
			}
			return number(lv.Num.Div(rv.Num)), nil
		}

	case "in":
		if lv.Kind != String || rv.Kind != String {
			return Value{}, fmt.Errorf("expr: 'in' wants strings, got %s and %s", lv.Kind, rv.Kind)
		}
		return boolean(strings.Contains(rv.Str, lv.Str)), nil

	case "==", "!=":
		eq, err := valuesEqual(lv, rv)
		if err != nil {
			return Value{}, err
		}
		if n.op == "!=" {
			eq = !eq
		}
		return boolean(eq), nil

	case "<", "<=", ">", ">=":
		if lv.Kind != Number || rv.Kind != Number {
			return Value{}, fmt.Errorf("expr: %q wants numbers, got %s and %s", n.op, lv.Kind, rv.Kind)
		}
		c := lv.Num.Cmp(rv.Num)
		switch n.op {
		case "<":
			return boolean(c < 0), nil
		case "<=":
			return boolean(c <= 0), nil
		case ">":
			return boolean(c > 0), nil
		case ">=":
			return boolean(c >= 0), nil
		}
	}
	return Value{}, fmt.Errorf("expr: unknown operator %q", n.op)
}

func valuesEqual(a, b Value) (bool, error) {
	if a.Kind != b.Kind {
		return false, fmt.Errorf("expr: cannot compare %s with %s", a.Kind, b.Kind)
	}
	switch a.Kind {
	case Number:
		return a.Num.Equal(b.Num), nil
	case String:
		return a.Str == b.Str, nil
	case Bool:
		return a.Bool == b.Bool, nil
	}
	return false, fmt.Errorf("expr: cannot compare values of kind %s", a.Kind)
}
