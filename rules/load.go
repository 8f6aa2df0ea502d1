package rules

import (
	"bytes"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/tweetrade/expr"
)

// On-disk shape. Decoding is strict: an unknown key anywhere in the file is
// a load error, so a typoed template field can never silently become a
// no-op.
type ruleFile struct {
	Rules []ruleYAML `yaml:"rules"`
}

type ruleYAML struct {
	Name      string      `yaml:"name"`
	Handles   []string    `yaml:"handles"`
	Keywords  []string    `yaml:"keywords"`
	Condition string      `yaml:"condition"`
	Orders    []orderYAML `yaml:"orders"`
}

type orderYAML struct {
	Side      string            `yaml:"side"`
	Kind      string            `yaml:"kind"`
	ProductID string            `yaml:"product_id"`
	Size      string            `yaml:"size"`
	Funds     string            `yaml:"funds"`
	Price     string            `yaml:"price"`
	Extra     map[string]string `yaml:"extra"`
}

// conditionTrue is the default for rules that declare no condition.
var conditionTrue = expr.MustParse("true")

// Load reads, parses and validates a rule file. Every expression in the
// file is probe-evaluated against synthetic inputs before this returns, so
// a rule that cannot evaluate is a startup failure, not a trade-time one.
// No network I/O happens here.
func Load(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load for in-memory rule definitions.
func Parse(data []byte) ([]Rule, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f ruleFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("rules: parse: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rules: file defines no rules")
	}

	out := make([]Rule, 0, len(f.Rules))
	for i, ry := range f.Rules {
		r, err := compileRule(i+1, ry)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func compileRule(idx int, ry ruleYAML) (Rule, error) {
	fail := func(field string, err error) (Rule, error) {
		return Rule{}, &ValidationError{Rule: idx, Name: ry.Name, Field: field, Err: err}
	}

	if len(ry.Handles) == 0 && len(ry.Keywords) == 0 {
		return fail("", fmt.Errorf("a rule must declare at least one of handles/keywords"))
	}

	r := Rule{
		Name:     ry.Name,
		Handles:  lowercaseAll(ry.Handles),
		Keywords: lowercaseAll(ry.Keywords),
	}

	// An absent condition means "always true", not an error.
	if ry.Condition == "" {
		r.Condition = conditionTrue
	} else {
		cond, err := expr.Parse(ry.Condition)
		if err != nil {
			return fail("condition", err)
		}
		if _, err := cond.EvalBool(conditionProbeContext()); err != nil {
			return fail("condition", err)
		}
		r.Condition = cond
	}

	if len(ry.Orders) == 0 {
		return fail("orders", fmt.Errorf("a rule must declare at least one order"))
	}
	for j, oy := range ry.Orders {
		tmpl, field, err := compileOrder(oy)
		if err != nil {
			return fail(fmt.Sprintf("orders[%d].%s", j+1, field), err)
		}
		r.Orders = append(r.Orders, tmpl)
	}
	return r, nil
}

func compileOrder(oy orderYAML) (OrderTemplate, string, error) {
	var tmpl OrderTemplate

	switch Side(oy.Side) {
	case Buy, Sell:
		tmpl.Side = Side(oy.Side)
	case "":
		return tmpl, "side", fmt.Errorf("an order must have a side (buy or sell)")
	default:
		return tmpl, "side", fmt.Errorf("side must be buy or sell, not %q", oy.Side)
	}

	switch Kind(oy.Kind) {
	case Market, Limit, Stop:
		tmpl.Kind = Kind(oy.Kind)
	case "":
		// The venue's default order type.
		tmpl.Kind = Limit
	default:
		return tmpl, "kind", fmt.Errorf("kind must be market, limit or stop, not %q", oy.Kind)
	}

	if oy.ProductID == "" {
		return tmpl, "product_id", fmt.Errorf("an order must have a product_id")
	}
	tmpl.ProductID = oy.ProductID

	switch tmpl.Kind {
	case Limit:
		if oy.Price == "" || oy.Size == "" {
			return tmpl, "price/size", fmt.Errorf("a limit order must declare both price and size")
		}
	case Market, Stop:
		if oy.Size == "" && oy.Funds == "" {
			return tmpl, "size/funds", fmt.Errorf("a %s order must declare size or funds", tmpl.Kind)
		}
	}

	probe := probeContext()
	amounts := []struct {
		name string
		src  string
		dst  **expr.Expr
	}{
		{"size", oy.Size, &tmpl.Size},
		{"funds", oy.Funds, &tmpl.Funds},
		{"price", oy.Price, &tmpl.Price},
	}
	for _, a := range amounts {
		if a.src == "" {
			continue
		}
		e, err := expr.Parse(a.src)
		if err != nil {
			return tmpl, a.name, err
		}
		if _, err := e.EvalNumber(probe); err != nil {
			return tmpl, a.name, err
		}
		*a.dst = e
	}

	for k := range oy.Extra {
		if !extraVocab[k] {
			return tmpl, "extra", fmt.Errorf("unrecognized order key %q", k)
		}
	}
	tmpl.Extra = oy.Extra

	return tmpl, "", nil
}

// Probe inputs are fixed and synthetic: dummy tweet text, a token non-zero
// balance in every currency the venue lists, and nominal book prices.
const probeTweet = "The rain in Spain stays mainly in the plain."

func probeContext() *expr.Context {
	token := decimal.RequireFromString("0.01")
	nominal := decimal.NewFromInt(200)
	return &expr.Context{
		Tweet: probeTweet,
		Available: map[string]decimal.Decimal{
			"BTC": token,
			"ETH": token,
			"LTC": token,
			"USD": token,
		},
		InsideBid: nominal,
		InsideAsk: nominal,
		HasBook:   true,
	}
}

// Conditions are matched before any balances or book are fetched, so they
// may reference only the tweet; probing them with a tweet-only context
// rejects a balance-dependent condition at startup instead of at trade time.
func conditionProbeContext() *expr.Context {
	return &expr.Context{Tweet: probeTweet}
}
