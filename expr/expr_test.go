package expr

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullContext() *Context {
	return &Context{
		Tweet: "ETHUSD going long",
		Available: map[string]decimal.Decimal{
			"USD": decimal.RequireFromString("100.50"),
			"ETH": decimal.RequireFromString("2"),
		},
		InsideBid: decimal.RequireFromString("199.99"),
		InsideAsk: decimal.RequireFromString("200.01"),
		HasBook:   true,
	}
}

func TestEvalBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"membership", `"long" in tweet`, true},
		{"membership miss", `"short" in tweet`, false},
		{"membership case sensitive", `"LONG" in tweet`, false},
		{"and", `"ETHUSD" in tweet and "long" in tweet`, true},
		{"and short circuit", `"nope" in tweet and "long" in tweet`, false},
		{"or", `"nope" in tweet or "long" in tweet`, true},
		{"not", `not ("short" in tweet)`, true},
		{"true literal", `true`, true},
		{"python true literal", `True`, true},
		{"false literal", `false`, false},
		{"numeric comparison", `available[USD] > 100`, true},
		{"numeric equality", `available[ETH] == 2`, true},
		{"book comparison", `inside_ask > inside_bid`, true},
		{"string equality", `tweet == "ETHUSD going long"`, true},
		{"parens", `("a" in tweet or "z" in tweet) and true`, false},
		{"missing currency is zero", `available[XRP] == 0`, true},
		{"quoted index", `available["USD"] >= 100.50`, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, err := Parse(tt.src)
			require.NoError(t, err)
			got, err := e.EvalBool(fullContext())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"literal", `42`, "42"},
		{"balance", `available[USD]`, "100.5"},
		{"scaled balance", `available[USD]*0.5`, "50.25"},
		{"precedence", `1 + 2 * 3`, "7"},
		{"parens win", `(1 + 2) * 3`, "9"},
		{"division", `available[ETH] / 4`, "0.5"},
		{"unary minus", `-available[ETH]`, "-2"},
		{"book price", `inside_bid + 0.01`, "200"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, err := Parse(tt.src)
			require.NoError(t, err)
			got, err := e.EvalNumber(fullContext())
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got),
				"want %s, got %s", tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	srcs := []string{
		``,
		`1 +`,
		`"unterminated`,
		`os.system("rm -rf /")`,
		`__import__`,
		`foo`,
		`available`,
		`available[`,
		`available[1]`,
		`tweet tweet`,
		`(1 + 2`,
		`= 1`,
	}

	for _, src := range srcs {
		src := src
		t.Run(src, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(src)
			assert.Error(t, err)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		ctx  *Context
	}{
		{"division by zero", `1 / 0`, fullContext()},
		{"type mismatch arith", `tweet + 1`, fullContext()},
		{"type mismatch in", `1 in tweet`, fullContext()},
		{"not on number", `not 1`, fullContext()},
		{"mixed equality", `tweet == 1`, fullContext()},
		{"balances out of scope", `available[USD] > 0`, &Context{Tweet: "x"}},
		{"book out of scope", `inside_bid > 0`, &Context{Tweet: "x"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, err := Parse(tt.src)
			require.NoError(t, err)
			_, err = e.Eval(tt.ctx)
			assert.Error(t, err)
		})
	}
}

func TestEvalBoolRejectsNonBool(t *testing.T) {
	t.Parallel()

	e := MustParse(`1 + 1`)
	_, err := e.EvalBool(fullContext())
	assert.Error(t, err)
}
