// Package rules loads and validates the declarative rule file that maps
// tweets to orders. Rules are loaded once at startup, validated against a
// synthetic probe context before any network activity, and are immutable for
// the life of the process.
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/tweetrade/expr"
)

// Side is an order direction.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Kind is an order type at the venue.
type Kind string

const (
	Market Kind = "market"
	Limit  Kind = "limit"
	Stop   Kind = "stop"
)

// extraVocab is the set of pass-through order keys the venue understands
// beyond the templated ones. Anything else in an order template is rejected
// at load time.
var extraVocab = map[string]bool{
	"client_oid":        true,
	"stp":               true,
	"time_in_force":     true,
	"cancel_after":      true,
	"post_only":         true,
	"overdraft_enabled": true,
	"funding_amount":    true,
}

// Rule is one declarative trigger: handle/keyword filters plus a condition
// expression, bound to an ordered list of order templates. Handles and
// keywords are lowercased at load so matching is case-insensitive; the
// condition sees the raw tweet text.
type Rule struct {
	Name      string
	Handles   []string
	Keywords  []string
	Condition *expr.Expr
	Orders    []OrderTemplate
}

// OrderTemplate is a parameterized order. Size/Funds/Price are nil when the
// rule file omits them; validation guarantees the combinations the kind
// requires.
type OrderTemplate struct {
	Side      Side
	Kind      Kind
	ProductID string
	Size      *expr.Expr
	Funds     *expr.Expr
	Price     *expr.Expr
	Extra     map[string]string
}

// ValidationError names the rule and field a load-time check rejected.
type ValidationError struct {
	Rule  int // 1-based index in the file
	Name  string
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	who := fmt.Sprintf("rule #%d", e.Rule)
	if e.Name != "" {
		who = fmt.Sprintf("rule #%d (%q)", e.Rule, e.Name)
	}
	if e.Field == "" {
		return fmt.Sprintf("rules: %s: %v", who, e.Err)
	}
	return fmt.Sprintf("rules: %s, field %q: %v", who, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// SubscriptionFilter is the union of every handle and keyword the loaded
// rules reference; it is what the stream connection subscribes to.
type SubscriptionFilter struct {
	Handles  []string
	Keywords []string
}

// Filter computes the subscription filter for a rule set. Output is sorted
// and deduplicated so reconnects subscribe identically.
func Filter(rules []Rule) SubscriptionFilter {
	handles := map[string]bool{}
	keywords := map[string]bool{}
	for _, r := range rules {
		for _, h := range r.Handles {
			handles[h] = true
		}
		for _, k := range r.Keywords {
			keywords[k] = true
		}
	}
	return SubscriptionFilter{
		Handles:  sortedKeys(handles),
		Keywords: sortedKeys(keywords),
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func lowercaseAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
