// Package engine evaluates incoming tweets against the loaded rules and
// turns matches into venue orders. It is the stream.Handler: the supervisor
// feeds it one event at a time, and it fetches fresh balances and book
// prices for every order template it materializes.
package engine

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/tweetrade/expr"
	"github.com/rustyeddy/tweetrade/journal"
	"github.com/rustyeddy/tweetrade/rules"
	"github.com/rustyeddy/tweetrade/stream"
	"github.com/rustyeddy/tweetrade/venue"
)

// Config wires an Engine.
type Config struct {
	Rules   []rules.Rule
	Venue   venue.Venue
	Journal journal.Journal // nil means journal.Discard
	Log     *logrus.Logger

	// Sleep is the minimum spacing between order submissions, matching the
	// trade command's --sleep flag.
	Sleep time.Duration
}

// Engine implements stream.Handler over an immutable rule set.
type Engine struct {
	rules   []rules.Rule
	venue   venue.Venue
	journal journal.Journal
	log     *logrus.Logger
	pacer   *rate.Limiter

	now   func() time.Time
	newID func() string
}

// New creates an Engine. The rule slice is borrowed read-only.
func New(cfg Config) *Engine {
	if cfg.Journal == nil {
		cfg.Journal = journal.Discard{}
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	limit := rate.Inf
	if cfg.Sleep > 0 {
		limit = rate.Every(cfg.Sleep)
	}
	return &Engine{
		rules:   cfg.Rules,
		venue:   cfg.Venue,
		journal: cfg.Journal,
		log:     cfg.Log,
		pacer:   rate.NewLimiter(limit, 1),
		now:     time.Now,
		newID:   func() string { return ulid.Make().String() },
	}
}

// OnEvent checks the event against every rule and triggers the ones that
// match. Rules run in declared order; a rule's failure never blocks the
// next rule.
func (e *Engine) OnEvent(ctx context.Context, ev stream.Event) error {
	for i, r := range e.rules {
		matched, err := Matches(ev, r)
		if err != nil {
			e.log.WithError(err).WithField("rule", ruleName(i, r)).
				Error("condition evaluation failed")
			continue
		}
		if !matched {
			continue
		}
		e.trigger(ctx, ev, i, r)
	}
	return nil
}

// OnError observes connection-level errors the supervisor recovers from.
func (e *Engine) OnError(err error) {
	e.log.WithError(err).Warn("stream interrupted")
}

// Matches reports whether the event triggers the rule: author matches a
// handle (or the rule has none), the text contains a keyword (or the rule
// has none), and the condition holds with tweet bound to the event text.
// Reposts and replies never match, regardless of the rest; echoed content
// must not re-trigger rules. Handle and keyword checks are
// case-insensitive; the condition sees the raw text.
func Matches(ev stream.Event, r rules.Rule) (bool, error) {
	if ev.IsRepost || ev.IsReply {
		return false, nil
	}

	if len(r.Handles) > 0 {
		author := strings.ToLower(ev.AuthorHandle)
		found := false
		for _, h := range r.Handles {
			if h == author {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}

	if len(r.Keywords) > 0 {
		text := strings.ToLower(ev.Text)
		found := false
		for _, k := range r.Keywords {
			if strings.Contains(text, k) {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}

	return r.Condition.EvalBool(&expr.Context{Tweet: ev.Text})
}

// trigger materializes and submits the rule's order templates, in declared
// order. Balances and the book are fetched fresh before each template:
// an earlier template's fill may have moved them.
func (e *Engine) trigger(ctx context.Context, ev stream.Event, idx int, r rules.Rule) {
	name := ruleName(idx, r)
	matchID := e.newID()

	e.log.WithFields(logrus.Fields{
		"rule":   name,
		"author": ev.AuthorHandle,
		"text":   ev.Text,
	}).Info("tweet matched")

	if err := e.journal.RecordMatch(journal.MatchRecord{
		MatchID: matchID,
		Rule:    name,
		Author:  ev.AuthorHandle,
		Text:    ev.Text,
		Time:    e.now(),
	}); err != nil {
		e.log.WithError(err).Error("journal match failed")
	}

	for _, tmpl := range r.Orders {
		log := e.log.WithFields(logrus.Fields{
			"rule":    name,
			"product": tmpl.ProductID,
			"side":    tmpl.Side,
			"kind":    tmpl.Kind,
		})

		snapshot, err := e.venue.GetBalances(ctx)
		if err != nil {
			log.WithError(err).Error("balance fetch failed; abandoning rule")
			e.recordOutcome(matchID, venue.Order{ProductID: tmpl.ProductID,
				Side: string(tmpl.Side), Kind: string(tmpl.Kind)},
				journal.StatusFailed, "balance fetch: "+err.Error())
			return
		}

		book, err := e.venue.GetOrderBook(ctx, tmpl.ProductID)
		if err != nil {
			log.WithError(err).Error("order book fetch failed; abandoning rule")
			e.recordOutcome(matchID, venue.Order{ProductID: tmpl.ProductID,
				Side: string(tmpl.Side), Kind: string(tmpl.Kind)},
				journal.StatusFailed, "order book fetch: "+err.Error())
			return
		}

		order, insufficient, err := e.materialize(tmpl, ev.Text, snapshot, book)
		if err != nil {
			// Validation probe-evaluated every expression, so this is a
			// live-context surprise (e.g. a balance the probe couldn't
			// anticipate). Surface it and abandon the rule.
			log.WithError(err).Error("amount evaluation failed; abandoning rule")
			e.recordOutcome(matchID, order, journal.StatusFailed, err.Error())
			return
		}
		if insufficient {
			// Not an error: there just isn't a meaningful amount to trade.
			// Remaining templates of this rule are skipped too, since they
			// typically depend on this one having executed.
			log.Info("amount rounds to zero at cent granularity; order not placed")
			e.recordOutcome(matchID, order, journal.StatusSkipped,
				"amount rounds to zero at cent granularity")
			return
		}

		if err := e.pacer.Wait(ctx); err != nil {
			return
		}

		ack, err := e.venue.SubmitOrder(ctx, order)
		if err != nil {
			// Fire-once: never resubmitted. The operator sees it and the
			// remaining templates still run.
			log.WithError(err).Error("order submission failed")
			e.recordOutcome(matchID, order, journal.StatusFailed, err.Error())
			continue
		}

		log.WithFields(logrus.Fields{
			"order_id": ack.OrderID,
			"size":     order.Size,
			"funds":    order.Funds,
			"price":    order.Price,
		}).Info("order placed")
		e.recordOutcome(matchID, order, journal.StatusSubmitted, ack.OrderID)
	}
}

func (e *Engine) recordOutcome(matchID string, o venue.Order, status, detail string) {
	if err := e.journal.RecordOrder(journal.OrderRecord{
		OrderID:   e.newID(),
		MatchID:   matchID,
		ClientOID: o.ClientOID,
		ProductID: o.ProductID,
		Side:      o.Side,
		Kind:      o.Kind,
		Size:      o.Size,
		Funds:     o.Funds,
		Price:     o.Price,
		Status:    status,
		Detail:    detail,
		Time:      e.now(),
	}); err != nil {
		e.log.WithError(err).Error("journal order failed")
	}
}

func (e *Engine) materialize(tmpl rules.OrderTemplate, tweet string,
	snapshot map[string]decimal.Decimal, book venue.OrderBook) (venue.Order, bool, error) {

	order, insufficient, err := Materialize(tmpl, tweet, snapshot, book)
	if err != nil || insufficient {
		return order, insufficient, err
	}
	if order.ClientOID == "" {
		order.ClientOID = e.newID()
	}
	return order, false, nil
}

// Materialize binds the live context to one order template and evaluates
// its amount expressions. insufficient is true when any evaluated amount
// truncates to zero at two decimal places; such a template produces no
// order at all, never a partial one.
func Materialize(tmpl rules.OrderTemplate, tweet string,
	snapshot map[string]decimal.Decimal, book venue.OrderBook) (venue.Order, bool, error) {

	order := venue.Order{
		Side:      string(tmpl.Side),
		Kind:      string(tmpl.Kind),
		ProductID: tmpl.ProductID,
	}
	if len(tmpl.Extra) > 0 {
		order.Extra = make(map[string]string, len(tmpl.Extra))
		for k, v := range tmpl.Extra {
			order.Extra[k] = v
		}
		if oid, ok := order.Extra["client_oid"]; ok {
			order.ClientOID = oid
			delete(order.Extra, "client_oid")
		}
	}

	ctx := &expr.Context{
		Tweet:     tweet,
		Available: snapshot,
		InsideBid: book.BestBid,
		InsideAsk: book.BestAsk,
		HasBook:   true,
	}

	insufficient := false
	amounts := []struct {
		e   *expr.Expr
		dst *string
	}{
		{tmpl.Size, &order.Size},
		{tmpl.Funds, &order.Funds},
		{tmpl.Price, &order.Price},
	}
	for _, a := range amounts {
		if a.e == nil {
			continue
		}
		d, err := a.e.EvalNumber(ctx)
		if err != nil {
			return order, false, err
		}
		*a.dst = d.String()
		// If the hundredths truncate to zero, there isn't enough to trade.
		if d.Shift(2).Truncate(0).IsZero() {
			insufficient = true
		}
	}
	return order, insufficient, nil
}

func ruleName(idx int, r rules.Rule) string {
	if r.Name != "" {
		return r.Name
	}
	return "#" + strconv.Itoa(idx+1)
}
