package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tweetrade/journal"
	"github.com/rustyeddy/tweetrade/rules"
	"github.com/rustyeddy/tweetrade/stream"
	"github.com/rustyeddy/tweetrade/venue"
)

// fakeVenue scripts balances per call and records submissions.
type fakeVenue struct {
	balances     []map[string]decimal.Decimal // consumed one per GetBalances
	book         venue.OrderBook
	submitErr    error
	balanceCalls int
	bookCalls    int
	submitted    []venue.Order
}

func (v *fakeVenue) GetBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	v.balanceCalls++
	if len(v.balances) == 0 {
		return nil, fmt.Errorf("no scripted balances")
	}
	b := v.balances[0]
	if len(v.balances) > 1 {
		v.balances = v.balances[1:]
	}
	return b, nil
}

func (v *fakeVenue) GetOrderBook(ctx context.Context, productID string) (venue.OrderBook, error) {
	v.bookCalls++
	return v.book, nil
}

func (v *fakeVenue) SubmitOrder(ctx context.Context, o venue.Order) (venue.Ack, error) {
	if v.submitErr != nil {
		return venue.Ack{}, v.submitErr
	}
	v.submitted = append(v.submitted, o)
	return venue.Ack{OrderID: fmt.Sprintf("srv-%d", len(v.submitted)), Status: "pending"}, nil
}

// memJournal records everything in memory.
type memJournal struct {
	matches []journal.MatchRecord
	orders  []journal.OrderRecord
}

func (j *memJournal) RecordMatch(m journal.MatchRecord) error { j.matches = append(j.matches, m); return nil }
func (j *memJournal) RecordOrder(o journal.OrderRecord) error { j.orders = append(j.orders, o); return nil }
func (j *memJournal) Close() error                            { return nil }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func mustRules(t *testing.T, yaml string) []rules.Rule {
	t.Helper()
	rs, err := rules.Parse([]byte(yaml))
	require.NoError(t, err)
	return rs
}

func bal(pairs ...string) map[string]decimal.Decimal {
	m := map[string]decimal.Decimal{}
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i]] = decimal.RequireFromString(pairs[i+1])
	}
	return m
}

const longRule = `
rules:
  - name: eth long
    handles: [alice]
    condition: '"long" in tweet'
    orders:
      - side: buy
        kind: market
        product_id: ETH-USD
        funds: available[USD]
`

func TestMatches(t *testing.T) {
	t.Parallel()

	rs := mustRules(t, longRule)
	r := rs[0]

	tests := []struct {
		name string
		ev   stream.Event
		want bool
	}{
		{"match", stream.Event{AuthorHandle: "alice", Text: "going long"}, true},
		{"handle case insensitive", stream.Event{AuthorHandle: "ALICE", Text: "going long"}, true},
		{"wrong author", stream.Event{AuthorHandle: "mallory", Text: "going long"}, false},
		{"condition false", stream.Event{AuthorHandle: "alice", Text: "going short"}, false},
		{"condition case sensitive", stream.Event{AuthorHandle: "alice", Text: "going LONG"}, false},
		{"repost never matches", stream.Event{AuthorHandle: "alice", Text: "going long", IsRepost: true}, false},
		{"reply never matches", stream.Event{AuthorHandle: "alice", Text: "going long", IsReply: true}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Matches(tt.ev, r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchesKeywords(t *testing.T) {
	t.Parallel()

	rs := mustRules(t, `
rules:
  - keywords: [Ethereum, bullish]
    orders:
      - {side: buy, kind: market, product_id: ETH-USD, funds: "10"}
`)
	r := rs[0]

	ok, err := Matches(stream.Event{AuthorHandle: "anyone", Text: "ETHEREUM looks great"}, r)
	require.NoError(t, err)
	assert.True(t, ok, "keyword match is case-insensitive")

	ok, err = Matches(stream.Event{AuthorHandle: "anyone", Text: "nothing relevant"}, r)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTriggerScenario(t *testing.T) {
	t.Parallel()

	v := &fakeVenue{
		balances: []map[string]decimal.Decimal{bal("USD", "100.00")},
		book: venue.OrderBook{
			BestBid: decimal.RequireFromString("199.99"),
			BestAsk: decimal.RequireFromString("200.01"),
		},
	}
	j := &memJournal{}
	e := New(Config{Rules: mustRules(t, longRule), Venue: v, Journal: j, Log: quietLogger()})

	err := e.OnEvent(context.Background(), stream.Event{AuthorHandle: "alice", Text: "going long"})
	require.NoError(t, err)

	require.Len(t, v.submitted, 1)
	o := v.submitted[0]
	assert.Equal(t, "buy", o.Side)
	assert.Equal(t, "market", o.Kind)
	assert.Equal(t, "ETH-USD", o.ProductID)
	assert.Equal(t, "100", o.Funds)
	assert.Empty(t, o.Size)
	assert.NotEmpty(t, o.ClientOID)

	require.Len(t, j.matches, 1)
	assert.Equal(t, "eth long", j.matches[0].Rule)
	require.Len(t, j.orders, 1)
	assert.Equal(t, journal.StatusSubmitted, j.orders[0].Status)
}

func TestNoMatchMeansNoNetworkCalls(t *testing.T) {
	t.Parallel()

	v := &fakeVenue{balances: []map[string]decimal.Decimal{bal("USD", "100.00")}}
	e := New(Config{Rules: mustRules(t, longRule), Venue: v, Log: quietLogger()})

	err := e.OnEvent(context.Background(), stream.Event{AuthorHandle: "alice", Text: "going short"})
	require.NoError(t, err)

	assert.Empty(t, v.submitted)
	assert.Zero(t, v.balanceCalls)
	assert.Zero(t, v.bookCalls)
}

func TestInsufficientAmountSkipsTemplate(t *testing.T) {
	t.Parallel()

	v := &fakeVenue{
		balances: []map[string]decimal.Decimal{bal("USD", "0.001")},
		book:     venue.OrderBook{BestBid: decimal.NewFromInt(200), BestAsk: decimal.NewFromInt(200)},
	}
	j := &memJournal{}
	e := New(Config{Rules: mustRules(t, `
rules:
  - name: tiny
    handles: [alice]
    orders:
      - {side: buy, kind: market, product_id: ETH-USD, funds: 'available[USD]*1'}
`), Venue: v, Journal: j, Log: quietLogger()})

	err := e.OnEvent(context.Background(), stream.Event{AuthorHandle: "alice", Text: "anything"})
	require.NoError(t, err)

	// No order, and the skip is reported rather than treated as an error.
	assert.Empty(t, v.submitted)
	require.Len(t, j.orders, 1)
	assert.Equal(t, journal.StatusSkipped, j.orders[0].Status)
	assert.Contains(t, j.orders[0].Detail, "rounds to zero")
}

func TestInsufficiencySkipsRemainingTemplates(t *testing.T) {
	t.Parallel()

	v := &fakeVenue{
		balances: []map[string]decimal.Decimal{bal("USD", "0.001", "ETH", "5")},
		book:     venue.OrderBook{BestBid: decimal.NewFromInt(200), BestAsk: decimal.NewFromInt(200)},
	}
	j := &memJournal{}
	e := New(Config{Rules: mustRules(t, `
rules:
  - handles: [alice]
    orders:
      - {side: buy, kind: market, product_id: ETH-USD, funds: 'available[USD]'}
      - {side: sell, kind: market, product_id: ETH-USD, size: 'available[ETH]'}
`), Venue: v, Journal: j, Log: quietLogger()})

	err := e.OnEvent(context.Background(), stream.Event{AuthorHandle: "alice", Text: "x"})
	require.NoError(t, err)

	// The second template would have sized fine, but the rule stops at the
	// first insufficient one.
	assert.Empty(t, v.submitted)
	require.Len(t, j.orders, 1)
	assert.Equal(t, journal.StatusSkipped, j.orders[0].Status)
}

func TestFreshSnapshotPerTemplate(t *testing.T) {
	t.Parallel()

	// Balances shift between templates: the first buy consumes USD, the
	// second template must see the post-fill snapshot.
	v := &fakeVenue{
		balances: []map[string]decimal.Decimal{
			bal("USD", "100", "ETH", "0"),
			bal("USD", "0", "ETH", "0.5"),
		},
		book: venue.OrderBook{BestBid: decimal.NewFromInt(200), BestAsk: decimal.NewFromInt(200)},
	}
	e := New(Config{Rules: mustRules(t, `
rules:
  - handles: [alice]
    orders:
      - {side: buy, kind: market, product_id: ETH-USD, funds: 'available[USD]'}
      - {side: sell, kind: limit, product_id: ETH-USD, size: 'available[ETH]', price: inside_ask}
`), Venue: v, Log: quietLogger()})

	err := e.OnEvent(context.Background(), stream.Event{AuthorHandle: "alice", Text: "x"})
	require.NoError(t, err)

	assert.Equal(t, 2, v.balanceCalls)
	require.Len(t, v.submitted, 2)
	assert.Equal(t, "100", v.submitted[0].Funds)
	assert.Equal(t, "0.5", v.submitted[1].Size)
	assert.Equal(t, "200", v.submitted[1].Price)
}

func TestSubmissionFailureContinues(t *testing.T) {
	t.Parallel()

	v := &fakeVenue{
		balances:  []map[string]decimal.Decimal{bal("USD", "100")},
		book:      venue.OrderBook{BestBid: decimal.NewFromInt(200), BestAsk: decimal.NewFromInt(200)},
		submitErr: fmt.Errorf("venue: api error 503: down"),
	}
	j := &memJournal{}
	e := New(Config{Rules: mustRules(t, longRule), Venue: v, Journal: j, Log: quietLogger()})

	// A failed submission is surfaced, never retried, and never fatal.
	err := e.OnEvent(context.Background(), stream.Event{AuthorHandle: "alice", Text: "going long"})
	require.NoError(t, err)

	require.Len(t, j.orders, 1)
	assert.Equal(t, journal.StatusFailed, j.orders[0].Status)
	assert.Contains(t, j.orders[0].Detail, "503")
}

func TestSleepPacesSubmissions(t *testing.T) {
	t.Parallel()

	const sleep = 40 * time.Millisecond

	v := &fakeVenue{
		balances: []map[string]decimal.Decimal{bal("USD", "100", "ETH", "1")},
		book:     venue.OrderBook{BestBid: decimal.NewFromInt(200), BestAsk: decimal.NewFromInt(200)},
	}
	e := New(Config{Rules: mustRules(t, `
rules:
  - handles: [alice]
    orders:
      - {side: buy, kind: market, product_id: ETH-USD, funds: 'available[USD]'}
      - {side: sell, kind: market, product_id: ETH-USD, size: 'available[ETH]'}
`), Venue: v, Log: quietLogger(), Sleep: sleep})

	start := time.Now()
	err := e.OnEvent(context.Background(), stream.Event{AuthorHandle: "alice", Text: "x"})
	require.NoError(t, err)

	require.Len(t, v.submitted, 2)
	assert.GreaterOrEqual(t, time.Since(start), sleep)
}

func TestMaterializeExtraAndClientOID(t *testing.T) {
	t.Parallel()

	rs := mustRules(t, `
rules:
  - handles: [alice]
    orders:
      - side: buy
        kind: limit
        product_id: BTC-USD
        price: inside_bid - 1
        size: "0.25"
        extra:
          time_in_force: GTT
          cancel_after: hour
          client_oid: fixed-oid
`)
	book := venue.OrderBook{
		BestBid: decimal.RequireFromString("30000.50"),
		BestAsk: decimal.RequireFromString("30001.00"),
	}

	order, insufficient, err := Materialize(rs[0].Orders[0], "text", bal("USD", "10000"), book)
	require.NoError(t, err)
	assert.False(t, insufficient)

	assert.Equal(t, "29999.5", order.Price)
	assert.Equal(t, "0.25", order.Size)
	assert.Equal(t, "fixed-oid", order.ClientOID)
	assert.Equal(t, "GTT", order.Extra["time_in_force"])
	_, leaked := order.Extra["client_oid"]
	assert.False(t, leaked)
}
