// Package venue is the trading-venue boundary: live balances, best bid/ask,
// and order submission. The rest of the system talks to the Venue interface;
// the concrete client wraps the venue's REST API.
package venue

import (
	"context"

	"github.com/shopspring/decimal"
)

// OrderBook is the inside of the book for one product.
type OrderBook struct {
	BestBid decimal.Decimal
	BestAsk decimal.Decimal
}

// Order is a fully materialized order, ready for submission. Amount fields
// are decimal strings; an empty string means the field is unset for this
// order kind. Extra carries venue pass-through keys the rule file declared.
type Order struct {
	ClientOID string
	Side      string
	Kind      string
	ProductID string
	Size      string
	Funds     string
	Price     string
	Extra     map[string]string
}

// Ack is the venue's acknowledgment of a submitted order.
type Ack struct {
	OrderID string
	Status  string
}

// Venue is the trading collaborator. Implementations must be safe for the
// single-worker call pattern: one call at a time, each with its own context.
type Venue interface {
	// GetBalances returns the available (not held) balance per currency.
	GetBalances(ctx context.Context) (map[string]decimal.Decimal, error)

	// GetOrderBook returns the current best bid and ask for a product.
	GetOrderBook(ctx context.Context, productID string) (OrderBook, error)

	// SubmitOrder places an order. Submission is fire-once: callers never
	// retry a failed submission, to avoid double-placing a market order.
	SubmitOrder(ctx context.Context, o Order) (Ack, error)
}
