// Package journal persists trading activity: which tweets matched which
// rules, and what happened to each order built from them. The store is
// SQLite; the CLI's journal subcommand queries it.
package journal

import (
	"time"
)

// MatchRecord is one tweet that matched a rule.
type MatchRecord struct {
	MatchID string
	Rule    string // rule name, or "#N" for unnamed rules
	Author  string
	Text    string
	Time    time.Time
}

// Order outcomes.
const (
	StatusSubmitted = "submitted"
	StatusSkipped   = "skipped" // amount rounded to zero at cent granularity
	StatusFailed    = "failed"  // venue rejected the submission
)

// OrderRecord is the outcome of one order template for one match.
type OrderRecord struct {
	OrderID   string // our record ID, not the venue's
	MatchID   string
	ClientOID string
	ProductID string
	Side      string
	Kind      string
	Size      string
	Funds     string
	Price     string
	Status    string
	Detail    string // venue ack/order ID, error text, or skip reason
	Time      time.Time
}

type Journal interface {
	RecordMatch(MatchRecord) error
	RecordOrder(OrderRecord) error
	Close() error
}

// Discard is a Journal that keeps nothing; it stands in when the operator
// disables journaling.
type Discard struct{}

func (Discard) RecordMatch(MatchRecord) error { return nil }
func (Discard) RecordOrder(OrderRecord) error { return nil }
func (Discard) Close() error                  { return nil }
