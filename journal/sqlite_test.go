package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	assert.NoError(t, err)

	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('matches','orders')`)
	assert.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	assert.True(t, found["matches"])
	assert.True(t, found["orders"])
}

func TestSQLiteRecordAndQuery(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	at := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)

	match := MatchRecord{
		MatchID: "M1",
		Rule:    "eth long",
		Author:  "alice",
		Text:    "going long",
		Time:    at,
	}
	assert.NoError(t, j.RecordMatch(match))

	assert.NoError(t, j.RecordOrder(OrderRecord{
		OrderID:   "O1",
		MatchID:   "M1",
		ClientOID: "C1",
		ProductID: "ETH-USD",
		Side:      "buy",
		Kind:      "market",
		Funds:     "100",
		Status:    StatusSubmitted,
		Detail:    "srv-order-1",
		Time:      at.Add(time.Second),
	}))
	assert.NoError(t, j.RecordOrder(OrderRecord{
		OrderID:   "O2",
		MatchID:   "M1",
		ProductID: "ETH-USD",
		Side:      "sell",
		Kind:      "market",
		Size:      "0.001",
		Status:    StatusSkipped,
		Detail:    "size rounds to zero",
		Time:      at.Add(2 * time.Second),
	}))

	got, err := j.GetMatch("M1")
	assert.NoError(t, err)
	assert.Equal(t, "alice", got.Author)
	assert.Equal(t, "going long", got.Text)

	_, err = j.GetMatch("nope")
	assert.Error(t, err)

	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	matches, err := j.ListMatchesBetween(day, day.Add(24*time.Hour))
	assert.NoError(t, err)
	assert.Len(t, matches, 1)

	orders, err := j.ListOrdersByMatch("M1")
	assert.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, StatusSubmitted, orders[0].Status)
	assert.Equal(t, StatusSkipped, orders[1].Status)

	orders, err = j.ListOrdersBetween(day, day.Add(24*time.Hour))
	assert.NoError(t, err)
	assert.Len(t, orders, 2)

	none, err := j.ListMatchesBetween(day.Add(-48*time.Hour), day.Add(-24*time.Hour))
	assert.NoError(t, err)
	assert.Empty(t, none)
}
