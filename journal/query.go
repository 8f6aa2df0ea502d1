package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// GetMatch returns a single match record by ID.
func (j *SQLite) GetMatch(matchID string) (MatchRecord, error) {
	var rec MatchRecord

	row := j.db.QueryRow(`
		SELECT match_id, rule, author, text, time
		FROM matches
		WHERE match_id = ?`, matchID)

	err := row.Scan(
		&rec.MatchID,
		&rec.Rule,
		&rec.Author,
		&rec.Text,
		&rec.Time,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return MatchRecord{}, fmt.Errorf("match %q not found", matchID)
		}
		return MatchRecord{}, err
	}
	return rec, nil
}

// ListMatchesBetween returns matches whose time is within [start, end).
func (j *SQLite) ListMatchesBetween(start, end time.Time) ([]MatchRecord, error) {
	rows, err := j.db.Query(`
		SELECT match_id, rule, author, text, time
		FROM matches
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MatchRecord
	for rows.Next() {
		var rec MatchRecord
		if err := rows.Scan(
			&rec.MatchID,
			&rec.Rule,
			&rec.Author,
			&rec.Text,
			&rec.Time,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOrdersByMatch returns the orders produced by one match, in the order
// they were recorded.
func (j *SQLite) ListOrdersByMatch(matchID string) ([]OrderRecord, error) {
	return j.listOrders(`
		SELECT order_id, match_id, client_oid, product_id, side, kind, size, funds, price, status, detail, time
		FROM orders
		WHERE match_id = ?
		ORDER BY time ASC`, matchID)
}

// ListOrdersBetween returns orders whose time is within [start, end).
func (j *SQLite) ListOrdersBetween(start, end time.Time) ([]OrderRecord, error) {
	return j.listOrders(`
		SELECT order_id, match_id, client_oid, product_id, side, kind, size, funds, price, status, detail, time
		FROM orders
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
}

func (j *SQLite) listOrders(query string, args ...any) ([]OrderRecord, error) {
	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var rec OrderRecord
		if err := rows.Scan(
			&rec.OrderID,
			&rec.MatchID,
			&rec.ClientOID,
			&rec.ProductID,
			&rec.Side,
			&rec.Kind,
			&rec.Size,
			&rec.Funds,
			&rec.Price,
			&rec.Status,
			&rec.Detail,
			&rec.Time,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
