package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordMatch(m MatchRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO matches
		(match_id, rule, author, text, time)
		VALUES (?, ?, ?, ?, ?)`,
		m.MatchID, m.Rule, m.Author, m.Text, m.Time,
	)
	return err
}

func (j *SQLite) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(order_id, match_id, client_oid, product_id, side, kind, size, funds, price, status, detail, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.MatchID, o.ClientOID, o.ProductID, o.Side, o.Kind,
		o.Size, o.Funds, o.Price, o.Status, o.Detail, o.Time,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
