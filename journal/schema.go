// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS matches (
	match_id TEXT PRIMARY KEY,
	rule TEXT NOT NULL,
	author TEXT NOT NULL,
	text TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	order_id TEXT PRIMARY KEY,
	match_id TEXT NOT NULL,
	client_oid TEXT NOT NULL,
	product_id TEXT NOT NULL,
	side TEXT NOT NULL,
	kind TEXT NOT NULL,
	size TEXT NOT NULL,
	funds TEXT NOT NULL,
	price TEXT NOT NULL,
	status TEXT NOT NULL,
	detail TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_matches_time ON matches(time);
CREATE INDEX IF NOT EXISTS idx_orders_time ON orders(time);
CREATE INDEX IF NOT EXISTS idx_orders_match ON orders(match_id);
`
