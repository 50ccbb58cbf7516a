package doctor

import (
	"context"
	"database/sql"
)

// StorageCheck pings the database and runs SQLite's quick integrity check.
type StorageCheck struct {
	conn *sql.DB
	path string
}

func NewStorageCheck(conn *sql.DB, path string) *StorageCheck {
	return &StorageCheck{conn: conn, path: path}
}

func (c *StorageCheck) Name() string { return "Storage" }

func (c *StorageCheck) Run(ctx context.Context) Result {
	res := Result{Name: c.Name()}

	if err := c.conn.PingContext(ctx); err != nil {
		res.Add(Fail("database", "unreachable: "+err.Error()))
		return res
	}
	res.Add(Pass("database", c.path))

	var verdict string
	switch err := c.conn.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&verdict); {
	case err != nil:
		res.Add(Fail("integrity", err.Error()))
	case verdict != "ok":
		res.Add(Fail("integrity", verdict))
	default:
		res.Add(Pass("integrity", ""))
	}
	return res
}
