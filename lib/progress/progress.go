// Package progress keeps a checkpoint ledger of fully processed
// (case type, registry, year, page) units so an interrupted extraction
// can skip work that already landed in the output file. The ledger is
// advisory, the result store's key dedup makes replays harmless either
// way.
package progress

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS completed_unit (
	case_type TEXT NOT NULL,
	registry TEXT NOT NULL,
	year INTEGER NOT NULL,
	page INTEGER NOT NULL,
	completed_at INTEGER NOT NULL,
	PRIMARY KEY (case_type, registry, year, page)
);
`

// Unit identifies one page of search results for one search.
type Unit struct {
	CaseType string
	Registry string
	Year     int
	Page     int
}

type Ledger struct {
	db *sql.DB
}

// Open connects to the ledger database. Plain paths (and ":memory:")
// use the embedded sqlite driver, "libsql://" DSNs go to a remote
// instance.
func Open(dsn string) (*Ledger, error) {
	driver := "sqlite"
	if strings.HasPrefix(dsn, "libsql://") {
		driver = "libsql"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) MarkComplete(ctx context.Context, unit Unit) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO completed_unit (case_type, registry, year, page, completed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (case_type, registry, year, page) DO UPDATE SET completed_at = excluded.completed_at
	`, unit.CaseType, unit.Registry, unit.Year, unit.Page, time.Now().Unix())
	return err
}

func (l *Ledger) IsComplete(ctx context.Context, unit Unit) (bool, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM completed_unit
		WHERE case_type = ? AND registry = ? AND year = ? AND page = ?
	`, unit.CaseType, unit.Registry, unit.Year, unit.Page)
	var count int
	err := row.Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CompletedPages lists the pages already processed for one search, in
// ascending order.
func (l *Ledger) CompletedPages(ctx context.Context, caseType, registry string, year int) ([]int, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT page FROM completed_unit
		WHERE case_type = ? AND registry = ? AND year = ?
		ORDER BY page ASC
	`, caseType, registry, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []int
	for rows.Next() {
		var page int
		if err := rows.Scan(&page); err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}
