//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS plasmids_fts USING fts5(
			slug UNINDEXED,
			name,
			item_name,
			details,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, slug, name, itemName, details string) error {
	if err := ftsDelete(tx, slug); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO plasmids_fts (slug, name, item_name, details) VALUES (?, ?, ?, ?)`,
		slug, name, itemName, details)
	if err != nil {
		return fmt.Errorf("index: upsert fts %s: %w", slug, err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, slug string) error {
	if _, err := tx.Exec(`DELETE FROM plasmids_fts WHERE slug = ?`, slug); err != nil {
		return fmt.Errorf("index: delete fts %s: %w", slug, err)
	}
	return nil
}

// matchExpr turns free text into an FTS5 query: every term becomes a quoted
// string so punctuation in plasmid names is matched literally.
func matchExpr(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// Search performs an FTS5 full-text search over plasmid names and details.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	expr := matchExpr(query)
	if expr == "" {
		return nil, nil
	}
	rows, err := db.conn.Query(`
		SELECT slug,
		       name,
		       snippet(plasmids_fts, 3, '<b>', '</b>', '...', 32)
		FROM plasmids_fts
		WHERE plasmids_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, expr, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Slug, &r.Name, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
