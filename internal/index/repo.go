package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gallowaylab/plasmiddb/internal/apperr"
	"github.com/gallowaylab/plasmiddb/internal/checksum"
	"github.com/gallowaylab/plasmiddb/internal/plasmid"
)

// Snapshot is one linted build.
type Snapshot struct {
	BuiltAt  time.Time
	Users    []plasmid.User
	Plasmids []*plasmid.Plasmid
	Summary  plasmid.Summary
}

// SaveResult reports what SaveSnapshot changed.
type SaveResult struct {
	BuildID   int64
	Upserted  int
	Unchanged int
	Removed   int
}

// ViolationRow is a stored violation joined with its plasmid.
type ViolationRow struct {
	Slug     string
	Catalog  int
	Seq      int
	Severity plasmid.Severity
	Category string
	Message  string
}

// BuildRow is one recorded build.
type BuildRow struct {
	ID             int64
	BuiltAt        time.Time
	Plasmids       int
	ErrorRecords   int
	WarningRecords int
}

// SearchResult represents one search hit.
type SearchResult struct {
	Slug    string
	Name    string
	Snippet string
}

// SaveSnapshot writes a build in one transaction. Plasmid rows are only
// rewritten when the checksum of their raw record changed; slugs absent from
// the snapshot are removed. Users and violations are replaced wholesale.
func (db *DB) SaveSnapshot(ctx context.Context, snap Snapshot) (SaveResult, error) {
	var res SaveResult

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	existing, err := checksums(ctx, tx)
	if err != nil {
		return res, err
	}

	current := make(map[string]struct{}, len(snap.Plasmids))
	for i, p := range snap.Plasmids {
		current[p.Slug] = struct{}{}
		raw, cs, err := checksum.Record(p.Raw())
		if err != nil {
			return res, fmt.Errorf("index: %s: %w", p.Slug, err)
		}
		if existing[p.Slug] == cs {
			if _, err := tx.ExecContext(ctx, `UPDATE plasmids SET position = ? WHERE slug = ?`, i, p.Slug); err != nil {
				return res, fmt.Errorf("index: reposition %s: %w", p.Slug, err)
			}
			res.Unchanged++
			continue
		}
		details := strings.Join(p.Details, "; ")
		_, err = tx.ExecContext(ctx, `
			INSERT INTO plasmids (slug, position, catalog, item_name, name, owner_id, alt_name, vendor, details, raw, checksum, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(slug) DO UPDATE SET
				position   = excluded.position,
				catalog    = excluded.catalog,
				item_name  = excluded.item_name,
				name       = excluded.name,
				owner_id   = excluded.owner_id,
				alt_name   = excluded.alt_name,
				vendor     = excluded.vendor,
				details    = excluded.details,
				raw        = excluded.raw,
				checksum   = excluded.checksum,
				updated_at = excluded.updated_at
		`, p.Slug, i, p.Catalog, p.ItemName, p.Name, p.OwnerID, p.AltName, p.Vendor, details, string(raw), cs, snap.BuiltAt)
		if err != nil {
			return res, fmt.Errorf("index: upsert %s: %w", p.Slug, err)
		}
		if err := ftsUpsert(tx, p.Slug, p.Name, p.ItemName, details); err != nil {
			return res, err
		}
		res.Upserted++
	}

	for slug := range existing {
		if _, ok := current[slug]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM plasmids WHERE slug = ?`, slug); err != nil {
			return res, fmt.Errorf("index: delete %s: %w", slug, err)
		}
		if err := ftsDelete(tx, slug); err != nil {
			return res, err
		}
		res.Removed++
	}

	if err := replaceViolations(ctx, tx, snap.Plasmids); err != nil {
		return res, err
	}
	if err := replaceUsers(ctx, tx, snap.Users); err != nil {
		return res, err
	}

	r, err := tx.ExecContext(ctx, `
		INSERT INTO builds (built_at, plasmids, error_records, warning_records)
		VALUES (?, ?, ?, ?)
	`, snap.BuiltAt, len(snap.Plasmids), snap.Summary.ErrorRecords, snap.Summary.WarningRecords)
	if err != nil {
		return res, fmt.Errorf("index: record build: %w", err)
	}
	res.BuildID, _ = r.LastInsertId()

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("index: commit: %w", err)
	}
	return res, nil
}

func checksums(ctx context.Context, tx *sql.Tx) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT slug, checksum FROM plasmids`)
	if err != nil {
		return nil, fmt.Errorf("index: checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var slug, cs string
		if err := rows.Scan(&slug, &cs); err != nil {
			return nil, err
		}
		out[slug] = cs
	}
	return out, rows.Err()
}

func replaceViolations(ctx context.Context, tx *sql.Tx, plasmids []*plasmid.Plasmid) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM violations`); err != nil {
		return fmt.Errorf("index: clear violations: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO violations (slug, seq, severity, category, message) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare violation insert: %w", err)
	}
	defer stmt.Close()
	for _, p := range plasmids {
		for seq, v := range p.Violations() {
			if _, err := stmt.ExecContext(ctx, p.Slug, seq, string(v.Severity), v.Category, v.Message); err != nil {
				return fmt.Errorf("index: insert violation: %w", err)
			}
		}
	}
	return nil
}

func replaceUsers(ctx context.Context, tx *sql.Tx, users []plasmid.User) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("index: clear users: %w", err)
	}
	for i, u := range users {
		raw, err := json.Marshal(plasmid.RawUser{
			ID:        u.ID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			FullName:  u.FullName,
		})
		if err != nil {
			return fmt.Errorf("index: encode user %s: %w", u.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO users (id, position, raw) VALUES (?, ?, ?)`, u.ID, i, string(raw)); err != nil {
			return fmt.Errorf("index: insert user: %w", err)
		}
	}
	return nil
}

// LoadRaw returns the raw users and plasmids of the last saved snapshot in
// their original order.
func (db *DB) LoadRaw(ctx context.Context) ([]plasmid.RawUser, []plasmid.RawPlasmid, error) {
	var users []plasmid.RawUser
	if err := scanRaw(ctx, db.conn, `SELECT raw FROM users ORDER BY position`, func(data []byte) error {
		var u plasmid.RawUser
		if err := json.Unmarshal(data, &u); err != nil {
			return err
		}
		users = append(users, u)
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("index: load users: %w", err)
	}

	var plasmids []plasmid.RawPlasmid
	if err := scanRaw(ctx, db.conn, `SELECT raw FROM plasmids ORDER BY position`, func(data []byte) error {
		var p plasmid.RawPlasmid
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		plasmids = append(plasmids, p)
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("index: load plasmids: %w", err)
	}
	return users, plasmids, nil
}

func scanRaw(ctx context.Context, conn *sql.DB, query string, fn func([]byte) error) error {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		if err := fn([]byte(raw)); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ViolationsByCategory returns the stored violations of one category in
// record order.
func (db *DB) ViolationsByCategory(ctx context.Context, category string) ([]ViolationRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT v.slug, p.catalog, v.seq, v.severity, v.category, v.message
		FROM violations v
		JOIN plasmids p ON p.slug = v.slug
		WHERE v.category = ?
		ORDER BY p.position, v.seq
	`, category)
	if err != nil {
		return nil, fmt.Errorf("index: violations by category: %w", err)
	}
	defer rows.Close()

	var out []ViolationRow
	for rows.Next() {
		var r ViolationRow
		var sev string
		if err := rows.Scan(&r.Slug, &r.Catalog, &r.Seq, &sev, &r.Category, &r.Message); err != nil {
			return nil, err
		}
		r.Severity = plasmid.Severity(sev)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastBuild returns the most recent build, or apperr.ErrNotFound.
func (db *DB) LastBuild(ctx context.Context) (*BuildRow, error) {
	var b BuildRow
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, built_at, plasmids, error_records, warning_records
		FROM builds ORDER BY id DESC LIMIT 1
	`).Scan(&b.ID, &b.BuiltAt, &b.Plasmids, &b.ErrorRecords, &b.WarningRecords)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: last build: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: last build: %w", err)
	}
	return &b, nil
}
