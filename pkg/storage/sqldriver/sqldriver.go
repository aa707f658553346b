// Package sqldriver implements storage.Driver on database/sql. The sqlite
// and postgres packages open the database and hand it to New.
package sqldriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/neolink/pkg/storage"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	// SQLite uses ? placeholders.
	SQLite Dialect = iota

	// Postgres uses $n placeholders.
	Postgres
)

const schema = `CREATE TABLE IF NOT EXISTS user_state (
	scope      TEXT NOT NULL,
	state_key  TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (scope, state_key)
)`

const (
	getQuery    = `SELECT value FROM user_state WHERE scope = ? AND state_key = ?`
	deleteQuery = `DELETE FROM user_state WHERE scope = ? AND state_key = ?`
	upsertQuery = `INSERT INTO user_state (scope, state_key, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (scope, state_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
)

// Driver implements storage.Driver over a *sql.DB.
type Driver struct {
	DB      *sql.DB
	dialect Dialect
}

// New migrates db and returns a driver. The driver owns db from here on.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Driver, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Driver{DB: db, dialect: dialect}, nil
}

// Get returns the value for key in scope.
func (d *Driver) Get(ctx context.Context, scope storage.Scope, key string) (string, error) {
	var value string
	err := d.DB.QueryRowContext(ctx, d.rebind(getQuery), string(scope), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.NotFoundError{Scope: scope, Key: key}
	}
	if err != nil {
		return "", fmt.Errorf("querying %s/%s: %w", scope, key, err)
	}
	return value, nil
}

// Put creates or replaces the value for key in scope.
func (d *Driver) Put(ctx context.Context, scope storage.Scope, key, value string) error {
	_, err := d.DB.ExecContext(ctx, d.rebind(upsertQuery), string(scope), key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storing %s/%s: %w", scope, key, err)
	}
	return nil
}

// Delete removes key from scope.
func (d *Driver) Delete(ctx context.Context, scope storage.Scope, key string) (bool, error) {
	res, err := d.DB.ExecContext(ctx, d.rebind(deleteQuery), string(scope), key)
	if err != nil {
		return false, fmt.Errorf("deleting %s/%s: %w", scope, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.DB.Close()
}

// Truncate removes every row. Used by tests against shared databases.
func (d *Driver) Truncate(ctx context.Context) error {
	_, err := d.DB.ExecContext(ctx, `DELETE FROM user_state`)
	return err
}

func (d *Driver) rebind(query string) string {
	if d.dialect != Postgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
