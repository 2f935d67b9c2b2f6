package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"rightmove-scraper/models"
	"rightmove-scraper/utils"
)

var tableNameRegexp = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// snapshotColumns is the database column order used by every query.
var snapshotColumns = []string{
	"url", "price", "available_from", "property_type", "bedrooms", "location",
	"furnished", "let_term", "date_added_online", "agency",
	"date_added_to_snapshot", "position",
}

// PostgresStore keeps the snapshot in a PostgreSQL table.
type PostgresStore struct {
	db     *sql.DB
	table  string
	mode   models.Mode
	logger *utils.Logger
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(ctx context.Context, dsn, table string, mode models.Mode, logger *utils.Logger) (*PostgresStore, error) {
	if !tableNameRegexp.MatchString(table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", table)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db, table: table, mode: mode, logger: logger}
	if err := ps.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			url                    TEXT PRIMARY KEY,
			price                  TEXT    NOT NULL DEFAULT '',
			available_from         TEXT    NOT NULL DEFAULT '',
			property_type          TEXT    NOT NULL DEFAULT '',
			bedrooms               TEXT    NOT NULL DEFAULT '',
			location               TEXT    NOT NULL DEFAULT '',
			furnished              TEXT    NOT NULL DEFAULT '',
			let_term               TEXT    NOT NULL DEFAULT '',
			date_added_online      TEXT    NOT NULL DEFAULT '',
			agency                 TEXT    NOT NULL DEFAULT '',
			date_added_to_snapshot TEXT    NOT NULL,
			position               INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_%[1]s_position ON %[1]s(position);
	`, ps.table))
	return err
}

// Load returns the stored rows in their saved order, or nil when empty.
func (ps *PostgresStore) Load(ctx context.Context) (*models.Table, error) {
	rows, err := ps.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s ORDER BY position`,
		strings.Join(snapshotColumns[:len(snapshotColumns)-1], ", "), ps.table))
	if err != nil {
		return nil, fmt.Errorf("postgres: load: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var (
			r                                    models.Record
			url, available, addedOnline, addedDB string
		)
		if err := rows.Scan(
			&url, &r.Price, &available, &r.PropertyType, &r.Bedrooms,
			&r.Location, &r.Furnished, &r.LetTerm, &addedOnline, &r.Agency,
			&addedDB,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		r.URL = models.DetailLink(url)
		r.AvailableFrom = models.ParseDate(available)
		r.DateAddedOnline = models.ParseDate(addedOnline)
		r.DateAddedToSnapshot = models.ParseDate(addedDB)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load: %w", err)
	}

	if len(records) == 0 {
		ps.logger.Info("[postgres] Table %s is empty, no previous snapshot", ps.table)
		return nil, nil
	}
	ps.logger.Info("[postgres] Loaded %d rows from %s", len(records), ps.table)
	return models.NewTable(ps.mode, records), nil
}

// Save replaces the table content in a single transaction.
func (ps *PostgresStore) Save(ctx context.Context, table *models.Table, overwrite bool) error {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	if !overwrite {
		var n int
		if err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, ps.table)).Scan(&n); err != nil {
			return fmt.Errorf("postgres: count: %w", err)
		}
		if n > 0 {
			return &OutputConflictError{Target: "postgres table " + ps.table}
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, ps.table)); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}

	const batchSize = 50
	for i := 0; i < table.Len(); i += batchSize {
		end := i + batchSize
		if end > table.Len() {
			end = table.Len()
		}
		query, args := buildInsert(ps.table, table.Rows[i:end], i)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: insert batch at %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	ps.logger.Info("[postgres] Wrote %d rows to %s", table.Len(), ps.table)
	return nil
}

// buildInsert renders a multi-row INSERT for batch; offset is the position of
// the first row in the whole table.
func buildInsert(table string, batch []models.Record, offset int) (string, []interface{}) {
	width := len(snapshotColumns)
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*width)

	for idx, r := range batch {
		base := idx * width
		placeholders := make([]string, width)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			string(r.URL), r.Price, r.AvailableFrom.String(), r.PropertyType,
			r.Bedrooms, r.Location, r.Furnished, r.LetTerm,
			r.DateAddedOnline.String(), r.Agency, r.DateAddedToSnapshot.String(),
			offset+idx)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s`,
		table, strings.Join(snapshotColumns, ", "), strings.Join(valueStrings, ","))
	return query, valueArgs
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
