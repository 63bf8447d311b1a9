package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`DROP TABLE IF EXISTS import_records`,
	`DROP TABLE IF EXISTS geo_year_aggregates`,
	`CREATE TABLE import_records (
		geo      TEXT    NOT NULL,
		year     INTEGER NOT NULL,
		importer TEXT    NOT NULL,
		tonnes   REAL    NOT NULL,
		PRIMARY KEY (geo, year, importer)
	)`,
	`CREATE TABLE geo_year_aggregates (
		geo                 TEXT    NOT NULL,
		year                INTEGER NOT NULL,
		total_tonnes        REAL    NOT NULL,
		yoy_percent_change  REAL,
		world_share_percent REAL    NOT NULL,
		PRIMARY KEY (geo, year)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_import_records_year ON import_records(year)`,
}

// WriteSQLite replaces path with a database holding the report's records and
// aggregates. Undefined YoY values are stored as NULL.
func WriteSQLite(ctx context.Context, path string, r *Report) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	recStmt, err := tx.PrepareContext(ctx, `INSERT INTO import_records (geo, year, importer, tonnes) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer recStmt.Close()

	for _, rec := range r.Records {
		if _, err := recStmt.ExecContext(ctx, rec.Geo.String(), rec.Year, rec.Importer, rec.Tonnes); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}

	aggStmt, err := tx.PrepareContext(ctx, `INSERT INTO geo_year_aggregates
		(geo, year, total_tonnes, yoy_percent_change, world_share_percent) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer aggStmt.Close()

	for _, agg := range r.Aggregates {
		var yoy sql.NullFloat64
		if agg.YoYPercentChange != nil {
			yoy = sql.NullFloat64{Float64: *agg.YoYPercentChange, Valid: true}
		}
		if _, err := aggStmt.ExecContext(ctx, agg.Geo.String(), agg.Year, agg.TotalTonnes, yoy, agg.WorldSharePercent); err != nil {
			return fmt.Errorf("insert aggregate: %w", err)
		}
	}

	return tx.Commit()
}
