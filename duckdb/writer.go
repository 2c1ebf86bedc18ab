// Package duckdb serializes the star schema tables to parquet files. Each
// table is staged into an in-memory DuckDB instance and copied out with
// DuckDB's parquet writer, hive-partitioned where the table defines
// partition columns.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
	"github.com/pkg/errors"
)

// Writer writes tables as parquet directory trees. It holds one in-memory
// DuckDB connection which is reused across tables; a Writer is not safe for
// concurrent use.
type Writer struct {
	db *sql.DB
}

// NewWriter opens an in-memory DuckDB instance for staging.
func NewWriter(ctx context.Context) (*Writer, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(err, "opening duckdb")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "pinging duckdb")
	}
	return &Writer{db: db}, nil
}

// Close releases the staging database.
func (w *Writer) Close() error {
	return w.db.Close()
}

// Column is one column of an output table.
type Column struct {
	Name string
	Type string
}

// Table is one output record set: a name, a schema, optional partition
// columns, and the rows themselves. Row values line up with Columns; nil
// means NULL.
type Table struct {
	Name        string
	Columns     []Column
	PartitionBy []string
	Rows        [][]interface{}
}

// Write serializes t under dir, replacing whatever was there: the parquet
// files are written to a temporary directory next to dir which is then
// renamed over it, so a re-run replaces prior output wholesale and a crash
// mid-write never leaves a partial table at the target path. Partitioned
// tables become hive-style directory trees (year=2018/month=11/...);
// unpartitioned tables become a single <name>.parquet inside dir.
func (w *Writer) Write(ctx context.Context, t Table, dir string) error {
	if err := w.stage(ctx, t); err != nil {
		return errors.Wrapf(err, "staging %s", t.Name)
	}

	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return errors.Wrap(err, "creating output location")
	}
	tmp, err := os.MkdirTemp(parent, "."+t.Name+"-")
	if err != nil {
		return errors.Wrap(err, "creating temp dir")
	}
	defer os.RemoveAll(tmp)

	if err := w.copyOut(ctx, t, tmp); err != nil {
		return errors.Wrapf(err, "copying %s to parquet", t.Name)
	}

	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrap(err, "removing prior output")
	}
	if err := os.Rename(tmp, dir); err != nil {
		return errors.Wrap(err, "publishing output")
	}
	return nil
}

// stage (re)creates the staging table and loads t's rows into it.
func (w *Writer) stage(ctx context.Context, t Table) error {
	cols := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = fmt.Sprintf("%q %s", c.Name, c.Type)
		marks[i] = "?"
	}
	create := fmt.Sprintf("CREATE OR REPLACE TABLE %q (%s)", t.Name, strings.Join(cols, ", "))
	if _, err := w.db.ExecContext(ctx, create); err != nil {
		return errors.Wrap(err, "creating staging table")
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning staging txn")
	}
	defer tx.Rollback()

	insert := fmt.Sprintf("INSERT INTO %q VALUES (%s)", t.Name, strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return errors.Wrap(err, "preparing insert")
	}
	defer stmt.Close()
	for i, row := range t.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return errors.Wrapf(err, "inserting row %d", i)
		}
	}
	return errors.Wrap(tx.Commit(), "committing staging txn")
}

func (w *Writer) copyOut(ctx context.Context, t Table, dir string) error {
	var q string
	if len(t.PartitionBy) > 0 {
		q = fmt.Sprintf("COPY %q TO '%s' (FORMAT PARQUET, PARTITION_BY (%s), OVERWRITE_OR_IGNORE)",
			t.Name, escapePath(dir), strings.Join(t.PartitionBy, ", "))
	} else {
		q = fmt.Sprintf("COPY %q TO '%s' (FORMAT PARQUET)",
			t.Name, escapePath(filepath.Join(dir, t.Name+".parquet")))
	}
	_, err := w.db.ExecContext(ctx, q)
	return err
}

// escapePath makes a filesystem path safe inside a single-quoted duckdb
// string literal.
func escapePath(p string) string {
	return strings.ReplaceAll(p, "'", "''")
}
