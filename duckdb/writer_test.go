package duckdb_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/playlake/playlake"
	"github.com/playlake/playlake/duckdb"
)

func parquetFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".parquet") {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walking %s: %v", dir, err)
	}
	return files
}

func queryInt(t *testing.T, q string) int64 {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int64
	if err := db.QueryRow(q).Scan(&n); err != nil {
		t.Fatalf("querying %q: %v", q, err)
	}
	return n
}

func TestWritePartitioned(t *testing.T) {
	ctx := context.Background()
	w, err := duckdb.NewWriter(ctx)
	if err != nil {
		t.Fatalf("getting writer: %v", err)
	}
	defer w.Close()

	songs := []playlake.Song{
		{SongID: "S1", Title: "First", ArtistID: "A1", Year: 2005, Duration: 200.5},
		{SongID: "S2", Title: "Second", ArtistID: "A2", Year: 1999, Duration: 150},
	}
	dir := filepath.Join(t.TempDir(), "out", "songs")
	if err := w.Write(ctx, duckdb.Songs(songs), dir); err != nil {
		t.Fatalf("writing songs: %v", err)
	}

	files := parquetFiles(t, dir)
	if len(files) != 2 {
		t.Fatalf("expected 2 partition files, got %v", files)
	}
	for _, f := range files {
		if !strings.HasPrefix(f, "year=") || !strings.Contains(f, "artist_id=") {
			t.Fatalf("expected hive partition layout year=/artist_id=, got %v", f)
		}
	}
	n := queryInt(t, "SELECT count(*) FROM read_parquet('"+dir+"/**/*.parquet')")
	if n != 2 {
		t.Fatalf("expected 2 rows back, got %d", n)
	}
}

func TestWriteUnpartitioned(t *testing.T) {
	ctx := context.Background()
	w, err := duckdb.NewWriter(ctx)
	if err != nil {
		t.Fatalf("getting writer: %v", err)
	}
	defer w.Close()

	lat := 37.77
	artists := []playlake.Artist{
		{ArtistID: "A1", Name: "Alpha", Location: "SF", Latitude: &lat},
		{ArtistID: "A2", Name: "Beta"},
	}
	dir := filepath.Join(t.TempDir(), "artists")
	if err := w.Write(ctx, duckdb.Artists(artists), dir); err != nil {
		t.Fatalf("writing artists: %v", err)
	}

	path := filepath.Join(dir, "artists.parquet")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected single parquet file: %v", err)
	}
	n := queryInt(t, "SELECT count(*) FROM read_parquet('"+path+"') WHERE latitude IS NULL")
	if n != 1 {
		t.Fatalf("expected 1 null latitude, got %d", n)
	}
}

func TestWriteReplacesPriorOutput(t *testing.T) {
	ctx := context.Background()
	w, err := duckdb.NewWriter(ctx)
	if err != nil {
		t.Fatalf("getting writer: %v", err)
	}
	defer w.Close()

	dir := filepath.Join(t.TempDir(), "songs")
	first := []playlake.Song{
		{SongID: "S1", Title: "First", ArtistID: "A1", Year: 2005, Duration: 200.5},
		{SongID: "S2", Title: "Second", ArtistID: "A2", Year: 1999, Duration: 150},
	}
	if err := w.Write(ctx, duckdb.Songs(first), dir); err != nil {
		t.Fatalf("first write: %v", err)
	}

	// second run has fewer rows; stale partitions must not survive
	second := first[:1]
	if err := w.Write(ctx, duckdb.Songs(second), dir); err != nil {
		t.Fatalf("second write: %v", err)
	}
	files := parquetFiles(t, dir)
	if len(files) != 1 {
		t.Fatalf("expected prior output replaced, got %v", files)
	}
	n := queryInt(t, "SELECT count(*) FROM read_parquet('"+dir+"/**/*.parquet')")
	if n != 1 {
		t.Fatalf("expected 1 row after rewrite, got %d", n)
	}
}

func TestWriteEmptyTable(t *testing.T) {
	ctx := context.Background()
	w, err := duckdb.NewWriter(ctx)
	if err != nil {
		t.Fatalf("getting writer: %v", err)
	}
	defer w.Close()

	dir := filepath.Join(t.TempDir(), "users")
	if err := w.Write(ctx, duckdb.Users(nil), dir); err != nil {
		t.Fatalf("writing empty table: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "users.parquet")); err != nil {
		t.Fatalf("expected empty parquet file to exist: %v", err)
	}
}

func TestWriteEmptyPartitionedTable(t *testing.T) {
	ctx := context.Background()
	w, err := duckdb.NewWriter(ctx)
	if err != nil {
		t.Fatalf("getting writer: %v", err)
	}
	defer w.Close()

	dir := filepath.Join(t.TempDir(), "songs")
	if err := w.Write(ctx, duckdb.Songs(nil), dir); err != nil {
		t.Fatalf("writing empty partitioned table: %v", err)
	}
	// no partitions, but the table's directory is still published
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected published output directory: %v", err)
	}
}
