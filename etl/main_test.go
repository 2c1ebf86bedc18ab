package etl

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/playlake/playlake"
	"github.com/playlake/playlake/mock"
)

const songFixture = `{"num_songs": 1, "song_id": "S1", "title": "Test Track", "artist_id": "A1", "artist_name": "Test Artist", "artist_location": "San Francisco, CA", "artist_latitude": 37.77, "artist_longitude": -122.43, "year": 2005, "duration": 200.5}
{"num_songs": 1, "song_id": "S2", "title": "Other Song", "artist_id": "A2", "artist_name": "Someone Else", "artist_location": "", "artist_latitude": null, "artist_longitude": null, "year": 0, "duration": 150.0}
{"num_songs": 1, "song_id": "S3", "title": "Broken
`

const logFixture = `{"ts": 1542241826796, "page": "NextSong", "userId": "26", "firstName": "Ryan", "lastName": "Smith", "gender": "M", "level": "free", "song": "Test Track", "artist": "Test Artist", "length": 200.5, "sessionId": 583, "itemInSession": 0, "location": "San Jose-Sunnyvale-Santa Clara, CA", "userAgent": "Mozilla/5.0"}
{"ts": 1542245000000, "page": "NextSong", "userId": "26", "firstName": "Ryan", "lastName": "Smith", "gender": "M", "level": "paid", "song": "Nowhere Song", "artist": "Nobody", "length": 99.9, "sessionId": 583, "itemInSession": 1, "location": "San Jose-Sunnyvale-Santa Clara, CA", "userAgent": "Mozilla/5.0"}
{"ts": 1542246000000, "page": "Home", "userId": "26", "firstName": "Ryan", "lastName": "Smith", "gender": "M", "level": "paid", "sessionId": 583, "itemInSession": 2}
not json at all
{"ts": 1542250000000, "page": "NextSong", "userId": "", "level": "free", "song": "Test Track", "artist": "Test Artist", "length": 200.5, "sessionId": 600, "itemInSession": 0}
`

func writeFixture(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
}

func queryInt(t *testing.T, db *sql.DB, q string) int64 {
	t.Helper()
	var n int64
	if err := db.QueryRow(q).Scan(&n); err != nil {
		t.Fatalf("querying %q: %v", q, err)
	}
	return n
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "song_data", "A", "songs.json"), songFixture)
	writeFixture(t, filepath.Join(dir, "log_data", "2018", "11", "events.json"), logFixture)

	stats := &mock.RecordingStatter{}
	m := NewMain()
	m.SongData = filepath.Join(dir, "song_data")
	m.LogData = filepath.Join(dir, "log_data")
	m.Output = filepath.Join(dir, "out")
	m.Concurrency = 2
	m.stats = stats
	m.log = playlake.NopLogger{}

	if err := m.Run(); err != nil {
		t.Fatalf("running pipeline: %v", err)
	}

	if n := stats.CountOf("songs-skipped"); n != 1 {
		t.Fatalf("expected 1 skipped song record, got %d", n)
	}
	if n := stats.CountOf("events-skipped"); n != 1 {
		t.Fatalf("expected 1 skipped log record, got %d", n)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	glob := func(table string) string {
		return filepath.Join(m.Output, table) + "/**/*.parquet"
	}

	if n := queryInt(t, db, "SELECT count(*) FROM read_parquet('"+glob("songs")+"')"); n != 2 {
		t.Fatalf("expected 2 songs, got %d", n)
	}
	if n := queryInt(t, db, "SELECT count(*) FROM read_parquet('"+glob("artists")+"')"); n != 2 {
		t.Fatalf("expected 2 artists, got %d", n)
	}

	// one real user; the anonymous play is excluded, and the latest level wins
	var level string
	userQ := "SELECT level FROM read_parquet('" + glob("users") + "') WHERE user_id = '26'"
	if err := db.QueryRow(userQ).Scan(&level); err != nil {
		t.Fatalf("querying users: %v", err)
	}
	if level != "paid" {
		t.Fatalf("expected latest level paid, got %q", level)
	}
	if n := queryInt(t, db, "SELECT count(*) FROM read_parquet('"+glob("users")+"')"); n != 1 {
		t.Fatal("expected exactly 1 user")
	}

	// three NextSong events, Home excluded
	playQ := "SELECT count(*) FROM read_parquet('" + glob("songplays") + "')"
	if n := queryInt(t, db, playQ); n != 3 {
		t.Fatalf("expected 3 songplays, got %d", n)
	}
	matchedQ := "SELECT count(*) FROM read_parquet('" + glob("songplays") + "') WHERE song_id = 'S1' AND artist_id = 'A1'"
	if n := queryInt(t, db, matchedQ); n != 2 {
		t.Fatalf("expected 2 matched plays, got %d", n)
	}
	nullQ := "SELECT count(*) FROM read_parquet('" + glob("songplays") + "') WHERE song_id IS NULL AND artist_id IS NULL"
	if n := queryInt(t, db, nullQ); n != 1 {
		t.Fatalf("expected 1 unmatched play, got %d", n)
	}

	// one time row per distinct play start_time
	if n := queryInt(t, db, "SELECT count(*) FROM read_parquet('"+glob("time")+"')"); n != 3 {
		t.Fatalf("expected 3 time rows, got %d", n)
	}
}

func TestRunIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "song_data", "songs.json"), songFixture)
	writeFixture(t, filepath.Join(dir, "log_data", "events.json"), logFixture)

	m := NewMain()
	m.SongData = filepath.Join(dir, "song_data")
	m.LogData = filepath.Join(dir, "log_data")
	m.Output = filepath.Join(dir, "out")
	m.stats = &mock.RecordingStatter{}
	m.log = playlake.NopLogger{}
	if err := m.Run(); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// rerunning over existing output must replace it, not append
	m2 := NewMain()
	m2.SongData = m.SongData
	m2.LogData = m.LogData
	m2.Output = m.Output
	m2.stats = &mock.RecordingStatter{}
	m2.log = playlake.NopLogger{}
	if err := m2.Run(); err != nil {
		t.Fatalf("second run: %v", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	q := "SELECT count(*) FROM read_parquet('" + filepath.Join(m.Output, "songplays") + "/**/*.parquet')"
	var n int64
	if err := db.QueryRow(q).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 songplays after rerun, got %d", n)
	}
}

func TestRunEmptyInputs(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"song_data", "log_data"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0755); err != nil {
			t.Fatal(err)
		}
	}

	stats := &mock.RecordingStatter{}
	m := NewMain()
	m.SongData = filepath.Join(dir, "song_data")
	m.LogData = filepath.Join(dir, "log_data")
	m.Output = filepath.Join(dir, "out")
	m.stats = stats
	m.log = playlake.NopLogger{}
	if err := m.Run(); err != nil {
		t.Fatalf("running over empty inputs: %v", err)
	}

	// empty output tables are still published
	for _, table := range []string{"songs", "artists", "users", "time", "songplays"} {
		info, err := os.Stat(filepath.Join(m.Output, table))
		if err != nil || !info.IsDir() {
			t.Fatalf("expected output directory for %s: %v", table, err)
		}
	}
	if _, err := os.Stat(filepath.Join(m.Output, "users", "users.parquet")); err != nil {
		t.Fatalf("expected empty users parquet: %v", err)
	}
	if n := stats.CountOf("songs-skipped") + stats.CountOf("events-skipped"); n != 0 {
		t.Fatalf("expected no skips, got %d", n)
	}
}

func TestRunStableIDs(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "song_data", "songs.json"), songFixture)
	writeFixture(t, filepath.Join(dir, "log_data", "events.json"), logFixture)

	run := func(out string) map[int64]int64 {
		m := NewMain()
		m.SongData = filepath.Join(dir, "song_data")
		m.LogData = filepath.Join(dir, "log_data")
		m.Output = out
		m.IDFile = filepath.Join(dir, "ids.bolt")
		m.stats = &mock.RecordingStatter{}
		m.log = playlake.NopLogger{}
		if err := m.Run(); err != nil {
			t.Fatalf("running pipeline: %v", err)
		}

		db, err := sql.Open("duckdb", "")
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		q := "SELECT songplay_id, start_time FROM read_parquet('" + filepath.Join(out, "songplays") + "/**/*.parquet')"
		rows, err := db.Query(q)
		if err != nil {
			t.Fatal(err)
		}
		defer rows.Close()
		ids := map[int64]int64{}
		for rows.Next() {
			var id, ts int64
			if err := rows.Scan(&id, &ts); err != nil {
				t.Fatal(err)
			}
			ids[ts] = id
		}
		return ids
	}

	first := run(filepath.Join(dir, "out1"))
	second := run(filepath.Join(dir, "out2"))
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 plays per run, got %d and %d", len(first), len(second))
	}
	for ts, id := range first {
		if second[ts] != id {
			t.Fatalf("id for ts %d changed across runs: %d then %d", ts, id, second[ts])
		}
	}
}
