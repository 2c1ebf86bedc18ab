package duckdb

import "github.com/playlake/playlake"

// Table constructors for the five star schema record sets. Column order and
// partitioning follow the schema: songs partition by (year, artist_id), time
// and songplays by (year, month), users and artists are single files.

// Songs lays out the songs dimension.
func Songs(rows []playlake.Song) Table {
	t := Table{
		Name: "songs",
		Columns: []Column{
			{"song_id", "VARCHAR"},
			{"title", "VARCHAR"},
			{"artist_id", "VARCHAR"},
			{"year", "INTEGER"},
			{"duration", "DOUBLE"},
		},
		PartitionBy: []string{"year", "artist_id"},
		Rows:        make([][]interface{}, 0, len(rows)),
	}
	for _, s := range rows {
		t.Rows = append(t.Rows, []interface{}{s.SongID, s.Title, s.ArtistID, s.Year, s.Duration})
	}
	return t
}

// Artists lays out the artists dimension.
func Artists(rows []playlake.Artist) Table {
	t := Table{
		Name: "artists",
		Columns: []Column{
			{"artist_id", "VARCHAR"},
			{"name", "VARCHAR"},
			{"location", "VARCHAR"},
			{"latitude", "DOUBLE"},
			{"longitude", "DOUBLE"},
		},
		Rows: make([][]interface{}, 0, len(rows)),
	}
	for _, a := range rows {
		t.Rows = append(t.Rows, []interface{}{a.ArtistID, a.Name, a.Location, nullFloat(a.Latitude), nullFloat(a.Longitude)})
	}
	return t
}

// Users lays out the users dimension.
func Users(rows []playlake.User) Table {
	t := Table{
		Name: "users",
		Columns: []Column{
			{"user_id", "VARCHAR"},
			{"first_name", "VARCHAR"},
			{"last_name", "VARCHAR"},
			{"gender", "VARCHAR"},
			{"level", "VARCHAR"},
		},
		Rows: make([][]interface{}, 0, len(rows)),
	}
	for _, u := range rows {
		t.Rows = append(t.Rows, []interface{}{u.UserID, u.FirstName, u.LastName, u.Gender, u.Level})
	}
	return t
}

// Times lays out the time dimension. start_time keeps the original epoch
// millisecond value.
func Times(rows []playlake.TimeRow) Table {
	t := Table{
		Name: "time",
		Columns: []Column{
			{"start_time", "BIGINT"},
			{"hour", "INTEGER"},
			{"day", "INTEGER"},
			{"week", "INTEGER"},
			{"month", "INTEGER"},
			{"year", "INTEGER"},
			{"weekday", "INTEGER"},
		},
		PartitionBy: []string{"year", "month"},
		Rows:        make([][]interface{}, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []interface{}{r.StartTime, r.Hour, r.Day, r.Week, r.Month, r.Year, r.Weekday})
	}
	return t
}

// Songplays lays out the fact table. song_id and artist_id are NULL for
// plays of songs missing from the catalog.
func Songplays(rows []playlake.Songplay) Table {
	t := Table{
		Name: "songplays",
		Columns: []Column{
			{"songplay_id", "BIGINT"},
			{"start_time", "BIGINT"},
			{"user_id", "VARCHAR"},
			{"level", "VARCHAR"},
			{"song_id", "VARCHAR"},
			{"artist_id", "VARCHAR"},
			{"session_id", "BIGINT"},
			{"location", "VARCHAR"},
			{"user_agent", "VARCHAR"},
			{"year", "INTEGER"},
			{"month", "INTEGER"},
		},
		PartitionBy: []string{"year", "month"},
		Rows:        make([][]interface{}, 0, len(rows)),
	}
	for _, p := range rows {
		t.Rows = append(t.Rows, []interface{}{
			int64(p.SongplayID), p.StartTime, p.UserID, p.Level,
			nullStr(p.SongID), nullStr(p.ArtistID),
			p.SessionID, p.Location, p.UserAgent, p.Year, p.Month,
		})
	}
	return t
}

func nullStr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
