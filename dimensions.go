package playlake

import "sort"

// The dimension builders are pure functions from record slices to table row
// slices. Input slice order is the ordering key for every tie-break: the
// Loader hands records over in intake order (sorted file paths, record order
// within a file), so the same inputs always produce the same tables no
// matter how the reading was scheduled.

// BuildSongs projects the song dataset onto the songs dimension,
// deduplicated by song_id. The first occurrence wins; duplicate catalog
// entries are not expected but must not break the run. Output is sorted by
// song_id.
func BuildSongs(metas []SongMetadata) []Song {
	seen := make(map[string]struct{}, len(metas))
	songs := make([]Song, 0, len(metas))
	for _, m := range metas {
		if _, ok := seen[m.SongID]; ok {
			continue
		}
		seen[m.SongID] = struct{}{}
		songs = append(songs, Song{
			SongID:   m.SongID,
			Title:    m.Title,
			ArtistID: m.ArtistID,
			Year:     m.Year,
			Duration: m.Duration,
		})
	}
	sort.Slice(songs, func(i, j int) bool { return songs[i].SongID < songs[j].SongID })
	return songs
}

// BuildArtists projects the song dataset onto the artists dimension,
// deduplicated by artist_id, first occurrence wins. Output is sorted by
// artist_id.
func BuildArtists(metas []SongMetadata) []Artist {
	seen := make(map[string]struct{}, len(metas))
	artists := make([]Artist, 0, len(metas))
	for _, m := range metas {
		if _, ok := seen[m.ArtistID]; ok {
			continue
		}
		seen[m.ArtistID] = struct{}{}
		artists = append(artists, Artist{
			ArtistID:  m.ArtistID,
			Name:      m.ArtistName,
			Location:  m.ArtistLocation,
			Latitude:  m.ArtistLatitude,
			Longitude: m.ArtistLongitude,
		})
	}
	sort.Slice(artists, func(i, j int) bool { return artists[i].ArtistID < artists[j].ArtistID })
	return artists
}

// BuildUsers reduces the event log to one row per user, keeping the state
// from the user's latest event so the level column reflects their current
// tier. Ties on timestamp go to the event later in intake order. Events with
// no user id (anonymous sessions, malformed rows) are excluded. Output is
// sorted by user_id.
func BuildUsers(events []LogEvent) []User {
	type latest struct {
		ts  int64
		idx int
	}
	best := make(map[string]latest)
	for i, e := range events {
		if e.UserID == "" {
			continue
		}
		if b, ok := best[e.UserID]; ok && b.ts > e.Timestamp {
			continue
		}
		best[e.UserID] = latest{ts: e.Timestamp, idx: i}
	}
	users := make([]User, 0, len(best))
	for _, b := range best {
		e := events[b.idx]
		users = append(users, User{
			UserID:    e.UserID,
			FirstName: e.FirstName,
			LastName:  e.LastName,
			Gender:    e.Gender,
			Level:     e.Level,
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}

// BuildTimes derives the time dimension from the fact table: one row per
// distinct start_time appearing in a songplay, decomposed into calendar
// attributes in UTC. Output is sorted by start_time.
func BuildTimes(plays []Songplay) []TimeRow {
	seen := make(map[int64]struct{}, len(plays))
	rows := make([]TimeRow, 0, len(plays))
	for _, p := range plays {
		if _, ok := seen[p.StartTime]; ok {
			continue
		}
		seen[p.StartTime] = struct{}{}
		t := LogEvent{Timestamp: p.StartTime}.Time()
		_, week := t.ISOWeek()
		rows = append(rows, TimeRow{
			StartTime: p.StartTime,
			Hour:      t.Hour(),
			Day:       t.Day(),
			Week:      week,
			Month:     int(t.Month()),
			Year:      t.Year(),
			Weekday:   int(t.Weekday()),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StartTime < rows[j].StartTime })
	return rows
}
