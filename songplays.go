package playlake

import "sort"

// Matcher resolves a play event to the song and artist it refers to. The log
// doesn't carry song or artist ids, so resolution is a join on denormalized
// attributes - a known weak link (formatting drift in titles, float drift in
// durations silently yields unmatched plays). Keeping it behind an interface
// means a fuzzier strategy can be swapped in without touching the fact
// builder. Implementations should be safe for concurrent use.
type Matcher interface {
	Resolve(event LogEvent) (songID, artistID string, ok bool)
}

type matchKey struct {
	title    string
	artist   string
	duration float64
}

type matchEntry struct {
	songID   string
	artistID string
}

// AttributeMatcher is the default Matcher: exact equality on title, artist
// name, and duration. When duplicate dimension entries match the same key,
// the entry with the lowest song_id wins, so a play never fans out into
// multiple fact rows and results don't depend on input order.
type AttributeMatcher struct {
	index map[matchKey]matchEntry
}

// NewAttributeMatcher builds a matcher over the songs and artists dimension
// output, not the raw song dataset. That keeps resolved fact rows consistent
// with the dimension tables: a resolved song_id always names a songs row, and
// the resolved artist_id is that row's artist_id.
func NewAttributeMatcher(songs []Song, artists []Artist) *AttributeMatcher {
	names := make(map[string]string, len(artists))
	for _, a := range artists {
		names[a.ArtistID] = a.Name
	}
	m := &AttributeMatcher{index: make(map[matchKey]matchEntry, len(songs))}
	for _, s := range songs {
		k := matchKey{title: s.Title, artist: names[s.ArtistID], duration: s.Duration}
		if cur, ok := m.index[k]; ok && cur.songID <= s.SongID {
			continue
		}
		m.index[k] = matchEntry{songID: s.SongID, artistID: s.ArtistID}
	}
	return m
}

// Resolve implements Matcher.
func (m *AttributeMatcher) Resolve(e LogEvent) (string, string, bool) {
	entry, ok := m.index[matchKey{title: e.Song, artist: e.Artist, duration: e.Duration}]
	if !ok {
		return "", "", false
	}
	return entry.songID, entry.artistID, true
}

// IDAllocator assigns the surrogate songplay_id for a play event.
type IDAllocator interface {
	ID(event LogEvent) (uint64, error)
}

// RunLocalIDs is the default IDAllocator: ids are unique within a run and
// monotonically increasing in processing order, but carry no guarantee
// across runs. For ids that survive re-runs, see boltdb.Allocator.
type RunLocalIDs struct {
	n INexter
}

// NewRunLocalIDs returns an allocator counting from zero.
func NewRunLocalIDs() *RunLocalIDs {
	return &RunLocalIDs{n: NewNexter()}
}

// ID implements IDAllocator.
func (r *RunLocalIDs) ID(LogEvent) (uint64, error) {
	return r.n.Next(), nil
}

// BuildSongplays builds the fact table: one row per play event, in event
// order. A play whose song isn't in the catalog still produces a row, with
// nil song and artist ids. Rows are sorted by songplay_id, which for the
// run-local allocator is processing order.
func BuildSongplays(events []LogEvent, m Matcher, ids IDAllocator) ([]Songplay, error) {
	plays := make([]Songplay, 0, len(events))
	for _, e := range events {
		if !e.IsPlay() {
			continue
		}
		id, err := ids.ID(e)
		if err != nil {
			return nil, err
		}
		p := Songplay{
			SongplayID: id,
			StartTime:  e.Timestamp,
			UserID:     e.UserID,
			Level:      e.Level,
			SessionID:  e.SessionID,
			Location:   e.Location,
			UserAgent:  e.UserAgent,
		}
		if songID, artistID, ok := m.Resolve(e); ok {
			p.SongID, p.ArtistID = &songID, &artistID
		}
		t := e.Time()
		p.Year, p.Month = t.Year(), int(t.Month())
		plays = append(plays, p)
	}
	sort.Slice(plays, func(i, j int) bool { return plays[i].SongplayID < plays[j].SongplayID })
	return plays, nil
}
