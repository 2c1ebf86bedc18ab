package playlake

import "time"

// PageNextSong is the page value marking an event as a song play. Only these
// events contribute to the songplays fact table and the time dimension.
const PageNextSong = "NextSong"

// SongMetadata is one record from the song dataset: a song and the artist
// who recorded it, denormalized into a single row. It is the source of truth
// for the songs and artists dimensions, and immutable once read.
type SongMetadata struct {
	SongID          string
	Title           string
	ArtistID        string
	ArtistName      string
	ArtistLocation  string
	ArtistLatitude  *float64
	ArtistLongitude *float64
	Year            int
	Duration        float64
}

// LogEvent is one record from the activity log dataset: one logged user
// action. The log carries the played song only as denormalized attributes
// (title, artist name, duration) - there is no song or artist id here, which
// is why the fact builder has to join by attribute equality.
type LogEvent struct {
	Timestamp     int64 // epoch milliseconds
	UserID        string
	FirstName     string
	LastName      string
	Gender        string
	Level         string
	Page          string
	Song          string
	Artist        string
	Duration      float64
	SessionID     int64
	ItemInSession int64
	Location      string
	UserAgent     string
}

// IsPlay reports whether the event is a song play.
func (e LogEvent) IsPlay() bool { return e.Page == PageNextSong }

// Time returns the event timestamp as a UTC calendar time. All calendar
// attributes in the time dimension are derived in UTC.
func (e LogEvent) Time() time.Time { return time.Unix(0, e.Timestamp*int64(time.Millisecond)).UTC() }
