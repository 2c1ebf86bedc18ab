package playlake

// The star schema. One fact table (Songplay) references four dimension
// tables by key. Field order here matches column order in the written
// parquet files.

// Song is one row of the songs dimension, keyed by SongID.
type Song struct {
	SongID   string
	Title    string
	ArtistID string
	Year     int
	Duration float64
}

// Artist is one row of the artists dimension, keyed by ArtistID. Latitude
// and Longitude are nil when the catalog has no coordinates for the artist.
type Artist struct {
	ArtistID  string
	Name      string
	Location  string
	Latitude  *float64
	Longitude *float64
}

// User is one row of the users dimension, keyed by UserID. Level is the
// value from the user's most recent event, since users move between free and
// paid tiers.
type User struct {
	UserID    string
	FirstName string
	LastName  string
	Gender    string
	Level     string
}

// TimeRow is one row of the time dimension: the calendar decomposition (UTC)
// of one distinct play timestamp. StartTime keeps the original epoch
// millisecond value so fact rows join back exactly.
type TimeRow struct {
	StartTime int64
	Hour      int
	Day       int
	Week      int
	Month     int
	Year      int
	Weekday   int // time.Weekday code: 0=Sunday .. 6=Saturday
}

// Songplay is one row of the songplays fact table: a single "NextSong"
// event. SongID and ArtistID are nil when the played song isn't in the
// catalog - the play is still a business event and is kept. Year and Month
// are derived from StartTime and exist for partitioning.
type Songplay struct {
	SongplayID uint64
	StartTime  int64
	UserID     string
	Level      string
	SongID     *string
	ArtistID   *string
	SessionID  int64
	Location   string
	UserAgent  string
	Year       int
	Month      int
}
