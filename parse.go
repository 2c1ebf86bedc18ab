package playlake

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// SongParser turns raw records from a Source into SongMetadata. Unknown
// fields are ignored; a missing required field makes the record malformed.
// Implementations here are stateless and safe for concurrent use.
type SongParser struct{}

// Parse parses one raw song record.
func (SongParser) Parse(data interface{}) (SongMetadata, error) {
	rec, ok := data.(map[string]interface{})
	if !ok {
		return SongMetadata{}, errors.Wrapf(ErrMalformedRecord, "expected object, got %T", data)
	}
	var s SongMetadata
	var err error
	if s.SongID, err = requiredString(rec, "song_id"); err != nil {
		return SongMetadata{}, err
	}
	if s.Title, err = requiredString(rec, "title"); err != nil {
		return SongMetadata{}, err
	}
	if s.ArtistID, err = requiredString(rec, "artist_id"); err != nil {
		return SongMetadata{}, err
	}
	if s.ArtistName, err = requiredString(rec, "artist_name"); err != nil {
		return SongMetadata{}, err
	}
	s.ArtistLocation, _ = stringField(rec, "artist_location")
	s.ArtistLatitude = floatPtrField(rec, "artist_latitude")
	s.ArtistLongitude = floatPtrField(rec, "artist_longitude")
	s.Year = int(intField(rec, "year"))
	s.Duration, _ = floatField(rec, "duration")
	return s, nil
}

// LogParser turns raw records from a Source into LogEvents.
type LogParser struct{}

// Parse parses one raw log record. Only ts and page are required - an
// anonymous event (empty userId) is still a valid event; the user dimension
// builder is the one that excludes it.
func (LogParser) Parse(data interface{}) (LogEvent, error) {
	rec, ok := data.(map[string]interface{})
	if !ok {
		return LogEvent{}, errors.Wrapf(ErrMalformedRecord, "expected object, got %T", data)
	}
	var e LogEvent
	ts, ok := floatField(rec, "ts")
	if !ok {
		return LogEvent{}, errors.Wrap(ErrMalformedRecord, "missing field \"ts\"")
	}
	e.Timestamp = int64(ts)
	var err error
	if e.Page, err = requiredString(rec, "page"); err != nil {
		return LogEvent{}, err
	}
	e.UserID, _ = stringField(rec, "userId")
	e.FirstName, _ = stringField(rec, "firstName")
	e.LastName, _ = stringField(rec, "lastName")
	e.Gender, _ = stringField(rec, "gender")
	e.Level, _ = stringField(rec, "level")
	e.Song, _ = stringField(rec, "song")
	e.Artist, _ = stringField(rec, "artist")
	e.Duration, _ = floatField(rec, "length")
	e.SessionID = intField(rec, "sessionId")
	e.ItemInSession = intField(rec, "itemInSession")
	e.Location, _ = stringField(rec, "location")
	e.UserAgent, _ = stringField(rec, "userAgent")
	return e, nil
}

func requiredString(rec map[string]interface{}, name string) (string, error) {
	s, ok := stringField(rec, name)
	if !ok || s == "" {
		return "", errors.Wrapf(ErrMalformedRecord, "missing field %q", name)
	}
	return s, nil
}

// stringField fetches a field as a string. The logs encode user ids
// inconsistently (sometimes quoted, sometimes numeric), so numbers are
// coerced to their decimal representation.
func stringField(rec map[string]interface{}, name string) (string, bool) {
	v, ok := rec[name]
	if !ok || v == nil {
		return "", false
	}
	switch tv := v.(type) {
	case string:
		return tv, true
	case float64:
		if tv == math.Trunc(tv) {
			return strconv.FormatInt(int64(tv), 10), true
		}
		return strconv.FormatFloat(tv, 'f', -1, 64), true
	default:
		return "", false
	}
}

func floatField(rec map[string]interface{}, name string) (float64, bool) {
	v, ok := rec[name]
	if !ok || v == nil {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func floatPtrField(rec map[string]interface{}, name string) *float64 {
	f, ok := floatField(rec, name)
	if !ok {
		return nil
	}
	return &f
}

func intField(rec map[string]interface{}, name string) int64 {
	f, _ := floatField(rec, name)
	return int64(f)
}
