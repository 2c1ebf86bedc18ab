package playlake_test

import (
	"io"
	"reflect"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/playlake/playlake"
	"github.com/playlake/playlake/mock"
)

// sliceSource replays a fixed sequence of records and errors.
type sliceSource struct {
	mu    sync.Mutex
	recs  []interface{}
	errs  []error
	index int
}

func (s *sliceSource) Record() (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.recs) {
		return nil, io.EOF
	}
	rec, err := s.recs[s.index], s.errs[s.index]
	s.index++
	return rec, err
}

func songRec(id, title string) map[string]interface{} {
	return map[string]interface{}{
		"song_id":     id,
		"title":       title,
		"artist_id":   "A1",
		"artist_name": "Alpha",
		"year":        float64(2005),
		"duration":    200.5,
	}
}

func TestLoadSongs(t *testing.T) {
	src := &sliceSource{
		recs: []interface{}{
			songRec("S1", "First"),
			nil, // undecodable line
			map[string]interface{}{"song_id": "S9"}, // missing required fields
			songRec("S2", "Second"),
		},
		errs: []error{
			nil,
			errors.Wrap(playlake.ErrMalformedRecord, "line 2"),
			nil,
			nil,
		},
	}
	stats := &mock.RecordingStatter{}
	l := &playlake.Loader{ParseConcurrency: 4, Stats: stats}
	metas, err := l.LoadSongs(src)
	if err != nil {
		t.Fatalf("loading songs: %v", err)
	}
	want := []playlake.SongMetadata{
		{SongID: "S1", Title: "First", ArtistID: "A1", ArtistName: "Alpha", Year: 2005, Duration: 200.5},
		{SongID: "S2", Title: "Second", ArtistID: "A1", ArtistName: "Alpha", Year: 2005, Duration: 200.5},
	}
	if !reflect.DeepEqual(metas, want) {
		t.Fatalf("unexpected songs:\n got %#v\nwant %#v", metas, want)
	}
	if n := stats.CountOf("songs-skipped"); n != 2 {
		t.Fatalf("expected 2 skipped, got %d", n)
	}
}

func TestLoadSongsOrderIndependentOfConcurrency(t *testing.T) {
	mkSrc := func() *sliceSource {
		s := &sliceSource{}
		for i := 0; i < 200; i++ {
			s.recs = append(s.recs, songRec("S"+string(rune('A'+i%26))+string(rune('A'+i/26)), "T"))
			s.errs = append(s.errs, nil)
		}
		return s
	}
	serial, err := (&playlake.Loader{ParseConcurrency: 1}).LoadSongs(mkSrc())
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := (&playlake.Loader{ParseConcurrency: 8}).LoadSongs(mkSrc())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(serial, parallel) {
		t.Fatal("results differ between concurrency 1 and 8")
	}
}

func TestLoadEventsFatalSourceError(t *testing.T) {
	src := &sliceSource{
		recs: []interface{}{nil},
		errs: []error{errors.New("connection reset")},
	}
	l := &playlake.Loader{ParseConcurrency: 2}
	if _, err := l.LoadEvents(src); err == nil {
		t.Fatal("expected fatal error from source")
	}
}

func TestLoadEvents(t *testing.T) {
	src := &sliceSource{
		recs: []interface{}{
			map[string]interface{}{"ts": float64(100), "page": "NextSong", "userId": float64(26)},
			map[string]interface{}{"page": "Home"}, // no ts
		},
		errs: []error{nil, nil},
	}
	stats := &mock.RecordingStatter{}
	l := &playlake.Loader{ParseConcurrency: 1, Stats: stats}
	events, err := l.LoadEvents(src)
	if err != nil {
		t.Fatalf("loading events: %v", err)
	}
	if len(events) != 1 || events[0].UserID != "26" {
		t.Fatalf("unexpected events: %#v", events)
	}
	if n := stats.CountOf("events-skipped"); n != 1 {
		t.Fatalf("expected 1 skipped, got %d", n)
	}
}
