// Package etl wires the whole pipeline together: sources, parsers, builders,
// and the parquet writer, behind one Main that the cli exposes as flags.
package etl

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/playlake/playlake"
	"github.com/playlake/playlake/aws/s3"
	"github.com/playlake/playlake/boltdb"
	"github.com/playlake/playlake/duckdb"
	"github.com/playlake/playlake/file"
	"github.com/playlake/playlake/termstat"
)

// Main contains the configuration for one pipeline run.
type Main struct {
	SongData    string `help:"Directory or s3://bucket/prefix holding song metadata json files."`
	LogData     string `help:"Directory or s3://bucket/prefix holding activity log json files."`
	Output      string `help:"Directory to write the star schema under, one subdirectory per table."`
	Concurrency int    `help:"Number of goroutines parsing raw records."`
	Region      string `help:"AWS region, for s3:// locations."`
	IDFile      string `help:"Optional bolt database path; when set, songplay ids are stable across runs."`
	Config      string `help:"Path to TOML config file."`

	stats playlake.Statter
	log   playlake.Logger
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		SongData:    "song_data",
		LogData:     "log_data",
		Output:      "out",
		Concurrency: 4,
		Region:      "us-east-1",
	}
}

// Run executes the pipeline: read both datasets, build the four dimensions
// and the fact table, and publish all five as parquet under Output. Tables
// are published one at a time; if one write fails, tables already published
// stand - there is no transaction across tables.
func (m *Main) Run() error {
	ctx := context.Background()
	if m.stats == nil {
		m.stats = termstat.NewCollector(os.Stderr)
	}
	if m.log == nil {
		m.log = playlake.StdLogger{Logger: log.New(os.Stderr, "", log.LstdFlags)}
	}

	loader := &playlake.Loader{
		ParseConcurrency: m.Concurrency,
		Stats:            m.stats,
		Log:              m.log,
	}

	songSrc, err := m.openSource(m.SongData)
	if err != nil {
		return errors.Wrap(err, "opening song data")
	}
	defer closeSource(songSrc)
	metas, err := loader.LoadSongs(songSrc)
	if err != nil {
		return errors.Wrap(err, "loading song data")
	}

	logSrc, err := m.openSource(m.LogData)
	if err != nil {
		return errors.Wrap(err, "opening log data")
	}
	defer closeSource(logSrc)
	events, err := loader.LoadEvents(logSrc)
	if err != nil {
		return errors.Wrap(err, "loading log data")
	}
	m.log.Printf("loaded %d song records and %d log events", len(metas), len(events))

	var ids playlake.IDAllocator = playlake.NewRunLocalIDs()
	if m.IDFile != "" {
		alloc, err := boltdb.NewAllocator(m.IDFile)
		if err != nil {
			return errors.Wrap(err, "opening id file")
		}
		defer alloc.Close()
		ids = alloc
	}

	songs := playlake.BuildSongs(metas)
	artists := playlake.BuildArtists(metas)
	plays, err := playlake.BuildSongplays(events, playlake.NewAttributeMatcher(songs, artists), ids)
	if err != nil {
		return errors.Wrap(err, "building songplays")
	}

	tables := []duckdb.Table{
		duckdb.Songs(songs),
		duckdb.Artists(artists),
		duckdb.Users(playlake.BuildUsers(events)),
		duckdb.Times(playlake.BuildTimes(plays)),
		duckdb.Songplays(plays),
	}

	writer, err := duckdb.NewWriter(ctx)
	if err != nil {
		return errors.Wrap(err, "opening writer")
	}
	defer writer.Close()

	for _, t := range tables {
		if err := writer.Write(ctx, t, filepath.Join(m.Output, t.Name)); err != nil {
			return errors.Wrapf(err, "writing %s", t.Name)
		}
		m.stats.Count(t.Name+"-rows", int64(len(t.Rows)), 1)
		m.log.Printf("wrote %s: %d rows", t.Name, len(t.Rows))
	}
	return nil
}

// closeSource shuts down a source's background reader, so an aborted run
// (one dataset failing while the other source still has buffered records)
// doesn't leave its pump goroutine behind.
func closeSource(src playlake.Source) {
	if c, ok := src.(io.Closer); ok {
		c.Close()
	}
}

// openSource returns a Source for a local file/directory path or an
// s3://bucket/prefix location.
func (m *Main) openSource(location string) (playlake.Source, error) {
	if strings.HasPrefix(location, "s3://") {
		trimmed := strings.TrimPrefix(location, "s3://")
		parts := strings.SplitN(trimmed, "/", 2)
		bucket, prefix := parts[0], ""
		if len(parts) == 2 {
			prefix = parts[1]
		}
		return s3.NewSource(
			s3.OptSrcBucket(bucket),
			s3.OptSrcPrefix(prefix),
			s3.OptSrcRegion(m.Region),
		)
	}
	return file.NewSource(file.OptSrcPath(location))
}
