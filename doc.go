// playlake turns the raw event logs and song catalog of a music streaming
// app into a star schema suitable for analytical querying, and persists the
// result as partitioned parquet files.
//
// The pipeline is assembled from a handful of small stages, and each stage
// has a home here or in a sub-package:
//
// 1. Source
//
//    A playlake.Source is where records come from. Your data might live in a
//    directory tree of JSON files, or in an S3 bucket - a Source knows how to
//    get it out, one raw record at a time, behind one convenient interface.
//    Sources do not interpret the data at all; that is the parser's job. The
//    file and aws/s3 sub-packages hold the two Source implementations this
//    pipeline ships with, both built on the line-delimited JSON decoding in
//    the json sub-package.
//
// 2. Parser
//
//    SongParser and LogParser turn raw records into the two typed record
//    streams everything downstream consumes: SongMetadata and LogEvent.
//    Parsers are strict about required fields and tolerant of everything
//    else - unknown fields are ignored, and a record that can't be parsed is
//    skipped and counted, never fatal. The Loader drives Sources and parsers
//    with configurable concurrency while keeping results deterministic.
//
// 3. Builders
//
//    The dimension builders (BuildSongs, BuildArtists, BuildUsers,
//    BuildTimes) and the songplay fact builder (BuildSongplays) are pure
//    functions from record slices to table row slices. All deduplication is
//    an explicit keyed reduction with a documented tie-break, so results
//    never depend on scheduling. The fact builder resolves each play to a
//    song and artist through the Matcher interface; swap the matching
//    strategy without touching the builder.
//
// 4. Writer
//
//    The duckdb sub-package serializes each table to parquet, hive
//    partitioned where the schema calls for it, with idempotent overwrite
//    semantics. The etl sub-package wires all of the above into a single
//    runnable Main.
package playlake
