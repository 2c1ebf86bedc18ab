package file

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/playlake/playlake"
	"github.com/playlake/playlake/json"
)

// Source is a playlake.Source which reads json records from files on disk.
type Source struct {
	rawSource *RawSource
	records   chan record
	done      chan struct{}
	closeOnce sync.Once
}

type record struct {
	data interface{}
	err  error
}

// SrcOption is a functional option for the file Source.
type SrcOption func(s *Source) error

// OptSrcPath sets the file or directory to read source data from.
// Directories are walked recursively - the datasets nest their files several
// levels deep - and files are visited in sorted path order so record intake
// order is deterministic.
func OptSrcPath(pathname string) SrcOption {
	return func(s *Source) (err error) {
		s.rawSource, err = NewRawSource(pathname)
		if err != nil {
			return errors.Wrap(err, "getting raw source")
		}
		return nil
	}
}

// NewSource gets a new file source which will read json data from a file or
// all files under a directory.
func NewSource(opts ...SrcOption) (*Source, error) {
	s := &Source{
		records: make(chan record, 100),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		err := opt(s)
		if err != nil {
			return nil, err
		}
	}
	if s.rawSource == nil {
		return nil, errors.New("file source needs a path")
	}
	go s.run()
	return s, nil
}

func (s *Source) run() {
	defer close(s.records)
	reader, err := s.rawSource.NextReader()
	for ; err == nil; reader, err = s.rawSource.NextReader() {
		src := json.NewSource(reader)
		for {
			data, rerr := src.Record()
			if rerr == io.EOF {
				reader.Close()
				break
			}
			if rerr != nil && !playlake.IsMalformed(rerr) {
				// The file itself is unreadable - fatal, move on after
				// reporting it.
				rerr = errors.Wrapf(rerr, "reading %s", reader.Name())
				data = nil
			}
			select {
			case s.records <- record{data: data, err: rerr}:
			case <-s.done:
				reader.Close()
				return
			}
			if rerr != nil && !playlake.IsMalformed(rerr) {
				reader.Close()
				break
			}
		}
	}
	if err != io.EOF {
		select {
		case s.records <- record{err: errors.Wrap(err, "getting next reader")}:
		case <-s.done:
		}
	}
}

// Record implements playlake.Source, returning a map[string]interface{} for
// each json record in the source files.
func (s *Source) Record() (interface{}, error) {
	rec, ok := <-s.records
	if !ok {
		return nil, io.EOF
	}
	return rec.data, rec.err
}

// Close stops the background reader. Records already buffered may still be
// returned by Record, which reports io.EOF once they are drained. Useful
// when a run aborts before the source is exhausted.
func (s *Source) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// RawSource hands out one reader per file under a root path, in sorted path
// order.
type RawSource struct {
	files   []string
	fileIdx *uint64
}

// NewRawSource returns a RawSource over the given file, or over every
// regular file under the given directory.
func NewRawSource(pathname string) (*RawSource, error) {
	fileIdx := uint64(0)
	s := &RawSource{
		fileIdx: &fileIdx,
	}
	info, err := os.Stat(pathname)
	if err != nil {
		return nil, errors.Wrap(err, "statting path")
	}
	if !info.IsDir() {
		s.files = []string{pathname}
		return s, nil
	}
	// filepath.Walk visits in lexical order, which makes intake order (and
	// so every first-seen tie-break downstream) deterministic.
	err = filepath.Walk(pathname, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			s.files = append(s.files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walking directory")
	}
	return s, nil
}

type metaFile struct {
	*os.File
}

func (m *metaFile) Name() string {
	return m.File.Name()
}

// NextReader implements playlake.RawSource.
func (s *RawSource) NextReader() (playlake.NamedReadCloser, error) {
	idx := atomic.AddUint64(s.fileIdx, 1) - 1
	if int(idx) >= len(s.files) {
		return nil, io.EOF
	}

	file, err := os.Open(s.files[idx])
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", s.files[idx])
	}

	return &metaFile{file}, nil
}
