package json

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/playlake/playlake"
)

// Source is a playlake.Source for reading line-delimited json data: one
// record per line, blank lines ignored. A line that won't decode yields an
// error caused by playlake.ErrMalformedRecord and decoding picks up at the
// next line, so one bad record never wedges the rest of the file. A Source
// is not safe for concurrent use; the file and s3 sources serialize access
// to it.
type Source struct {
	scanner *bufio.Scanner
	line    int
}

// maxLineLen bounds a single record. Log records carry full user agent
// strings but nothing near this size.
const maxLineLen = 16 * 1024 * 1024

// NewSource gets a new json source which will decode from the given reader.
func NewSource(r io.Reader) *Source {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLen)
	return &Source{scanner: scanner}
}

// Record implements playlake.Source. It returns the next json object in the
// stream as a map[string]interface{}, and io.EOF once the reader is
// exhausted.
func (s *Source) Record() (interface{}, error) {
	for s.scanner.Scan() {
		s.line++
		data := bytes.TrimSpace(s.scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		var rec map[string]interface{}
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, errors.Wrapf(playlake.ErrMalformedRecord, "line %d: %v", s.line, err)
		}
		return rec, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning")
	}
	return nil, io.EOF
}
