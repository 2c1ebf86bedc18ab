package playlake

import (
	"io"

	"github.com/pkg/errors"
)

// Source is the interface for getting raw data one record at a time.
// Implementations of Source should be thread safe. Record returns io.EOF
// when the source is exhausted, and an error caused by ErrMalformedRecord
// for a record that could not be decoded - callers may skip those and keep
// reading.
type Source interface {
	Record() (interface{}, error)
}

// RawSource is the interface for getting raw data as a sequence of readers,
// e.g. one per file or S3 object. Implementations must return readers in a
// deterministic order, since record intake order is the tie-break key for
// every downstream deduplication.
type RawSource interface {
	NextReader() (NamedReadCloser, error)
}

// NamedReadCloser is an io.ReadCloser which also has a name - usually a file
// name or object key, used in error messages.
type NamedReadCloser interface {
	io.ReadCloser
	Name() string
}

// ErrMalformedRecord is the cause of errors returned for individual records
// which could not be decoded or parsed. The pipeline skips and counts these;
// any other record error is fatal for the run.
var ErrMalformedRecord = errors.New("malformed record")

// IsMalformed reports whether err stems from a single bad record rather than
// a failing source.
func IsMalformed(err error) bool {
	return errors.Cause(err) == ErrMalformedRecord
}
