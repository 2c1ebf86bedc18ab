// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package s3

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
	"github.com/playlake/playlake"
	"github.com/playlake/playlake/json"
)

// SrcOption is a functional option type for s3.Source.
type SrcOption func(s *Source)

// OptSrcBucket is a SrcOption which sets the S3 bucket for a Source.
func OptSrcBucket(bucket string) SrcOption {
	return func(s *Source) {
		s.bucket = bucket
	}
}

// OptSrcRegion is a SrcOption which sets the AWS region for a Source.
func OptSrcRegion(region string) SrcOption {
	return func(s *Source) {
		s.region = region
	}
}

// OptSrcPrefix tells the source to list only the objects in the bucket that
// match the specified prefix.
func OptSrcPrefix(prefix string) SrcOption {
	return func(s *Source) {
		s.prefix = prefix
	}
}

// OptSrcBufSize sets the number of records to buffer while waiting for
// Record to be called.
func OptSrcBufSize(bufsize int) SrcOption {
	return func(s *Source) {
		s.records = make(chan record, bufsize)
	}
}

// Source is a playlake.Source which reads line-delimited json records from
// objects in an S3 bucket. Credentials come from the default AWS credential
// chain - this package never handles them directly.
type Source struct {
	bucket string
	prefix string
	region string

	rs        *RawSource
	records   chan record
	done      chan struct{}
	closeOnce sync.Once
}

type record struct {
	data interface{}
	err  error
}

// NewSource returns a new Source with the options applied.
func NewSource(opts ...SrcOption) (s *Source, err error) {
	s = &Source{
		records: make(chan record, 100),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rs, err = NewRawSource(s.region, s.bucket, s.prefix)
	if err != nil {
		return nil, errors.Wrap(err, "getting raw s3 source")
	}

	go s.populateRecords()

	return s, nil
}

func (s *Source) populateRecords() {
	defer close(s.records)
	reader, err := s.rs.NextReader()
	for ; err == nil; reader, err = s.rs.NextReader() {
		jsource := json.NewSource(reader)
		for {
			data, rerr := jsource.Record()
			if rerr == io.EOF {
				reader.Close()
				break
			}
			if rerr != nil && !playlake.IsMalformed(rerr) {
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
		case s.records <- record{err: errors.Wrap(err, "getting next object")}:
		case <-s.done:
		}
	}
}

// Record parses the next json record from the current object in the bucket,
// or moves to the next object. A map[string]interface{} will be returned
// unless there is an error.
func (s *Source) Record() (interface{}, error) {
	rec, ok := <-s.records
	if !ok {
		return nil, io.EOF
	}
	return rec.data, rec.err
}

// Close stops the background reader; buffered records may still be returned
// by Record before it reports io.EOF.
func (s *Source) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// RawSource hands out one reader per object under a bucket/prefix. Objects
// come back in the key order S3 lists them (lexicographic), which keeps
// record intake order deterministic.
type RawSource struct {
	bucket string
	prefix string
	region string

	s3     *s3.S3
	sess   *session.Session
	keys   []string
	objIdx *uint64
}

// NewRawSource lists the objects under bucket/prefix and returns a RawSource
// over them.
func NewRawSource(region, bucket, prefix string) (*RawSource, error) {
	idx := uint64(0)
	rs := &RawSource{
		region: region,
		bucket: bucket,
		prefix: prefix,

		objIdx: &idx,
	}
	var err error
	rs.sess, err = session.NewSession(&aws.Config{
		Region: aws.String(rs.region)},
	)
	if err != nil {
		return nil, errors.Wrap(err, "getting new session")
	}
	rs.s3 = s3.New(rs.sess)
	err = rs.s3.ListObjectsPages(
		&s3.ListObjectsInput{Bucket: aws.String(rs.bucket), Prefix: aws.String(rs.prefix)},
		func(page *s3.ListObjectsOutput, lastPage bool) bool {
			for _, obj := range page.Contents {
				rs.keys = append(rs.keys, *obj.Key)
			}
			return true
		})
	if err != nil {
		return nil, errors.Wrap(err, "listing objects")
	}

	return rs, nil
}

type objReader struct {
	name string
	body io.ReadCloser
}

func (o *objReader) Read(buf []byte) (n int, err error) {
	return o.body.Read(buf)
}

func (o *objReader) Close() error {
	return o.body.Close()
}

func (o *objReader) Name() string {
	return o.name
}

// NextReader implements playlake.RawSource.
func (rs *RawSource) NextReader() (playlake.NamedReadCloser, error) {
	idx := atomic.AddUint64(rs.objIdx, 1) - 1
	if int(idx) >= len(rs.keys) {
		return nil, io.EOF
	}
	key := rs.keys[idx]

	result, err := rs.s3.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(rs.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %v", key)
	}
	return &objReader{name: key, body: result.Body}, nil
}
