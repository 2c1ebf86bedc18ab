package playlake

import (
	"io"
	"sort"
	"sync"
)

// Loader drains a Source and parses every raw record into a typed record,
// fanning the parsing out over ParseConcurrency goroutines. Malformed
// records - undecodable lines as well as records missing required fields -
// are skipped and counted, never fatal; a failing source is. Results come
// back in intake order regardless of concurrency, since intake order is the
// tie-break key for all downstream deduplication.
type Loader struct {
	ParseConcurrency int

	Stats Statter
	Log   Logger
}

// LoadSongs reads the whole song dataset from src. Skipped records count
// against the "songs-skipped" stat.
func (l *Loader) LoadSongs(src Source) ([]SongMetadata, error) {
	type seqMeta struct {
		seq  uint64
		meta SongMetadata
	}
	var mu sync.Mutex
	var out []seqMeta
	err := l.load(src, "songs-skipped", func(seq uint64, raw interface{}) error {
		m, err := SongParser{}.Parse(raw)
		if err != nil {
			return err
		}
		mu.Lock()
		out = append(out, seqMeta{seq: seq, meta: m})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	metas := make([]SongMetadata, len(out))
	for i, s := range out {
		metas[i] = s.meta
	}
	return metas, nil
}

// LoadEvents reads the whole log dataset from src. Skipped records count
// against the "events-skipped" stat.
func (l *Loader) LoadEvents(src Source) ([]LogEvent, error) {
	type seqEvent struct {
		seq   uint64
		event LogEvent
	}
	var mu sync.Mutex
	var out []seqEvent
	err := l.load(src, "events-skipped", func(seq uint64, raw interface{}) error {
		e, err := LogParser{}.Parse(raw)
		if err != nil {
			return err
		}
		mu.Lock()
		out = append(out, seqEvent{seq: seq, event: e})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	events := make([]LogEvent, len(out))
	for i, s := range out {
		events[i] = s.event
	}
	return events, nil
}

// load is the worker loop shared by both datasets. Sequence numbers are
// assigned under the intake lock, so they reflect the order records came off
// the source, not the order parsing finished.
func (l *Loader) load(src Source, statName string, handle func(seq uint64, raw interface{}) error) error {
	conc := l.ParseConcurrency
	if conc < 1 {
		conc = 1
	}
	stats := l.stats()
	logger := l.logger()

	var intake sync.Mutex
	var seq uint64

	var fmu sync.Mutex
	var fatal error
	setFatal := func(err error) {
		fmu.Lock()
		if fatal == nil {
			fatal = err
		}
		fmu.Unlock()
	}
	failed := func() bool {
		fmu.Lock()
		defer fmu.Unlock()
		return fatal != nil
	}
	skip := func(err error) {
		stats.Count(statName, 1, 1)
		logger.Debugf("skipping record: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < conc; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !failed() {
				intake.Lock()
				raw, err := src.Record()
				s := seq
				if err == nil {
					seq++
				}
				intake.Unlock()
				if err == io.EOF {
					return
				}
				if err != nil {
					if IsMalformed(err) {
						skip(err)
						continue
					}
					setFatal(err)
					return
				}
				if err := handle(s, raw); err != nil {
					if IsMalformed(err) {
						skip(err)
						continue
					}
					setFatal(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	return fatal
}

func (l *Loader) stats() Statter {
	if l.Stats == nil {
		return NopStatter{}
	}
	return l.Stats
}

func (l *Loader) logger() Logger {
	if l.Log == nil {
		return NopLogger{}
	}
	return l.Log
}
