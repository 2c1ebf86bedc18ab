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

// Package termstat provides a stats implementation which periodically logs
// the statistics to the given writer. It is meant for batch runs and
// debugging at the terminal in lieu of an actual collector writing to an
// external tool. Gauges, sets, and timings keep the last value seen; counts
// accumulate.
package termstat

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Collector collects stats and prints them to the terminal.
type Collector struct {
	lock    sync.Mutex
	counts  map[string]int64
	changed bool
	out     io.Writer
}

// NewCollector initializes and returns a new Collector which writes a
// summary line every couple of seconds while stats are changing.
func NewCollector(out io.Writer) *Collector {
	c := &Collector{
		counts: make(map[string]int64),
		out:    out,
	}
	go func() {
		tick := time.NewTicker(time.Second * 2)
		for ; ; <-tick.C {
			c.Dump()
		}
	}()
	return c
}

// Dump writes the current stats immediately if anything changed since the
// last write.
func (c *Collector) Dump() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.changed {
		return
	}
	c.changed = false
	names := make([]string, 0, len(c.counts))
	for name := range c.counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %d", name, c.counts[name])
	}
	fmt.Fprintln(c.out, strings.Join(parts, "  "))
}

func (c *Collector) record(name string, value int64, add bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.changed = true
	if add {
		c.counts[name] += value
	} else {
		c.counts[name] = value
	}
}

// Count adds value to the named stat.
func (c *Collector) Count(name string, value int64, rate float64, tags ...string) {
	c.record(name, value, true)
}

// Gauge sets the named stat to value.
func (c *Collector) Gauge(name string, value float64, rate float64, tags ...string) {
	c.record(name, int64(value), false)
}

// Histogram records value as the latest observation of the named stat.
func (c *Collector) Histogram(name string, value float64, rate float64, tags ...string) {
	c.record(name, int64(value), false)
}

// Set is not meaningfully supported; it records 1 against the named stat.
func (c *Collector) Set(name string, value string, rate float64, tags ...string) {
	c.record(name, 1, true)
}

// Timing records value as the latest duration (in milliseconds) of the
// named stat.
func (c *Collector) Timing(name string, value time.Duration, rate float64, tags ...string) {
	c.record(name, int64(value/time.Millisecond), false)
}
