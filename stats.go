// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package ped

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Stats records phase-duration distributions (C6), grounded on the
// internal/stats histogram wrapper: connect latency, the getStatus call of
// each poll iteration, and busy-backoff sleep lengths. A nil *Stats is valid and all
// methods are no-ops on it, so callers may pass nil to disable recording
// without branching.
type Stats struct {
	mu sync.Mutex

	connect  *hdrhistogram.Histogram
	poll     *hdrhistogram.Histogram
	busy     *hdrhistogram.Histogram
	pollSeen int64
}

// histogramMaxMicros bounds recorded values at ten minutes of microseconds,
// comfortably above any single phase's realistic duration.
const histogramMaxMicros = int64(10 * time.Minute / time.Microsecond)

// NewStats creates a Stats with 2 significant value digits of precision,
// matching typical HdrHistogram defaults for latency recording.
func NewStats() *Stats {
	return &Stats{
		connect: hdrhistogram.New(1, histogramMaxMicros, 2),
		poll:    hdrhistogram.New(1, histogramMaxMicros, 2),
		busy:    hdrhistogram.New(1, histogramMaxMicros, 2),
	}
}

func (s *Stats) recordConnect(d time.Duration) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.connect.RecordValue(d.Microseconds())
}

func (s *Stats) recordPollIteration(d time.Duration) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.poll.RecordValue(d.Microseconds())
	s.pollSeen++
}

func (s *Stats) recordBusyBackoff(d time.Duration) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.busy.RecordValue(d.Microseconds())
}

// PhaseSnapshot reports a histogram's percentile summary, in the phase's
// native unit (time.Duration).
type PhaseSnapshot struct {
	Count int64
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

func snapshotOf(h *hdrhistogram.Histogram) PhaseSnapshot {
	return PhaseSnapshot{
		Count: h.TotalCount(),
		Mean:  time.Duration(h.Mean() * float64(time.Microsecond)),
		P50:   time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P95:   time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Max:   time.Duration(h.Max()) * time.Microsecond,
	}
}

// Snapshot returns the current percentile summary for each recorded phase.
// Safe to call on a nil *Stats, returning the zero value.
func (s *Stats) Snapshot() map[string]PhaseSnapshot {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]PhaseSnapshot{
		"connect": snapshotOf(s.connect),
		"poll":    snapshotOf(s.poll),
		"busy":    snapshotOf(s.busy),
	}
}
