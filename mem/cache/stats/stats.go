// Package stats counts cache hits and misses over a simulation run.
package stats

import (
	"errors"
	"fmt"
)

// ErrNoAccesses is returned when a rate is requested before any access has
// been recorded.
var ErrNoAccesses = errors.New("rate undefined: no accesses recorded")

// An Accumulator counts the hits and misses of one run. The zero value is
// ready to use.
type Accumulator struct {
	hits   uint64
	misses uint64
}

// Record counts one access.
func (a *Accumulator) Record(hit bool) {
	if hit {
		a.hits++
		return
	}

	a.misses++
}

// Hits returns the number of hits recorded.
func (a *Accumulator) Hits() uint64 {
	return a.hits
}

// Misses returns the number of misses recorded.
func (a *Accumulator) Misses() uint64 {
	return a.misses
}

// Total returns the number of accesses recorded.
func (a *Accumulator) Total() uint64 {
	return a.hits + a.misses
}

// HitRate returns hits over total accesses as a percentage.
func (a *Accumulator) HitRate() (float64, error) {
	total := a.Total()
	if total == 0 {
		return 0, ErrNoAccesses
	}

	return float64(a.hits) / float64(total) * 100, nil
}

// MissRate returns the complement of the hit rate, in percent.
func (a *Accumulator) MissRate() (float64, error) {
	hitRate, err := a.HitRate()
	if err != nil {
		return 0, err
	}

	return 100 - hitRate, nil
}

// Reset clears the counters.
func (a *Accumulator) Reset() {
	a.hits = 0
	a.misses = 0
}

// Summary captures the counters at a point in time.
func (a *Accumulator) Summary() Summary {
	s := Summary{
		Hits:   a.hits,
		Misses: a.misses,
	}

	hitRate, err := a.HitRate()
	if err == nil {
		s.Defined = true
		s.HitRate = hitRate
		s.MissRate = 100 - hitRate
	}

	return s
}

// Summary is the final statistics of a run. When no access was processed,
// Defined is false and both rates are zero.
type Summary struct {
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRate  float64 `json:"hit_rate_percent"`
	MissRate float64 `json:"miss_rate_percent"`
	Defined  bool    `json:"defined"`
}

// Total returns the number of accesses the summary covers.
func (s Summary) Total() uint64 {
	return s.Hits + s.Misses
}

// FormatRate prints a rate with two decimals, or "undefined".
func (s Summary) FormatRate(rate float64) string {
	if !s.Defined {
		return "undefined"
	}

	return fmt.Sprintf("%.2f%%", rate)
}

func (s Summary) String() string {
	return fmt.Sprintf("Total Hits: %d | Total Misses: %d | "+
		"Hit Rate: %s | Miss Rate: %s",
		s.Hits, s.Misses, s.FormatRate(s.HitRate), s.FormatRate(s.MissRate))
}
