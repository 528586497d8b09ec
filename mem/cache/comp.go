// Package cache defines what the cache organizations have in common: their
// configuration, the record produced for every access, and the Simulator
// interface.
package cache

import (
	"github.com/sarchlab/cachesim/mem/cache/stats"
	"github.com/sarchlab/cachesim/sim/hooking"
)

// A Simulator runs an address trace through one cache. It owns its lines and
// its statistics. Simulators are not safe for concurrent use; independent
// simulators can run in parallel.
type Simulator interface {
	hooking.Hookable

	// Name returns the name given when the simulator was built.
	Name() string

	// Config returns the geometry of the cache.
	Config() Config

	// Access decodes a hexadecimal address and runs it through the cache. An
	// address that cannot be decoded leaves the cache and its statistics
	// untouched.
	Access(raw string) (AccessRecord, error)

	// AccessAddress runs a numeric address through the cache.
	AccessAddress(addr uint64) AccessRecord

	// Stats returns the statistics collected since the last reset.
	Stats() stats.Summary

	// Lines returns a snapshot of every line, ordered by set then way.
	Lines() []Line

	// Reset invalidates every line and clears the statistics.
	Reset()
}

// A Line is the state of one cache line at a point in time.
type Line struct {
	Set   int    `json:"set"`
	Way   int    `json:"way"`
	Tag   uint64 `json:"tag"`
	Valid bool   `json:"valid"`
}
