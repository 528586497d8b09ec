// Package fullyassociative simulates a cache where any address can live in
// any line.
package fullyassociative

import (
	"github.com/sarchlab/cachesim/mem/addressing"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
	"github.com/sarchlab/cachesim/mem/cache/stats"
	"github.com/sarchlab/cachesim/sim/hooking"
)

// Cache is a fully-associative cache. A lookup scans all lines in order; a
// miss overwrites the line picked by a round-robin cursor that advances on
// every miss.
type Cache struct {
	hooking.HookableBase

	name         string
	config       cache.Config
	decoder      addressing.Decoder
	tags         tagging.TagArray
	victimFinder *tagging.RoundRobinVictimFinder
	stats        stats.Accumulator
}

var _ cache.Simulator = (*Cache)(nil)

// Name returns the name of the cache.
func (c *Cache) Name() string {
	return c.name
}

// Config returns the geometry of the cache.
func (c *Cache) Config() cache.Config {
	return c.config
}

// Access decodes raw and runs it through the cache.
func (c *Cache) Access(raw string) (cache.AccessRecord, error) {
	addr, err := c.decoder.Parse(raw)
	if err != nil {
		return cache.AccessRecord{}, err
	}

	return c.access(addr, raw), nil
}

// AccessAddress runs addr through the cache.
func (c *Cache) AccessAddress(addr uint64) cache.AccessRecord {
	return c.access(addr, "")
}

func (c *Cache) access(addr uint64, raw string) cache.AccessRecord {
	f := c.decoder.Split(addr)

	rec := cache.AccessRecord{
		Seq:     c.stats.Total(),
		Raw:     raw,
		Address: addr,
		Offset:  f.Offset,
		Tag:     f.Tag,
	}

	block, hit := c.tags.Lookup(0, f.Tag)
	if !hit {
		block = c.victimFinder.FindVictim(c.tags, 0)
		if block.IsValid {
			rec.Evicted = true
			rec.EvictedTag = block.Tag
		}

		block.Tag = f.Tag
		block.IsValid = true
		c.tags.Update(block)
	}

	rec.Hit = hit
	rec.Way = block.WayID
	rec.Line = block.WayID

	c.stats.Record(hit)
	cache.InvokeAccessHook(&c.HookableBase, c, rec)

	return rec
}

// Stats returns the hit and miss counts since the last reset.
func (c *Cache) Stats() stats.Summary {
	return c.stats.Summary()
}

// Lines returns the state of every line.
func (c *Cache) Lines() []cache.Line {
	blocks := tagging.Snapshot(c.tags)
	lines := make([]cache.Line, len(blocks))

	for i, b := range blocks {
		lines[i] = cache.Line{Set: b.SetID, Way: b.WayID, Tag: b.Tag, Valid: b.IsValid}
	}

	return lines
}

// Reset invalidates every line, rewinds the replacement cursor and clears the
// statistics.
func (c *Cache) Reset() {
	c.tags.Reset()
	c.victimFinder.Reset()
	c.stats.Reset()
	cache.InvokeResetHook(&c.HookableBase, c)
}
