// Package directmapped simulates a cache where every address can live in
// exactly one line.
package directmapped

import (
	"github.com/sarchlab/cachesim/mem/addressing"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
	"github.com/sarchlab/cachesim/mem/cache/stats"
	"github.com/sarchlab/cachesim/sim/hooking"
)

// Cache is a direct-mapped cache. The index bits of an address select the only
// line that may hold it, so a miss always overwrites that line.
type Cache struct {
	hooking.HookableBase

	name    string
	config  cache.Config
	decoder addressing.Decoder
	tags    tagging.TagArray
	stats   stats.Accumulator
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
	setID := int(f.Index)
	line := c.tags.GetSet(setID).Blocks[0]

	rec := cache.AccessRecord{
		Seq:      c.stats.Total(),
		Raw:      raw,
		Address:  addr,
		Offset:   f.Offset,
		Index:    f.Index,
		HasIndex: true,
		Tag:      f.Tag,
		Hit:      line.Holds(f.Tag),
		Line:     setID,
	}

	if !rec.Hit {
		if line.IsValid {
			rec.Evicted = true
			rec.EvictedTag = line.Tag
		}

		c.tags.Update(tagging.Block{
			Tag:     f.Tag,
			SetID:   setID,
			WayID:   0,
			IsValid: true,
		})
	}

	c.stats.Record(rec.Hit)
	cache.InvokeAccessHook(&c.HookableBase, c, rec)

	return rec
}

// Stats returns the hit and miss counts since the last reset.
func (c *Cache) Stats() stats.Summary {
	return c.stats.Summary()
}

// Lines returns the state of every line, in index order.
func (c *Cache) Lines() []cache.Line {
	blocks := tagging.Snapshot(c.tags)
	lines := make([]cache.Line, len(blocks))

	for i, b := range blocks {
		lines[i] = cache.Line{Set: b.SetID, Way: b.WayID, Tag: b.Tag, Valid: b.IsValid}
	}

	return lines
}

// Reset invalidates every line and clears the statistics.
func (c *Cache) Reset() {
	c.tags.Reset()
	c.stats.Reset()
	cache.InvokeResetHook(&c.HookableBase, c)
}
