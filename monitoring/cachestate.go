package monitoring

import (
	"sync"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/cache/stats"
	"github.com/sarchlab/cachesim/sim/hooking"
)

// cacheState mirrors a simulator from its hooks, so that the server never
// touches a simulator that may be running.
type cacheState struct {
	lock sync.Mutex

	name   string
	config cache.Config
	stats  stats.Accumulator
	last   *cache.AccessRecord
	lines  []cache.Line
}

// CacheView is what the monitor shows about a cache.
type CacheView struct {
	Name       string              `json:"name"`
	Config     cache.Config        `json:"config"`
	Stats      stats.Summary       `json:"stats"`
	LastAccess *cache.AccessRecord `json:"last_access,omitempty"`
	Lines      []cache.Line        `json:"lines"`
}

func newCacheState(s cache.Simulator) *cacheState {
	return &cacheState{
		name:   s.Name(),
		config: s.Config(),
		lines:  s.Lines(),
	}
}

// Func updates the mirror.
func (c *cacheState) Func(ctx hooking.HookCtx) {
	c.lock.Lock()
	defer c.lock.Unlock()

	switch ctx.Pos {
	case cache.HookPosAccess:
		rec := ctx.Item.(cache.AccessRecord)
		c.stats.Record(rec.Hit)
		c.last = &rec

		if rec.Line >= 0 && rec.Line < len(c.lines) {
			c.lines[rec.Line].Tag = rec.Tag
			c.lines[rec.Line].Valid = true
		}
	case cache.HookPosReset:
		c.stats.Reset()
		c.last = nil

		for i := range c.lines {
			c.lines[i].Tag = 0
			c.lines[i].Valid = false
		}
	}
}

func (c *cacheState) view() *CacheView {
	c.lock.Lock()
	defer c.lock.Unlock()

	v := &CacheView{
		Name:   c.name,
		Config: c.config,
		Stats:  c.stats.Summary(),
		Lines:  make([]cache.Line, len(c.lines)),
	}

	copy(v.Lines, c.lines)

	if c.last != nil {
		last := *c.last
		v.LastAccess = &last
	}

	return v
}
