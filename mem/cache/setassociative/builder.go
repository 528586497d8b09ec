package setassociative

import (
	"fmt"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
)

// A Builder can build set-associative caches.
type Builder struct {
	cacheSize    uint64
	blockSize    uint64
	numSets      uint64
	addressWidth int
	cursorScope  cache.CursorScope
	cursorOrigin uint64
}

// MakeBuilder creates a builder with default parameter setting
func MakeBuilder() Builder {
	return Builder{
		cacheSize:    1024,
		blockSize:    16,
		numSets:      4,
		addressWidth: cache.DefaultAddressWidth,
		cursorScope:  cache.CursorShared,
		cursorOrigin: cache.DefaultCursorOrigin,
	}
}

// WithCacheSize sets the capacity of the cache in bytes.
func (b Builder) WithCacheSize(n uint64) Builder {
	b.cacheSize = n
	return b
}

// WithBlockSize sets the number of bytes in a cache line.
func (b Builder) WithBlockSize(n uint64) Builder {
	b.blockSize = n
	return b
}

// WithNumSets sets the number of sets. The number of ways is what remains of
// the blocks.
func (b Builder) WithNumSets(n uint64) Builder {
	b.numSets = n
	return b
}

// WithAddressWidth sets the number of bits an address may occupy.
func (b Builder) WithAddressWidth(n int) Builder {
	b.addressWidth = n
	return b
}

// WithCursorScope selects whether all sets share one replacement cursor.
func (b Builder) WithCursorScope(scope cache.CursorScope) Builder {
	b.cursorScope = scope
	return b
}

// WithCursorOrigin sets the way that the first miss overwrites.
func (b Builder) WithCursorOrigin(origin uint64) Builder {
	b.cursorOrigin = origin
	return b
}

// WithConfig copies the geometry and the replacement cursor from a
// configuration.
func (b Builder) WithConfig(c cache.Config) Builder {
	c = c.WithDefaults()
	b.cacheSize = c.CacheSize
	b.blockSize = c.BlockSize
	b.numSets = c.NumSets
	b.addressWidth = c.AddressWidth
	b.cursorScope = c.CursorScope
	b.cursorOrigin = c.Origin()

	return b
}

// Build creates a set-associative cache with all lines invalid.
func (b Builder) Build(name string) (*Cache, error) {
	config := cache.Config{
		Organization: cache.SetAssociative,
		CacheSize:    b.cacheSize,
		BlockSize:    b.blockSize,
		NumSets:      b.numSets,
		AddressWidth: b.addressWidth,
		CursorScope:  b.cursorScope,
		CursorOrigin: &b.cursorOrigin,
	}.WithDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("building %s: %w", name, err)
	}

	decoder, err := config.Decoder()
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", name, err)
	}

	scope := tagging.SharedCursor
	if config.CursorScope == cache.CursorPerSet {
		scope = tagging.PerSetCursor
	}

	c := &Cache{
		name:    name,
		config:  config,
		decoder: decoder,
		tags: tagging.NewTagArray(
			int(config.NumSets),
			int(config.BlocksPerSet()),
			int(config.BlockSize)),
		victimFinder: tagging.NewRoundRobinVictimFinder(
			scope, config.Origin()),
	}

	return c, nil
}
