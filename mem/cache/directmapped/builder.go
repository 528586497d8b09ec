package directmapped

import (
	"fmt"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
)

// A Builder can build direct-mapped caches.
type Builder struct {
	cacheSize    uint64
	blockSize    uint64
	addressWidth int
}

// MakeBuilder creates a builder with default parameter setting
func MakeBuilder() Builder {
	return Builder{
		cacheSize:    1024,
		blockSize:    16,
		addressWidth: cache.DefaultAddressWidth,
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

// WithAddressWidth sets the number of bits an address may occupy.
func (b Builder) WithAddressWidth(n int) Builder {
	b.addressWidth = n
	return b
}

// WithConfig copies the sizes from a configuration.
func (b Builder) WithConfig(c cache.Config) Builder {
	c = c.WithDefaults()
	b.cacheSize = c.CacheSize
	b.blockSize = c.BlockSize
	b.addressWidth = c.AddressWidth

	return b
}

// Build creates a direct-mapped cache with all lines invalid. It fails with
// cache.ErrConfiguration if the sizes are not usable.
func (b Builder) Build(name string) (*Cache, error) {
	config := cache.Config{
		Organization: cache.DirectMapped,
		CacheSize:    b.cacheSize,
		BlockSize:    b.blockSize,
		AddressWidth: b.addressWidth,
	}.WithDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("building %s: %w", name, err)
	}

	decoder, err := config.Decoder()
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", name, err)
	}

	c := &Cache{
		name:    name,
		config:  config,
		decoder: decoder,
		tags: tagging.NewTagArray(
			int(config.NumBlocks()), 1, int(config.BlockSize)),
	}

	return c, nil
}
