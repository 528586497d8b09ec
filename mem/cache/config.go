package cache

import (
	"fmt"

	"github.com/sarchlab/cachesim/mem/addressing"
)

var (
	// ErrConfiguration marks a cache geometry that cannot be simulated.
	ErrConfiguration = addressing.ErrConfiguration

	// ErrInvalidAddress marks an address string that cannot be decoded.
	ErrInvalidAddress = addressing.ErrInvalidAddress
)

// Organization names how a cache maps addresses to lines.
type Organization string

// The supported cache organizations.
const (
	DirectMapped     Organization = "direct-mapped"
	FullyAssociative Organization = "fully-associative"
	SetAssociative   Organization = "set-associative"
)

// CursorScope selects whether the round-robin replacement cursor is shared by
// all sets or kept per set.
type CursorScope string

// The supported cursor scopes.
const (
	CursorShared CursorScope = "shared"
	CursorPerSet CursorScope = "per-set"
)

// DefaultAddressWidth is the address width used when none is given.
const DefaultAddressWidth = 32

// DefaultCursorOrigin makes the first miss of a cache overwrite way 1.
const DefaultCursorOrigin = 1

// Config describes the geometry of a cache. Sizes are in bytes.
type Config struct {
	Organization Organization `yaml:"organization" json:"organization"`
	CacheSize    uint64       `yaml:"cache_size" json:"cache_size"`
	BlockSize    uint64       `yaml:"block_size" json:"block_size"`
	NumSets      uint64       `yaml:"sets,omitempty" json:"sets,omitempty"`
	AddressWidth int          `yaml:"address_width,omitempty" json:"address_width"`
	CursorScope  CursorScope  `yaml:"cursor_scope,omitempty" json:"cursor_scope,omitempty"`
	CursorOrigin *uint64      `yaml:"cursor_origin,omitempty" json:"cursor_origin,omitempty"`
}

// Origin returns the way that the first miss of a set overwrites, before it
// is reduced modulo the number of ways.
func (c Config) Origin() uint64 {
	if c.CursorOrigin == nil {
		return DefaultCursorOrigin
	}

	return *c.CursorOrigin
}

// WithDefaults fills the optional fields that are left empty.
func (c Config) WithDefaults() Config {
	if c.AddressWidth == 0 {
		c.AddressWidth = DefaultAddressWidth
	}

	if c.CursorScope == "" {
		c.CursorScope = CursorShared
	}

	if c.CursorOrigin == nil {
		origin := uint64(DefaultCursorOrigin)
		c.CursorOrigin = &origin
	}

	return c
}

// NumBlocks returns the number of lines in the cache.
func (c Config) NumBlocks() uint64 {
	if c.BlockSize == 0 {
		return 0
	}

	return c.CacheSize / c.BlockSize
}

// NumIndexes returns how many distinct index values an address can take.
func (c Config) NumIndexes() uint64 {
	switch c.Organization {
	case DirectMapped:
		return c.NumBlocks()
	case SetAssociative:
		return c.NumSets
	default:
		return 1
	}
}

// BlocksPerSet returns the number of ways of each set.
func (c Config) BlocksPerSet() uint64 {
	n := c.NumIndexes()
	if n == 0 {
		return 0
	}

	return c.NumBlocks() / n
}

// Validate checks that the cache can be built. All sizes must be positive
// powers of two, the cache must hold at least one block and a set-associative
// cache cannot have more sets than blocks.
func (c Config) Validate() error {
	switch c.Organization {
	case DirectMapped, FullyAssociative, SetAssociative:
	default:
		return fmt.Errorf("%w: unknown organization %q",
			ErrConfiguration, c.Organization)
	}

	if _, err := addressing.Log2(c.BlockSize); err != nil {
		return fmt.Errorf("block size: %w", err)
	}

	if _, err := addressing.Log2(c.CacheSize); err != nil {
		return fmt.Errorf("cache size: %w", err)
	}

	if c.CacheSize < c.BlockSize {
		return fmt.Errorf(
			"%w: cache size %d is smaller than block size %d",
			ErrConfiguration, c.CacheSize, c.BlockSize)
	}

	if c.Organization == SetAssociative {
		if err := c.validateSets(); err != nil {
			return err
		}
	}

	switch c.AddressWidth {
	case 16, 32, 64:
	default:
		return fmt.Errorf("%w: address width must be 16, 32 or 64, got %d",
			ErrConfiguration, c.AddressWidth)
	}

	switch c.CursorScope {
	case CursorShared, CursorPerSet:
	default:
		return fmt.Errorf("%w: unknown cursor scope %q",
			ErrConfiguration, c.CursorScope)
	}

	return nil
}

func (c Config) validateSets() error {
	if _, err := addressing.Log2(c.NumSets); err != nil {
		return fmt.Errorf("set count: %w", err)
	}

	if c.NumSets > c.NumBlocks() {
		return fmt.Errorf("%w: %d sets exceed %d blocks",
			ErrConfiguration, c.NumSets, c.NumBlocks())
	}

	return nil
}

// Decoder returns the address decoder for the cache.
func (c Config) Decoder() (addressing.Decoder, error) {
	return addressing.NewDecoder(c.BlockSize, c.NumIndexes(), c.AddressWidth)
}

func (c Config) String() string {
	s := fmt.Sprintf("%s cache, %d B, %d B blocks",
		c.Organization, c.CacheSize, c.BlockSize)
	if c.Organization == SetAssociative {
		s += fmt.Sprintf(", %d sets x %d ways", c.NumSets, c.BlocksPerSet())
	}

	return s
}
