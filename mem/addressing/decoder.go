// Package addressing splits memory addresses into the offset, index and tag
// fields that a cache uses to place a block.
package addressing

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

var (
	// ErrConfiguration is returned when a cache geometry cannot be used to
	// decode addresses. A run configured this way cannot proceed.
	ErrConfiguration = errors.New("invalid cache configuration")

	// ErrInvalidAddress is returned when an address string is not a valid
	// hexadecimal number of the configured width.
	ErrInvalidAddress = errors.New("invalid address")
)

// Log2 returns the base-2 logarithm of n. It fails if n is not a positive
// power of two.
func Log2(n uint64) (uint, error) {
	if n == 0 || n&(n-1) != 0 {
		return 0, fmt.Errorf(
			"%w: %d is not a positive power of two", ErrConfiguration, n)
	}

	return uint(bits.TrailingZeros64(n)), nil
}

// Fields are the parts of an address as seen by a cache.
type Fields struct {
	Address uint64
	Offset  uint64
	Index   uint64
	Tag     uint64
}

// A Decoder splits addresses for a cache with a fixed block size and a fixed
// number of indexes. A fully-associative cache has exactly one index.
type Decoder struct {
	blockSize  uint64
	numIndexes uint64
	offsetBits uint
	indexBits  uint
	width      int
}

// NewDecoder creates a decoder. Both blockSize and numIndexes must be powers
// of two. Width is the number of bits an address may occupy.
func NewDecoder(blockSize, numIndexes uint64, width int) (Decoder, error) {
	offsetBits, err := Log2(blockSize)
	if err != nil {
		return Decoder{}, fmt.Errorf("block size: %w", err)
	}

	indexBits, err := Log2(numIndexes)
	if err != nil {
		return Decoder{}, fmt.Errorf("index count: %w", err)
	}

	if width <= 0 || width > 64 {
		return Decoder{}, fmt.Errorf(
			"%w: address width %d is out of range (1-64)",
			ErrConfiguration, width)
	}

	d := Decoder{
		blockSize:  blockSize,
		numIndexes: numIndexes,
		offsetBits: offsetBits,
		indexBits:  indexBits,
		width:      width,
	}

	return d, nil
}

// OffsetBits returns the number of low address bits that select a byte in a
// block.
func (d Decoder) OffsetBits() uint {
	return d.offsetBits
}

// IndexBits returns the number of address bits that select the index.
func (d Decoder) IndexBits() uint {
	return d.indexBits
}

// Width returns the address width in bits.
func (d Decoder) Width() int {
	return d.width
}

// Parse interprets s as a hexadecimal address. Surrounding spaces and a single
// 0x or 0X prefix are accepted. Anything else that is not a hex digit, and any
// value that does not fit in the address width, is rejected.
func (d Decoder) Parse(s string) (uint64, error) {
	digits := strings.TrimSpace(s)
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits = digits[2:]
	}

	if digits == "" {
		return 0, fmt.Errorf("%w: %q has no hex digits", ErrInvalidAddress, s)
	}

	addr, err := strconv.ParseUint(digits, 16, d.width)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %q does not fit in %d bits",
				ErrInvalidAddress, s, d.width)
		}

		return 0, fmt.Errorf("%w: %q is not hexadecimal", ErrInvalidAddress, s)
	}

	return addr, nil
}

// Split breaks an address into its offset, index and tag.
func (d Decoder) Split(addr uint64) Fields {
	return Fields{
		Address: addr,
		Offset:  addr & (d.blockSize - 1),
		Index:   (addr >> d.offsetBits) & (d.numIndexes - 1),
		Tag:     addr >> (d.offsetBits + d.indexBits),
	}
}

// Decode parses and splits an address string.
func (d Decoder) Decode(s string) (Fields, error) {
	addr, err := d.Parse(s)
	if err != nil {
		return Fields{}, err
	}

	return d.Split(addr), nil
}

// Compose rebuilds the address that Split would break into f.
func (d Decoder) Compose(f Fields) uint64 {
	return f.Tag<<(d.offsetBits+d.indexBits) | f.Index<<d.offsetBits | f.Offset
}

// BlockAddress returns the address of the first byte of the block that holds
// addr.
func (d Decoder) BlockAddress(addr uint64) uint64 {
	return addr &^ (d.blockSize - 1)
}
