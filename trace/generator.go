package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"math/rand"
)

// Format writes an address the way generated traces spell it.
func Format(addr uint64) string {
	return fmt.Sprintf("0x%04X", addr)
}

// Sequential yields count addresses starting at start and advancing by step.
func Sequential(start, count, step uint64) iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		addr := start
		for i := uint64(0); i < count; i++ {
			if !yield(addr) {
				return
			}

			addr += step
		}
	}
}

// Looping yields count addresses cycling through loop.
func Looping(loop []uint64, count uint64) iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		if len(loop) == 0 {
			return
		}

		for i := uint64(0); i < count; i++ {
			if !yield(loop[i%uint64(len(loop))]) {
				return
			}
		}
	}
}

// Random yields count addresses drawn uniformly from [0, max]. The same seed
// always gives the same trace.
func Random(count, max uint64, seed int64) iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		rng := rand.New(rand.NewSource(seed))

		for i := uint64(0); i < count; i++ {
			var addr uint64
			if max == ^uint64(0) {
				addr = rng.Uint64()
			} else {
				addr = rng.Uint64() % (max + 1)
			}

			if !yield(addr) {
				return
			}
		}
	}
}

// Entries turns generated addresses into trace entries.
func Entries(addresses iter.Seq[uint64]) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		line := 0
		for addr := range addresses {
			line++
			if !yield(Entry{Line: line, Raw: Format(addr)}, nil) {
				return
			}
		}
	}
}

// Write stores addresses as a trace file with an Address(Hex) header. It
// returns the number of addresses written.
func Write(w io.Writer, addresses iter.Seq[uint64]) (int, error) {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{AddressColumn}); err != nil {
		return 0, fmt.Errorf("writing trace header: %w", err)
	}

	n := 0
	for addr := range addresses {
		if err := writer.Write([]string{Format(addr)}); err != nil {
			return n, fmt.Errorf("writing trace: %w", err)
		}

		n++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return n, fmt.Errorf("writing trace: %w", err)
	}

	return n, nil
}
