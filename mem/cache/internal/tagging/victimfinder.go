package tagging

// A VictimFinder decides which block of a set is overwritten on a miss.
type VictimFinder interface {
	FindVictim(tags TagArray, setID int) Block
	Reset()
}

// CursorScope tells whether a round-robin cursor is shared by all the sets of
// a cache or kept per set.
type CursorScope int

const (
	// SharedCursor advances one cursor on every miss of the cache, regardless
	// of the set that missed.
	SharedCursor CursorScope = iota

	// PerSetCursor advances a separate cursor for each set.
	PerSetCursor
)

// RoundRobinVictimFinder picks the way (origin + n) mod ways, where n is the
// number of victims chosen before under the same cursor. Victims are chosen
// without regard to validity, so an empty line can be skipped while a valid
// one is overwritten.
type RoundRobinVictimFinder struct {
	scope      CursorScope
	origin     uint64
	cursor     uint64
	setCursors map[int]uint64
}

// NewRoundRobinVictimFinder creates a round-robin victim finder. With an
// origin of 1 and a shared cursor, the n-th miss of the cache overwrites way
// n mod ways.
func NewRoundRobinVictimFinder(
	scope CursorScope,
	origin uint64,
) *RoundRobinVictimFinder {
	e := &RoundRobinVictimFinder{
		scope:  scope,
		origin: origin,
	}
	e.Reset()

	return e
}

// FindVictim returns the block to overwrite and advances the cursor.
func (e *RoundRobinVictimFinder) FindVictim(tags TagArray, setID int) Block {
	set := tags.GetSet(setID)
	n := e.advance(setID)
	way := (e.origin + n) % uint64(len(set.Blocks))

	return set.Blocks[way]
}

func (e *RoundRobinVictimFinder) advance(setID int) uint64 {
	if e.scope == PerSetCursor {
		n := e.setCursors[setID]
		e.setCursors[setID] = n + 1

		return n
	}

	n := e.cursor
	e.cursor++

	return n
}

// Cursor returns how many victims have been chosen under the cursor that the
// given set uses.
func (e *RoundRobinVictimFinder) Cursor(setID int) uint64 {
	if e.scope == PerSetCursor {
		return e.setCursors[setID]
	}

	return e.cursor
}

// Reset rewinds all the cursors.
func (e *RoundRobinVictimFinder) Reset() {
	e.cursor = 0
	e.setCursors = make(map[int]uint64)
}
