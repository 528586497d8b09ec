// Package tagging keeps track of which block occupies each line of a cache.
package tagging

// TagArray holds the blocks of a cache organized in sets and ways. A
// direct-mapped cache is a tag array with one way; a fully-associative cache
// is a tag array with one set.
type TagArray interface {
	Lookup(setID int, tag uint64) (Block, bool)
	Update(block Block)
	GetSet(setID int) *Set
	NumSets() int
	NumWays() int
	TotalSize() uint64
	Reset()
}

// NewTagArray creates a tag array where every block is invalid.
func NewTagArray(
	numSets int,
	numWays int,
	blockSize int,
) TagArray {
	t := &tagArrayImpl{
		numSets:   numSets,
		numWays:   numWays,
		blockSize: blockSize,
	}

	t.Reset()

	return t
}

// A Block is one cache line. The Tag is only meaningful when IsValid is set.
type Block struct {
	Tag     uint64
	SetID   int
	WayID   int
	IsValid bool
}

// Holds reports whether the block currently stores the given tag.
func (b Block) Holds(tag uint64) bool {
	return b.IsValid && b.Tag == tag
}

// A Set is a list of blocks where a certain piece of memory can be stored.
type Set struct {
	Blocks []Block
}

type tagArrayImpl struct {
	numSets   int
	numWays   int
	blockSize int
	sets      []Set
}

// TotalSize returns the maximum number of bytes can be stored in the cache
func (d *tagArrayImpl) TotalSize() uint64 {
	return uint64(d.numSets) * uint64(d.numWays) * uint64(d.blockSize)
}

func (d *tagArrayImpl) NumSets() int {
	return d.numSets
}

func (d *tagArrayImpl) NumWays() int {
	return d.numWays
}

// GetSet returns the set with the given index.
func (d *tagArrayImpl) GetSet(setID int) *Set {
	return &d.sets[setID]
}

// Lookup scans the set in way order and returns the first valid block that
// holds the tag.
func (d *tagArrayImpl) Lookup(setID int, tag uint64) (Block, bool) {
	set := d.GetSet(setID)
	for _, block := range set.Blocks {
		if block.Holds(tag) {
			return block, true
		}
	}

	return Block{}, false
}

// Update overwrites the line at the block's set and way.
func (d *tagArrayImpl) Update(block Block) {
	d.sets[block.SetID].Blocks[block.WayID] = block
}

// Reset will mark all the blocks in the directory invalid
func (d *tagArrayImpl) Reset() {
	d.sets = make([]Set, d.numSets)
	for i := 0; i < d.numSets; i++ {
		d.sets[i].Blocks = make([]Block, d.numWays)
		for j := 0; j < d.numWays; j++ {
			d.sets[i].Blocks[j] = Block{
				SetID: i,
				WayID: j,
			}
		}
	}
}

// Snapshot copies every block of the tag array, ordered by set then way.
func Snapshot(t TagArray) []Block {
	blocks := make([]Block, 0, t.NumSets()*t.NumWays())
	for i := 0; i < t.NumSets(); i++ {
		blocks = append(blocks, t.GetSet(i).Blocks...)
	}

	return blocks
}
