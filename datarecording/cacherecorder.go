package datarecording

import (
	"fmt"
	"sync"

	"github.com/rs/xid"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/cache/stats"
)

// Tables written by a CacheRecorder.
const (
	AccessTable  = "accesses"
	SummaryTable = "summaries"
)

// AccessEntry is one row of the accesses table. Addresses and tags are stored
// as hexadecimal text since SQLite integers cannot hold every 64-bit address.
type AccessEntry struct {
	RunID       string
	Cache       string
	Seq         int64
	Raw         string
	Address     string
	BlockOffset int64
	SetIndex    int64
	Tag         string
	Hit         bool
	Way         int
	Line        int
	Evicted     bool
	EvictedTag  string
}

// SummaryEntry is one row of the summaries table.
type SummaryEntry struct {
	RunID        string
	Cache        string
	Organization string
	CacheSize    int64
	BlockSize    int64
	Sets         int64
	Ways         int64
	Hits         int64
	Misses       int64
	HitRate      float64
	MissRate     float64
	Defined      bool
	Skipped      int64
}

// CacheRecorder stores the accesses and the final statistics of the caches of
// one run. It is a tracer, so it can be attached to caches with
// tracing.CollectTrace, and it can be shared by caches running in parallel.
type CacheRecorder struct {
	lock     sync.Mutex
	runID    string
	recorder DataRecorder
	exec     *execRecorder

	recordAccesses bool
	closed         bool
}

// NewCacheRecorder creates the tables of a run in recorder. Accesses are only
// stored when recordAccesses is set; summaries always are.
func NewCacheRecorder(
	recorder DataRecorder,
	recordAccesses bool,
) *CacheRecorder {
	r := &CacheRecorder{
		runID:          xid.New().String(),
		recorder:       recorder,
		recordAccesses: recordAccesses,
	}

	if recordAccesses {
		recorder.CreateTable(AccessTable, AccessEntry{})
	}

	recorder.CreateTable(SummaryTable, SummaryEntry{})

	r.exec = newExecRecorder(recorder)
	r.exec.Start()
	r.exec.Note("Run ID", r.runID)

	return r
}

// RunID identifies the rows written by this recorder.
func (r *CacheRecorder) RunID() string {
	return r.runID
}

// TraceAccess stores an access.
func (r *CacheRecorder) TraceAccess(domain string, rec cache.AccessRecord) {
	if !r.recordAccesses {
		return
	}

	setIndex := int64(-1)
	if rec.HasIndex {
		setIndex = int64(rec.Index)
	}

	evictedTag := ""
	if rec.Evicted {
		evictedTag = hex(rec.EvictedTag)
	}

	entry := AccessEntry{
		RunID:       r.runID,
		Cache:       domain,
		Seq:         int64(rec.Seq),
		Raw:         rec.Raw,
		Address:     hex(rec.Address),
		BlockOffset: int64(rec.Offset),
		SetIndex:    setIndex,
		Tag:         hex(rec.Tag),
		Hit:         rec.Hit,
		Way:         rec.Way,
		Line:        rec.Line,
		Evicted:     rec.Evicted,
		EvictedTag:  evictedTag,
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	r.recorder.InsertData(AccessTable, entry)
}

// TraceReset does nothing.
func (r *CacheRecorder) TraceReset(_ string) {
	// Do nothing
}

// RecordSummary stores the final statistics of a cache.
func (r *CacheRecorder) RecordSummary(
	name string,
	config cache.Config,
	summary stats.Summary,
	skipped uint64,
) {
	entry := SummaryEntry{
		RunID:        r.runID,
		Cache:        name,
		Organization: string(config.Organization),
		CacheSize:    int64(config.CacheSize),
		BlockSize:    int64(config.BlockSize),
		Sets:         int64(config.NumIndexes()),
		Ways:         int64(config.BlocksPerSet()),
		Hits:         int64(summary.Hits),
		Misses:       int64(summary.Misses),
		HitRate:      summary.HitRate,
		MissRate:     summary.MissRate,
		Defined:      summary.Defined,
		Skipped:      int64(skipped),
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	r.recorder.InsertData(SummaryTable, entry)
}

// Close writes the execution information and closes the database.
func (r *CacheRecorder) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	r.exec.End()

	return r.recorder.Close()
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%X", v)
}
