package cache

import (
	"github.com/sarchlab/cachesim/sim/hooking"
)

// HookPosAccess marks that an address has been run through a cache. The hook
// item is an AccessRecord.
var HookPosAccess = &hooking.HookPos{Name: "Access"}

// HookPosReset marks that a cache has been reset. The hook item is nil.
var HookPosReset = &hooking.HookPos{Name: "Reset"}

// An AccessRecord is the outcome of running one address through a cache.
type AccessRecord struct {
	// Seq is the position of the access in the run, starting at 0.
	Seq     uint64 `json:"seq"`
	Raw     string `json:"raw,omitempty"`
	Address uint64 `json:"address"`
	Offset  uint64 `json:"offset"`

	// Index is the line (direct-mapped) or the set (set-associative) that the
	// address maps to. HasIndex is false for a fully-associative cache.
	Index    uint64 `json:"index"`
	HasIndex bool   `json:"has_index"`

	Tag uint64 `json:"tag"`
	Hit bool   `json:"hit"`

	// Way is the line within the set that hit or was overwritten. Line is the
	// same position counted over the whole cache.
	Way  int `json:"way"`
	Line int `json:"line"`

	// Evicted is set when a miss overwrote a valid line. EvictedTag is the tag
	// that was there.
	Evicted    bool   `json:"evicted"`
	EvictedTag uint64 `json:"evicted_tag,omitempty"`
}

// Outcome returns "Hit" or "Miss".
func (r AccessRecord) Outcome() string {
	if r.Hit {
		return "Hit"
	}

	return "Miss"
}

// InvokeAccessHook notifies the hooks of domain that rec has been produced.
func InvokeAccessHook(
	base *hooking.HookableBase,
	domain hooking.Hookable,
	rec AccessRecord,
) {
	if base.NumHooks() == 0 {
		return
	}

	base.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    HookPosAccess,
		Item:   rec,
	})
}

// InvokeResetHook notifies the hooks of domain that it has been reset.
func InvokeResetHook(base *hooking.HookableBase, domain hooking.Hookable) {
	base.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    HookPosReset,
	})
}
