// Package tracing collects what happens inside caches while a trace runs.
package tracing

import (
	"github.com/sarchlab/cachesim/mem/cache"
)

// A Tracer is told about every access and reset of the caches it traces.
type Tracer interface {
	TraceAccess(domain string, rec cache.AccessRecord)
	TraceReset(domain string)
}
