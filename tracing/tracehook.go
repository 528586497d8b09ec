package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/sim/hooking"
)

// NamedHookable represent something both have a name and can be hooked
type NamedHookable interface {
	Name() string
	hooking.Hookable
}

// CollectTrace let the tracer to collect trace from a domain
func CollectTrace(domain NamedHookable, tracer Tracer) {
	hooks := domain.Hooks()
	for _, hook := range hooks {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf(
				"domain %s already has tracer %s",
				domain.Name(), reflect.TypeOf(tracer)))
		}
	}

	h := traceHook{t: tracer, domain: domain.Name()}
	domain.AcceptHook(&h)
}

// A traceHook is a hook that forwards cache events to a tracer
type traceHook struct {
	t      Tracer
	domain string
}

// Func calls the tracer interfaces when the hook is triggered
func (h *traceHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case cache.HookPosAccess:
		h.t.TraceAccess(h.domain, ctx.Item.(cache.AccessRecord))
	case cache.HookPosReset:
		h.t.TraceReset(h.domain)
	}
}
