package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/runner"
	"github.com/sarchlab/cachesim/sim/hooking"
	"github.com/sarchlab/cachesim/tracing"
)

// accessPrinter prints every access of a cache, and optionally its lines.
type accessPrinter struct {
	w         io.Writer
	sim       cache.Simulator
	showLines bool
}

func (p *accessPrinter) Func(ctx hooking.HookCtx) {
	if ctx.Pos != cache.HookPosAccess {
		return
	}

	rec := ctx.Item.(cache.AccessRecord)
	fmt.Fprintln(p.w, formatAccess(rec))

	if p.showLines {
		writeLines(p.w, p.sim.Lines())
	}
}

func formatAccess(rec cache.AccessRecord) string {
	addr := rec.Raw
	if addr == "" {
		addr = fmt.Sprintf("0x%X", rec.Address)
	}

	s := fmt.Sprintf("Address: %s | Offset: %d | ", addr, rec.Offset)
	if rec.HasIndex {
		s += fmt.Sprintf("Index: %d | ", rec.Index)
	}

	s += fmt.Sprintf("Tag: 0x%X | Line: %d | %s", rec.Tag, rec.Line, rec.Outcome())

	if rec.Evicted {
		s += fmt.Sprintf(" (evicted tag 0x%X)", rec.EvictedTag)
	}

	return s
}

func writeLines(w io.Writer, lines []cache.Line) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "\tSet\tWay\tValid\tTag")

	for _, l := range lines {
		tag := "-"
		if l.Valid {
			tag = fmt.Sprintf("0x%X", l.Tag)
		}

		fmt.Fprintf(tw, "\t%d\t%d\t%t\t%s\n", l.Set, l.Way, l.Valid, tag)
	}

	tw.Flush()
}

func writeResults(
	w io.Writer,
	results []runner.Result,
	counts *tracing.CountTracer,
) {
	for _, r := range results {
		fmt.Fprintf(w, "%s: %s\n", r.Name, r.Summary)
	}

	if len(results) == 0 {
		return
	}

	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Cache\tOrganization\tSize\tBlock\tSets\tWays\t"+
		"Hits\tMisses\tHit Rate\tMiss Rate\tEvictions\tSkipped")

	for _, r := range results {
		evictions := counts.Counts(r.Name).Evictions

		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\t%d\t%d\n",
			r.Name,
			r.Config.Organization,
			r.Config.CacheSize,
			r.Config.BlockSize,
			r.Config.NumIndexes(),
			r.Config.BlocksPerSet(),
			r.Summary.Hits,
			r.Summary.Misses,
			r.Summary.FormatRate(r.Summary.HitRate),
			r.Summary.FormatRate(r.Summary.MissRate),
			evictions,
			r.Skipped,
		)
	}

	tw.Flush()
}
