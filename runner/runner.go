// Package runner drives cache simulators over address traces.
package runner

import (
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/cache/stats"
	"github.com/sarchlab/cachesim/trace"
	"github.com/sirupsen/logrus"
)

// InvalidAddressPolicy decides what a run does with an address that cannot be
// decoded.
type InvalidAddressPolicy string

// Policies for undecodable addresses.
const (
	// SkipInvalid reports the address and continues with the next one.
	SkipInvalid InvalidAddressPolicy = "skip"

	// AbortOnInvalid stops the run at the address.
	AbortOnInvalid InvalidAddressPolicy = "abort"
)

// Validate checks that p is a known policy. The empty policy means
// SkipInvalid.
func (p InvalidAddressPolicy) Validate() error {
	switch p {
	case "", SkipInvalid, AbortOnInvalid:
		return nil
	default:
		return fmt.Errorf("%w: unknown invalid address policy %q",
			cache.ErrConfiguration, p)
	}
}

// Progress is told how many trace entries have been processed.
type Progress interface {
	IncrementFinished(amount uint64)
}

// Options controls a run.
type Options struct {
	InvalidAddress InvalidAddressPolicy

	// Progress, if set, is told about every processed entry.
	Progress Progress

	// NewProgress, if set, is used by RunAll to create one Progress for each
	// simulator. It takes precedence over Progress.
	NewProgress func(name string) Progress
}

// maxSkipsKept bounds the skipped entries a Result lists. Skipped still
// counts all of them.
const maxSkipsKept = 100

// A SkippedEntry is a trace entry that was not simulated.
type SkippedEntry struct {
	Line int    `json:"line"`
	Raw  string `json:"raw"`
	Err  error  `json:"-"`
}

// Result is the outcome of running one trace through one simulator.
type Result struct {
	Name      string         `json:"name"`
	Config    cache.Config   `json:"config"`
	Summary   stats.Summary  `json:"summary"`
	Processed uint64         `json:"processed"`
	Skipped   uint64         `json:"skipped"`
	Skips     []SkippedEntry `json:"skips,omitempty"`
}

// Run resets sim and feeds it every entry of the trace, in order. The returned
// Result describes the run even when an error stops it early.
func Run(
	sim cache.Simulator,
	entries iter.Seq2[trace.Entry, error],
	opts Options,
) (Result, error) {
	if err := opts.InvalidAddress.Validate(); err != nil {
		return Result{Name: sim.Name(), Config: sim.Config()}, err
	}

	logger := logrus.WithField("cache", sim.Name())
	logger.WithField("config", sim.Config().String()).Info("Run started")

	sim.Reset()

	r := &Result{
		Name:   sim.Name(),
		Config: sim.Config(),
	}

	err := feed(sim, entries, opts, r, logger)

	r.Summary = sim.Stats()

	fields := logrus.Fields{
		"hits":    r.Summary.Hits,
		"misses":  r.Summary.Misses,
		"skipped": r.Skipped,
	}

	if err != nil {
		logger.WithFields(fields).WithError(err).Error("Run stopped")
		return *r, err
	}

	logger.WithFields(fields).Info("Run finished")

	return *r, nil
}

func feed(
	sim cache.Simulator,
	entries iter.Seq2[trace.Entry, error],
	opts Options,
	r *Result,
	logger *logrus.Entry,
) error {
	for entry, err := range entries {
		if err != nil {
			return fmt.Errorf("%s: %w", sim.Name(), err)
		}

		rec, err := sim.Access(entry.Raw)

		if opts.Progress != nil {
			opts.Progress.IncrementFinished(1)
		}

		if err != nil {
			if !errors.Is(err, cache.ErrInvalidAddress) ||
				opts.InvalidAddress == AbortOnInvalid {
				return fmt.Errorf("%s: line %d: %w", sim.Name(), entry.Line, err)
			}

			r.Skipped++
			if len(r.Skips) < maxSkipsKept {
				r.Skips = append(r.Skips,
					SkippedEntry{Line: entry.Line, Raw: entry.Raw, Err: err})
			}

			logger.WithFields(logrus.Fields{
				"line":    entry.Line,
				"address": entry.Raw,
			}).WithError(err).Warn("Address skipped")

			continue
		}

		r.Processed++

		if logger.Logger.IsLevelEnabled(logrus.DebugLevel) {
			logger.WithFields(logrus.Fields{
				"seq":     rec.Seq,
				"address": entry.Raw,
				"tag":     rec.Tag,
				"line":    rec.Line,
				"outcome": rec.Outcome(),
			}).Debug("Access")
		}
	}

	return nil
}

// RunAll runs the same trace through several simulators at the same time.
// The trace is iterated once per simulator, so it must be re-iterable, as
// the sequences of trace.Open and trace.FromSlice are. Results are in the
// order of sims. Errors of the individual runs are joined.
func RunAll(
	sims []cache.Simulator,
	entries iter.Seq2[trace.Entry, error],
	opts Options,
) ([]Result, error) {
	results := make([]Result, len(sims))
	errs := make([]error, len(sims))

	var wg sync.WaitGroup

	for i, sim := range sims {
		wg.Add(1)

		go func() {
			defer wg.Done()

			runOpts := opts
			if opts.NewProgress != nil {
				runOpts.Progress = opts.NewProgress(sim.Name())
			}

			results[i], errs[i] = Run(sim, entries, runOpts)
		}()
	}

	wg.Wait()

	return results, errors.Join(errs...)
}
