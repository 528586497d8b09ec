package cmd

import (
	"context"
	"fmt"
	"iter"
	"os"
	"os/signal"
	"strconv"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/monitoring"
	"github.com/sarchlab/cachesim/runner"
	"github.com/sarchlab/cachesim/trace"
	"github.com/sarchlab/cachesim/tracing"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// organizationAll selects one cache of every organization.
const organizationAll = "all"

type runOptions struct {
	configPath     string
	tracePath      string
	organization   string
	cacheSize      uint64
	blockSize      uint64
	numSets        uint64
	addressWidth   int
	cursorScope    string
	cursorOrigin   uint64
	invalidAddress string

	verbose        bool
	showLines      bool
	traceOut       string
	dbPath         string
	recordAccesses bool
	monitor        bool
	monitorPort    int
	openBrowser    bool
	hold           bool
}

func newRunCommand() *cobra.Command {
	o := &runOptions{}

	runCmd := &cobra.Command{
		Use:   "run [trace]",
		Short: "Run a trace through one or more caches",
		Long: `Run a trace through one or more caches. The caches are given ` +
			`either by flags or by a YAML run file (--config). Without a run ` +
			`file, one cache of each organization is simulated unless ` +
			`--organization selects one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				o.tracePath = args[0]
			}

			if !cmd.Flags().Changed("monitor-port") {
				if env := os.Getenv(envMonitorPort); env != "" {
					port, err := strconv.Atoi(env)
					if err != nil {
						return fmt.Errorf("%s: %w", envMonitorPort, err)
					}

					o.monitorPort = port
				}
			}

			rf, err := o.runFile(cmd)
			if err != nil {
				return err
			}

			return o.run(cmd, rf)
		},
	}

	f := runCmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "YAML run file")
	f.StringVar(&o.tracePath, "trace", "", "Trace file (CSV or one address per line)")
	f.StringVar(&o.organization, "organization", organizationAll,
		"direct-mapped, fully-associative, set-associative or all")
	f.Uint64Var(&o.cacheSize, "cache-size", 1024, "Cache size in bytes")
	f.Uint64Var(&o.blockSize, "block-size", 16, "Block size in bytes")
	f.Uint64Var(&o.numSets, "sets", 4, "Number of sets of the set-associative cache")
	f.IntVar(&o.addressWidth, "address-width", cache.DefaultAddressWidth,
		"Address width in bits (16, 32 or 64)")
	f.StringVar(&o.cursorScope, "cursor-scope", string(cache.CursorShared),
		"Round-robin cursor shared by all sets (shared) or kept per set (per-set)")
	f.Uint64Var(&o.cursorOrigin, "cursor-origin", cache.DefaultCursorOrigin,
		"Way overwritten by the first miss")
	f.StringVar(&o.invalidAddress, "invalid-address", string(runner.SkipInvalid),
		"What to do with undecodable addresses (skip or abort)")

	f.BoolVarP(&o.verbose, "verbose", "v", false,
		"Print every access; caches run one after another")
	f.BoolVar(&o.showLines, "show-lines", false,
		"With --verbose, print the cache lines after every access")
	f.StringVar(&o.traceOut, "trace-out", "", "Write every access to this CSV file")
	f.StringVar(&o.dbPath, "db", "", "Record the results in this SQLite file")
	f.BoolVar(&o.recordAccesses, "record-accesses", false,
		"With --db, also record every access")
	f.BoolVar(&o.monitor, "monitor", false, "Serve the run state over HTTP")
	f.IntVar(&o.monitorPort, "monitor-port", 0, "Port of the monitoring server")
	f.BoolVar(&o.openBrowser, "open-browser", false,
		"Open the monitoring server in a browser")
	f.BoolVar(&o.hold, "hold", false,
		"With --monitor, keep serving after the run until interrupted")

	return runCmd
}

// runFile returns the run file given by --config, with the flags that were
// set explicitly taking precedence, or a run file built from the flags.
func (o *runOptions) runFile(cmd *cobra.Command) (RunFile, error) {
	var rf RunFile

	if o.configPath != "" {
		var err error

		rf, err = LoadRunFile(o.configPath)
		if err != nil {
			return RunFile{}, err
		}

		if o.tracePath != "" {
			rf.Trace = o.tracePath
		}

		if cmd.Flags().Changed("invalid-address") {
			rf.InvalidAddress = runner.InvalidAddressPolicy(o.invalidAddress)
		}
	} else {
		var err error

		rf, err = o.runFileFromFlags()
		if err != nil {
			return RunFile{}, err
		}
	}

	if rf.Trace == "" {
		return RunFile{}, fmt.Errorf("no trace given")
	}

	if err := rf.Validate(); err != nil {
		return RunFile{}, err
	}

	return rf, nil
}

func (o *runOptions) runFileFromFlags() (RunFile, error) {
	origin := o.cursorOrigin
	base := cache.Config{
		CacheSize:    o.cacheSize,
		BlockSize:    o.blockSize,
		AddressWidth: o.addressWidth,
		CursorScope:  cache.CursorScope(o.cursorScope),
		CursorOrigin: &origin,
	}

	var orgs []cache.Organization

	switch o.organization {
	case organizationAll:
		orgs = []cache.Organization{
			cache.DirectMapped, cache.FullyAssociative, cache.SetAssociative,
		}
	case string(cache.DirectMapped),
		string(cache.FullyAssociative),
		string(cache.SetAssociative):
		orgs = []cache.Organization{cache.Organization(o.organization)}
	default:
		return RunFile{}, fmt.Errorf("%w: unknown organization %q",
			cache.ErrConfiguration, o.organization)
	}

	rf := RunFile{
		Trace:          o.tracePath,
		InvalidAddress: runner.InvalidAddressPolicy(o.invalidAddress),
	}

	for _, org := range orgs {
		c := base
		c.Organization = org

		if org == cache.SetAssociative {
			c.NumSets = o.numSets
		}

		rf.Caches = append(rf.Caches, CacheSpec{Name: string(org), Config: c})
	}

	return rf, nil
}

func (o *runOptions) run(cmd *cobra.Command, rf RunFile) error {
	sims := make([]cache.Simulator, 0, len(rf.Caches))

	for _, spec := range rf.Caches {
		sim, err := runner.Build(spec.Name, spec.Config)
		if err != nil {
			return err
		}

		sims = append(sims, sim)
	}

	counts := tracing.NewCountTracer()
	for _, sim := range sims {
		tracing.CollectTrace(sim, counts)
	}

	closeTraceOut, err := o.attachTraceWriter(sims)
	if err != nil {
		return err
	}
	defer closeTraceOut()

	recorder, err := o.attachRecorder(sims)
	if err != nil {
		return err
	}

	opts := runner.Options{
		InvalidAddress: rf.InvalidAddress,
	}

	monitor, err := o.startMonitor(sims, &opts)
	if err != nil {
		return err
	}

	entries := trace.Open(rf.Trace)
	results, runErr := o.simulate(cmd, sims, entries, opts)

	writeResults(cmd.OutOrStdout(), results, counts)

	if recorder != nil {
		for _, r := range results {
			recorder.RecordSummary(r.Name, r.Config, r.Summary, r.Skipped)
		}

		if err := recorder.Close(); err != nil {
			return err
		}

		logrus.WithField("run", recorder.RunID()).Info("Results recorded")
	}

	if monitor != nil {
		o.holdMonitor(cmd, monitor)
	}

	return runErr
}

func (o *runOptions) simulate(
	cmd *cobra.Command,
	sims []cache.Simulator,
	entries iter.Seq2[trace.Entry, error],
	opts runner.Options,
) ([]runner.Result, error) {
	if !o.verbose {
		return runner.RunAll(sims, entries, opts)
	}

	results := make([]runner.Result, 0, len(sims))

	for _, sim := range sims {
		if opts.NewProgress != nil {
			opts.Progress = opts.NewProgress(sim.Name())
		}

		p := &accessPrinter{
			w:         cmd.OutOrStdout(),
			sim:       sim,
			showLines: o.showLines,
		}
		sim.AcceptHook(p)

		fmt.Fprintf(cmd.OutOrStdout(), "== %s: %s\n", sim.Name(), sim.Config())

		r, err := runner.Run(sim, entries, opts)
		results = append(results, r)

		if err != nil {
			return results, err
		}
	}

	return results, nil
}

func (o *runOptions) attachTraceWriter(sims []cache.Simulator) (func(), error) {
	if o.traceOut == "" {
		return func() {}, nil
	}

	writer := tracing.NewCSVTraceWriter(o.traceOut)
	if err := writer.Init(); err != nil {
		return nil, err
	}

	for _, sim := range sims {
		tracing.CollectTrace(sim, writer)
	}

	return func() {
		if err := writer.Close(); err != nil {
			logrus.WithError(err).Error("Cannot close access trace")
		}
	}, nil
}

func (o *runOptions) attachRecorder(
	sims []cache.Simulator,
) (*datarecording.CacheRecorder, error) {
	if o.dbPath == "" {
		return nil, nil
	}

	db, err := datarecording.New(o.dbPath)
	if err != nil {
		return nil, err
	}

	recorder := datarecording.NewCacheRecorder(db, o.recordAccesses)

	if o.recordAccesses {
		for _, sim := range sims {
			tracing.CollectTrace(sim, recorder)
		}
	}

	return recorder, nil
}

func (o *runOptions) startMonitor(
	sims []cache.Simulator,
	opts *runner.Options,
) (*monitoring.Monitor, error) {
	if !o.monitor {
		return nil, nil
	}

	m := monitoring.NewMonitor().
		WithPortNumber(o.monitorPort).
		WithBrowser(o.openBrowser)

	for _, sim := range sims {
		m.RegisterSimulator(sim)
	}

	if _, err := m.StartServer(); err != nil {
		return nil, err
	}

	opts.NewProgress = func(name string) runner.Progress {
		return m.CreateProgressBar(name, 0)
	}

	return m, nil
}

func (o *runOptions) holdMonitor(cmd *cobra.Command, m *monitoring.Monitor) {
	if o.hold {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		fmt.Fprintln(cmd.ErrOrStderr(), "Run finished, press Ctrl+C to exit")
		<-ctx.Done()
	}

	if err := m.StopServer(); err != nil {
		logrus.WithError(err).Warn("Cannot stop monitor")
	}
}
