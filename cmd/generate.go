package cmd

import (
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/cachesim/trace"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	output    string
	force     bool
	start     string
	step      string
	max       string
	addresses []string
	count     uint64
	seed      int64
}

func newGenerateCommand() *cobra.Command {
	o := &generateOptions{}

	generateCmd := &cobra.Command{
		Use:       "generate {sequential|looping|random}",
		Short:     "Generate an address trace",
		Long:      `Generate an address trace in the CSV format that run reads.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"sequential", "looping", "random"},
		RunE: func(cmd *cobra.Command, args []string) error {
			addresses, err := o.pattern(args[0])
			if err != nil {
				return err
			}

			return o.write(cmd.OutOrStdout(), addresses)
		},
	}

	f := generateCmd.Flags()
	f.StringVarP(&o.output, "output", "o", "", "Output file (default stdout)")
	f.BoolVar(&o.force, "force", false, "Overwrite the output file")
	f.Uint64Var(&o.count, "count", 100, "Number of addresses")
	f.StringVar(&o.start, "start", "0x1000", "First address (sequential)")
	f.StringVar(&o.step, "step", "4", "Distance between addresses (sequential)")
	f.StringSliceVar(&o.addresses, "addresses",
		[]string{"0x1000", "0x2000", "0x3000", "0x4000"},
		"Addresses to cycle through (looping)")
	f.StringVar(&o.max, "max", "0xFFFF", "Largest address (random)")
	f.Int64Var(&o.seed, "seed", 42, "Seed (random)")

	return generateCmd
}

func parseNumber(flag, s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", flag, err)
	}

	return v, nil
}

func (o *generateOptions) pattern(name string) (iter.Seq[uint64], error) {
	switch name {
	case "sequential":
		start, err := parseNumber("start", o.start)
		if err != nil {
			return nil, err
		}

		step, err := parseNumber("step", o.step)
		if err != nil {
			return nil, err
		}

		return trace.Sequential(start, o.count, step), nil
	case "looping":
		loop := make([]uint64, 0, len(o.addresses))
		for _, a := range o.addresses {
			v, err := parseNumber("addresses", a)
			if err != nil {
				return nil, err
			}

			loop = append(loop, v)
		}

		if len(loop) == 0 {
			return nil, fmt.Errorf("--addresses: no addresses given")
		}

		return trace.Looping(loop, o.count), nil
	case "random":
		max, err := parseNumber("max", o.max)
		if err != nil {
			return nil, err
		}

		return trace.Random(o.count, max, o.seed), nil
	default:
		return nil, fmt.Errorf("unknown pattern %q", name)
	}
}

func (o *generateOptions) write(stdout io.Writer, addresses iter.Seq[uint64]) error {
	if o.output == "" {
		_, err := trace.Write(stdout, addresses)
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if o.force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(o.output, flags, 0o644)
	if err != nil {
		return err
	}

	n, err := trace.Write(f, addresses)
	if err != nil {
		f.Close()
		return err
	}

	logrus.WithFields(logrus.Fields{
		"file":      o.output,
		"addresses": n,
	}).Info("Trace generated")

	return f.Close()
}
