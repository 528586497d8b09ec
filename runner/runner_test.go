package runner

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/cache/directmapped"
	"github.com/sarchlab/cachesim/mem/cache/fullyassociative"
	"github.com/sarchlab/cachesim/mem/cache/setassociative"
	"github.com/sarchlab/cachesim/sim/hooking"
	"github.com/sarchlab/cachesim/trace"
)

func setAssociativeConfig() cache.Config {
	return cache.Config{
		Organization: cache.SetAssociative,
		CacheSize:    1024,
		BlockSize:    16,
		NumSets:      4,
	}
}

var _ = Describe("Run", func() {
	var (
		mockCtrl *gomock.Controller
		sim      cache.Simulator
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())

		var err error
		sim, err = Build("l1", setAssociativeConfig())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should simulate a trace", func() {
		entries := trace.FromSlice([]string{"00000000", "00000010", "00000000"})

		result, err := Run(sim, entries, Options{})

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Name).To(Equal("l1"))
		Expect(result.Processed).To(Equal(uint64(3)))
		Expect(result.Summary.Hits).To(Equal(uint64(1)))
		Expect(result.Summary.Misses).To(Equal(uint64(2)))
		Expect(result.Summary.HitRate).To(BeNumerically("~", 33.33, 0.01))
		Expect(result.Summary.MissRate).To(BeNumerically("~", 66.67, 0.01))
	})

	It("should start from an empty cache", func() {
		sim.AccessAddress(0x0)

		result, err := Run(sim, trace.FromSlice([]string{"0"}), Options{})

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Summary.Hits).To(BeZero())
		Expect(result.Summary.Misses).To(Equal(uint64(1)))
	})

	It("should skip invalid addresses by default", func() {
		entries := trace.FromSlice([]string{"0", "zzzz", "0", ""})

		result, err := Run(sim, entries, Options{})

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Processed).To(Equal(uint64(2)))
		Expect(result.Skipped).To(Equal(uint64(2)))
		Expect(result.Skips).To(HaveLen(2))
		Expect(result.Skips[0].Line).To(Equal(2))
		Expect(result.Skips[0].Raw).To(Equal("zzzz"))
		Expect(errors.Is(result.Skips[0].Err, cache.ErrInvalidAddress)).To(BeTrue())
		Expect(result.Summary.Total()).To(Equal(uint64(2)))
	})

	It("should abort on invalid addresses when asked", func() {
		entries := trace.FromSlice([]string{"0", "10", "0x1G", "0"})

		result, err := Run(sim, entries, Options{InvalidAddress: AbortOnInvalid})

		Expect(err).To(MatchError(cache.ErrInvalidAddress))
		Expect(err.Error()).To(ContainSubstring("line 3"))
		Expect(result.Processed).To(Equal(uint64(2)))
		Expect(result.Summary.Misses).To(Equal(uint64(2)))
	})

	It("should reject unknown policies", func() {
		_, err := Run(sim, trace.FromSlice(nil), Options{InvalidAddress: "retry"})

		Expect(err).To(MatchError(cache.ErrConfiguration))
	})

	It("should stop at trace read errors", func() {
		entries := trace.Read(strings.NewReader("Note,Address(Hex)\n1,0x0\nbroken\n"))

		result, err := Run(sim, entries, Options{})

		Expect(err).To(HaveOccurred())
		Expect(result.Processed).To(Equal(uint64(1)))
	})

	It("should report an undefined rate for an empty trace", func() {
		result, err := Run(sim, trace.FromSlice(nil), Options{})

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Summary.Defined).To(BeFalse())
	})

	It("should invoke hooks in order", func() {
		hook := NewMockHook(mockCtrl)
		sim.AcceptHook(hook)

		var positions []*hooking.HookPos
		var hits []bool
		hook.EXPECT().Func(gomock.Any()).
			Do(func(ctx hooking.HookCtx) {
				positions = append(positions, ctx.Pos)
				if ctx.Pos == cache.HookPosAccess {
					hits = append(hits, ctx.Item.(cache.AccessRecord).Hit)
				}
			}).
			Times(3)

		_, err := Run(sim, trace.FromSlice([]string{"0", "0"}), Options{})

		Expect(err).NotTo(HaveOccurred())
		Expect(positions).To(Equal([]*hooking.HookPos{
			cache.HookPosReset, cache.HookPosAccess, cache.HookPosAccess,
		}))
		Expect(hits).To(Equal([]bool{false, true}))
	})

	It("should report progress for every entry", func() {
		progress := NewMockProgress(mockCtrl)
		progress.EXPECT().IncrementFinished(uint64(1)).Times(3)

		_, err := Run(sim, trace.FromSlice([]string{"0", "bad!", "10"}),
			Options{Progress: progress})

		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("RunAll", func() {
	var sims []cache.Simulator

	BeforeEach(func() {
		configs := []cache.Config{
			{Organization: cache.DirectMapped, CacheSize: 1024, BlockSize: 16},
			{Organization: cache.FullyAssociative, CacheSize: 1024, BlockSize: 16},
			setAssociativeConfig(),
		}
		names := []string{"dm", "fa", "sa"}

		sims = nil
		for i, c := range configs {
			s, err := Build(names[i], c)
			Expect(err).NotTo(HaveOccurred())
			sims = append(sims, s)
		}
	})

	It("should run every simulator independently", func() {
		addresses, err := trace.Collect(trace.Entries(trace.Random(500, 0x3FFF, 7)))
		Expect(err).NotTo(HaveOccurred())

		results, err := RunAll(sims, trace.FromSlice(addresses), Options{})

		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))

		for i, r := range results {
			Expect(r.Name).To(Equal(sims[i].Name()))
			Expect(r.Processed).To(Equal(uint64(500)))
			Expect(r.Summary.Total()).To(Equal(uint64(500)))
			Expect(r.Summary).To(Equal(sims[i].Stats()))
		}
	})

	It("should give the same result as running alone", func() {
		entries := trace.Entries(trace.Looping([]uint64{0x0, 0x400, 0x800}, 30))

		results, err := RunAll(sims, entries, Options{})
		Expect(err).NotTo(HaveOccurred())

		alone, err := Build("alone", setAssociativeConfig())
		Expect(err).NotTo(HaveOccurred())
		single, err := Run(alone, entries, Options{})
		Expect(err).NotTo(HaveOccurred())

		Expect(results[2].Summary).To(Equal(single.Summary))
	})

	It("should create one progress per simulator", func() {
		created := make(chan string, len(sims))
		opts := Options{
			NewProgress: func(name string) Progress {
				created <- name
				return nopProgress{}
			},
		}

		_, err := RunAll(sims, trace.FromSlice([]string{"0"}), opts)
		Expect(err).NotTo(HaveOccurred())

		close(created)
		var names []string
		for n := range created {
			names = append(names, n)
		}
		Expect(names).To(ConsistOf("dm", "fa", "sa"))
	})

	It("should join the errors of the runs", func() {
		_, err := RunAll(sims, trace.FromSlice([]string{"0", "nothex"}),
			Options{InvalidAddress: AbortOnInvalid})

		Expect(err).To(MatchError(cache.ErrInvalidAddress))
		for _, name := range []string{"dm", "fa", "sa"} {
			Expect(err.Error()).To(ContainSubstring(name + ": line 2"))
		}
	})
})

type nopProgress struct{}

func (nopProgress) IncrementFinished(uint64) {}

var _ = Describe("Build", func() {
	It("should build every organization", func() {
		dm, err := Build("dm", cache.Config{
			Organization: cache.DirectMapped, CacheSize: 64, BlockSize: 16})
		Expect(err).NotTo(HaveOccurred())
		Expect(dm).To(BeAssignableToTypeOf(&directmapped.Cache{}))

		fa, err := Build("fa", cache.Config{
			Organization: cache.FullyAssociative, CacheSize: 64, BlockSize: 16})
		Expect(err).NotTo(HaveOccurred())
		Expect(fa).To(BeAssignableToTypeOf(&fullyassociative.Cache{}))

		sa, err := Build("sa", setAssociativeConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(sa).To(BeAssignableToTypeOf(&setassociative.Cache{}))
		Expect(sa.Config().BlocksPerSet()).To(Equal(uint64(16)))
	})

	It("should reject unknown organizations", func() {
		_, err := Build("x", cache.Config{Organization: "victim"})

		Expect(err).To(MatchError(cache.ErrConfiguration))
	})

	It("should reject invalid geometry", func() {
		for _, org := range []cache.Organization{
			cache.DirectMapped, cache.FullyAssociative, cache.SetAssociative,
		} {
			sim, err := Build("x", cache.Config{
				Organization: org, CacheSize: 1000, BlockSize: 16})

			Expect(err).To(MatchError(cache.ErrConfiguration))
			Expect(sim == nil).To(BeTrue(), "organization %s", org)
		}
	})
})
