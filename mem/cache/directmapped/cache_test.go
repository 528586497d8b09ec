package directmapped

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/sim/hooking"
)

var _ = Describe("Builder", func() {
	It("should build with the configured geometry", func() {
		c, err := MakeBuilder().
			WithCacheSize(256).
			WithBlockSize(32).
			Build("L1")

		Expect(err).NotTo(HaveOccurred())
		Expect(c.Name()).To(Equal("L1"))
		Expect(c.Config().NumBlocks()).To(Equal(uint64(8)))
		Expect(c.Lines()).To(HaveLen(8))
	})

	It("should refuse a block size that is not a power of two", func() {
		_, err := MakeBuilder().WithBlockSize(12).Build("L1")

		Expect(err).To(MatchError(cache.ErrConfiguration))
	})

	It("should refuse a cache size that is not a power of two", func() {
		_, err := MakeBuilder().WithCacheSize(1000).Build("L1")

		Expect(err).To(MatchError(cache.ErrConfiguration))
	})

	It("should take sizes from a config", func() {
		c, err := MakeBuilder().
			WithConfig(cache.Config{CacheSize: 64, BlockSize: 4}).
			Build("L1")

		Expect(err).NotTo(HaveOccurred())
		Expect(c.Config().Organization).To(Equal(cache.DirectMapped))
		Expect(c.Config().AddressWidth).To(Equal(32))
		Expect(c.Lines()).To(HaveLen(16))
	})
})

var _ = Describe("Cache", func() {
	var c *Cache

	BeforeEach(func() {
		var err error
		c, err = MakeBuilder().
			WithCacheSize(1024).
			WithBlockSize(16).
			Build("L1")
		Expect(err).NotTo(HaveOccurred())
	})

	It("should miss on a cold line and fill it", func() {
		rec, err := c.Access("00000120")

		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Hit).To(BeFalse())
		Expect(rec.Index).To(Equal(uint64(0x12)))
		Expect(rec.Tag).To(Equal(uint64(0)))
		Expect(rec.Offset).To(Equal(uint64(0)))
		Expect(rec.HasIndex).To(BeTrue())
		Expect(rec.Line).To(Equal(0x12))
		Expect(rec.Evicted).To(BeFalse())

		line := c.Lines()[0x12]
		Expect(line.Valid).To(BeTrue())
		Expect(line.Tag).To(BeZero())
	})

	It("should hit on another offset of the same block", func() {
		first, _ := c.Access("00000120")
		second, _ := c.Access("0000012f")

		Expect(first.Hit).To(BeFalse())
		Expect(second.Hit).To(BeTrue())
		Expect(second.Offset).To(Equal(uint64(0xf)))
		Expect(second.Index).To(Equal(first.Index))
	})

	It("should keep hitting a resident block", func() {
		c.Access("00000400")

		for i := 0; i < 5; i++ {
			rec, _ := c.Access("00000400")
			Expect(rec.Hit).To(BeTrue())
		}
	})

	It("should overwrite the line on a conflicting tag", func() {
		c.Access("00000010")
		rec, _ := c.Access("00000410")

		Expect(rec.Hit).To(BeFalse())
		Expect(rec.Index).To(Equal(uint64(1)))
		Expect(rec.Tag).To(Equal(uint64(1)))
		Expect(rec.Evicted).To(BeTrue())
		Expect(rec.EvictedTag).To(Equal(uint64(0)))

		rec, _ = c.Access("00000010")
		Expect(rec.Hit).To(BeFalse())
	})

	It("should count statistics", func() {
		c.Access("0")
		c.Access("0")
		c.Access("400")

		s := c.Stats()
		Expect(s.Hits).To(Equal(uint64(1)))
		Expect(s.Misses).To(Equal(uint64(2)))
	})

	It("should number accesses", func() {
		a, _ := c.Access("0")
		b := c.AccessAddress(0x10)

		Expect(a.Seq).To(Equal(uint64(0)))
		Expect(a.Raw).To(Equal("0"))
		Expect(b.Seq).To(Equal(uint64(1)))
		Expect(b.Raw).To(BeEmpty())
	})

	It("should leave the cache untouched on an invalid address", func() {
		_, err := c.Access("xyz")

		Expect(err).To(MatchError(cache.ErrInvalidAddress))
		Expect(c.Stats().Total()).To(BeZero())
	})

	It("should report undefined rates before any access", func() {
		Expect(c.Stats().Defined).To(BeFalse())
	})

	It("should invoke hooks on every access", func() {
		records := []cache.AccessRecord{}
		c.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == cache.HookPosAccess {
				records = append(records, ctx.Item.(cache.AccessRecord))
				Expect(ctx.Domain).To(BeIdenticalTo(c))
			}
		}))

		c.Access("0")
		c.Access("0")

		Expect(records).To(HaveLen(2))
		Expect(records[1].Hit).To(BeTrue())
	})

	It("should reset lines and statistics", func() {
		resets := 0
		c.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == cache.HookPosReset {
				resets++
			}
		}))
		c.Access("0")

		c.Reset()

		Expect(resets).To(Equal(1))
		Expect(c.Stats().Total()).To(BeZero())
		rec, _ := c.Access("0")
		Expect(rec.Hit).To(BeFalse())
		Expect(rec.Seq).To(BeZero())
	})
})
