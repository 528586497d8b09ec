package addressing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Log2", func() {
	It("should return the exponent of a power of two", func() {
		n, err := Log2(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(uint(0)))

		n, err = Log2(64)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(uint(6)))
	})

	It("should reject zero", func() {
		_, err := Log2(0)
		Expect(err).To(MatchError(ErrConfiguration))
	})

	It("should reject values that are not powers of two", func() {
		_, err := Log2(12)
		Expect(err).To(MatchError(ErrConfiguration))
	})
})

var _ = Describe("Decoder", func() {
	var d Decoder

	BeforeEach(func() {
		var err error
		d, err = NewDecoder(16, 64, 32)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should refuse a block size that is not a power of two", func() {
		_, err := NewDecoder(24, 64, 32)
		Expect(err).To(MatchError(ErrConfiguration))
	})

	It("should refuse an index count that is not a power of two", func() {
		_, err := NewDecoder(16, 48, 32)
		Expect(err).To(MatchError(ErrConfiguration))
	})

	It("should refuse an out-of-range width", func() {
		_, err := NewDecoder(16, 64, 65)
		Expect(err).To(MatchError(ErrConfiguration))
	})

	It("should report the field widths", func() {
		Expect(d.OffsetBits()).To(Equal(uint(4)))
		Expect(d.IndexBits()).To(Equal(uint(6)))
		Expect(d.Width()).To(Equal(32))
	})

	It("should parse plain hex", func() {
		addr, err := d.Parse("0000abcd")
		Expect(err).NotTo(HaveOccurred())
		Expect(addr).To(Equal(uint64(0xabcd)))
	})

	It("should parse a 0x prefix and surrounding spaces", func() {
		addr, err := d.Parse("  0xD7F4 ")
		Expect(err).NotTo(HaveOccurred())
		Expect(addr).To(Equal(uint64(0xd7f4)))
	})

	It("should reject trailing garbage", func() {
		_, err := d.Parse("12zz")
		Expect(err).To(MatchError(ErrInvalidAddress))
	})

	It("should reject empty input", func() {
		_, err := d.Parse("0x")
		Expect(err).To(MatchError(ErrInvalidAddress))

		_, err = d.Parse("   ")
		Expect(err).To(MatchError(ErrInvalidAddress))
	})

	It("should reject addresses wider than the width", func() {
		_, err := d.Parse("100000000")
		Expect(err).To(MatchError(ErrInvalidAddress))
		Expect(err.Error()).To(ContainSubstring("32 bits"))
	})

	It("should split an address", func() {
		f := d.Split(0x12345)

		Expect(f.Offset).To(Equal(uint64(0x5)))
		Expect(f.Index).To(Equal(uint64(0x34)))
		Expect(f.Tag).To(Equal(uint64(0x12345 >> 10)))
	})

	It("should have no index bits with a single index", func() {
		fa, err := NewDecoder(16, 1, 32)
		Expect(err).NotTo(HaveOccurred())

		f := fa.Split(0x12345)

		Expect(f.Index).To(BeZero())
		Expect(f.Tag).To(Equal(uint64(0x1234)))
		Expect(f.Offset).To(Equal(uint64(0x5)))
	})

	It("should rebuild the placement bits from index and offset", func() {
		for _, addr := range []uint64{0, 0x10, 0x3ff, 0xdeadbeef, 0x12345} {
			f := d.Split(addr)
			low := f.Index<<d.OffsetBits() | f.Offset
			mask := uint64(1)<<(d.OffsetBits()+d.IndexBits()) - 1

			Expect(low).To(Equal(addr & mask))
			Expect(d.Compose(f)).To(Equal(addr))
		}
	})

	It("should decode a string", func() {
		f, err := d.Decode("00000010")
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(Fields{Address: 0x10, Offset: 0, Index: 1, Tag: 0}))
	})

	It("should give the block address", func() {
		Expect(d.BlockAddress(0x1237)).To(Equal(uint64(0x1230)))
	})
})
