package tracing

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/cache/fullyassociative"
	"github.com/sarchlab/cachesim/mem/cache/setassociative"
)

var _ = Describe("CSVTraceWriter", func() {
	var (
		dir    string
		writer *CSVTraceWriter
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		writer = NewCSVTraceWriter(filepath.Join(dir, "run"))
		Expect(writer.Init()).To(Succeed())
	})

	AfterEach(func() {
		Expect(writer.Close()).To(Succeed())
	})

	readLines := func() []string {
		content, err := os.ReadFile(writer.Path())
		Expect(err).NotTo(HaveOccurred())

		return strings.Split(strings.TrimSpace(string(content)), "\n")
	}

	It("should add the csv extension", func() {
		Expect(writer.Path()).To(Equal(filepath.Join(dir, "run.csv")))
	})

	It("should refuse to overwrite a file", func() {
		again := NewCSVTraceWriter(filepath.Join(dir, "run.csv"))
		Expect(again.Init()).To(MatchError(ContainSubstring("already exists")))
	})

	It("should report a failed write on the next flush", func() {
		writer.bufferSize = 1
		Expect(writer.file.Close()).To(Succeed())

		rec := cache.AccessRecord{Address: 0x10, Tag: 0x1}
		Expect(func() { writer.TraceAccess("fa", rec) }).NotTo(Panic())

		Expect(writer.Flush()).To(MatchError(os.ErrClosed))
		Expect(writer.Close()).To(HaveOccurred())
	})

	It("should write the accesses of a set-associative cache", func() {
		c, err := setassociative.MakeBuilder().
			WithCacheSize(1024).
			WithBlockSize(16).
			WithNumSets(4).
			Build("sa")
		Expect(err).NotTo(HaveOccurred())
		CollectTrace(c, writer)

		_, err = c.Access("00000000")
		Expect(err).NotTo(HaveOccurred())
		_, err = c.Access("00000000")
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Flush()).To(Succeed())

		lines := readLines()
		Expect(lines).To(HaveLen(3))
		Expect(lines[0]).To(HavePrefix("Cache, Seq, Address"))
		Expect(lines[1]).To(Equal("sa, 0, 0x0, 0, 0, 0x0, Miss, 1, 1, false, -"))
		Expect(lines[2]).To(Equal("sa, 1, 0x0, 0, 0, 0x0, Hit, 1, 1, false, -"))
	})

	It("should write evictions of a fully-associative cache", func() {
		c, err := fullyassociative.MakeBuilder().
			WithCacheSize(32).
			WithBlockSize(16).
			Build("fa")
		Expect(err).NotTo(HaveOccurred())
		CollectTrace(c, writer)

		c.AccessAddress(0x00)
		c.AccessAddress(0x10)
		c.AccessAddress(0x20)
		Expect(writer.Close()).To(Succeed())

		lines := readLines()
		Expect(lines).To(HaveLen(4))
		Expect(lines[3]).To(Equal("fa, 2, 0x20, 0, -, 0x2, Miss, 1, 1, true, 0x0"))
	})

	It("should panic when tracing after close", func() {
		Expect(writer.Close()).To(Succeed())
		Expect(func() {
			writer.TraceAccess("x", cacheRecord())
		}).To(Panic())
	})
})

func cacheRecord() cache.AccessRecord {
	return cache.AccessRecord{}
}
