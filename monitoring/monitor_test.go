package monitoring

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/mem/cache/directmapped"
	"github.com/sarchlab/cachesim/mem/cache/setassociative"
)

var _ = Describe("Monitor", func() {
	var (
		m  *Monitor
		sa *setassociative.Cache
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		m.router().ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		m = NewMonitor()

		var err error
		sa, err = setassociative.MakeBuilder().
			WithCacheSize(1024).
			WithBlockSize(16).
			WithNumSets(4).
			Build("l1")
		Expect(err).NotTo(HaveOccurred())

		m.RegisterSimulator(sa)
	})

	It("should list caches", func() {
		dm, err := directmapped.MakeBuilder().Build("dm")
		Expect(err).NotTo(HaveOccurred())
		m.RegisterSimulator(dm)

		rsp := get("/api/list_caches")

		Expect(rsp.Code).To(Equal(http.StatusOK))
		Expect(rsp.Body.String()).To(MatchJSON(`["l1","dm"]`))
	})

	It("should follow accesses", func() {
		sa.AccessAddress(0x0)
		sa.AccessAddress(0x10)
		sa.AccessAddress(0x0)

		rsp := get("/api/cache/l1/summary")
		Expect(rsp.Code).To(Equal(http.StatusOK))

		var view CacheView
		Expect(json.Unmarshal(rsp.Body.Bytes(), &view)).To(Succeed())
		Expect(view.Name).To(Equal("l1"))
		Expect(view.Stats.Hits).To(Equal(uint64(1)))
		Expect(view.Stats.Misses).To(Equal(uint64(2)))
		Expect(view.LastAccess).NotTo(BeNil())
		Expect(view.LastAccess.Hit).To(BeTrue())
		Expect(view.Lines).To(BeEmpty())
	})

	It("should mirror the lines of the cache", func() {
		sa.AccessAddress(0x0)
		sa.AccessAddress(0x10)
		sa.AccessAddress(0x100)

		view := m.caches[0].view()

		Expect(view.Lines).To(Equal(sa.Lines()))
	})

	It("should mirror resets", func() {
		sa.AccessAddress(0x0)
		sa.Reset()

		view := m.caches[0].view()

		Expect(view.Stats.Defined).To(BeFalse())
		Expect(view.LastAccess).To(BeNil())
		Expect(view.Lines).To(Equal(sa.Lines()))
	})

	It("should serialize a cache", func() {
		sa.AccessAddress(0x0)

		rsp := get("/api/cache/l1")

		Expect(rsp.Code).To(Equal(http.StatusOK))
		Expect(rsp.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should return 404 for unknown caches", func() {
		rsp := get("/api/cache/l2")

		Expect(rsp.Code).To(Equal(http.StatusNotFound))
	})

	It("should reject unknown fields", func() {
		req := `{"cache_name":"l1","field_name":"Nope"}`

		rsp := get("/api/field/" + url.PathEscape(req))

		Expect(rsp.Code).To(Equal(http.StatusBadRequest))
	})

	It("should list progress bars", func() {
		bar := m.CreateProgressBar("l1", 10)
		bar.IncrementFinished(4)

		rsp := get("/api/progress")
		Expect(rsp.Code).To(Equal(http.StatusOK))

		var bars []progressView
		Expect(json.Unmarshal(rsp.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("l1"))
		Expect(bars[0].Finished).To(Equal(uint64(4)))

		m.CompleteProgressBar(bar)

		rsp = get("/api/progress")
		Expect(rsp.Body.String()).To(MatchJSON(`[]`))
	})

	It("should replace reserved ports", func() {
		Expect(m.WithPortNumber(80).portNumber).To(Equal(0))
		Expect(m.WithPortNumber(8080).portNumber).To(Equal(8080))
	})

	It("should serve over the network", func() {
		address, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())
		defer func() {
			Expect(m.StopServer()).To(Succeed())
		}()

		rsp, err := http.Get(address + "/api/list_caches")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(MatchJSON(`["l1"]`))
	})
})

type sampleStruct struct {
	Field1 int
	Field2 string
	Field3 *sampleStruct
	Field4 []sampleStruct
}

var _ = Describe("walkFields", func() {
	It("should walk int fields", func() {
		s := &sampleStruct{Field1: 1}

		elem, err := walkFields(s, "Field1")

		Expect(err).To(BeNil())
		Expect(elem.Kind()).To(Equal(reflect.Int))
		Expect(elem.Int()).To(Equal(int64(1)))
	})

	It("should walk struct", func() {
		s := &sampleStruct{Field3: &sampleStruct{}}

		elem, err := walkFields(s, "Field3")

		Expect(err).To(BeNil())
		Expect(elem.Kind()).To(Equal(reflect.Struct))
		Expect(elem.Type().Name()).To(Equal("sampleStruct"))
	})

	It("should walk slice recursively", func() {
		s := &sampleStruct{
			Field4: []sampleStruct{{
				Field4: []sampleStruct{
					{Field1: 1},
				},
			}, {}},
		}

		elem, err := walkFields(s, "Field4.0.Field4.0.Field1")

		Expect(err).To(BeNil())
		Expect(elem.Int()).To(Equal(int64(1)))
	})

	It("should reject paths that do not exist", func() {
		s := &sampleStruct{Field4: []sampleStruct{{}}}

		_, err := walkFields(s, "Field4.3")
		Expect(err).To(HaveOccurred())

		_, err = walkFields(s, "Field1.x")
		Expect(err).To(HaveOccurred())

		_, err = walkFields(s, "Field3.Field1")
		Expect(err).To(HaveOccurred())
	})

	It("should walk cache views", func() {
		view := &CacheView{Name: "l1"}

		elem, err := walkFields(view, "Stats.Hits")

		Expect(err).To(BeNil())
		Expect(elem.Uint()).To(Equal(uint64(0)))
	})
})
