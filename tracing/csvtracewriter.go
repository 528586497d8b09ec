package tracing

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/xid"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
)

type csvRow struct {
	domain string
	rec    cache.AccessRecord
}

// CSVTraceWriter is a tracer that stores every access into a CSV file. It can
// be shared by caches that run in parallel.
type CSVTraceWriter struct {
	lock sync.Mutex
	path string
	file *os.File
	out  *bufio.Writer

	rows       []csvRow
	bufferSize int

	// err holds a write failure from a flush that nobody could be told about.
	// It is returned by the next Flush or Close.
	err error
}

// NewCSVTraceWriter creates a new CSVTraceWriter. The ".csv" extension is
// added to path if it has none.
func NewCSVTraceWriter(path string) *CSVTraceWriter {
	return &CSVTraceWriter{
		path:       path,
		bufferSize: 1000,
	}
}

// Path returns the name of the file being written.
func (t *CSVTraceWriter) Path() string {
	return t.path
}

// Init creates the CSV file. It refuses to overwrite an existing file.
func (t *CSVTraceWriter) Init() error {
	if t.path == "" {
		t.path = "cachesim_trace_" + xid.New().String()
	}

	if filepath.Ext(t.path) == "" {
		t.path += ".csv"
	}

	_, err := os.Stat(t.path)
	if err == nil {
		return fmt.Errorf("file %s already exists", t.path)
	}

	file, err := os.Create(t.path)
	if err != nil {
		return err
	}

	t.file = file
	t.out = bufio.NewWriter(file)

	fmt.Fprintf(t.out, "Cache, Seq, Address, Offset, Index, Tag, "+
		"Outcome, Way, Line, Evicted, EvictedTag\n")

	atexit.Register(func() {
		_ = t.Close()
	})

	return nil
}

// TraceAccess buffers an access.
func (t *CSVTraceWriter) TraceAccess(domain string, rec cache.AccessRecord) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.out == nil {
		panic("CSVTraceWriter is not initialized or already closed")
	}

	t.rows = append(t.rows, csvRow{domain: domain, rec: rec})
	if len(t.rows) < t.bufferSize {
		return
	}

	if err := t.flush(); err != nil && t.err == nil {
		logrus.WithError(err).WithField("file", t.path).
			Error("writing access trace")

		t.err = err
	}
}

// TraceReset does nothing. Sequence numbers restart after a reset, which is
// visible in the file.
func (t *CSVTraceWriter) TraceReset(_ string) {
	// Do nothing
}

// Flush writes the buffered accesses to the file.
func (t *CSVTraceWriter) Flush() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	err := t.flush()

	return t.takeErr(err)
}

func (t *CSVTraceWriter) takeErr(err error) error {
	if t.err != nil {
		err = t.err
		t.err = nil
	}

	return err
}

func (t *CSVTraceWriter) flush() error {
	if t.out == nil {
		return nil
	}

	for _, row := range t.rows {
		rec := row.rec

		index := "-"
		if rec.HasIndex {
			index = fmt.Sprintf("%d", rec.Index)
		}

		evictedTag := "-"
		if rec.Evicted {
			evictedTag = fmt.Sprintf("0x%X", rec.EvictedTag)
		}

		fmt.Fprintf(t.out, "%s, %d, 0x%X, %d, %s, 0x%X, %s, %d, %d, %t, %s\n",
			row.domain,
			rec.Seq,
			rec.Address,
			rec.Offset,
			index,
			rec.Tag,
			rec.Outcome(),
			rec.Way,
			rec.Line,
			rec.Evicted,
			evictedTag,
		)
	}

	t.rows = nil

	return t.out.Flush()
}

// Close flushes the remaining accesses and closes the file. Closing twice is
// allowed.
func (t *CSVTraceWriter) Close() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.file == nil {
		return nil
	}

	flushErr := t.flush()
	closeErr := t.file.Close()

	t.file = nil
	t.out = nil

	if err := t.takeErr(flushErr); err != nil {
		return err
	}

	return closeErr
}
