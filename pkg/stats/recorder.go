package stats

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/axiomhq/hyperloglog"
	"github.com/prometheus/client_golang/prometheus"

	"hammer/pkg/metric"
	"hammer/pkg/sink"
)

// maxLatencySamples bounds the batch latencies kept for the run summary.
const maxLatencySamples = 100_000

// Recorder keeps run statistics for one or more generators. It exports them
// as prometheus collectors and keeps a HyperLogLog sketch of the unique
// series that went through its sinks.
type Recorder struct {
	records    prometheus.Counter
	batches    prometheus.Counter
	sinkErrors prometheus.Counter
	batchTime  prometheus.Histogram

	emitted atomic.Uint64
	errors  atomic.Uint64
	started time.Time

	mu        sync.Mutex
	sketch    *hyperloglog.Sketch
	latencies []float64
	next      int
}

// NewRecorder creates a Recorder and registers its collectors with reg.
// A nil reg skips registration.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hammer_records_emitted_total",
			Help: "Total number of metrics handed to the sink",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hammer_batches_total",
			Help: "Total number of completed batches",
		}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hammer_sink_errors_total",
			Help: "Total number of errors returned by the sink",
		}),
		batchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hammer_batch_duration_seconds",
			Help:    "Time spent generating and emitting one batch",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		started: time.Now(),
		sketch:  hyperloglog.New(),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{r.records, r.batches, r.sinkErrors, r.batchTime} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *Recorder) ObserveBatch(index uint64, records int, took time.Duration) {
	r.batches.Inc()
	r.batchTime.Observe(took.Seconds())

	ms := float64(took) / float64(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.latencies) < maxLatencySamples {
		r.latencies = append(r.latencies, ms)
		return
	}
	r.latencies[r.next] = ms
	r.next = (r.next + 1) % maxLatencySamples
}

func (r *Recorder) ObserveSinkError(err error) {
	r.errors.Add(1)
	r.sinkErrors.Inc()
}

func (r *Recorder) Emitted() uint64 {
	return r.emitted.Load()
}

func (r *Recorder) SinkErrors() uint64 {
	return r.errors.Load()
}

// UniqueSeries returns the estimated number of distinct host/name series emitted.
func (r *Recorder) UniqueSeries() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sketch.Estimate()
}

func (r *Recorder) record(m metric.Metric) {
	r.emitted.Add(1)
	r.records.Inc()
	key := make([]byte, 0, len(m.Host)+len(m.Name)+1)
	key = append(key, m.Host...)
	key = append(key, '/')
	key = append(key, m.Name...)
	r.mu.Lock()
	r.sketch.Insert(key)
	r.mu.Unlock()
}

// Sink wraps next so that every metric emitted through it is counted.
func (r *Recorder) Sink(next sink.Sink) sink.Sink {
	return &countingSink{r: r, next: next}
}

type countingSink struct {
	r    *Recorder
	next sink.Sink
}

func (c *countingSink) Emit(ctx context.Context, m metric.Metric) error {
	c.r.record(m)
	return c.next.Emit(ctx, m)
}

func (c *countingSink) Flush(ctx context.Context) error {
	if f, ok := c.next.(sink.Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

func (c *countingSink) Close() error {
	if cl, ok := c.next.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
