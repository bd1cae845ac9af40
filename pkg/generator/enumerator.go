package generator

import (
	"iter"
	"math"
	"time"

	"hammer/pkg/metric"
)

// Rand is the random source used to sample metric values. fastrand.RNG
// satisfies it.
type Rand interface {
	Uint32() uint32
	Uint32n(maxN uint32) uint32
}

// Enumerator produces the metrics of one batch: BatchSize sets of SetSize
// metrics each, in set-major order.
type Enumerator struct {
	BatchSize int
	SetSize   int
	MaxValue  uint32
	Tags      metric.Tags
	Host      string
	Origin    string
	Rand      Rand
	Now       func() time.Time
}

// Produce returns a fresh single-pass sequence of BatchSize*SetSize metrics.
// Every metric gets its own timestamp and an independently sampled value in
// [0, MaxValue].
func (e *Enumerator) Produce() iter.Seq[metric.Metric] {
	return func(yield func(metric.Metric) bool) {
		for set := 0; set < e.BatchSize; set++ {
			for m := 0; m < e.SetSize; m++ {
				rec := metric.Metric{
					Timestamp: e.Now(),
					Origin:    e.Origin,
					Host:      e.Host,
					Name:      metric.Name(set, m),
					Value:     e.value(),
					Tags:      e.Tags,
				}
				if !yield(rec) {
					return
				}
			}
		}
	}
}

func (e *Enumerator) value() int64 {
	switch e.MaxValue {
	case 0:
		return 0
	case math.MaxUint32:
		return int64(e.Rand.Uint32())
	default:
		return int64(e.Rand.Uint32n(e.MaxValue + 1))
	}
}
