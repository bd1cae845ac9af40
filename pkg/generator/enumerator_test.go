package generator

import (
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastrand"

	"hammer/pkg/metric"
)

func testEnumerator(batchSize, setSize int, maxValue uint32) *Enumerator {
	var rng fastrand.RNG
	rng.Seed(7)
	return &Enumerator{
		BatchSize: batchSize,
		SetSize:   setSize,
		MaxValue:  maxValue,
		Tags:      metric.NewTags("env:test"),
		Host:      "host-a",
		Origin:    metric.Origin,
		Rand:      &rng,
		Now:       time.Now,
	}
}

func collect(e *Enumerator) []metric.Metric {
	var out []metric.Metric
	for m := range e.Produce() {
		out = append(out, m)
	}
	return out
}

func names(ms []metric.Metric) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name
	}
	return out
}

func Test_ProduceOrder(t *testing.T) {
	ms := collect(testEnumerator(2, 2, 10))
	assert.Equal(t, []string{
		"set_0.metric_0",
		"set_0.metric_1",
		"set_1.metric_0",
		"set_1.metric_1",
	}, names(ms))
	for _, m := range ms {
		assert.Equal(t, "host-a", m.Host)
		assert.Equal(t, metric.Origin, m.Origin)
		assert.Equal(t, "", m.Unit)
		assert.Equal(t, metric.Tags{"env:test"}, m.Tags)
	}
}

func Test_ProduceCartesianProduct(t *testing.T) {
	f := gofakeit.New(11)
	for i := 0; i < 50; i++ {
		batchSize, setSize := f.IntRange(0, 20), f.IntRange(0, 20)
		ms := collect(testEnumerator(batchSize, setSize, 5))
		require.Len(t, ms, batchSize*setSize, "batchSize=%d setSize=%d", batchSize, setSize)

		seen := make(map[string]struct{}, len(ms))
		for _, m := range ms {
			seen[m.Name] = struct{}{}
		}
		assert.Len(t, seen, batchSize*setSize)
		for s := 0; s < batchSize; s++ {
			for n := 0; n < setSize; n++ {
				assert.Contains(t, seen, fmt.Sprintf("set_%d.metric_%d", s, n))
			}
		}
	}
}

func Test_ProduceValueBounds(t *testing.T) {
	for _, maxValue := range []uint32{1, 2, 100, 1_000_000} {
		for _, m := range collect(testEnumerator(10, 50, maxValue)) {
			assert.GreaterOrEqual(t, m.Value, int64(0))
			assert.LessOrEqual(t, m.Value, int64(maxValue))
		}
	}

	for _, m := range collect(testEnumerator(5, 5, 0)) {
		assert.Equal(t, int64(0), m.Value)
	}

	sawMax := false
	for _, m := range collect(testEnumerator(20, 50, 1)) {
		if m.Value == 1 {
			sawMax = true
		}
	}
	assert.True(t, sawMax, "upper bound is inclusive")
}

func Test_ProduceEmpty(t *testing.T) {
	assert.Empty(t, collect(testEnumerator(0, 5, 1)))
	assert.Empty(t, collect(testEnumerator(5, 0, 1)))
}

func Test_ProduceTimestampPerRecord(t *testing.T) {
	e := testEnumerator(1, 3, 1)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	e.Now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	ms := collect(e)
	require.Len(t, ms, 3)
	assert.Equal(t, 3, calls)
	assert.True(t, ms[0].Timestamp.Before(ms[1].Timestamp))
	assert.True(t, ms[1].Timestamp.Before(ms[2].Timestamp))
}

func Test_ProduceEarlyBreak(t *testing.T) {
	e := testEnumerator(3, 3, 1)
	calls := 0
	e.Now = func() time.Time {
		calls++
		return time.Now()
	}
	for m := range e.Produce() {
		if m.Name == "set_0.metric_1" {
			break
		}
	}
	assert.Equal(t, 2, calls)
}

func Test_ProduceRepeatable(t *testing.T) {
	e := testEnumerator(3, 4, 1_000)
	first, second := collect(e), collect(e)
	assert.Equal(t, names(first), names(second))
}

func Test_ProduceMaxUint32(t *testing.T) {
	for _, m := range collect(testEnumerator(2, 2, ^uint32(0))) {
		assert.GreaterOrEqual(t, m.Value, int64(0))
		assert.LessOrEqual(t, m.Value, int64(^uint32(0)))
	}
}

func Benchmark_Produce(b *testing.B) {
	e := testEnumerator(100, 100, 1_000)
	for i := 0; i < b.N; i++ {
		for range e.Produce() {
		}
	}
}
