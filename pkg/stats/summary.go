package stats

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"
	log "github.com/sirupsen/logrus"
)

// Summary describes the batch latencies of a run in milliseconds.
type Summary struct {
	Batches int
	Min     float64
	Max     float64
	Avg     float64
	P95     float64
}

func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	samples := append([]float64(nil), r.latencies...)
	r.mu.Unlock()

	s := Summary{Batches: len(samples)}
	if len(samples) == 0 {
		return s
	}
	s.Min, _ = stats.Min(samples)
	s.Max, _ = stats.Max(samples)
	s.Avg, _ = stats.Mean(samples)
	s.P95, _ = stats.Percentile(samples, 95)
	return s
}

// LogSummary logs the totals of the run and its batch latency summary.
func (r *Recorder) LogSummary() {
	elapsed := time.Since(r.started)
	emitted := r.Emitted()
	log.Infof("-----Generation Summary. Total time %s----", elapsed.Round(time.Millisecond))
	log.Infof("Total metrics emitted:%s. Unique series:%s. Sink errors:%s",
		humanize.Comma(int64(emitted)), humanize.Comma(int64(r.UniqueSeries())), humanize.Comma(int64(r.SinkErrors())))
	if secs := int64(elapsed.Seconds()); secs > 0 {
		log.Infof("Average metrics per second=%s", humanize.Comma(int64(emitted)/secs))
	}
	s := r.Summary()
	if s.Batches == 0 {
		return
	}
	log.Infof("Batches:%d. Min:%.3fms, Max:%.3fms, Avg:%.3fms, P95:%.3fms", s.Batches, s.Min, s.Max, s.Avg, s.P95)
}
