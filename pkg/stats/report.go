package stats

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

// Report logs progress every interval until ctx is done.
func (r *Recorder) Report(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastPrinted := r.Emitted()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sent := r.Emitted()
			perSec := int64(float64(sent-lastPrinted) / interval.Seconds())
			log.Infof("Total elapsed time:%s. Total emitted metrics %s. Metrics per second:%s. Unique series:%s",
				time.Since(r.started).Round(time.Second), humanize.Comma(int64(sent)), humanize.Comma(perSec),
				humanize.Comma(int64(r.UniqueSeries())))
			lastPrinted = sent
		}
	}
}
