package metric

import (
	"sort"
	"strconv"
	"time"
)

// Origin identifies hammer as the source of every generated metric.
const Origin = "hammer"

// Metric is a single generated sample. It is fully built before it is handed to a sink.
type Metric struct {
	Timestamp time.Time
	Origin    string
	Host      string
	Name      string
	Value     int64
	Unit      string
	Tags      Tags
}

// Name returns the wire name of the metric at the given position of a batch.
func Name(setIndex, metricIndex int) string {
	b := make([]byte, 0, 24)
	b = append(b, "set_"...)
	b = strconv.AppendInt(b, int64(setIndex), 10)
	b = append(b, ".metric_"...)
	b = strconv.AppendInt(b, int64(metricIndex), 10)
	return string(b)
}

// Tags is an immutable set of tags shared by every metric of a run.
type Tags []string

// NewTags sorts and de-duplicates the given tags. Empty strings are dropped.
func NewTags(tags ...string) Tags {
	if len(tags) == 0 {
		return Tags{}
	}
	set := make(map[string]struct{}, len(tags))
	out := make(Tags, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := set[t]; ok {
			continue
		}
		set[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (t Tags) Contains(tag string) bool {
	i := sort.SearchStrings(t, tag)
	return i < len(t) && t[i] == tag
}
