package sink

import (
	"context"
	"io"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/bytebufferpool"

	"hammer/pkg/metric"
)

var json = jsoniter.ConfigFastest

type jsonRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Origin    string    `json:"origin"`
	Host      string    `json:"host"`
	Name      string    `json:"name"`
	Value     int64     `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Tags      []string  `json:"tags"`
}

// JSONLines writes one JSON document per metric. Lines are buffered and
// written to the underlying writer once per batch.
type JSONLines struct {
	mu sync.Mutex
	w  io.Writer
	bb *bytebufferpool.ByteBuffer
}

func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{
		w:  w,
		bb: bytebufferpool.Get(),
	}
}

func (j *JSONLines) Emit(ctx context.Context, m metric.Metric) error {
	raw, err := json.Marshal(jsonRecord{
		Timestamp: m.Timestamp,
		Origin:    m.Origin,
		Host:      m.Host,
		Name:      m.Name,
		Value:     m.Value,
		Unit:      m.Unit,
		Tags:      m.Tags,
	})
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, _ = j.bb.Write(raw)
	_ = j.bb.WriteByte('\n')
	return nil
}

func (j *JSONLines) Flush(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.bb.Len() == 0 {
		return nil
	}
	_, err := j.w.Write(j.bb.B)
	j.bb.Reset()
	return err
}

func (j *JSONLines) Close() error {
	err := j.Flush(context.Background())
	j.mu.Lock()
	bytebufferpool.Put(j.bb)
	j.bb = &bytebufferpool.ByteBuffer{}
	j.mu.Unlock()
	return err
}
