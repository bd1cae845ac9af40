package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/valyala/bytebufferpool"

	"hammer/pkg/metric"
)

type tsdbPoint struct {
	Metric    string            `json:"metric"`
	Timestamp int64             `json:"timestamp"`
	Value     int64             `json:"value"`
	Tags      map[string]string `json:"tags"`
}

// OpenTSDB collects a batch of data points and sends them in a single
// request to the /api/put endpoint.
type OpenTSDB struct {
	url      string
	prefix   string
	compress bool
	client   *http.Client

	mu     sync.Mutex
	points []tsdbPoint
}

func NewOpenTSDB(url, prefix string, compress bool, timeout time.Duration) *OpenTSDB {
	if timeout <= 0 {
		timeout = 100 * time.Second
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 10
	t.MaxConnsPerHost = 10
	t.MaxIdleConnsPerHost = 10
	return &OpenTSDB{
		url:      strings.TrimSuffix(url, "/") + "/api/put",
		prefix:   prefix,
		compress: compress,
		client: &http.Client{
			Timeout:   timeout,
			Transport: t,
		},
	}
}

func (o *OpenTSDB) Emit(ctx context.Context, m metric.Metric) error {
	prefix := o.prefix
	if prefix == "" {
		prefix = m.Origin
	}
	name := m.Name
	if prefix != "" {
		name = prefix + "." + m.Name
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.points = append(o.points, tsdbPoint{
		Metric:    name,
		Timestamp: m.Timestamp.UnixMilli(),
		Value:     m.Value,
		Tags:      tsdbTags(m),
	})
	return nil
}

// tsdbTags turns "key:value" and "key=value" tags into OpenTSDB tag pairs.
// A tag without a separator becomes "<tag>=true". The host tag is always set.
func tsdbTags(m metric.Metric) map[string]string {
	tags := make(map[string]string, len(m.Tags)+1)
	for _, t := range m.Tags {
		if k, v, ok := strings.Cut(t, "="); ok && k != "" && v != "" {
			tags[k] = v
		} else if k, v, ok := strings.Cut(t, ":"); ok && k != "" && v != "" {
			tags[k] = v
		} else {
			tags[t] = "true"
		}
	}
	if m.Host != "" {
		tags["host"] = m.Host
	} else if _, ok := tags["host"]; !ok {
		tags["host"] = "unknown"
	}
	return tags
}

func (o *OpenTSDB) Flush(ctx context.Context) error {
	o.mu.Lock()
	points := o.points
	o.points = nil
	o.mu.Unlock()
	if len(points) == 0 {
		return nil
	}

	payload, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("opentsdb: marshal %d points: %w", len(points), err)
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	if o.compress {
		zw := gzip.NewWriter(bb)
		if _, err := zw.Write(payload); err != nil {
			return fmt.Errorf("opentsdb: compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("opentsdb: compress: %w", err)
		}
	} else {
		_, _ = bb.Write(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(bb.B))
	if err != nil {
		return fmt.Errorf("opentsdb: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("opentsdb: post %s: %w", o.url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("opentsdb: post %s: unexpected status %s", o.url, resp.Status)
	}
	return nil
}

func (o *OpenTSDB) Close() error {
	err := o.Flush(context.Background())
	o.client.CloseIdleConnections()
	return err
}
