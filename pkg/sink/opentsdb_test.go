package sink

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tsdbServer struct {
	mu       sync.Mutex
	requests int
	points   []tsdbPoint
	encoding string
	status   int
}

func (s *tsdbServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	s.encoding = r.Header.Get("Content-Encoding")
	if r.URL.Path != "/api/put" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var body io.Reader = r.Body
	if s.encoding == "gzip" {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer zr.Close()
		body = zr
	}
	raw, _ := io.ReadAll(body)
	var points []tsdbPoint
	if err := json.Unmarshal(raw, &points); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.points = append(s.points, points...)
	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func Test_OpenTSDB(t *testing.T) {
	for _, compress := range []bool{false, true} {
		srv := &tsdbServer{}
		ts := httptest.NewServer(srv)

		o := NewOpenTSDB(ts.URL+"/", "", compress, time.Second)
		ctx := context.Background()
		require.NoError(t, o.Emit(ctx, testMetric("set_0.metric_0", 7)))
		require.NoError(t, o.Emit(ctx, testMetric("set_0.metric_1", 8)))
		require.NoError(t, o.Flush(ctx))
		require.NoError(t, o.Flush(ctx))
		require.NoError(t, o.Close())
		ts.Close()

		assert.Equal(t, 1, srv.requests, "one request per batch, none when empty")
		if compress {
			assert.Equal(t, "gzip", srv.encoding)
		} else {
			assert.Equal(t, "", srv.encoding)
		}
		require.Len(t, srv.points, 2)
		p := srv.points[1]
		assert.Equal(t, "hammer.set_0.metric_1", p.Metric)
		assert.Equal(t, int64(1700000000123), p.Timestamp)
		assert.Equal(t, int64(8), p.Value)
		assert.Equal(t, map[string]string{
			"host":   "web01.example.com",
			"env":    "test",
			"dc":     "ams",
			"canary": "true",
		}, p.Tags)
	}
}

func Test_OpenTSDBStatusError(t *testing.T) {
	srv := &tsdbServer{status: http.StatusBadRequest}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	o := NewOpenTSDB(ts.URL, "load", false, time.Second)
	require.NoError(t, o.Emit(context.Background(), testMetric("set_0.metric_0", 1)))
	assert.ErrorContains(t, o.Flush(context.Background()), "unexpected status")
	assert.Equal(t, "load.set_0.metric_0", srv.points[0].Metric)
	assert.NoError(t, o.Close())
}
