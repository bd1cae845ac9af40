package ingest

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hammer/pkg/config"
	"hammer/pkg/sink"
)

type line struct {
	Origin string   `json:"origin"`
	Host   string   `json:"host"`
	Name   string   `json:"name"`
	Value  int64    `json:"value"`
	Tags   []string `json:"tags"`
}

func readLines(t *testing.T, buf *bytes.Buffer) []line {
	t.Helper()
	var out []line
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var l line
		require.NoError(t, jsoniter.Unmarshal(sc.Bytes(), &l))
		out = append(out, l)
	}
	require.NoError(t, sc.Err())
	return out
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.SleepInterval = 0
	cfg.ReportInterval = 0
	cfg.Hostname = "loadgen-1"
	cfg.Seed = 3
	return cfg
}

func Test_StartGenerationBounded(t *testing.T) {
	cfg := testConfig()
	cfg.BatchLimit = 2
	cfg.BatchSize = 2
	cfg.SetSize = 2
	cfg.MaxValue = 0
	cfg.Tags = []string{"env:test"}

	var buf bytes.Buffer
	require.NoError(t, StartGeneration(context.Background(), cfg, &buf))

	lines := readLines(t, &buf)
	require.Len(t, lines, 8)
	expected := []string{"set_0.metric_0", "set_0.metric_1", "set_1.metric_0", "set_1.metric_1"}
	for i, l := range lines {
		assert.Equal(t, expected[i%4], l.Name)
		assert.Equal(t, "hammer", l.Origin)
		assert.Equal(t, "loadgen-1", l.Host)
		assert.Equal(t, int64(0), l.Value)
		assert.Equal(t, []string{"env:test"}, l.Tags)
	}
}

func Test_StartGenerationProcesses(t *testing.T) {
	cfg := testConfig()
	cfg.BatchLimit = 3
	cfg.BatchSize = 1
	cfg.SetSize = 4
	cfg.ProcessCount = 3

	var buf bytes.Buffer
	require.NoError(t, StartGeneration(context.Background(), cfg, &buf))
	assert.Len(t, readLines(t, &buf), 3*3*4)
}

func Test_StartGenerationCancel(t *testing.T) {
	cfg := testConfig()
	cfg.SleepInterval = config.Duration(time.Millisecond)
	cfg.MetricsAddr = "127.0.0.1:0"

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	start := time.Now()
	require.NoError(t, StartGeneration(ctx, cfg, &buf))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.NotEmpty(t, readLines(t, &buf))
}

func Test_StartGenerationParquet(t *testing.T) {
	cfg := testConfig()
	cfg.BatchLimit = 2
	cfg.BatchSize = 3
	cfg.SetSize = 2
	cfg.Sink = config.SinkConfig{
		Kind: string(sink.KindParquet),
		Path: filepath.Join(t.TempDir(), "metrics.parquet"),
	}

	require.NoError(t, StartGeneration(context.Background(), cfg, &bytes.Buffer{}))

	type row struct {
		Timestamp int64    `parquet:"timestamp"`
		Origin    string   `parquet:"origin"`
		Host      string   `parquet:"host"`
		Name      string   `parquet:"name"`
		Value     int64    `parquet:"value"`
		Unit      string   `parquet:"unit"`
		Tags      []string `parquet:"tags,list"`
	}
	rows, err := parquet.ReadFile[row](cfg.Sink.Path)
	require.NoError(t, err)
	require.Len(t, rows, 12)
	assert.Equal(t, "set_0.metric_0", rows[0].Name)
	assert.Equal(t, "set_2.metric_1", rows[5].Name)
	assert.Equal(t, "loadgen-1", rows[0].Host)
}

func Test_StartGenerationInvalid(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = -1
	err := StartGeneration(context.Background(), cfg, &bytes.Buffer{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	cfg = testConfig()
	cfg.Sink = config.SinkConfig{Kind: string(sink.KindGraphite)}
	assert.Error(t, StartGeneration(context.Background(), cfg, &bytes.Buffer{}))
}
