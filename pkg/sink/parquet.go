package sink

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/parquet-go/parquet-go"

	"hammer/pkg/metric"
)

type parquetRow struct {
	Timestamp int64    `parquet:"timestamp"`
	Origin    string   `parquet:"origin"`
	Host      string   `parquet:"host"`
	Name      string   `parquet:"name"`
	Value     int64    `parquet:"value"`
	Unit      string   `parquet:"unit"`
	Tags      []string `parquet:"tags,list"`
}

// Parquet captures generated metrics in a parquet file, one row group write
// per batch. Timestamps are stored as unix nanoseconds.
type Parquet struct {
	mu     sync.Mutex
	file   *os.File
	writer *parquet.GenericWriter[parquetRow]
	rows   []parquetRow
}

func NewParquet(path string) (*Parquet, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("parquet: create %s: %w", path, err)
	}
	return &Parquet{
		file:   f,
		writer: parquet.NewGenericWriter[parquetRow](f),
	}, nil
}

func (p *Parquet) Emit(ctx context.Context, m metric.Metric) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = append(p.rows, parquetRow{
		Timestamp: m.Timestamp.UnixNano(),
		Origin:    m.Origin,
		Host:      m.Host,
		Name:      m.Name,
		Value:     m.Value,
		Unit:      m.Unit,
		Tags:      m.Tags,
	})
	return nil
}

func (p *Parquet) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.rows) == 0 {
		return nil
	}
	_, err := p.writer.Write(p.rows)
	p.rows = p.rows[:0]
	if err != nil {
		return fmt.Errorf("parquet: write rows: %w", err)
	}
	return nil
}

func (p *Parquet) Close() error {
	err := p.Flush(context.Background())
	p.mu.Lock()
	defer p.mu.Unlock()
	if cerr := p.writer.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("parquet: close writer: %w", cerr)
	}
	if cerr := p.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
