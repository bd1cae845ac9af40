package sink

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valyala/bytebufferpool"

	"hammer/pkg/metric"
)

// Graphite writes metrics in the carbon plaintext protocol:
//
//	<prefix>.<host>.<name> <value> <unix seconds>
//
// The connection is opened on the first flush and reopened after a write
// failure. A batch that fails to write is dropped.
type Graphite struct {
	addr    string
	prefix  string
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	bb   *bytebufferpool.ByteBuffer
}

func NewGraphite(addr, prefix string, timeout time.Duration) *Graphite {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Graphite{
		addr:    addr,
		prefix:  prefix,
		timeout: timeout,
		bb:      bytebufferpool.Get(),
	}
}

func (g *Graphite) Emit(ctx context.Context, m metric.Metric) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bb.B = appendGraphiteLine(g.bb.B, g.prefix, m)
	return nil
}

func appendGraphiteLine(b []byte, prefix string, m metric.Metric) []byte {
	if prefix == "" {
		prefix = m.Origin
	}
	if prefix != "" {
		b = append(b, prefix...)
		b = append(b, '.')
	}
	if m.Host != "" {
		b = append(b, graphiteNode(m.Host)...)
		b = append(b, '.')
	}
	b = append(b, m.Name...)
	b = append(b, ' ')
	b = strconv.AppendInt(b, m.Value, 10)
	b = append(b, ' ')
	b = strconv.AppendInt(b, m.Timestamp.Unix(), 10)
	return append(b, '\n')
}

// graphiteNode keeps a host name from splitting into several path nodes.
func graphiteNode(s string) string {
	return strings.NewReplacer(".", "_", " ", "_").Replace(s)
}

func (g *Graphite) Flush(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.bb.Len() == 0 {
		return nil
	}
	defer g.bb.Reset()

	if g.conn == nil {
		d := net.Dialer{Timeout: g.timeout}
		conn, err := d.DialContext(ctx, "tcp", g.addr)
		if err != nil {
			return fmt.Errorf("graphite: dial %s: %w", g.addr, err)
		}
		g.conn = conn
	}
	_ = g.conn.SetWriteDeadline(time.Now().Add(g.timeout))
	if _, err := g.conn.Write(g.bb.B); err != nil {
		g.conn.Close()
		g.conn = nil
		return fmt.Errorf("graphite: write to %s: %w", g.addr, err)
	}
	return nil
}

func (g *Graphite) Close() error {
	err := g.Flush(context.Background())
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != nil {
		if cerr := g.conn.Close(); err == nil {
			err = cerr
		}
		g.conn = nil
	}
	return err
}
