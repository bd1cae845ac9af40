package sink

import (
	"context"
	"fmt"
	"io"
	"time"
)

type Kind string

const (
	KindStdout   Kind = "stdout"
	KindGraphite Kind = "graphite"
	KindOpenTSDB Kind = "opentsdb"
	KindOTLP     Kind = "otlp"
	KindParquet  Kind = "parquet"
)

var Kinds = []Kind{KindStdout, KindGraphite, KindOpenTSDB, KindOTLP, KindParquet}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unsupported sink %q. Options=%v", s, Kinds)
}

// Config selects and parameterizes one sink.
type Config struct {
	Kind     Kind
	Address  string // graphite host:port, opentsdb base url, otlp endpoint
	Path     string // parquet output file
	Prefix   string
	Compress bool
	Insecure bool
	Timeout  time.Duration
	Interval time.Duration // otlp export interval
}

// New builds the sink described by cfg. Stdout writes JSON lines to out.
func New(ctx context.Context, cfg Config, out io.Writer) (Sink, error) {
	switch cfg.Kind {
	case "", KindStdout:
		return NewJSONLines(out), nil
	case KindGraphite:
		if cfg.Address == "" {
			return nil, fmt.Errorf("graphite sink needs an address")
		}
		return NewGraphite(cfg.Address, cfg.Prefix, cfg.Timeout), nil
	case KindOpenTSDB:
		if cfg.Address == "" {
			return nil, fmt.Errorf("opentsdb sink needs an address")
		}
		return NewOpenTSDB(cfg.Address, cfg.Prefix, cfg.Compress, cfg.Timeout), nil
	case KindOTLP:
		if cfg.Address == "" {
			return nil, fmt.Errorf("otlp sink needs an address")
		}
		o, err := NewOTLP(ctx, cfg.Address, cfg.Interval, cfg.Insecure)
		if err != nil {
			return nil, err
		}
		return o, nil
	case KindParquet:
		if cfg.Path == "" {
			return nil, fmt.Errorf("parquet sink needs a path")
		}
		p, err := NewParquet(cfg.Path)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported sink %q. Options=%v", cfg.Kind, Kinds)
	}
}
