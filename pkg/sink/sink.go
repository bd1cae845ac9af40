package sink

import (
	"context"
	"errors"
	"io"

	"hammer/pkg/metric"
)

// Sink receives generated metrics. Emit may block to apply backpressure.
type Sink interface {
	Emit(ctx context.Context, m metric.Metric) error
}

// Flusher is implemented by sinks that buffer a batch before writing it out.
// The generator flushes once per completed batch.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Func adapts a plain function to a Sink.
type Func func(ctx context.Context, m metric.Metric) error

func (f Func) Emit(ctx context.Context, m metric.Metric) error {
	return f(ctx, m)
}

// Chan forwards every metric into a channel, blocking until the receiver takes it.
type Chan chan<- metric.Metric

func (c Chan) Emit(ctx context.Context, m metric.Metric) error {
	select {
	case c <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Multi emits every metric to each sink in order.
type Multi []Sink

func (ms Multi) Emit(ctx context.Context, m metric.Metric) error {
	var errs []error
	for _, s := range ms {
		if err := s.Emit(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (ms Multi) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range ms {
		if f, ok := s.(Flusher); ok {
			if err := f.Flush(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (ms Multi) Close() error {
	var errs []error
	for _, s := range ms {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes s if it holds resources.
func Close(s Sink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
