package generator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fastrand"

	"hammer/pkg/metric"
	"hammer/pkg/sink"
)

type State int32

const (
	Idle State = iota
	Running
	Stopped
	Exhausted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Exhausted:
		return "exhausted"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrInvalidConfig  = errors.New("invalid generator config")
	ErrAlreadyStarted = errors.New("generator already started")
)

// Config holds the run parameters of a Hammer. A BatchLimit of 0 runs until stopped.
type Config struct {
	BatchLimit    uint64
	BatchSize     int
	SetSize       int
	SleepInterval time.Duration
	MaxValue      int64
	Tags          []string
}

func (c Config) Validate() error {
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: batch size must be >= 0, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.SetSize < 0 {
		return fmt.Errorf("%w: set size must be >= 0, got %d", ErrInvalidConfig, c.SetSize)
	}
	if c.SleepInterval < 0 {
		return fmt.Errorf("%w: sleep interval must be >= 0, got %s", ErrInvalidConfig, c.SleepInterval)
	}
	if c.MaxValue < 0 || c.MaxValue > math.MaxUint32 {
		return fmt.Errorf("%w: max value must be in [0, %d], got %d", ErrInvalidConfig, uint32(math.MaxUint32), c.MaxValue)
	}
	return nil
}

// Observer is notified after every completed batch and on every sink error.
type Observer interface {
	ObserveBatch(index uint64, records int, took time.Duration)
	ObserveSinkError(err error)
}

type Option func(*Hammer)

// WithHostname replaces os.Hostname as the host identity provider.
func WithHostname(fn func() (string, error)) Option {
	return func(h *Hammer) { h.hostname = fn }
}

func WithRand(r Rand) Option {
	return func(h *Hammer) { h.rand = r }
}

// WithSeed makes value sampling reproducible.
func WithSeed(seed uint32) Option {
	return func(h *Hammer) {
		var rng fastrand.RNG
		rng.Seed(seed)
		h.rand = &rng
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Hammer) { h.now = now }
}

func WithObserver(o Observer) Option {
	return func(h *Hammer) { h.observer = o }
}

// WithSinkErrorHandler is called with every error returned by the sink.
// The default handler logs the error; either way generation continues.
func WithSinkErrorHandler(fn func(error)) Option {
	return func(h *Hammer) { h.onSinkError = fn }
}

func WithLogger(l *log.Entry) Option {
	return func(h *Hammer) { h.log = l }
}

// Hammer generates batches of synthetic metrics into a sink, sleeping
// between batches, until its batch limit is reached or it is stopped.
type Hammer struct {
	cfg     Config
	tags    metric.Tags
	sink    sink.Sink
	allowed func(counter uint64) bool

	hostname    func() (string, error)
	rand        Rand
	now         func() time.Time
	observer    Observer
	onSinkError func(error)
	log         *log.Entry

	state    atomic.Int32
	batches  atomic.Uint64
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	// written once before done is closed
	final State
	err   error
}

func New(cfg Config, snk sink.Sink, opts ...Option) (*Hammer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if snk == nil {
		return nil, fmt.Errorf("%w: no sink", ErrInvalidConfig)
	}
	h := &Hammer{
		cfg:      cfg,
		tags:     metric.NewTags(cfg.Tags...),
		sink:     snk,
		hostname: os.Hostname,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	if cfg.BatchLimit == 0 {
		h.allowed = unbounded
	} else {
		h.allowed = func(counter uint64) bool { return counter < cfg.BatchLimit }
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.rand == nil {
		h.rand = &fastrand.RNG{}
	}
	if h.log == nil {
		h.log = log.WithField("run", uuid.NewString())
	}
	if h.onSinkError == nil {
		h.onSinkError = func(err error) {
			h.log.Errorf("Failed to emit metric: %v", err)
		}
	}
	return h, nil
}

func unbounded(uint64) bool { return true }

func (h *Hammer) State() State {
	return State(h.state.Load())
}

// Batches returns the number of completed batches.
func (h *Hammer) Batches() uint64 {
	return h.batches.Load()
}

// Run generates batches until the batch limit is reached, Stop is called or
// ctx is done. It returns the terminal state.
func (h *Hammer) Run(ctx context.Context) (State, error) {
	if !h.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return h.State(), ErrAlreadyStarted
	}
	return h.finish(h.run(ctx))
}

// Start runs the generator in its own goroutine.
func (h *Hammer) Start(ctx context.Context) error {
	if !h.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return ErrAlreadyStarted
	}
	go func() {
		_, _ = h.finish(h.run(ctx))
	}()
	return nil
}

// Stop asks the generator to stop. It is safe to call more than once and
// from any goroutine. A batch in progress is completed first.
func (h *Hammer) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// Done is closed once the generator has reached a terminal state.
func (h *Hammer) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the generator has exited and returns its terminal state.
func (h *Hammer) Wait() (State, error) {
	<-h.done
	return h.final, h.err
}

func (h *Hammer) finish(state State, err error) (State, error) {
	h.final, h.err = state, err
	h.state.Store(int32(state))
	close(h.done)
	return state, err
}

func (h *Hammer) run(ctx context.Context) (State, error) {
	host, err := h.hostname()
	if err != nil {
		return Stopped, fmt.Errorf("resolving hostname: %w", err)
	}
	logger := h.log.WithField("host", host)
	logger.Infof("Starting generation. batchLimit=%d batchSize=%d setSize=%d sleep=%s maxValue=%d tags=%v",
		h.cfg.BatchLimit, h.cfg.BatchSize, h.cfg.SetSize, h.cfg.SleepInterval, h.cfg.MaxValue, h.tags)

	enum := &Enumerator{
		BatchSize: h.cfg.BatchSize,
		SetSize:   h.cfg.SetSize,
		MaxValue:  uint32(h.cfg.MaxValue),
		Tags:      h.tags,
		Host:      host,
		Origin:    metric.Origin,
		Rand:      h.rand,
		Now:       h.now,
	}
	// batches are never cut short, so sinks do not see the stop signal
	emitCtx := context.WithoutCancel(ctx)

	var counter uint64
	for {
		if h.stopRequested(ctx) {
			logger.Infof("Stopped after %d batches", counter)
			return Stopped, nil
		}
		if !h.allowed(counter) {
			logger.Warnf("Reached the batch limit of %d. Not generating any further metrics.", h.cfg.BatchLimit)
			return Exhausted, nil
		}

		start := time.Now()
		n := h.emitBatch(emitCtx, enum)
		counter++
		h.batches.Store(counter)
		if h.observer != nil {
			h.observer.ObserveBatch(counter-1, n, time.Since(start))
		}

		if !h.sleep(ctx) {
			logger.Infof("Stopped after %d batches", counter)
			return Stopped, nil
		}
	}
}

func (h *Hammer) emitBatch(ctx context.Context, enum *Enumerator) int {
	n := 0
	for m := range enum.Produce() {
		if err := h.sink.Emit(ctx, m); err != nil {
			h.sinkError(err)
		}
		n++
	}
	if f, ok := h.sink.(sink.Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			h.sinkError(err)
		}
	}
	return n
}

func (h *Hammer) sinkError(err error) {
	if h.observer != nil {
		h.observer.ObserveSinkError(err)
	}
	h.onSinkError(err)
}

func (h *Hammer) stopRequested(ctx context.Context) bool {
	select {
	case <-h.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// sleep waits for the sleep interval and reports false if it was interrupted.
func (h *Hammer) sleep(ctx context.Context) bool {
	if h.cfg.SleepInterval <= 0 {
		return true
	}
	t := time.NewTimer(h.cfg.SleepInterval)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-h.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}
