package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"hammer/pkg/config"
	"hammer/pkg/generator"
	"hammer/pkg/sink"
	"hammer/pkg/stats"
)

// syncWriter serializes whole-batch writes of several sinks sharing one output.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func sinkConfig(cfg config.Config, processNo int) sink.Config {
	sc := cfg.Sink.Sink()
	if sc.Kind == sink.KindParquet && cfg.ProcessCount > 1 {
		sc.Path = fmt.Sprintf("%s.%d", sc.Path, processNo)
	}
	return sc
}

// StartGeneration runs cfg.ProcessCount independent generators until they
// exhaust their batch limit, ctx is done or the process receives SIGINT or
// SIGTERM. Stdout sinks write to out.
func StartGeneration(ctx context.Context, cfg config.Config, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	runID := uuid.NewString()
	log.Infof("Starting generation run %s with %d generator(s) into %s sink", runID, cfg.ProcessCount, cfg.Sink.Kind)

	reg := prometheus.NewRegistry()
	rec, err := stats.NewRecorder(reg)
	if err != nil {
		return fmt.Errorf("registering stats: %w", err)
	}

	out = &syncWriter{w: out}
	var sinks []sink.Sink
	defer func() {
		for _, s := range sinks {
			if err := sink.Close(s); err != nil {
				log.Errorf("Failed to close sink: %v", err)
			}
		}
	}()

	hammers := make([]*generator.Hammer, 0, cfg.ProcessCount)
	for i := 1; i <= cfg.ProcessCount; i++ {
		snk, err := sink.New(ctx, sinkConfig(cfg, i), out)
		if err != nil {
			return fmt.Errorf("creating sink for generator %d: %w", i, err)
		}
		sinks = append(sinks, snk)

		opts := []generator.Option{
			generator.WithObserver(rec),
			generator.WithLogger(log.WithFields(log.Fields{"run": runID, "process": i})),
		}
		if cfg.Seed != 0 {
			opts = append(opts, generator.WithSeed(cfg.Seed+uint32(i-1)))
		}
		if cfg.Hostname != "" {
			host := cfg.Hostname
			opts = append(opts, generator.WithHostname(func() (string, error) { return host, nil }))
		}
		h, err := generator.New(cfg.Generator(), rec.Sink(snk), opts...)
		if err != nil {
			return err
		}
		hammers = append(hammers, h)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	g, gctx := errgroup.WithContext(ctx)
	auxCtx, stopAux := context.WithCancel(gctx)
	defer stopAux()

	var workers sync.WaitGroup
	for i, h := range hammers {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			state, err := h.Run(gctx)
			if err != nil {
				return fmt.Errorf("generator %d: %w", i+1, err)
			}
			log.Infof("Generator %d is %s after %d batches", i+1, state, h.Batches())
			return nil
		})
	}
	g.Go(func() error {
		workers.Wait()
		stopAux()
		return nil
	})
	g.Go(func() error {
		select {
		case sig := <-sigs:
			log.Infof("Received %s. Stopping generators", sig)
			for _, h := range hammers {
				h.Stop()
			}
		case <-auxCtx.Done():
		}
		return nil
	})
	g.Go(func() error {
		rec.Report(auxCtx, time.Duration(cfg.ReportInterval))
		return nil
	})
	if cfg.MetricsAddr != "" {
		if err := serveMetrics(auxCtx, g, cfg.MetricsAddr, reg); err != nil {
			stopAux()
			for _, h := range hammers {
				h.Stop()
			}
			_ = g.Wait()
			return err
		}
	}

	err = g.Wait()
	rec.LogSummary()
	return err
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, reg *prometheus.Registry) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening for metrics on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	log.Infof("Serving prometheus metrics at http://%s/metrics", ln.Addr())

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return nil
}
