package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"github.com/llxisdsh/tsync/internal/probe"
	"github.com/llxisdsh/tsync/prom"
)

// Version information - will be set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath  string
		parties     int
		cycles      int
		jitter      time.Duration
		strategy    string
		quantum     time.Duration
		contenders  int
		hold        time.Duration
		wait        time.Duration
		metricsAddr string
		linger      time.Duration
		verbosity   int
		development bool
		showVersion bool
	)

	def := probe.DefaultConfig()
	flag.StringVar(&configPath, "config", "", "YAML config file; flags override its values")
	flag.IntVar(&parties, "parties", def.Barrier.Parties, "goroutines meeting at the barrier")
	flag.IntVar(&cycles, "cycles", def.Barrier.Cycles, "barrier cycles to run")
	flag.DurationVar(&jitter, "jitter", def.Barrier.Jitter, "max random delay before each arrival")
	flag.StringVar(&strategy, "strategy", def.Lock.Strategy, "timed lock strategy: auto, poll or native")
	flag.DurationVar(&quantum, "quantum", def.Lock.Quantum, "max sleep between polling attempts")
	flag.IntVar(&contenders, "contenders", def.Lock.Contenders, "goroutines contending for the held lock")
	flag.DurationVar(&hold, "hold", def.Lock.Hold, "how long the lock is held before release")
	flag.DurationVar(&wait, "wait", def.Lock.Wait, "deadline given to each contender")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flag.DurationVar(&linger, "linger", 0, "keep serving metrics this long after the run")
	flag.IntVar(&verbosity, "v", 0, "log verbosity (0-2)")
	flag.BoolVar(&development, "dev", false, "human readable development logging")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("tsyncprobe %s (%s)\n", Version, GitCommit)
		return
	}

	log, flush, err := newLogger(verbosity, development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer flush()

	cfg := def
	if configPath != "" {
		if cfg, err = probe.LoadConfig(configPath); err != nil {
			log.Error(err, "Failed to load config")
			os.Exit(1)
		}
	}

	// Only flags given on the command line override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "parties":
			cfg.Barrier.Parties = parties
		case "cycles":
			cfg.Barrier.Cycles = cycles
		case "jitter":
			cfg.Barrier.Jitter = jitter
		case "strategy":
			cfg.Lock.Strategy = strategy
		case "quantum":
			cfg.Lock.Quantum = quantum
		case "contenders":
			cfg.Lock.Contenders = contenders
		case "hold":
			cfg.Lock.Hold = hold
		case "wait":
			cfg.Lock.Wait = wait
		case "metrics-addr":
			cfg.MetricsAddr = metricsAddr
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, linger, log); err != nil {
		log.Error(err, "Probe failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg probe.Config, linger time.Duration, log logr.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	obs, err := prom.NewObserver(reg, "tsync")
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("Serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(err, "Metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	r, err := probe.NewRunner(cfg, log.WithName("probe"), obs)
	if err != nil {
		return err
	}

	log.Info("Starting probe", "version", Version,
		"parties", cfg.Barrier.Parties, "cycles", cfg.Barrier.Cycles,
		"strategy", cfg.Lock.Strategy, "contenders", cfg.Lock.Contenders)

	rep, err := r.Run(ctx)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Print(string(out))

	if cfg.MetricsAddr != "" && linger > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(linger):
		}
	}
	return nil
}

func newLogger(verbosity int, development bool) (logr.Logger, func(), error) {
	zc := zap.NewProductionConfig()
	if development {
		zc = zap.NewDevelopmentConfig()
	}
	// logr V(n) maps to zap level -n.
	zc.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))

	z, err := zc.Build()
	if err != nil {
		return logr.Discard(), func() {}, err
	}
	return zapr.NewLogger(z), func() { _ = z.Sync() }, nil
}
