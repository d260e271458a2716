// Command pollwatch long-polls a host metric or a file through a session
// registry and prints every response as a JSON line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agent-racer/longpoll/internal/config"
	"github.com/agent-racer/longpoll/internal/longpoll"
	"github.com/agent-racer/longpoll/internal/observe"
	"github.com/agent-racer/longpoll/internal/stats"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.String("config", "pollwatch.yaml", "Path to config file")
	key := pflag.String("key", "", "Session key (overrides watch.key)")
	source := pflag.String("source", "", "What to observe: cpu, mem, load, procs or file")
	path := pflag.String("path", "", "File to observe with --source=file")
	threshold := pflag.Float64("threshold", -1, "Minimum change that counts as an update for metric sources")
	lifetime := pflag.Duration("lifetime", 0, "Session lifetime without polls")
	interval := pflag.Duration("interval", 0, "Sampling interval inside a poll")
	timeout := pflag.Duration("timeout", 0, "Maximum length of one poll")
	count := pflag.Int("count", -1, "Number of polls, 0 for no limit")
	withStats := pflag.Bool("stats", true, "Record aggregate stats")
	pflag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *key != "" {
		cfg.Watch.Key = *key
	}
	if *source != "" {
		cfg.Watch.Source = *source
	}
	if *path != "" {
		cfg.Watch.Path = *path
	}
	if *threshold >= 0 {
		cfg.Watch.Threshold = *threshold
	}
	if *lifetime > 0 {
		cfg.Session.Lifetime = *lifetime
	}
	if *interval > 0 {
		cfg.Session.PollInterval = *interval
	}
	if *timeout > 0 {
		cfg.Session.TransactionTimeout = *timeout
	}
	if *count >= 0 {
		cfg.Watch.Count = *count
	}
	if pflag.CommandLine.Changed("stats") {
		cfg.Stats.Enabled = *withStats
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("pollwatch: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	switch cfg.Watch.Source {
	case "cpu":
		return watch(ctx, cfg, out, observe.CPUPercent(), observe.DeltaAtLeast(cfg.Watch.Threshold))
	case "mem":
		return watch(ctx, cfg, out, observe.MemoryUsedPercent(), observe.DeltaAtLeast(cfg.Watch.Threshold))
	case "load":
		return watch(ctx, cfg, out, observe.LoadAverage1(), observe.DeltaAtLeast(cfg.Watch.Threshold))
	case "procs":
		return watch(ctx, cfg, out, observe.ProcessCount(), longpoll.Equal[int]())
	case "file":
		return watch(ctx, cfg, out, observe.File(cfg.Watch.Path), observe.FileChanged())
	default:
		return fmt.Errorf("unknown source %q", cfg.Watch.Source)
	}
}

// watch polls one key until ctx ends or the configured count is reached.
func watch[T any](ctx context.Context, cfg *config.Config, out io.Writer, obs longpoll.ObserveFunc[T], changed longpoll.ChangeFunc[T]) error {
	opts := []longpoll.Option{longpoll.WithTeardownTimeout(cfg.Session.TeardownTimeout)}

	if cfg.Stats.Enabled {
		tracker, events, err := stats.NewTracker(stats.NewStore(cfg.Stats.Dir), cfg.Stats.SaveInterval, cfg.Session.EventBuffer)
		if err != nil {
			return fmt.Errorf("loading stats: %w", err)
		}
		statsCtx, stopStats := context.WithCancel(context.Background())
		statsDone := make(chan struct{})
		go func() {
			tracker.Run(statsCtx)
			close(statsDone)
		}()
		defer func() {
			stopStats()
			<-statsDone
		}()
		opts = append(opts, longpoll.WithEvents(events))
	}

	reg := longpoll.NewRegistry[T](opts...)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := reg.Close(closeCtx); err != nil {
			log.Printf("Closing registry: %v", err)
		}
	}()

	pollCfg, err := longpoll.NewBuilder[T]().
		Observe(obs).
		Validate(changed).
		PollInterval(cfg.Session.PollInterval).
		TransactionTimeout(cfg.Session.TransactionTimeout).
		Build()
	if err != nil {
		return err
	}

	// Destroying the key wakes a poll that is waiting on the observer, so
	// an interrupt is reported as DESTROY_COMMAND instead of being lost.
	watchCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		<-watchCtx.Done()
		reg.Destroy(cfg.Watch.Key)
	}()

	log.Printf("Watching %s as %q (interval %v, timeout %v, lifetime %v)",
		cfg.Watch.Source, cfg.Watch.Key, cfg.Session.PollInterval,
		cfg.Session.TransactionTimeout, cfg.Session.Lifetime)

	enc := json.NewEncoder(out)
	for n := 0; cfg.Watch.Count == 0 || n < cfg.Watch.Count; n++ {
		if ctx.Err() != nil {
			return nil
		}
		resp := reg.Start(context.Background(), cfg.Watch.Key, cfg.Session.Lifetime, pollCfg)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
	return nil
}
