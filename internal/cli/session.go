package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/me/edaq/internal/actuator"
	"github.com/me/edaq/internal/config"
	"github.com/me/edaq/internal/executor"
	"github.com/me/edaq/internal/hub"
	"github.com/me/edaq/internal/observability"
	"github.com/me/edaq/internal/runner"
	"github.com/me/edaq/internal/scheduler"
	"github.com/me/edaq/internal/server"
	"github.com/me/edaq/internal/store"
	"github.com/me/edaq/pkg/model"
)

// sessionOptions selects how a local session ends and what it exposes.
type sessionOptions struct {
	serve bool
	addr  string
	// idle stops the producer once nothing has been pending or unexecuted
	// for this long. Zero keeps the session open until a signal or an API
	// stop.
	idle time.Duration
}

// sessionSummary is what a finished session reports.
type sessionSummary struct {
	Runner      runner.Status
	Producer    scheduler.Status
	Undelivered int
}

// newExecutor builds the executor named in cfg.
func newExecutor(cfg config.Config, logger *slog.Logger) (executor.Executor, error) {
	reg := executor.NewRegistry(logger)
	reg.Register(executor.NewSimExecutor(cfg.Executor.Sim.Width, cfg.Executor.Sim.Height, logger))
	reg.Register(executor.NewCommandExecutor(cfg.Executor.Command, logger))
	return reg.Get(cfg.Executor.Type)
}

// runSession wires the producer, runner, frame hub, journal, actuators and
// optionally the control API, and runs them until the producer is stopped
// and everything it delivered has executed.
func runSession(ctx context.Context, cfg config.Config, opts sessionOptions, logger *slog.Logger) (sessionSummary, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observability.Setup(ctx, cfg.ObservabilityConfig(), logger)
	if err != nil {
		return sessionSummary{}, err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			logger.Warn("metrics shutdown", "error", err)
		}
	}()
	metrics, err := observability.NewGlobalMetrics()
	if err != nil {
		return sessionSummary{}, err
	}

	exec, err := newExecutor(cfg, logger)
	if err != nil {
		return sessionSummary{}, err
	}

	producer := scheduler.New(cfg.ProducerConfig(), logger, scheduler.WithMetrics(metrics))
	defer producer.Stop()
	frames := hub.New(cfg.Hub.Buffer, logger)
	run := runner.New(exec, logger, runner.WithMetrics(metrics), runner.WithObserver(frames.Publish))

	var journal *store.SQLiteStore
	if cfg.Journal.Path != "" {
		journal, err = store.NewSQLiteStore(cfg.Journal.Path, logger)
		if err != nil {
			return sessionSummary{}, err
		}
		defer journal.Close()
		if err := journal.Migrate(ctx); err != nil {
			return sessionSummary{}, fmt.Errorf("migrate journal: %w", err)
		}
		logger.Info("journal ready", "path", cfg.Journal.Path)
	}

	// The plan registers first so that it holds clock-reset permission.
	if cfg.Plan != nil {
		if _, err := actuator.NewPlanActuator(*cfg.Plan, logger).Run(ctx, producer); err != nil {
			return sessionSummary{}, fmt.Errorf("register plan: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	finished := make(chan struct{})

	journalDone := make(chan struct{})
	if journal != nil {
		sub := frames.Subscribe("journal")
		g.Go(func() error {
			defer close(journalDone)
			// The journal drains until the hub closes, even after a signal.
			return journal.Record(context.WithoutCancel(gctx), sub, exec.Type())
		})
	} else {
		close(journalDone)
	}

	if cfg.Reactive != nil {
		trigger := cfg.Reactive.Trigger
		reactive := actuator.NewReactiveActuator(cfg.Reactive.Action,
			actuator.Threshold(trigger.Channel, trigger.Key, trigger.Above), logger)
		sub := frames.Subscribe("reactive")
		g.Go(func() error {
			n, err := reactive.Run(gctx, producer, sub)
			logger.Info("reactive actuator finished", "registered", n)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	started := time.Now()
	g.Go(func() error {
		defer close(finished)
		// Only Cancel and the closing delivery channel end the run, so a
		// signal lets the in-flight event finish.
		runErr := run.Run(context.WithoutCancel(gctx), runner.ChannelSource(producer.Deliveries()))
		producer.Stop()
		frames.Close()
		<-journalDone
		if journal != nil {
			finishRun(journal, run.Status(), exec.Type(), started, runErr, logger)
		}
		return runErr
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			logger.Info("shutting down")
			producer.Stop()
			run.Cancel()
		case <-finished:
		}
		return nil
	})

	if opts.idle > 0 {
		g.Go(func() error {
			stopWhenIdle(gctx, producer, run, opts.idle, finished, logger)
			return nil
		})
	}

	if opts.serve {
		srvOpts := []server.Option{server.WithRunner(run), server.WithHub(frames)}
		if journal != nil {
			srvOpts = append(srvOpts, server.WithJournal(journal))
		}
		httpServer := &http.Server{
			Addr:              opts.addr,
			Handler:           server.New(producer, logger, srvOpts...).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("server starting", "addr", opts.addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", opts.addr, err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-finished:
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			logger.Info("server stopped")
			return nil
		})
	}

	err = g.Wait()
	ps := producer.Status()
	return sessionSummary{Runner: run.Status(), Producer: ps, Undelivered: ps.Pending}, err
}

// stopWhenIdle stops the producer after nothing has been pending and every
// delivered event has executed or been drained for the whole of grace.
func stopWhenIdle(ctx context.Context, producer *scheduler.Producer, run *runner.Runner, grace time.Duration, finished <-chan struct{}, logger *slog.Logger) {
	tick := max(grace/4, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var idleSince time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-finished:
			return
		case now := <-ticker.C:
			ps, rs := producer.Status(), run.Status()
			if ps.Pending > 0 || rs.Executed+rs.Failed+ps.Drained < ps.Delivered || ps.Paused {
				idleSince = time.Time{}
				continue
			}
			if idleSince.IsZero() {
				idleSince = now
				continue
			}
			if now.Sub(idleSince) >= grace {
				logger.Info("schedule idle, stopping producer", "delivered", ps.Delivered)
				producer.Stop()
				return
			}
		}
	}
}

func finishRun(journal store.Journal, st runner.Status, executorType string, started time.Time, runErr error, logger *slog.Logger) {
	if st.RunID == "" {
		return
	}
	rec := &model.RunRecord{
		ID:        st.RunID,
		State:     st.State,
		Executor:  executorType,
		Executed:  st.Executed,
		Failed:    st.Failed,
		StartedAt: started,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := journal.FinishRun(context.Background(), rec); err != nil {
		logger.Error("journal run result", "run_id", st.RunID, "error", err)
	}
}

func printSummary(w io.Writer, s sessionSummary) {
	fmt.Fprintf(w, "Run %s: %s\n", s.Runner.RunID, s.Runner.State)
	fmt.Fprintf(w, "  Delivered:   %d\n", s.Producer.Delivered)
	fmt.Fprintf(w, "  Executed:    %d\n", s.Runner.Executed)
	fmt.Fprintf(w, "  Failed:      %d\n", s.Runner.Failed)
	if s.Producer.Drained > 0 {
		fmt.Fprintf(w, "  Skipped:     %d\n", s.Producer.Drained)
	}
	fmt.Fprintf(w, "  Undelivered: %d\n", s.Undelivered)
}
