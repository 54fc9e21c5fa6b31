package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/usched-go/usched/config"
	"github.com/usched-go/usched/internal/adminstore"
	"github.com/usched-go/usched/internal/domain"
	"github.com/usched-go/usched/internal/errs"
	"github.com/usched-go/usched/internal/health"
	"github.com/usched-go/usched/internal/ipc"
	"github.com/usched-go/usched/internal/lifecycle"
	"github.com/usched-go/usched/internal/marshal"
	"github.com/usched-go/usched/internal/metrics"
	"github.com/usched-go/usched/internal/pool"
	"github.com/usched-go/usched/internal/runtimectl"
	"github.com/usched-go/usched/internal/scheduler"
	"github.com/usched-go/usched/internal/stat"
	"github.com/usched-go/usched/internal/transport"
	"github.com/usched-go/usched/internal/transport/adminhttp"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the usched scheduling daemon",
	RunE:  runDaemon,
}

// alignFromFlags recovers a scheduler.Align from an entry's flag set, the
// same mapping internal/transport/conn.go applies to freshly-decoded wire
// entries — duplicated here (rather than exported) since reload is the only
// other call site and the mapping is three lines.
func alignFromFlags(flags domain.Flag) scheduler.Align {
	switch {
	case flags&domain.FlagMonthdayAlign != 0:
		return scheduler.AlignMonthday
	case flags&domain.FlagYeardayAlign != 0:
		return scheduler.AlignYearday
	default:
		return scheduler.AlignNone
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("daemon: load config: %w", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())
	logger.Info("starting usched", "env", cfg.Env)

	rt := runtimectl.New(logger)

	metrics.Register()
	metrics.DaemonStartTime.SetToCurrentTime()

	pools := pool.NewPools()

	sched := scheduler.New(logger,
		scheduler.WithPollInterval(time.Duration(cfg.PollIntervalSec)*time.Second),
		scheduler.WithWorkers(cfg.SchedulerWorkers),
	)
	rt.Go(func(ctx context.Context) error {
		sched.Start(ctx)
		return nil
	})

	marshalStore, err := marshal.Open(cfg.MarshalFilePath, logger,
		marshal.WithBackupRotation(cfg.MarshalBackupDir, cfg.MarshalBackupKeep),
	)
	if err != nil {
		return fmt.Errorf("daemon: open marshal store: %w", err)
	}
	defer marshalStore.Close()

	// Executor reachability: the executor binds the dispatch socket, the
	// daemon dials in. Dialing can race the executor's own startup, so a
	// failure here is logged rather than fatal — entries still arm and fire,
	// dispatch attempts just fail until the executor comes up.
	var dispatcher *ipc.Dispatcher
	dispatchQueue, err := ipc.Dial(cfg.IPCSocketPath,
		ipc.WithMaxInFlight(cfg.IPCMaxInFlight),
		ipc.WithSendTimeout(time.Duration(cfg.IPCSendTimeoutSec)*time.Second),
	)
	if err != nil {
		logger.Warn("executor dispatch socket unreachable at startup", "path", cfg.IPCSocketPath, "error", err)
	} else {
		dispatcher = ipc.NewDispatcher(dispatchQueue, logger)
		defer dispatchQueue.Close()
	}

	statMetrics := stat.NewMetrics(prometheus.DefaultRegisterer)
	collector := stat.NewCollector(statMetrics)

	statQueue, err := ipc.Listen(cfg.IPCStatSocketPath)
	if err != nil {
		return fmt.Errorf("daemon: listen stat socket: %w", err)
	}
	defer statQueue.Close()
	rt.Go(func(ctx context.Context) error {
		return runStatListener(ctx, statQueue, pools, collector, statMetrics, logger)
	})

	if cfg.StatReportPath != "" {
		reporter := stat.NewReporter(collector, logger, cfg.StatReportPath, stat.ReportModeFile, time.Duration(cfg.StatReportIntervalSec)*time.Second)
		rt.Go(func(ctx context.Context) error {
			reporter.Start(ctx)
			return nil
		})
	}

	entryDispatcher := lifecycle.New(pools, sched, func(e *domain.Entry) {
		if dispatcher == nil {
			logger.Warn("entry fired with no executor connection, dropping dispatch", "id", e.ID)
			return
		}
		msg := ipc.DispatchMessage{EntryID: e.ID, UID: e.UID, GID: e.GID, Cmd: e.Subj}
		if err := dispatcher.Dispatch(msg); err != nil {
			logger.Warn("dispatch failed", "id", e.ID, "error", err)
		}
	}, logger)

	if err := restorePersistedEntries(marshalStore, entryDispatcher, logger); err != nil {
		logger.Warn("restoring persisted entries failed", "error", err)
	}

	driftMonitor := scheduler.NewDriftMonitor(sched, logger, 30*time.Second)
	rt.Go(func(ctx context.Context) error {
		driftMonitor.Start(ctx, func(delta time.Duration) {
			compensateArmedEntries(pools, sched, delta, logger)
			metrics.SchedulerDriftSeconds.Observe(delta.Seconds())
		})
		return nil
	})

	snapshotMonitor := marshal.NewMonitor(marshalStore, func() []marshal.PersistedEntry {
		return snapshotAPool(pools)
	}, logger, time.Duration(cfg.MarshalSyncIntervalSec)*time.Second)
	rt.Go(func(ctx context.Context) error {
		snapshotMonitor.Start(ctx)
		return nil
	})

	localServer, err := transport.NewLocal(cfg.LocalSocketPath, pools, entryDispatcher, logger,
		transport.WithConnTimeout(time.Duration(cfg.ConnTimeoutSec)*time.Second),
		transport.WithMaxPayload(cfg.MaxPayloadBytes),
	)
	if err != nil {
		return fmt.Errorf("daemon: start local listener: %w", err)
	}
	rt.Go(localServer.Serve)

	manifest, err := adminstore.LoadManifest()
	if err != nil {
		return fmt.Errorf("daemon: load admin manifest: %w", err)
	}
	adminStore, err := adminstore.Open(cfg.AdminStoreDir, manifest, logger)
	if err != nil {
		return fmt.Errorf("daemon: open admin store: %w", err)
	}
	userStore, err := adminstore.NewUserStore(cfg.AdminStoreDir)
	if err != nil {
		return fmt.Errorf("daemon: open user store: %w", err)
	}

	if cfg.RemoteEnabled {
		tlsConfig, err := remoteTLSConfig(cfg)
		if err != nil {
			return fmt.Errorf("daemon: remote tls config: %w", err)
		}
		remoteServer, err := transport.NewRemote(cfg.RemoteAddr, pools, entryDispatcher, userStore, tlsConfig, logger,
			transport.WithConnTimeout(time.Duration(cfg.ConnTimeoutSec)*time.Second),
			transport.WithMaxPayload(cfg.MaxPayloadBytes),
		)
		if err != nil {
			return fmt.Errorf("daemon: start remote listener: %w", err)
		}
		rt.Go(remoteServer.Serve)
	}

	checker := health.NewChecker(logger, prometheus.DefaultRegisterer)
	checker.AddCheck("marshal_file", func(ctx context.Context) error {
		_, err := os.Stat(cfg.MarshalFilePath)
		return err
	})
	checker.AddCheck("admin_store_dir", func(ctx context.Context) error {
		_, err := adminStore.Show(domain.CategoryUsers, "auth_type")
		if err != nil && err != domain.ErrUnknownProperty {
			return err
		}
		return nil
	})

	metricsServer := metrics.NewServer(":" + cfg.MetricsPort)
	if mux, ok := metricsServer.Handler.(*http.ServeMux); ok {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			writeHealthResult(w, checker.Liveness(r.Context()))
		})
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			writeHealthResult(w, checker.Readiness(r.Context()))
		})
	}
	rt.Go(func(ctx context.Context) error {
		return serveHTTP(ctx, metricsServer)
	})

	adminRouter := adminhttp.NewRouter(adminStore, userStore, collector, []byte(cfg.AdminJWTSecret), logger)
	adminServer := &http.Server{Addr: cfg.AdminHTTPAddr, Handler: adminRouter}
	rt.Go(func(ctx context.Context) error {
		return serveHTTP(ctx, adminServer)
	})

	return rt.Shutdown(10*time.Second,
		func(ctx context.Context) error { return metricsServer.Shutdown(ctx) },
		func(ctx context.Context) error { return adminServer.Shutdown(ctx) },
	)
}

// serveHTTP runs srv until ctx is cancelled, treating the resulting
// ErrServerClosed as a clean shutdown rather than a failure, matching the
// Runtime.Go contract of "return nil on graceful stop."
func serveHTTP(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func writeHealthResult(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	status := http.StatusOK
	if result.Status != "up" {
		status = http.StatusServiceUnavailable
	}
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, result.Status)
}

func remoteTLSConfig(cfg *config.Config) (*tls.Config, error) {
	if cfg.RemoteTLSCert == "" || cfg.RemoteTLSKey == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.RemoteTLSCert, cfg.RemoteTLSKey)
	if err != nil {
		return nil, fmt.Errorf("load remote tls key pair: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

// runStatListener blocks receiving StatMessage datagrams from the executor
// until ctx is cancelled, folding each into the collector and, per spec,
// writing the same outcome into the active-pool entry's Status field under
// the pool's lock so GET replies (wire.GetRecord) see live pid/status/
// exec-time/latency/counters instead of permanent zeroes.
func runStatListener(ctx context.Context, q *ipc.Queue, pools *pool.Pools, collector *stat.Collector, metricsOut *stat.Metrics, logger *slog.Logger) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		buf, err := q.Receive(time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		msg, err := ipc.DecodeStatMessage(buf)
		if err != nil {
			logger.Warn("dropping malformed stat report", "error", err)
			continue
		}
		exec := stat.Exec{
			UID:     msg.UID,
			GID:     msg.GID,
			PID:     msg.PID,
			Status:  msg.Status,
			Trigger: time.Unix(0, msg.TriggerUnixNano),
			Start:   time.Unix(0, msg.StartUnixNano),
			End:     time.Unix(0, msg.EndUnixNano),
			OutData: msg.OutData,
		}
		collector.Record(msg.EntryID, exec)
		agg, _ := collector.Get(msg.EntryID)

		found := pools.APool.WithLock(msg.EntryID, func(e *domain.Entry) {
			e.Status = domain.ExecStatus{
				PID:      exec.PID,
				Status:   exec.Status,
				ExecTime: exec.End.Sub(exec.Start),
				Latency:  exec.Start.Sub(exec.Trigger),
				OutData:  exec.OutData,
				NrExec:   agg.NrExec,
				NrOK:     agg.NrOK,
				NrFail:   agg.NrFail,
			}
		})
		if !found {
			logger.Warn("stat report for entry no longer in active pool", "id", msg.EntryID)
		}

		metricsOut.SetTrackedCount(len(collector.Snapshot()))
	}
}

// restorePersistedEntries reloads the marshal file's surviving entries
// (Store.Load already drops lapsed one-shots and entries whose expire has
// passed) and re-arms each: recurring entries are advanced past any
// occurrences missed while the daemon was down, one-shots keep their stored
// trigger. Load keeps a one-shot while its expire, or its trigger when it
// has no expire, is still ahead, so a kept one-shot's trigger may be past.
func restorePersistedEntries(store *marshal.Store, dispatcher *lifecycle.Dispatcher, logger *slog.Logger) error {
	persisted, err := store.Load()
	if err != nil {
		return fmt.Errorf("load persisted entries: %w", err)
	}

	now := time.Now()
	for _, p := range persisted {
		e := p.ToEntry()
		align := alignFromFlags(e.Flags.Value())

		trigger := e.Trigger
		if p.Step > 0 {
			for !trigger.After(now) {
				trigger = scheduler.NextTrigger(trigger, p.Step, align)
			}
		}

		if err := dispatcher.Restore(e, trigger, align); err != nil {
			logger.Warn("failed to restore entry", "id", e.ID, "error", err)
			continue
		}
	}
	logger.Info("restored persisted entries", "count", len(persisted))
	return nil
}

// compensateArmedEntries applies one drift delta across every armed
// handle, per scheduler.CompensateEntry's TRIGGERED-aware rule. Any handle
// that can't be found or rearmed is classified as a clock error rather
// than silently dropped — the drift monitor still observed the jump, this
// entry just didn't get compensated for it.
func compensateArmedEntries(pools *pool.Pools, sched *scheduler.Scheduler, delta time.Duration, logger *slog.Logger) {
	pools.APool.Iterate(func(_ uint64, e *domain.Entry) bool {
		handle := scheduler.Handle(e.GetSchedID())
		trigger, _, _, err := sched.Search(handle)
		if err != nil {
			logger.Warn("drift compensation: handle not found", "id", e.ID, "error", errs.Wrap(errs.ErrClock, err))
			return true
		}
		relative := e.Flags.Has(domain.FlagRelativeTrigger)
		triggered := e.Flags.Has(domain.FlagTriggered)
		next := scheduler.CompensateEntry(trigger, delta, triggered, relative)
		if next != trigger {
			if err := sched.Rearm(handle, next); err != nil {
				logger.Warn("drift compensation: rearm failed", "id", e.ID, "error", errs.Wrap(errs.ErrClock, err))
			}
		}
		return true
	})
}

// snapshotAPool projects every armed entry into its persisted form for
// marshal.Monitor's periodic snapshot.
func snapshotAPool(pools *pool.Pools) []marshal.PersistedEntry {
	var out []marshal.PersistedEntry
	pools.APool.Iterate(func(_ uint64, e *domain.Entry) bool {
		out = append(out, marshal.FromEntry(e))
		return true
	})
	return out
}
