package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TxnLab/ftstake/internal/api"
	"github.com/TxnLab/ftstake/internal/lib/host"
	"github.com/TxnLab/ftstake/internal/lib/misc"
)

const (
	defaultAuditInterval = 30 * time.Minute
	auditParallelism     = 20
)

// Daemon serves the hosted ledger over http and periodically audits it.
type Daemon struct {
	logger        *slog.Logger
	host          *host.Host
	server        *http.Server
	auditInterval time.Duration
}

func newDaemon(listen string, auditInterval time.Duration) *Daemon {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api.New(App.logger, App.host, App.tokens, api.Options{
		AllowedOrigins: App.cfg.AllowedOrigins,
		AdminToken:     misc.GetSecret("FTSTAKE_ADMIN_TOKEN"),
		OwnerID:        App.cfg.OwnerID,
	}))
	return &Daemon{
		logger:        App.logger,
		host:          App.host,
		server:        &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		auditInterval: auditInterval,
	}
}

func (d *Daemon) start(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	d.logger.Info("Starting ftstake daemon", "listen", d.server.Addr)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.Auditor(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer d.logger.Info("http server stopped")
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = d.server.Shutdown(shutdownCtx)
	}()
}

// Auditor checks the account totals against the pool aggregate every audit interval.
func (d *Daemon) Auditor(ctx context.Context) {
	if d.auditInterval <= 0 {
		return
	}
	defer d.logger.Info("Exiting Auditor")
	d.logger.Info("Starting Auditor", "interval", d.auditInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.auditInterval):
			report, err := d.host.Audit(auditParallelism)
			if err != nil {
				misc.Errorf(d.logger, "audit failed: %v", err)
				break
			}
			misc.Infof(d.logger, "audit: %s", report)
		}
	}
}
