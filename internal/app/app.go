// Package app wires the gateway's components into one HTTP server:
// the Proxy Engine for inbound chat traffic, the Admin API for the
// operator page, and a Prometheus metrics endpoint, all sharing one
// configstore.Store / ratelimit.Manager / ledger.Ledger instance.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/newrey/llm-gateway/internal/admin"
	"github.com/newrey/llm-gateway/internal/config"
	"github.com/newrey/llm-gateway/internal/configstore"
	"github.com/newrey/llm-gateway/internal/domain"
	"github.com/newrey/llm-gateway/internal/healthprobe"
	"github.com/newrey/llm-gateway/internal/ledger"
	"github.com/newrey/llm-gateway/internal/logger"
	"github.com/newrey/llm-gateway/internal/proxy"
	"github.com/newrey/llm-gateway/internal/ratelimit"
	"github.com/newrey/llm-gateway/internal/router"
	"github.com/newrey/llm-gateway/internal/selector"
	"github.com/newrey/llm-gateway/internal/upstream"
	"github.com/newrey/llm-gateway/internal/util"
)

const ledgerCapacity = 10_000

// Application owns every long-lived component and the HTTP server
// fronting them.
type Application struct {
	cfg    *config.Config
	logger *logger.StyledLogger

	store     *configstore.Store
	limiter   *ratelimit.Manager
	ledger    *ledger.Ledger
	selector  *selector.Selector
	client    *upstream.Client
	engine    *proxy.Engine
	prober    *healthprobe.Prober
	scheduler *healthprobe.Scheduler
	admin     *admin.API
	metrics   *metricsCollector

	server    *http.Server
	startedAt time.Time

	trustProxyHeaders bool
	trustedProxyCIDRs []*net.IPNet
}

// New loads the routing document and builds every component, but does
// not start listening - call Start for that.
func New(cfg *config.Config, log *logger.StyledLogger, startedAt time.Time) (*Application, error) {
	store, err := configstore.Load(cfg.Routing.DocumentPath)
	if err != nil {
		return nil, fmt.Errorf("app: loading routing document: %w", err)
	}

	trustedCIDRs, err := util.ParseTrustedCIDRs(cfg.Server.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("app: parsing trusted_proxy_cidrs: %w", err)
	}

	limiter := ratelimit.NewManager()
	limiter.Sync(providersOf(store.Snapshot()))

	led := ledger.New(ledgerCapacity)
	sel := selector.New(store, limiter)
	client := upstream.New()
	engine := proxy.New(store, sel, limiter, client, led)
	prober := healthprobe.New(store, limiter, client, led)
	scheduler := healthprobe.NewScheduler(prober, 30*time.Second, 10*time.Second)
	adminAPI := admin.New(store, limiter, led, prober)
	metrics := newMetricsCollector()

	store.OnChange(func(next configstore.Document) {
		limiter.Sync(providersOf(next))
		log.Info("routing document replaced")
	})

	a := &Application{
		cfg:       cfg,
		logger:    log,
		store:     store,
		limiter:   limiter,
		ledger:    led,
		selector:  sel,
		client:    client,
		engine:    engine,
		prober:    prober,
		scheduler: scheduler,
		admin:     adminAPI,
		metrics:   metrics,
		startedAt: startedAt,

		trustProxyHeaders: cfg.Server.TrustProxyHeaders,
		trustedProxyCIDRs: trustedCIDRs,
	}

	mux := http.NewServeMux()
	a.wireRoutes(mux)

	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

func (a *Application) wireRoutes(mux *http.ServeMux) {
	reg := router.NewRouteRegistry(a.logger)

	wrap := func(name string, h http.HandlerFunc) http.HandlerFunc {
		return withRequestID(a.withLogging(name, h))
	}

	reg.RegisterWithMethod("/v1/chat/completions", wrap("chat", a.handleChatCompletions), "Chat completions proxy", http.MethodPost)
	reg.Register("/v1/models", wrap("models", a.handleListModels), "List logical models")
	reg.Register("/admin", wrap("admin-page", a.handleAdminPage), "Admin page")
	reg.RegisterWithMethod("/admin/config", wrap("admin-config-get", a.handleAdminConfig), "Read or replace the routing document", http.MethodGet)
	reg.RegisterWithMethod("/admin/limits/{provider}/reset", wrap("admin-reset", a.handleAdminResetLimits), "Reset a provider's quota counters", http.MethodPost)
	reg.RegisterWithMethod("/admin/health", wrap("admin-probe", a.handleAdminProbe), "Trigger a health probe", http.MethodPost)
	reg.Register("/api_usage", wrap("usage", a.handleAPIUsage), "Per-provider usage summary")

	if a.cfg.Metrics.Enabled {
		reg.Register(a.cfg.Metrics.Path, a.handleMetrics, "Prometheus metrics")
	}

	reg.WireUp(mux)
	mux.Handle(a.cfg.Routing.AdminPagePath+"/", http.StripPrefix(a.cfg.Routing.AdminPagePath, http.FileServer(http.Dir(a.cfg.Routing.AdminPagePath))))
}

// Start begins serving HTTP and the background health-probe scheduler.
func (a *Application) Start(ctx context.Context) error {
	a.scheduler.Start(ctx)
	a.watchHealthGauges(ctx)
	a.watchLedgerGauges(ctx)

	go func() {
		a.logger.Info("listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("server stopped unexpectedly", "error", err)
		}
	}()

	return nil
}

// Stop drains in-flight requests (bounded by cfg.Server.ShutdownTimeout)
// and stops the health-probe scheduler.
func (a *Application) Stop(ctx context.Context) error {
	a.scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}

// watchHealthGauges subscribes to the prober's event bus and keeps the
// provider_healthy gauge in sync with every probe result as it lands,
// rather than only on a periodic resync.
func (a *Application) watchHealthGauges(ctx context.Context) {
	results, _ := a.prober.Subscribe(ctx)
	go func() {
		for result := range results {
			a.metrics.setProviderHealth(result.Model, result.Provider, result.OK)
		}
	}()
}

// watchLedgerGauges resyncs the usage gauges every tick; the ledger
// itself has no change-notification hook, so polling is the simplest
// correct option for a metric surface that is explicitly best-effort.
func (a *Application) watchLedgerGauges(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	go func() {
		defer ticker.Stop()
		a.refreshLedgerGauges()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.refreshLedgerGauges()
			}
		}
	}()
}

func providersOf(doc configstore.Document) []domain.Provider {
	out := make([]domain.Provider, 0, len(doc.Providers))
	for _, p := range doc.Providers {
		out = append(out, p.Provider)
	}
	return out
}
