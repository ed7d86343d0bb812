package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"orderflow/cmd/server/config"
	"orderflow/internal/adapters/httpapi"
	"orderflow/internal/observability"
	"orderflow/internal/orders"
	"orderflow/internal/realtime"
	"orderflow/internal/saga"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run(ctx context.Context) error {
	serverCfg, err := config.LoadServer()
	if err != nil {
		return err
	}
	sagaCfg, err := config.LoadSaga()
	if err != nil {
		return err
	}
	httpCfg, err := config.LoadHTTP()
	if err != nil {
		return err
	}

	b, err := buildBackends(ctx)
	if err != nil {
		return err
	}
	defer b.cleanup()

	gateway := orders.NewReliableGateway(
		b.gateway,
		orders.NewRateLimiter(10*time.Millisecond, 100),
		orders.NewCircuitBreaker(orders.CircuitBreakerConfig{MaxFailures: 5, ResetTimeout: 2 * time.Second}),
		saga.RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second},
	)

	def, err := orders.Workflow()
	if err != nil {
		return err
	}
	registry, err := orders.NewRegistry(b.store, gateway, time.Now)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	hub := realtime.NewHub()
	go hub.Run()

	metricsSink := metrics.EventSink()
	feedSink := realtime.EventSink(hub)
	svc, err := orders.NewService(orders.ServiceConfig{
		Definition:  def,
		Registry:    registry,
		StepTimeout: sagaCfg.StepTimeout,
		Retry: saga.RetryPolicy{
			MaxAttempts: sagaCfg.RetryMaxAttempts,
			BaseDelay:   sagaCfg.RetryBaseDelay,
			MaxDelay:    sagaCfg.RetryMaxDelay,
		},
		RunLog: b.runlog,
		Sink: func(ev saga.Event) {
			metricsSink(ev)
			feedSink(ev)
		},
	})
	if err != nil {
		return err
	}

	var limiter *orders.RateLimiter
	if httpCfg.RateLimitInterval > 0 {
		limiter = orders.NewRateLimiter(httpCfg.RateLimitInterval, httpCfg.RateLimitBurst)
	}

	handler, err := httpapi.NewHandler(httpapi.Config{
		Service: svc,
		Hub:     hub,
		Metrics: metrics,
		Limiter: limiter,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    serverCfg.Addr,
		Handler: handler.Router(),
	}

	obsSrv, err := startObservabilityServer(metrics)
	if err != nil {
		return err
	}

	log.Printf("server listening on %s", serverCfg.Addr)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
		if obsSrv != nil {
			obsCtx, cancelObs := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancelObs()
			_ = obsSrv.Shutdown(obsCtx)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func startObservabilityServer(metrics *observability.Metrics) (*http.Server, error) {
	cfg, err := config.LoadObservability()
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(metrics))

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("observability server error: %v", err)
		}
	}()

	return srv, nil
}
