// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fccertifier/internal/audit"
	"fccertifier/internal/certifier"
	"fccertifier/internal/certifier/metrics"
	"fccertifier/internal/certifier/normalize"
	"fccertifier/internal/certifier/store"
	"fccertifier/internal/geocode"
	"fccertifier/internal/identitystore"
	"fccertifier/internal/platform/config"
	"fccertifier/internal/platform/httpserver"
	"fccertifier/internal/platform/logger"
	"fccertifier/internal/platform/middleware"
	httptransport "fccertifier/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	certMetrics := metrics.New()

	// Collaborator clients. Real REST integrations are external to this
	// service; the mocks honor the same contracts.
	geocodeClient := geocode.NewMockClient()
	identityClient := identitystore.NewMockClient()

	normalizer := normalize.New(geocodeClient, cfg.GenderCodes, cfg.CollaboratorTimeout, log)
	tickets := store.New()

	service, err := certifier.New(tickets, identityClient, normalizer, cfg,
		certifier.WithLogger(log),
		certifier.WithMetrics(certMetrics),
	)
	if err != nil {
		log.Error("failed to build certifier service", "error", err.Error())
		os.Exit(1)
	}

	auditTrail := audit.NewPublisher(audit.NewInMemoryStore())
	service.RegisterListener(audit.NewListener(auditTrail))

	handler := httptransport.New(service, log)
	router := httptransport.NewRouter(handler, log, middleware.SubjectConfig{
		AuthenticationEnabled: cfg.AuthenticationEnabled,
		MockedConnectionID:    cfg.MockedConnectionID,
		MockedEmail:           cfg.MockedEmail,
	}, 30*time.Second)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Expired tickets are also rejected lazily at consume time; the sweeper
	// just keeps abandoned sessions from accumulating.
	go sweepTickets(ctx, tickets, certMetrics, cfg.ExpiryDelay)

	go func() {
		log.Info("starting fccertifier", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
	}
}

func sweepTickets(ctx context.Context, tickets *store.InMemoryTicketStore, m *metrics.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			_, _ = tickets.DeleteExpired(ctx, now)
			m.SetTicketsActive(tickets.Len())
		}
	}
}
