package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	api "drivekr-wallet-backend/internal/api/grpc"
	"drivekr-wallet-backend/internal/api/grpc/interceptor"
	httpapi "drivekr-wallet-backend/internal/api/http"
	"drivekr-wallet-backend/internal/app"
	"drivekr-wallet-backend/internal/config"
	"drivekr-wallet-backend/internal/events"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/metrics"
	"drivekr-wallet-backend/internal/security"
	"drivekr-wallet-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting DriveKR Wallet Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "grpc_address", cfg.GetServerAddress(), "http_address", cfg.GetHTTPAddress())
	logger.Info("Ledger configuration",
		"commission_rate", cfg.Ledger.CommissionRate,
		"minimum_withdrawal", cfg.Ledger.MinimumWithdrawal,
		"storage", cfg.Storage.Type)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize store, locks and redis
	infra, err := app.Open(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize backends", "error", err)
		log.Fatalf("Failed to initialize backends: %v", err)
	}
	defer infra.Close()

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	// Notifications are delivered off the request path by the event bus
	dispatcher := service.NewNotificationDispatcher(infra.Store, app.Channels(cfg), collector, service.DispatcherConfig{
		AdminPhone:   cfg.Notification.AdminPhone,
		AdminEmail:   cfg.Notification.AdminEmail,
		StoreTimeout: cfg.StoreTimeout(),
	})
	bus := events.NewBus(cfg.Notification.Workers, cfg.Notification.QueueSize, events.HandlerFunc(dispatcher.Handle))
	if infra.Redis != nil {
		bus.Subscribe(events.NewRedisPublisher(infra.Redis, cfg.Redis.EventsChannel))
	}
	// Detached from the signal context so that queued events drain after shutdown starts
	bus.Start(context.Background())

	// Initialize Services
	ledgerSvc := service.NewLedgerService(infra.Store, infra.Locker, bus, collector, service.LedgerConfig{
		CommissionRate:    cfg.CommissionRate(),
		MinimumWithdrawal: cfg.MinimumWithdrawal(),
		HistoryLimit:      cfg.Ledger.HistoryLimit,
		StoreTimeout:      cfg.StoreTimeout(),
	})
	verificationSvc := service.NewVerificationService(infra.Store, infra.Locker, bus, collector, cfg.StoreTimeout())
	accountSvc := service.NewAccountService(infra.Store, cfg.StoreTimeout())

	// Initialize Security
	verifier, err := newVerifier(ctx, cfg, infra)
	if err != nil {
		logger.Error("Failed to initialize identity verifier", "error", err)
		log.Fatalf("Failed to initialize identity verifier: %v", err)
	}
	authInterceptor := interceptor.NewAuthInterceptor(verifier, security.NewServiceKeyring(cfg.Security.ServiceKeys))

	// Set up gRPC server
	lis, err := net.Listen("tcp", cfg.GetServerAddress())
	if err != nil {
		logger.Error("Failed to listen", "error", err, "address", cfg.GetServerAddress())
		log.Fatalf("Failed to listen: %v", err)
	}

	s := grpc.NewServer(
		grpc.UnaryInterceptor(authInterceptor.Unary()),
	)

	// Register services
	api.RegisterLedgerServer(s, api.NewLedgerHandler(ledgerSvc))
	api.RegisterAccountServer(s, api.NewAccountHandler(accountSvc))
	api.RegisterAdminServer(s, api.NewAdminHandler(verificationSvc))

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(s, healthSrv)
	for _, name := range []string{api.LedgerServiceName, api.AccountServiceName, api.AdminServiceName} {
		healthSrv.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}

	// Register reflection service for grpcurl
	reflection.Register(s)

	// Set up HTTP server for health, metrics and WhatsApp links
	router := mux.NewRouter()
	httpapi.RegisterRoutes(router, httpapi.NewHandler(infra.Store.Notifications(), infra.Health))
	httpSrv := &http.Server{
		Addr:              cfg.GetHTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "address", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down...")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown error", "error", err)
		}
		s.GracefulStop()
	}()

	logger.Info("gRPC server listening", "address", cfg.GetServerAddress())
	if err := s.Serve(lis); err != nil {
		logger.Error("Failed to serve gRPC", "error", err)
		log.Fatalf("Failed to serve: %v", err)
	}

	// Drain queued notifications before the store closes
	bus.Close()
	logger.Info("Server stopped. Goodbye!")
}

func newVerifier(ctx context.Context, cfg *config.Config, infra *app.Infra) (security.IdentityVerifier, error) {
	if cfg.Identity.Provider == "firebase" {
		fb, err := infra.FirebaseApp(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client, err := fb.Auth(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("Verifying Firebase ID tokens", "project", cfg.Firebase.ProjectID)
		return security.NewFirebaseVerifier(client), nil
	}
	logger.Info("Verifying JWT access tokens", "issuer", cfg.Identity.JWTIssuer)
	return security.NewJWTVerifier(security.NewTokenManager(cfg.Identity.JWTSecret, cfg.Identity.JWTIssuer)), nil
}
