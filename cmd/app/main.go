package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course-marketplace/internal/config"
	"course-marketplace/internal/domain/ports/adapter"
	pg "course-marketplace/internal/infra/db/postgres"
	gw "course-marketplace/internal/infra/gateway"
	"course-marketplace/internal/infra/invoice"
	"course-marketplace/internal/infra/logging"
	"course-marketplace/internal/infra/mail"
	"course-marketplace/internal/infra/metrics"
	red "course-marketplace/internal/infra/redis"
	"course-marketplace/internal/infra/sched"
	"course-marketplace/internal/infra/web"
	"course-marketplace/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (relax webhook checks)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, *devMode)
	if *devMode {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	txManager := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	paymentRepo := pg.NewPaymentRepo(pool)
	enrollmentRepo := pg.NewEnrollmentRepo(pool)
	courseRepo := pg.NewCourseRepoCacheDecorator(pg.NewCourseRepo(pool), redisClient)
	userRepo := pg.NewUserRepo(pool)
	eventRepo := pg.NewWebhookEventRepo(pool)

	// ---- Gateways ----
	stripeGW := gw.NewStripeGateway(cfg.Stripe, cfg.Server.ClientURL)
	paypalGW := gw.NewPayPalGateway(cfg.PayPal, cfg.Server.ClientURL)
	vietqrGW := gw.NewVietQRGateway(cfg.VietQR)

	stripeVerifier := gw.NewStripeWebhookVerifier(cfg.Stripe.WebhookSecret)
	vietqrVerifier := gw.NewVietQRWebhookVerifier(cfg.VietQR)

	// ---- Invoicing ----
	renderer, err := invoice.NewPDFRenderer(cfg.Invoice)
	if err != nil {
		logger.Fatal().Err(err).Msg("invoice renderer init failed")
	}
	mailer := mail.NewSMTPMailer(cfg.SMTP)

	// ---- Use cases ----
	checkoutUC := usecase.NewCheckoutUseCase(paymentRepo, enrollmentRepo, courseRepo,
		[]adapter.CheckoutGateway{stripeGW, paypalGW, vietqrGW}, logger)
	invoiceUC := usecase.NewInvoiceUseCase(paymentRepo, userRepo, courseRepo, renderer, mailer, logger)
	reconcileUC := usecase.NewReconcileUseCase(paymentRepo, enrollmentRepo, eventRepo,
		txManager, invoiceUC, paypalGW, mailer, cfg.Payment, logger)
	queryUC := usecase.NewPaymentQueryUseCase(paymentRepo, enrollmentRepo, eventRepo)

	// ---- HTTP server ----
	authManager := web.NewAuthManager(cfg.Auth.JWTSecret)
	srv := web.NewServer(checkoutUC, reconcileUC, invoiceUC, queryUC,
		stripeVerifier, vietqrVerifier, authManager, rateLimiter, cfg.Payment, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Expiry sweep ----
	worker := sched.NewExpiryWorker(paymentRepo, enrollmentRepo, txManager,
		cfg.Sched.ExpirySweepInterval, cfg.Sched.ExpirySweepBatch, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
