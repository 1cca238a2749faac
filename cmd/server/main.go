package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/asinehq/asine-console/internal/api"
	"github.com/asinehq/asine-console/internal/app"
	"github.com/asinehq/asine-console/internal/app/maintenance"
	"github.com/asinehq/asine-console/internal/database"
	"github.com/asinehq/asine-console/internal/identity"
	"github.com/asinehq/asine-console/internal/payments"
	"github.com/asinehq/asine-console/internal/services"
	"github.com/asinehq/asine-console/internal/session"
	"github.com/asinehq/asine-console/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("asine-console", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	provider, err := identity.NewClient(cfg.IdentitySettings())
	if err != nil {
		return fmt.Errorf("initialise identity client: %w", err)
	}

	var verifier *identity.TokenVerifier
	if strings.TrimSpace(cfg.Identity.JWTSecret) != "" {
		verifier, err = identity.NewTokenVerifier(cfg.VerifierSettings())
		if err != nil {
			return fmt.Errorf("initialise token verifier: %w", err)
		}
	} else {
		log.Warn("identity.jwt_secret not set; authenticated endpoints are disabled")
	}

	gateway, err := payments.NewStripeGateway(cfg.StripeSettings())
	if err != nil {
		return fmt.Errorf("initialise stripe gateway: %w", err)
	}

	mailer, err := cfg.BuildMailer()
	if err != nil {
		return fmt.Errorf("initialise mailer: %w", err)
	}

	provisioning, err := services.NewProvisioningService(db, provider, gateway,
		services.WithRetryPolicy(services.RetryPolicy{
			MaxAttempts: cfg.Provisioning.RetryAttempts,
			Delay:       cfg.Provisioning.RetryDelay,
		}))
	if err != nil {
		return fmt.Errorf("initialise provisioning service: %w", err)
	}

	verification, err := services.NewVerificationService(db, provider,
		services.WithVerificationExpiry(cfg.Verification.Expiry))
	if err != nil {
		return fmt.Errorf("initialise verification service: %w", err)
	}

	billingOpts := []services.BillingOption{}
	if cfg.Verification.Subject != "" {
		billingOpts = append(billingOpts, services.WithVerificationSubject(cfg.Verification.Subject))
	}
	billing, err := services.NewBillingService(db, verification, mailer, cfg.Server.SiteURL, billingOpts...)
	if err != nil {
		return fmt.Errorf("initialise billing service: %w", err)
	}

	inviteOpts := []services.InviteOption{}
	if cfg.Invites.RequireSuperAdmin {
		inviteOpts = append(inviteOpts, services.WithSuperAdminGate())
	}
	invites, err := services.NewInviteService(db, provider, inviteOpts...)
	if err != nil {
		return fmt.Errorf("initialise invite service: %w", err)
	}

	var sessionStore session.Store
	if path := strings.TrimSpace(cfg.Session.StorePath); path != "" {
		sessionStore, err = session.NewFileStore(path)
		if err != nil {
			return fmt.Errorf("initialise session store: %w", err)
		}
	}
	sessions, err := session.NewManager(provider, sessionStore)
	if err != nil {
		return fmt.Errorf("initialise session manager: %w", err)
	}

	cleaner := maintenance.NewCleaner(db, verification,
		maintenance.WithTokenSchedule(cfg.Verification.CleanupSchedule))
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		stopCtx := cleaner.Stop()
		if err := cleaner.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}()

	router, err := api.NewRouter(api.Deps{
		DB:           db,
		Config:       cfg,
		Verifier:     verifier,
		Gateway:      gateway,
		Provisioning: provisioning,
		Verification: verification,
		Billing:      billing,
		Invites:      invites,
		Sessions:     sessions,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("could not access database handle during shutdown", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("could not close database cleanly", zap.Error(err))
	}
}
