package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clubhouse/internal/config"
	"clubhouse/internal/domain"
	"clubhouse/internal/httpserver"
	"clubhouse/internal/logger"
	"clubhouse/internal/metrics"
	"clubhouse/internal/ratelimit"
	"clubhouse/internal/security"
	"clubhouse/internal/service"
	"clubhouse/internal/store/postgres"
	"clubhouse/internal/store/sqlite"
	"clubhouse/internal/ws"
)

func main() {
	root := &cobra.Command{
		Use:          "clubhouse",
		Short:        "Clubhouse membership club backend",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(createAdminCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the process-wide dependencies shared by the commands.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	db    *sql.DB
	store domain.Store
}

func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(logger.Config{Development: cfg.IsDevelopment()})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}
	switch cfg.DBDriver {
	case "sqlite":
		a.db, err = sqlite.Open(cfg.SQLitePath)
		if err == nil {
			err = sqlite.Migrate(a.db)
		}
		a.store = sqlite.NewStore(a.db)
	default:
		a.db, err = postgres.Open(cfg.DatabaseURL)
		if err == nil {
			err = postgres.Migrate(a.db)
		}
		a.store = postgres.NewStore(a.db)
	}
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}
	return a, nil
}

func (a *app) close() {
	_ = a.db.Close()
	_ = a.log.Sync()
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()
			a.log.Info("schema is up to date", zap.String("driver", a.cfg.DBDriver))
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var in service.ProvisionInput
	var password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account with its profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := security.CheckPasswordPolicy(password); err != nil {
				return err
			}
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			hashed, err := security.NewPasswordHasher(0).Hash(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			in.HashedPassword = hashed
			in.Role = domain.RoleAdmin

			u, err := service.NewUserService(a.store, a.log).Provision(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.log.Info("admin created", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "admin username")
	cmd.Flags().StringVar(&in.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()
			return serve(a)
		},
	}
}

func serve(a *app) error {
	cfg, log := a.cfg, a.log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokenSvc := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	passwordHasher := security.NewPasswordHasher(0)
	encryptor, err := security.NewEncryptor([]byte(cfg.EncryptKey), cfg.EncryptLegacyKeys)
	if err != nil {
		return fmt.Errorf("initialize encryptor: %w", err)
	}

	limiter, err := pollLimiter(ctx, cfg, log)
	if err != nil {
		return err
	}

	m := metrics.New()
	hub := ws.NewHub(log.Named("ws"))

	authSvc := service.NewAuthService(a.store.Repos().Users, tokenSvc, passwordHasher)
	authSvc.RememberMeTTL = time.Duration(cfg.RememberMeDays) * 24 * time.Hour

	router := httpserver.NewRouter(httpserver.Deps{
		Config:       cfg,
		Log:          log,
		Metrics:      m,
		Hub:          hub,
		PollLimiter:  limiter,
		Auth:         authSvc,
		Users:        service.NewUserService(a.store, log),
		Applications: service.NewApplicationService(a.store, passwordHasher, log),
		Messages:     service.NewMessageService(a.store, encryptor, hub, m, log.Named("messaging"), cfg.FirstContactLimit),
		Moderation:   service.NewModerationService(a.store, log),
		Posts:        service.NewPostService(a.store),
		Competitions: service.NewCompetitionService(a.store, log),
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", cfg.HTTPAddr()), zap.String("driver", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

// pollLimiter uses Redis when REDIS_URL is set so that every instance shares
// one budget, and an in-process token bucket otherwise.
func pollLimiter(ctx context.Context, cfg *config.Config, log *zap.Logger) (ratelimit.Limiter, error) {
	if cfg.PollRatePerMinute <= 0 {
		return nil, nil
	}
	if cfg.RedisURL != "" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		go func() {
			<-ctx.Done()
			_ = client.Close()
		}()
		log.Info("poll limiter backed by redis")
		return ratelimit.NewRedisLimiter(client, "clubhouse", cfg.PollRatePerMinute, time.Minute), nil
	}
	local := ratelimit.NewLocalLimiter(cfg.PollRatePerMinute, cfg.PollBurst)
	go local.Run(ctx)
	return local, nil
}
