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

	"spicywod/internal/auth"
	"spicywod/internal/config"
	"spicywod/internal/database"
	"spicywod/internal/email"
	"spicywod/internal/handlers"
	"spicywod/internal/kvstore"
	"spicywod/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	configPath     string
	memorySessions bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "spicywod",
	Short: "SpicyWOD workout tracker",
	Long: `SpicyWOD tracks workouts of the day and the results athletes log against them.

Run "spicywod serve" to start the HTTP server. The other commands manage the
database directly.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger.Initialize(logger.ParseLevel(cfg.LogLevel), cfg.IsDevelopment())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	serveCmd.Flags().BoolVar(&memorySessions, "memory-sessions", false, "keep sessions in process memory instead of SQLite")

	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDatabase opens and migrates the configured database.
func openDatabase() (*sql.DB, error) {
	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

type sessionStore interface {
	kvstore.Store
	kvstore.Sweeper
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	var store sessionStore
	if memorySessions {
		store = kvstore.NewMemoryStore()
		logger.Warn("Sessions are kept in memory and will not survive a restart")
	} else {
		sqliteStore := kvstore.NewSQLiteStore(db)
		if err := sqliteStore.Migrate(ctx); err != nil {
			return err
		}
		store = sqliteStore
	}
	sessions := auth.NewSessionManager(store, cfg.SessionDuration)

	emailService := email.NewService(cfg)
	if emailService.IsEnabled() {
		logger.Info("Email service enabled with Mailgun", "domain", cfg.MailgunDomain)
	} else {
		logger.Info("Email service disabled - Mailgun not configured")
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	handlers.SetupRoutes(r, handlers.Services{
		DB:       db,
		Sessions: sessions,
		Email:    emailService,
		Config:   cfg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return kvstore.RunSweeper(gctx, store, cfg.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
