package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"HealthIntake/config"
	"HealthIntake/handler"
	"HealthIntake/questionnaire"
	"HealthIntake/repo"
	"HealthIntake/service"

	"github.com/go-telegram/bot"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server and, when enabled, the staff bot",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides config and environment")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()
	if cmd.Flags().Changed("addr") {
		cfg.Addr = serveAddr
	}

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		log.Warn().Msg(w)
	}
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	catalog, err := questionnaire.Load()
	if err != nil {
		return fmt.Errorf("load questionnaire catalog: %w", err)
	}

	var (
		channel service.Channel = &repo.LogChannel{}
		tg      *bot.Bot
	)
	if cfg.TelegramConfigured() {
		if tg, err = repo.NewTelegramBot(cfg.TelegramToken); err != nil {
			return err
		}
		channel = repo.NewTelegramChannel(tg, cfg.TelegramChatID, cfg.TelegramTimeout)
	} else if cfg.StaffBot && cfg.TelegramToken != "" {
		if tg, err = repo.NewTelegramBot(cfg.TelegramToken); err != nil {
			return err
		}
	}
	intake := service.NewIntake(catalog, store, channel)

	gate, err := handler.NewAdminGate(cfg.AdminPassword, cfg.AdminSecret, cfg.AdminSessionTTL)
	if err != nil {
		return err
	}
	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = handler.FindStaticDir("build", "dist")
	}
	content := repo.NewContentStore(cfg.ContentDir)

	srv := handler.NewServer(intake, content, gate,
		handler.WithStaticDir(staticDir),
		handler.WithMaxBody(cfg.MaxBodyBytes),
		handler.WithMetrics(cfg.MetricsEnabled),
		handler.WithLogger(log.Logger),
	)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("static_dir", staticDir).Str("storage", cfg.StorageDriver).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return intake.RunRetention(gctx, cfg.Retention, cfg.RetentionInterval)
	})
	g.Go(func() error {
		// without a watcher edits made outside the API show up after a restart
		if err := content.Watch(gctx); err != nil {
			log.Warn().Err(err).Msg("content file is not watched")
		}
		return nil
	})
	if cfg.StaffBot && tg != nil {
		staff := handler.NewStaffBot(intake, staffChats(cfg))
		tg.RegisterHandlerMatchFunc(staff.Match, staff.Handler)
		g.Go(func() error {
			log.Info().Msg("staff bot polling")
			tg.Start(gctx)
			return nil
		})
	}

	err = g.Wait()
	log.Info().Msg("stopped")
	return err
}

func openStore(ctx context.Context, cfg *config.Config) (repo.SubmissionStore, error) {
	switch cfg.StorageDriver {
	case repo.DriverSQLite:
		return repo.NewSQLiteStore(ctx, cfg.SQLitePath)
	case repo.DriverFirebase:
		return repo.NewFirebaseStore(ctx, cfg.FirebaseCredentials, cfg.FirebaseDatabaseURL)
	default:
		return repo.NewMemoryStore(), nil
	}
}

// staffChats returns the chats the staff bot answers in
func staffChats(cfg *config.Config) []int64 {
	if len(cfg.StaffChatIDs) > 0 {
		return cfg.StaffChatIDs
	}
	if id, ok := repo.ParseChatID(cfg.TelegramChatID).(int64); ok {
		return []int64{id}
	}
	return nil
}
