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

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/codeturtle/turtle-web/internal/auth"
	"github.com/codeturtle/turtle-web/internal/config"
	"github.com/codeturtle/turtle-web/internal/http/views"
	"github.com/codeturtle/turtle-web/internal/identity"
	"github.com/codeturtle/turtle-web/internal/logging"
	"github.com/codeturtle/turtle-web/internal/server"
	"github.com/codeturtle/turtle-web/internal/solve"
	"github.com/codeturtle/turtle-web/internal/storage"
	"github.com/codeturtle/turtle-web/internal/storage/memory"
	"github.com/codeturtle/turtle-web/internal/storage/postgres"
	"github.com/codeturtle/turtle-web/internal/upload/previews"
	"github.com/codeturtle/turtle-web/internal/visitor"
)

var rootCmd = &cobra.Command{
	Use:   "turtle-web",
	Short: "Code Turtle web front end",
	RunE:  runServer,
}

var (
	flagPort     string
	flagEnvFile  string
	flagLogLevel string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagPort, "port", "", "HTTP port (overrides PORT)")
	flags.StringVar(&flagEnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&flagLogLevel, "log-level", "", "zerolog level (overrides LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute turtle-web command")
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	loadLocalEnv(flagEnvFile)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flagPort != "" {
		cfg.Port = flagPort
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openVisitorStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	pv, err := openPreviews(cfg.PreviewDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := pv.Close(); err != nil {
			log.Warn().Err(err).Msg("[server] close preview store")
		}
	}()

	tokens, err := auth.NewTokenManager(cfg.SessionSecret, cfg.SessionIssuer, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("init visitor tokens: %w", err)
	}
	google, err := identity.NewGoogle(ctx, cfg.GoogleClientID, cfg.GoogleVerifyTokens, nil)
	if err != nil {
		return fmt.Errorf("init google sign-in: %w", err)
	}
	renderer, err := views.New()
	if err != nil {
		return fmt.Errorf("init views: %w", err)
	}

	visitors := visitor.NewManager(visitor.Options{
		APIURL:        cfg.APIURL,
		Solve:         solve.Options{RequireModel: cfg.RequireModel, Models: cfg.Models},
		Previews:      pv,
		Store:         store,
		Tokens:        tokens,
		SecureCookies: cfg.SecureCookies,
		IdleTTL:       cfg.VisitorIdle,
	})
	if cfg.VisitorIdle > 0 {
		go visitors.Run(ctx, cfg.VisitorIdle/4)
	}

	srv := server.New(cfg, server.Deps{
		Visitors: visitors,
		Previews: pv,
		Identity: google,
		Views:    renderer,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddress()).Str("api", cfg.APIURL).Msg("[server] Code Turtle web listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("[server] graceful shutdown error")
	}
	visitors.Close(shutdownCtx)
	return nil
}

func loadLocalEnv(path string) {
	if err := godotenv.Load(path); err != nil {
		log.Info().Str("file", path).Msg("[server] no .env file found; relying on existing environment")
	}
}

func openVisitorStore(ctx context.Context, databaseURL string) (storage.VisitorStore, error) {
	if databaseURL == "" {
		log.Warn().Msg("[server] DATABASE_URL not set; visitors are kept in memory only")
		return memory.New(), nil
	}
	store, err := postgres.NewVisitorStore(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	return store, nil
}

func openPreviews(dir string) (*previews.Store, error) {
	if dir == "" {
		return previews.OpenInMemory()
	}
	return previews.Open(dir)
}
