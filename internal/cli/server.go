package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"celeb-trivia-service/internal/metrics"
	transport "celeb-trivia-service/internal/transport/http"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	rt, err := openRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	service, err := rt.gameService()
	if err != nil {
		return err
	}
	// Warm the catalog; until it loads, question and reward calls answer 503.
	if err := service.RefreshCatalog(ctx); err != nil {
		logger.Warn("catalog not loaded at start-up", "err", err)
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = rt.cfg.Server.Port
	}

	handler := transport.NewHandler(service, metrics.New(), logger)
	router := chi.NewRouter()
	if dir, base := rt.cfg.Assets.ImageDir, strings.TrimRight(rt.cfg.Assets.BaseURL, "/"); dir != "" && strings.HasPrefix(base, "/") {
		router.Handle(base+"/*", http.StripPrefix(base+"/", http.FileServer(http.Dir(dir))))
	}
	router.Mount("/", handler.Router())

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting trivia service", "addr", server.Addr, "store", rt.cfg.Store.Driver, "catalog", rt.cfg.Catalog.Source)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case err, ok := <-serverErr:
		if ok {
			logger.Error("server failed", "err", err)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
