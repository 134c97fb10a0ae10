package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	urfave "github.com/urfave/cli/v3"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 30
	serverMaxHeaderBytes      = 20

	scorePath = "/api/injection-confidence"
)

var (
	portFlag = &urfave.IntFlag{
		Name:  "port",
		Usage: "Port on which the server will listen (optional, defaults to the config value)",
	}

	serverCmd = &urfave.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start local HTTP API",
		Action:  cmdStartServer,
		Flags: []urfave.Flag{
			portFlag,
		},
	}
)

func cmdStartServer(ctx context.Context, cmd *urfave.Command) error {
	app := getConfig(cmd)

	port := cmd.Int(portFlag.Name)
	if port <= 0 {
		port = app.Config.Server.Port
	}
	address := fmt.Sprintf("127.0.0.1:%d", port)

	token, err := getAPIToken(app.Dir)
	if err != nil {
		return fmt.Errorf("reading api token: %w", err)
	}
	if token == "" {
		slog.Warn("no api token, the api is open to local clients (see: dosecheck token create)")
	}

	s := &http.Server{
		Addr:           address,
		Handler:        makeRouter(app, token),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("server started", "address", fmt.Sprintf("http://%s", address))

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func makeRouter(app *appConfig, token string) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST "+scorePath, scoreAPIHandler(app))
	api.HandleFunc("GET /api/history", historyAPIHandler(app))
	api.HandleFunc("GET /api/history/summary", historySummaryAPIHandler(app))
	api.HandleFunc("GET /api/history/{id}", historyEntryAPIHandler(app))
	api.HandleFunc("GET /api/config", configAPIHandler(app))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler)
	mux.Handle("/api/", withToken(token, api))
	return mux
}
