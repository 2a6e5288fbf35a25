// Command authserver runs the reference login server with its edge-login
// lobby broker.
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

	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/internal/api"
	"github.com/AlexZinkM/abc-core/internal/config"
	"github.com/AlexZinkM/abc-core/internal/server"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}

	var lobbies server.LobbyStore = server.NewMemoryLobbyStore(nil)
	if cfg.RedisURL != "" {
		client, err := server.ConnectRedis(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		lobbies = server.NewRedisLobbyStore(client)
		log.Info("using redis lobby store")
	}

	svc, err := server.NewService(server.Options{
		Users:           server.NewMemoryUserStore(),
		Lobbies:         lobbies,
		BcryptCost:      cfg.BcryptCost,
		OtpResetWindow:  cfg.OtpResetWindow,
		OtpDriftSteps:   cfg.OtpDriftSteps,
		LobbyMaxTimeout: cfg.LobbyMaxTimeout,
		Log:             log,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.SetupRouter(svc, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		log.Info("Swagger UI available", zap.String("url", "http://localhost:"+cfg.Port+"/swagger/index.html"))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
