package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cachehttp "github.com/davicafu/omegacache/internal/server/http"
	"github.com/davicafu/omegacache/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cache over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "HTTP port (HTTP_PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logger.Logger()
	defer log.Sync() // flush buffers al salir

	if v, _ := cmd.Flags().GetString("port"); v != "" {
		cfg.HTTPPort = v
	}

	ctx := cmd.Context()
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("error closing cache", zap.Error(err))
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	handler := cachehttp.NewCacheHandler(a.Engine, cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           cachehttp.NewRouter(handler, a.Metrics, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("🚀 Server running", zap.String("url", "http://localhost:"+cfg.HTTPPort))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("Apagando servidor...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
