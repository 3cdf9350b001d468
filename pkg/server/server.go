// Package server exposes the storage core over HTTP. It owns everything the
// core treats as a collaborator: authentication, per-user locking around
// mutating operations, and the mapping of core error kinds to transport
// status codes.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"vaultfs/pkg/config"
	"vaultfs/pkg/log"
	"vaultfs/pkg/users"
	"vaultfs/pkg/vault"
)

// Server wires the echo engine, the user store and the storage core.
type Server struct {
	cfg   *config.Config
	echo  *echo.Echo
	users *users.Store
	vault *vault.Store
}

// New creates a Server around an opened user store and storage core.
func New(cfg *config.Config, userStore *users.Store, vaultStore *vault.Store) *Server {
	return &Server{
		cfg:   cfg,
		echo:  echo.New(),
		users: userStore,
		vault: vaultStore,
	}
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully.
func (srv *Server) Start() error {
	srv.setupRoutes()

	go func() {
		log.Info().
			Str("addr", srv.cfg.Listen).
			Str("data_dir", srv.cfg.DataDir).
			Msg("Starting vaultd server")

		if err := srv.echo.Start(srv.cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server startup failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return srv.Shutdown()
}

// Shutdown stops accepting connections and drains in-flight requests within
// the configured timeout.
func (srv *Server) Shutdown() error {
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.echo.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	log.Info().Msg("Server gracefully stopped")
	return nil
}

func (srv *Server) setupRoutes() {
	srv.echo.HideBanner = true
	srv.echo.HidePort = true

	srv.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} ${status} ${method} ${uri} (${latency_human})\n",
	}))
	srv.echo.Use(middleware.Recover())

	srv.echo.POST("/login", srv.login)
	srv.echo.GET("/shared/:token", srv.downloadShared)

	authed := srv.echo.Group("", srv.requireUser)
	authed.GET("/me", srv.me)
	authed.POST("/me/password", srv.changePassword)
	authed.GET("/files", srv.listFiles)
	authed.POST("/files/upload", srv.uploadFile)
	authed.POST("/files/upload/chunk", srv.uploadChunk)
	authed.POST("/files/upload/merge", srv.mergeUpload)
	authed.POST("/files/upload/cancel", srv.cancelUpload)
	authed.POST("/files/sweep", srv.sweepTemp)
	authed.GET("/files/download", srv.downloadFile)
	authed.DELETE("/files", srv.deleteFile)
	authed.GET("/files/archive", srv.inspectArchive)
	authed.POST("/files/share", srv.issueShare)
	authed.DELETE("/files/share", srv.revokeShare)
	authed.POST("/folders", srv.createFolder)
	authed.DELETE("/folders", srv.deleteFolder)

	admin := authed.Group("/admin", srv.requireAdmin)
	admin.GET("/users", srv.adminListUsers)
	admin.POST("/users", srv.adminCreateUser)
	admin.PUT("/users/:id/quota", srv.adminSetQuota)
	admin.POST("/users/:id/toggle_admin", srv.adminToggleAdmin)
	admin.DELETE("/users/:id", srv.adminDeleteUser)
}
