package server

import (
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"vaultfs/pkg/log"
	"vaultfs/pkg/models"
)

// integrityHeader reports the digest-comparison outcome on downloads:
// verified, unverified (no digest on record) or mismatch (request aborted).
const integrityHeader = "X-Integrity-Status"

// downloadFile handles GET /files/download?path=. A digest mismatch aborts
// the download; a file with no recorded digest is served but flagged
// unverified in the response header.
func (srv *Server) downloadFile(ctx echo.Context) error {
	relPath := ctx.QueryParam("path")
	if relPath == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "path parameter is required",
		})
	}

	user := currentUser(ctx)
	return srv.serveFile(ctx, user.ID, relPath)
}

// downloadShared handles GET /shared/:token: unauthenticated download of a
// single file through its share token.
func (srv *Server) downloadShared(ctx echo.Context) error {
	token := ctx.Param("token")

	userID, relPath, err := srv.vault.ResolveShareToken(token)
	if err != nil {
		return storageError(ctx, err)
	}

	log.Info().Int64("user_id", userID).Str("path", relPath).Msg("Shared download")
	return srv.serveFile(ctx, userID, relPath)
}

func (srv *Server) serveFile(ctx echo.Context, userID int64, relPath string) error {
	absPath, status, err := srv.vault.Download(userID, relPath)
	if err != nil {
		return storageError(ctx, err)
	}

	if status == models.IntegrityUnverified {
		log.Warn().Int64("user_id", userID).Str("path", relPath).Msg("Serving file without stored digest")
	}
	ctx.Response().Header().Set(integrityHeader, string(status))
	return ctx.Attachment(absPath, filepath.Base(absPath))
}
