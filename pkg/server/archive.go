package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"vaultfs/pkg/models"
)

// inspectArchive handles GET /files/archive?path=: lists the inner entry
// names of a zip container without extracting it.
func (srv *Server) inspectArchive(ctx echo.Context) error {
	relPath := ctx.QueryParam("path")
	if relPath == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "path parameter is required",
		})
	}

	user := currentUser(ctx)
	entries, err := srv.vault.InspectArchive(user.ID, relPath)
	if err != nil {
		return storageError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, models.ArchiveResponse{Path: relPath, Entries: entries})
}
