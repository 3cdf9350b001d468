package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"vaultfs/pkg/models"
)

// issueShare handles POST /files/share?path=: issues (or replaces) the
// file's share token.
func (srv *Server) issueShare(ctx echo.Context) error {
	relPath := ctx.QueryParam("path")
	if relPath == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "path parameter is required",
		})
	}

	user := currentUser(ctx)
	srv.users.Lock(user.ID)
	defer srv.users.Unlock(user.ID)

	token, err := srv.vault.IssueShareToken(user.ID, relPath)
	if err != nil {
		return storageError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, models.ShareResponse{Path: relPath, Token: token})
}

// revokeShare handles DELETE /files/share?path=. Revoking a file that has no
// token reports 404.
func (srv *Server) revokeShare(ctx echo.Context) error {
	relPath := ctx.QueryParam("path")
	if relPath == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "path parameter is required",
		})
	}

	user := currentUser(ctx)
	srv.users.Lock(user.ID)
	defer srv.users.Unlock(user.ID)

	revoked, err := srv.vault.RevokeShareToken(user.ID, relPath)
	if err != nil {
		return storageError(ctx, err)
	}
	if !revoked {
		return ctx.JSON(http.StatusNotFound, map[string]string{
			"error": "no share token for this path",
		})
	}

	return ctx.JSON(http.StatusOK, map[string]string{"status": "revoked"})
}
