package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// createFolder handles POST /folders with form fields path (parent, may be
// empty for the root) and name.
func (srv *Server) createFolder(ctx echo.Context) error {
	parent := ctx.FormValue("path")
	name := ctx.FormValue("name")
	if name == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "name parameter is required",
		})
	}

	user := currentUser(ctx)
	rel, err := srv.vault.CreateFolder(user.ID, parent, name)
	if err != nil {
		return storageError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]string{"path": rel})
}

// deleteFolder handles DELETE /folders?path=: recursive removal with a
// metadata cascade and a full usage recompute.
func (srv *Server) deleteFolder(ctx echo.Context) error {
	relPath := ctx.QueryParam("path")
	if relPath == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "path parameter is required",
		})
	}

	user := currentUser(ctx)
	srv.users.Lock(user.ID)
	defer srv.users.Unlock(user.ID)

	if err := srv.vault.DeleteFolder(user.ID, relPath); err != nil {
		return storageError(ctx, err)
	}
	if err := srv.recomputeUsage(user.ID); err != nil {
		return storageError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}
