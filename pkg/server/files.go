package server

import (
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"

	"vaultfs/pkg/models"
)

// listFiles handles GET /files?path=: the immediate children of one
// subfolder, joined with digests and share tokens.
func (srv *Server) listFiles(ctx echo.Context) error {
	user := currentUser(ctx)
	subpath := ctx.QueryParam("path")

	entries, err := srv.vault.List(user.ID, subpath)
	if err != nil {
		return storageError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, models.ListResponse{
		Path:    subpath,
		Entries: entries,
	})
}

// me handles GET /me: the caller's quota consumption.
func (srv *Server) me(ctx echo.Context) error {
	user := currentUser(ctx)
	return ctx.JSON(http.StatusOK, models.QuotaResponse{
		QuotaBytes:     user.QuotaBytes,
		UsedBytes:      user.UsedBytes,
		RemainingBytes: user.RemainingQuota(),
		QuotaHuman:     humanize.IBytes(uint64(max(user.QuotaBytes, 0))),
		UsedHuman:      humanize.IBytes(uint64(max(user.UsedBytes, 0))),
	})
}

// deleteFile handles DELETE /files?path=. The used-bytes counter is
// recomputed from disk afterward rather than decremented, so drift from any
// earlier partial failure heals here.
func (srv *Server) deleteFile(ctx echo.Context) error {
	relPath := ctx.QueryParam("path")
	if relPath == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "path parameter is required",
		})
	}

	user := currentUser(ctx)
	srv.users.Lock(user.ID)
	defer srv.users.Unlock(user.ID)

	if err := srv.vault.DeleteFile(user.ID, relPath); err != nil {
		return storageError(ctx, err)
	}
	if err := srv.recomputeUsage(user.ID); err != nil {
		return storageError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// recomputeUsage refreshes the persisted used-bytes counter from a disk
// walk. Callers hold the per-user lock.
func (srv *Server) recomputeUsage(userID int64) error {
	used, err := srv.vault.RecomputeUsage(userID)
	if err != nil {
		return err
	}
	return srv.users.SetUsedBytes(userID, used)
}
