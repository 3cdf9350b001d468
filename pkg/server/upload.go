package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"vaultfs/pkg/log"
)

// uploadFile handles POST /files/upload: a direct multipart upload into the
// optional ?folder= target. The per-user lock brackets quota check, write
// and counter update so concurrent uploads for the same user cannot race
// past the ceiling.
func (srv *Server) uploadFile(ctx echo.Context) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "file parameter is required",
		})
	}
	targetFolder := ctx.FormValue("folder")

	src, err := fileHeader.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded file")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to open uploaded file",
		})
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close uploaded file")
		}
	}()

	sessionUser := currentUser(ctx)
	srv.users.Lock(sessionUser.ID)
	defer srv.users.Unlock(sessionUser.ID)

	// Reload inside the lock so the quota check sees the current counter.
	user, err := srv.users.GetByID(sessionUser.ID)
	if err != nil {
		return storageError(ctx, err)
	}

	result, err := srv.vault.SaveFile(user, src, fileHeader.Size, fileHeader.Filename, targetFolder)
	if err != nil {
		return storageError(ctx, err)
	}

	if err := srv.users.AddUsedBytes(user.ID, result.Size); err != nil {
		return storageError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, result)
}
