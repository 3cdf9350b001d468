package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"vaultfs/pkg/log"
	"vaultfs/pkg/vault"
)

// storageError translates a storage-core error kind into a transport
// response. Every rejection carries the human-readable reason string the
// core attached.
func storageError(ctx echo.Context, err error) error {
	var (
		quotaErr      vault.QuotaExceededError
		pathErr       vault.InvalidPathError
		missingErr    vault.MissingChunkError
		notFoundErr   vault.NotFoundError
		existsErr     vault.AlreadyExistsError
		integrityErr  vault.IntegrityError
		unreadableErr vault.UnreadableArchiveError
	)

	switch {
	case errors.As(err, &quotaErr):
		return ctx.JSON(http.StatusRequestEntityTooLarge, map[string]string{
			"error": quotaErr.Error(),
		})
	case errors.As(err, &pathErr):
		return ctx.JSON(http.StatusForbidden, map[string]string{
			"error": pathErr.Error(),
		})
	case errors.As(err, &missingErr):
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": missingErr.Error(),
		})
	case errors.As(err, &notFoundErr):
		return ctx.JSON(http.StatusNotFound, map[string]string{
			"error": notFoundErr.Error(),
		})
	case errors.As(err, &existsErr):
		return ctx.JSON(http.StatusConflict, map[string]string{
			"error": existsErr.Error(),
		})
	case errors.As(err, &integrityErr):
		return ctx.JSON(http.StatusConflict, map[string]string{
			"error": integrityErr.Error(),
		})
	case errors.As(err, &unreadableErr):
		return ctx.JSON(http.StatusUnprocessableEntity, map[string]string{
			"error": unreadableErr.Error(),
		})
	default:
		log.Error().Err(err).Msg("Storage operation failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}
