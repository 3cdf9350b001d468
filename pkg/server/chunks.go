package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"vaultfs/pkg/log"
)

// uploadChunk handles POST /files/upload/chunk: one chunk of a pending
// upload, identified by upload_id and zero-based chunk_index form fields.
func (srv *Server) uploadChunk(ctx echo.Context) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "file parameter is required",
		})
	}

	uploadID := ctx.FormValue("upload_id")
	indexValue := ctx.FormValue("chunk_index")
	if uploadID == "" || indexValue == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "upload_id and chunk_index are required",
		})
	}
	index, err := strconv.Atoi(indexValue)
	if err != nil || index < 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "chunk_index must be a non-negative integer",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open chunk")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to open chunk",
		})
	}
	defer func() { _ = src.Close() }()

	sessionUser := currentUser(ctx)
	srv.users.Lock(sessionUser.ID)
	defer srv.users.Unlock(sessionUser.ID)

	user, err := srv.users.GetByID(sessionUser.ID)
	if err != nil {
		return storageError(ctx, err)
	}

	if err := srv.vault.SaveChunk(user, uploadID, index, src, fileHeader.Size); err != nil {
		return storageError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// mergeUpload handles POST /files/upload/merge: assembles a completed chunk
// set into a committed file and charges the merged size to the quota
// counter.
func (srv *Server) mergeUpload(ctx echo.Context) error {
	uploadID := ctx.FormValue("upload_id")
	filename := ctx.FormValue("filename")
	totalValue := ctx.FormValue("total_chunks")
	targetFolder := ctx.FormValue("folder")

	if uploadID == "" || filename == "" || totalValue == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "upload_id, filename and total_chunks are required",
		})
	}
	totalChunks, err := strconv.Atoi(totalValue)
	if err != nil || totalChunks <= 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "total_chunks must be a positive integer",
		})
	}

	sessionUser := currentUser(ctx)
	srv.users.Lock(sessionUser.ID)
	defer srv.users.Unlock(sessionUser.ID)

	user, err := srv.users.GetByID(sessionUser.ID)
	if err != nil {
		return storageError(ctx, err)
	}

	result, err := srv.vault.MergeChunks(user, uploadID, filename, totalChunks, targetFolder)
	if err != nil {
		return storageError(ctx, err)
	}

	if err := srv.users.AddUsedBytes(user.ID, result.Size); err != nil {
		return storageError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, result)
}

// cancelUpload handles POST /files/upload/cancel: discards a pending chunk
// set. Cancelling an unknown upload reports 404.
func (srv *Server) cancelUpload(ctx echo.Context) error {
	uploadID := ctx.FormValue("upload_id")
	if uploadID == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "upload_id is required",
		})
	}

	user := currentUser(ctx)
	srv.users.Lock(user.ID)
	defer srv.users.Unlock(user.ID)

	if err := srv.vault.CancelUpload(user.ID, uploadID); err != nil {
		return storageError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "cancelled"})
}

// sweepTemp handles POST /files/sweep: explicit orphan recovery, intended to
// be called once at session start.
func (srv *Server) sweepTemp(ctx echo.Context) error {
	user := currentUser(ctx)
	srv.users.Lock(user.ID)
	defer srv.users.Unlock(user.ID)

	removed, err := srv.vault.SweepTemp(user.ID)
	if err != nil {
		return storageError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]int{"removed": removed})
}
