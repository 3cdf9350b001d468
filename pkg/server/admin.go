package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"

	"vaultfs/pkg/log"
	"vaultfs/pkg/users"
)

type createUserRequest struct {
	Username   string `json:"username" form:"username"`
	Password   string `json:"password" form:"password"`
	IsAdmin    bool   `json:"is_admin" form:"is_admin"`
	QuotaBytes int64  `json:"quota_bytes" form:"quota_bytes"`
}

// adminCreateUser handles POST /admin/users.
func (srv *Server) adminCreateUser(ctx echo.Context) error {
	var req createUserRequest
	if err := ctx.Bind(&req); err != nil || req.Username == "" || req.Password == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "username and password are required",
		})
	}
	if req.QuotaBytes <= 0 {
		req.QuotaBytes = srv.cfg.DefaultQuotaBytes
	}

	user, err := srv.users.Create(req.Username, req.Password, req.IsAdmin, req.QuotaBytes)
	if errors.Is(err, users.ErrUserExists) {
		return ctx.JSON(http.StatusConflict, map[string]string{
			"error": "username is already taken",
		})
	}
	if errors.Is(err, users.ErrInvalidUsername) {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid username",
		})
	}
	if err != nil {
		return storageError(ctx, err)
	}

	log.Info().Str("username", user.Username).Int64("quota", user.QuotaBytes).Msg("User created")
	return ctx.JSON(http.StatusCreated, user)
}

// adminListUsers handles GET /admin/users.
func (srv *Server) adminListUsers(ctx echo.Context) error {
	list, err := srv.users.List()
	if err != nil {
		return storageError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, list)
}

type quotaRequest struct {
	QuotaBytes int64 `json:"quota_bytes" form:"quota_bytes"`
}

// adminSetQuota handles PUT /admin/users/:id/quota.
func (srv *Server) adminSetQuota(ctx echo.Context) error {
	userID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid user id",
		})
	}

	var req quotaRequest
	if err := ctx.Bind(&req); err != nil || req.QuotaBytes <= 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "quota_bytes must be positive",
		})
	}

	if err := srv.users.SetQuota(userID, req.QuotaBytes); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{
				"error": "user not found",
			})
		}
		return storageError(ctx, err)
	}

	log.Info().Int64("user_id", userID).Int64("quota", req.QuotaBytes).Msg("Quota updated")
	return ctx.JSON(http.StatusOK, map[string]string{"status": "updated"})
}

// adminToggleAdmin handles POST /admin/users/:id/toggle_admin. Admins cannot
// change their own admin status.
func (srv *Server) adminToggleAdmin(ctx echo.Context) error {
	userID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid user id",
		})
	}

	if userID == currentUser(ctx).ID {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "cannot change your own admin status",
		})
	}

	target, err := srv.users.GetByID(userID)
	if errors.Is(err, users.ErrUserNotFound) {
		return ctx.JSON(http.StatusNotFound, map[string]string{
			"error": "user not found",
		})
	}
	if err != nil {
		return storageError(ctx, err)
	}

	if err := srv.users.SetAdmin(userID, !target.IsAdmin); err != nil {
		return storageError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]bool{"is_admin": !target.IsAdmin})
}

// adminDeleteUser handles DELETE /admin/users/:id: removes the account row
// and the user's on-disk subtree.
func (srv *Server) adminDeleteUser(ctx echo.Context) error {
	userID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid user id",
		})
	}
	if userID == currentUser(ctx).ID {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "cannot delete your own account",
		})
	}

	srv.users.Lock(userID)
	defer srv.users.Unlock(userID)

	if err := srv.users.Delete(userID); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{
				"error": "user not found",
			})
		}
		return storageError(ctx, err)
	}

	userDir := filepath.Join(srv.cfg.DataDir, strconv.FormatInt(userID, 10))
	if err := os.RemoveAll(userDir); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to remove user directory")
	}
	tempDir := filepath.Join(srv.cfg.TempDir, strconv.FormatInt(userID, 10))
	if err := os.RemoveAll(tempDir); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to remove user temp directory")
	}

	log.Info().Int64("user_id", userID).Msg("User deleted")
	return ctx.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}
