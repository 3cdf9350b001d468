package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"vaultfs/pkg/log"
	"vaultfs/pkg/models"
	"vaultfs/pkg/users"
)

// userContextKey is where requireUser stores the authenticated account.
const userContextKey = "vault_user"

// Claims carries the account id inside a signed login token.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"uid"`
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// login exchanges credentials for a signed token.
func (srv *Server) login(ctx echo.Context) error {
	var req loginRequest
	if err := ctx.Bind(&req); err != nil || req.Username == "" || req.Password == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "username and password are required",
		})
	}

	user, err := srv.users.Authenticate(req.Username, req.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		return ctx.JSON(http.StatusUnauthorized, map[string]string{
			"error": "invalid credentials",
		})
	}
	if err != nil {
		log.Error().Err(err).Msg("Authentication lookup failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}

	token, err := srv.generateToken(user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Token generation failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}

	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("Login")
	return ctx.JSON(http.StatusOK, models.TokenResponse{Token: token})
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password" form:"current_password"`
	NewPassword     string `json:"new_password" form:"new_password"`
}

// passwordMinLength is the minimum accepted password length, matching the
// bootstrap-account rule in the configuration.
const passwordMinLength = 8

// changePassword handles POST /me/password: the caller changes their own
// password after proving knowledge of the current one.
func (srv *Server) changePassword(ctx echo.Context) error {
	var req passwordChangeRequest
	if err := ctx.Bind(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "current_password and new_password are required",
		})
	}
	if len(req.NewPassword) < passwordMinLength {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "new password must be at least 8 characters",
		})
	}

	user := currentUser(ctx)
	if _, err := srv.users.Authenticate(user.Username, req.CurrentPassword); err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			return ctx.JSON(http.StatusForbidden, map[string]string{
				"error": "incorrect current password",
			})
		}
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Password verification failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}

	if err := srv.users.SetPassword(user.ID, req.NewPassword); err != nil {
		return storageError(ctx, err)
	}

	log.Info().Int64("user_id", user.ID).Msg("Password changed")
	return ctx.JSON(http.StatusOK, map[string]string{"status": "updated"})
}

func (srv *Server) generateToken(userID int64) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(srv.cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(srv.cfg.Secret))
}

func (srv *Server) parseToken(tokenString string) (int64, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(srv.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, errors.New("invalid token")
	}
	return claims.UserID, nil
}

// requireUser authenticates the Bearer token and loads a fresh account
// record (current quota and counters) into the request context.
func (srv *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		header := ctx.Request().Header.Get(echo.HeaderAuthorization)
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			return ctx.JSON(http.StatusUnauthorized, map[string]string{
				"error": "missing bearer token",
			})
		}

		userID, err := srv.parseToken(tokenString)
		if err != nil {
			return ctx.JSON(http.StatusUnauthorized, map[string]string{
				"error": "invalid or expired token",
			})
		}

		user, err := srv.users.GetByID(userID)
		if errors.Is(err, users.ErrUserNotFound) {
			return ctx.JSON(http.StatusUnauthorized, map[string]string{
				"error": "account no longer exists",
			})
		}
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("User lookup failed")
			return ctx.JSON(http.StatusInternalServerError, map[string]string{
				"error": "internal server error",
			})
		}

		ctx.Set(userContextKey, user)
		return next(ctx)
	}
}

// requireAdmin gates the admin API.
func (srv *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if !currentUser(ctx).IsAdmin {
			return ctx.JSON(http.StatusForbidden, map[string]string{
				"error": "admin privileges required",
			})
		}
		return next(ctx)
	}
}

func currentUser(ctx echo.Context) *models.User {
	user, _ := ctx.Get(userContextKey).(*models.User)
	return user
}
