package middleware

import (
	"errors"
	"net/http"

	"stockledger/internal/common"
	"stockledger/internal/ledger"
	"stockledger/internal/models"
	"stockledger/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// JWTConfig validates HS256 bearer tokens; the token is left under "user"
func JWTConfig(secret string) echojwt.Config {
	return echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: jwt.SigningMethodHS256.Alg(),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(jwt.RegisteredClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		},
	}
}

// ActorMiddleware resolves the token subject to an active user and stores
// the actor in the request context. Pending, inactive and deleted users are
// rejected.
func ActorMiddleware(users repositories.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
			}
			claims, ok := token.Claims.(*jwt.RegisteredClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid claims")
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid user_id format")
			}

			ctx := c.Request().Context()
			user, plantCluster, err := users.GetWithPlantCluster(ctx, userID)
			if errors.Is(err, ledger.ErrEntityNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
			} else if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Error loading user")
			}
			if user.IsDeleted || user.Status != models.UserStatusActive {
				return echo.NewHTTPError(http.StatusUnauthorized, "User is not active")
			}

			actor := models.ActorFromUser(user, plantCluster)
			c.SetRequest(c.Request().WithContext(common.WithActor(ctx, actor)))
			return next(c)
		}
	}
}
