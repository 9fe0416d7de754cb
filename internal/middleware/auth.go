package middleware

import (
	"errors"
	"strings"

	"github.com/coinflip-escrow/backend/internal/auth"
	"github.com/coinflip-escrow/backend/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CtxAddress holds the wallet address proven at login.
const CtxAddress = "address"

var (
	errNoAuthHeader  = errors.New("missing authorization header")
	errAuthScheme    = errors.New("invalid authorization format")
	errZeroAddress   = errors.New("token carries no address")
	errInvalidBearer = errors.New("invalid or expired token")
)

// bearerToken extracts the token from "Bearer <token>". The scheme is
// matched case-insensitively.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errNoAuthHeader
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errAuthScheme
	}
	return token, nil
}

// AuthMiddleware admits requests carrying a JWT issued by /auth/verify and
// stores the caller's address for GetAddress.
func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr, err := bearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": errInvalidBearer.Error()})
		}
		addr := claims.Addr()
		if addr == (common.Address{}) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": errZeroAddress.Error()})
		}

		c.Locals(CtxAddress, addr)
		return c.Next()
	}
}

// GetAddress returns the authenticated caller set by AuthMiddleware.
func GetAddress(c *fiber.Ctx) common.Address {
	addr, _ := c.Locals(CtxAddress).(common.Address)
	return addr
}
