package handlers

import (
	"errors"

	"github.com/coinflip-escrow/backend/internal/auth"
	"github.com/coinflip-escrow/backend/internal/commit"
	"github.com/coinflip-escrow/backend/internal/http/dto"
	"github.com/coinflip-escrow/backend/internal/services"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *services.AuthService
	log         *zap.Logger
}

func NewAuthHandler(authService *services.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

func (h *AuthHandler) Challenge(c *fiber.Ctx) error {
	var req dto.ChallengeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	addr, err := commit.ParseAddress(req.Address)
	if err != nil {
		return badRequest(c, "invalid address")
	}

	msg, expiresAt, err := h.authService.Challenge(c.Context(), addr)
	if err != nil {
		h.log.Error("failed to issue challenge", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(dto.ChallengeResponse{Message: msg, ExpiresAt: expiresAt})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	addr, err := commit.ParseAddress(req.Address)
	if err != nil {
		return badRequest(c, "invalid address")
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		return badRequest(c, "signature must be 0x-prefixed hex")
	}

	token, err := h.authService.Login(c.Context(), addr, sig)
	switch {
	case errors.Is(err, auth.ErrNoChallenge), errors.Is(err, services.ErrInvalidSignature):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: err.Error()})
	case err != nil:
		h.log.Error("login failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.AuthResponse{Token: token, Address: addr.Hex()})
}
