package handlers

import (
	"math/big"

	"github.com/coinflip-escrow/backend/internal/http/dto"
	"github.com/coinflip-escrow/backend/internal/middleware"
	"github.com/coinflip-escrow/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AccountHandler struct {
	betService   *services.BetService
	faucetAmount *big.Int
	log          *zap.Logger
}

func NewAccountHandler(betService *services.BetService, faucetAmount *big.Int, log *zap.Logger) *AccountHandler {
	return &AccountHandler{betService: betService, faucetAmount: faucetAmount, log: log}
}

func (h *AccountHandler) GetBalance(c *fiber.Ctx) error {
	addr := middleware.GetAddress(c)
	bal, err := h.betService.Balance(c.Context(), addr)
	if err != nil {
		h.log.Error("balance lookup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewBalanceResponse(addr, bal)})
}

// Faucet credits a fixed amount to the caller. Only routed when enabled.
func (h *AccountHandler) Faucet(c *fiber.Ctx) error {
	addr := middleware.GetAddress(c)
	if err := h.betService.Faucet(c.Context(), addr, h.faucetAmount); err != nil {
		h.log.Error("faucet failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return h.GetBalance(c)
}
