package handlers

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/coinflip-escrow/backend/internal/http/dto"
	"github.com/coinflip-escrow/backend/internal/ledger"
	"github.com/coinflip-escrow/backend/internal/middleware"
	"github.com/coinflip-escrow/backend/internal/money"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var kindStatus = map[ledger.Kind]int{
	ledger.KindInvalidStake:      fiber.StatusBadRequest,
	ledger.KindStakeMismatch:     fiber.StatusBadRequest,
	ledger.KindInvalidReveal:     fiber.StatusBadRequest,
	ledger.KindNotFound:          fiber.StatusNotFound,
	ledger.KindAlreadyAccepted:   fiber.StatusConflict,
	ledger.KindNotAccepted:       fiber.StatusConflict,
	ledger.KindRevealPending:     fiber.StatusConflict,
	ledger.KindCommitmentInUse:   fiber.StatusConflict,
	ledger.KindInsufficientFunds: fiber.StatusPaymentRequired,
}

// ledgerError renders a rejected transition with its kind, or a 500 for
// anything else.
func ledgerError(c *fiber.Ctx, log *zap.Logger, err error) error {
	reqID := middleware.GetRequestID(c)
	kind := ledger.KindOf(err)
	if status, ok := kindStatus[kind]; ok {
		return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error(), Code: string(kind), RequestID: reqID})
	}
	log.Error("ledger operation failed", zap.String("request_id", reqID), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error", RequestID: reqID})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg})
}

// parseStake reads stake_nano, falling back to stake_ton.
func parseStake(nano, ton string) (*big.Int, error) {
	if strings.TrimSpace(nano) != "" {
		return money.ParseNano(nano)
	}
	if strings.TrimSpace(ton) != "" {
		return money.ParseTON(ton)
	}
	return nil, fmt.Errorf("stake_nano or stake_ton is required")
}
