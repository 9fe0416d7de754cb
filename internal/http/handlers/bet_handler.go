package handlers

import (
	"strconv"
	"time"

	"github.com/coinflip-escrow/backend/internal/commit"
	"github.com/coinflip-escrow/backend/internal/http/dto"
	"github.com/coinflip-escrow/backend/internal/middleware"
	"github.com/coinflip-escrow/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type BetHandler struct {
	betService   *services.BetService
	revealWindow time.Duration
	log          *zap.Logger
}

func NewBetHandler(betService *services.BetService, revealWindow time.Duration, log *zap.Logger) *BetHandler {
	return &BetHandler{betService: betService, revealWindow: revealWindow, log: log}
}

func (h *BetHandler) ProposeBet(c *fiber.Ctx) error {
	var req dto.ProposeBetRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	commitment, err := commit.ParseHash(req.Commitment)
	if err != nil {
		return badRequest(c, "invalid commitment: "+err.Error())
	}
	stake, err := parseStake(req.StakeNano, req.StakeTON)
	if err != nil {
		return badRequest(c, err.Error())
	}

	bet, err := h.betService.Propose(c.Context(), middleware.GetAddress(c), commitment, stake)
	if err != nil {
		return ledgerError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.NewBetResponse(bet, h.revealWindow)})
}

func (h *BetHandler) AcceptBet(c *fiber.Ctx) error {
	commitmentA, err := commit.ParseHash(c.Params("commitment"))
	if err != nil {
		return badRequest(c, "invalid commitment")
	}
	var req dto.AcceptBetRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	commitmentB, err := commit.ParseHash(req.CommitmentB)
	if err != nil {
		return badRequest(c, "invalid commitment_b: "+err.Error())
	}
	stake, err := parseStake(req.StakeNano, req.StakeTON)
	if err != nil {
		return badRequest(c, err.Error())
	}

	bet, err := h.betService.Accept(c.Context(), middleware.GetAddress(c), commitmentA, commitmentB, stake)
	if err != nil {
		return ledgerError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewBetResponse(bet, h.revealWindow)})
}

// Reveal takes the commitment in the body because side B may address the bet
// by either commitment.
func (h *BetHandler) Reveal(c *fiber.Ctx) error {
	var req dto.RevealRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	commitment, err := commit.ParseHash(req.Commitment)
	if err != nil {
		return badRequest(c, "invalid commitment")
	}
	secret, err := commit.ParseHash(req.Secret)
	if err != nil {
		return badRequest(c, "invalid secret")
	}

	bet, err := h.betService.Reveal(c.Context(), middleware.GetAddress(c), commitment, secret)
	if err != nil {
		return ledgerError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewBetResponse(bet, h.revealWindow)})
}

func (h *BetHandler) SettleBet(c *fiber.Ctx) error {
	commitmentA, err := commit.ParseHash(c.Params("commitment"))
	if err != nil {
		return badRequest(c, "invalid commitment")
	}
	var req dto.SettleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	commitmentB, err := commit.ParseHash(req.CommitmentB)
	if err != nil {
		return badRequest(c, "invalid commitment_b")
	}

	bet, err := h.betService.Settle(c.Context(), middleware.GetAddress(c), commitmentA, commitmentB)
	if err != nil {
		return ledgerError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewBetResponse(bet, h.revealWindow)})
}

func (h *BetHandler) GetBet(c *fiber.Ctx) error {
	commitmentA, err := commit.ParseHash(c.Params("commitment"))
	if err != nil {
		return badRequest(c, "invalid commitment")
	}
	bet, err := h.betService.Get(c.Context(), commitmentA)
	if err != nil {
		return ledgerError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewBetResponse(bet, h.revealWindow)})
}

func (h *BetHandler) GetBetEvents(c *fiber.Ctx) error {
	commitmentA, err := commit.ParseHash(c.Params("commitment"))
	if err != nil {
		return badRequest(c, "invalid commitment")
	}

	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	logs, err := h.betService.History(c.Context(), commitmentA, limit, offset)
	if err != nil {
		h.log.Error("get bet events failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: logs})
}
