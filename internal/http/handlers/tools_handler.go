package handlers

import (
	"crypto/rand"

	"github.com/coinflip-escrow/backend/internal/commit"
	"github.com/coinflip-escrow/backend/internal/http/dto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

// Commitment hashes a secret the same way the ledger verifies reveals. With
// no secret it draws a random one. Secrets sent here are seen by the server,
// so clients that do not trust it should hash locally.
func Commitment(c *fiber.Ctx) error {
	var req dto.CommitmentRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request")
		}
	}

	var secret common.Hash
	if req.Secret == "" {
		if _, err := rand.Read(secret[:]); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
		}
	} else {
		var err error
		if secret, err = commit.ParseHash(req.Secret); err != nil {
			return badRequest(c, "invalid secret")
		}
	}

	return c.JSON(dto.CommitmentResponse{Secret: secret.Hex(), Commitment: commit.Commit(secret).Hex()})
}
