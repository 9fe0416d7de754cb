package repositories

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, so every repo can run
// either standalone or inside a caller's transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Hashes and addresses are stored as lowercase 0x hex.

func addrText(a common.Address) string { return strings.ToLower(a.Hex()) }

func addrTextPtr(a *common.Address) *string {
	if a == nil {
		return nil
	}
	s := addrText(*a)
	return &s
}

func hashTextPtr(h *common.Hash) *string {
	if h == nil {
		return nil
	}
	s := h.Hex()
	return &s
}

func parseHashPtr(s *string) *common.Hash {
	if s == nil {
		return nil
	}
	h := common.HexToHash(*s)
	return &h
}

func parseAddrPtr(s *string) *common.Address {
	if s == nil {
		return nil
	}
	a := common.HexToAddress(*s)
	return &a
}
