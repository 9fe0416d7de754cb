package ton

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/coinflip-escrow/backend/internal/commit"
	"github.com/coinflip-escrow/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/xssnick/tonutils-go/tlb"
)

// SourceTON marks deposits credited from on-chain transfers.
const SourceTON = "ton"

var (
	ErrNoMemo      = errors.New("transfer has no text comment")
	ErrInvalidMemo = errors.New("comment is not a deposit address")
	ErrNotDeposit  = errors.New("not an incoming transfer")
)

// ExtractComment parses a text comment from an InternalMessage body.
// TON text comments have opcode 0x00000000 followed by UTF-8 text.
func ExtractComment(inMsg *tlb.InternalMessage) string {
	if inMsg == nil || inMsg.Body == nil {
		return ""
	}

	slice := inMsg.Body.BeginParse()
	if slice.BitsLeft() < 32 {
		return ""
	}

	op, err := slice.LoadUInt(32)
	if err != nil || op != 0 {
		return ""
	}

	text, err := slice.LoadStringSnake()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// ParseDepositMemo reads the account to credit from a transfer comment.
// The comment is the 0x address, optionally prefixed with "deposit:".
func ParseDepositMemo(comment string) (common.Address, error) {
	memo := strings.TrimSpace(comment)
	if memo == "" {
		return common.Address{}, ErrNoMemo
	}
	if rest, ok := strings.CutPrefix(strings.ToLower(memo), "deposit:"); ok {
		memo = strings.TrimSpace(rest)
	}
	addr, err := commit.ParseAddress(memo)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidMemo, err)
	}
	return addr, nil
}

// ParseDeposit turns an incoming transfer into a deposit record. Bounced and
// empty transfers are rejected with ErrNotDeposit.
func ParseDeposit(lt uint64, txHash []byte, inMsg *tlb.InternalMessage) (*models.Deposit, error) {
	if inMsg == nil || inMsg.Bounced || inMsg.Amount.Nano().Sign() <= 0 {
		return nil, ErrNotDeposit
	}

	addr, err := ParseDepositMemo(ExtractComment(inMsg))
	if err != nil {
		return nil, err
	}

	return &models.Deposit{
		TxRef:   TxRef(lt, txHash),
		Address: addr,
		Amount:  inMsg.Amount.Nano(),
		Source:  SourceTON,
	}, nil
}

// TxRef is the idempotency key of an on-chain transfer.
func TxRef(lt uint64, txHash []byte) string {
	return fmt.Sprintf("ton:%d:%s", lt, hex.EncodeToString(txHash))
}
