// Package commit holds the hashing and outcome rules of the coin flip.
//
// A commitment is keccak256 over the 32-byte secret, the same value
// ethers.utils.keccak256 produces for a bytes32, so commitments made with
// Solidity tooling verify here unchanged.
package commit

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Commit returns keccak256(secret).
func Commit(secret common.Hash) common.Hash {
	return crypto.Keccak256Hash(secret.Bytes())
}

// Verify reports whether secret opens commitment.
func Verify(commitment, secret common.Hash) bool {
	return Commit(secret) == commitment
}

// SideAWins is the coin flip: the lowest bit of secretA XOR secretB.
// Even favours side A, odd favours side B. Neither side can steer the bit
// without knowing the other's secret, which is bound by its commitment.
func SideAWins(secretA, secretB common.Hash) bool {
	return (secretA[common.HashLength-1]^secretB[common.HashLength-1])&1 == 0
}

// ParseHash decodes a strict 0x-prefixed 32-byte hex string.
func ParseHash(s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("expected %d bytes, got %d", common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

// ParseAddress decodes a 0x-prefixed 20-byte address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
