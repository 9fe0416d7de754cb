package auth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// LoginMessage is the text a wallet signs with personal_sign to log in.
func LoginMessage(addr common.Address, nonce string) string {
	return fmt.Sprintf("Sign in to coinflip-escrow\n\nAddress: %s\nNonce: %s", addr.Hex(), nonce)
}

// RecoverPersonalSign returns the signer of an EIP-191 personal message.
// The recovery byte may be 0/1 or 27/28.
func RecoverPersonalSign(message string, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	s := make([]byte, crypto.SignatureLength)
	copy(s, sig)
	if s[crypto.RecoveryIDOffset] >= 27 {
		s[crypto.RecoveryIDOffset] -= 27
	}
	if s[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id %d", sig[crypto.RecoveryIDOffset])
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), s)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyPersonalSign checks that addr signed message.
func VerifyPersonalSign(addr common.Address, message string, sig []byte) error {
	signer, err := RecoverPersonalSign(message, sig)
	if err != nil {
		return err
	}
	if signer != addr {
		return fmt.Errorf("signature is from %s, not %s", signer.Hex(), addr.Hex())
	}
	return nil
}
