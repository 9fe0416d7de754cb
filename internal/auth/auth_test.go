package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func signPersonal(t *testing.T, message string) (common.Address, []byte) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		t.Fatal(err)
	}
	return crypto.PubkeyToAddress(key.PublicKey), sig
}

func TestRecoverPersonalSign(t *testing.T) {
	msg := LoginMessage(common.HexToAddress("0x01"), "abc")
	addr, sig := signPersonal(t, msg)

	got, err := RecoverPersonalSign(msg, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != addr {
		t.Errorf("recovered %s, want %s", got.Hex(), addr.Hex())
	}

	// wallets usually return v as 27/28
	legacy := append([]byte{}, sig...)
	legacy[64] += 27
	if err := VerifyPersonalSign(addr, msg, legacy); err != nil {
		t.Errorf("27/28 recovery id rejected: %v", err)
	}
}

func TestVerifyPersonalSignRejects(t *testing.T) {
	msg := "hello"
	addr, sig := signPersonal(t, msg)

	tests := []struct {
		name string
		addr common.Address
		msg  string
		sig  []byte
	}{
		{"other message", addr, "hello!", sig},
		{"other address", common.HexToAddress("0x02"), msg, sig},
		{"short signature", addr, msg, sig[:64]},
		{"bad recovery id", addr, msg, append(append([]byte{}, sig[:64]...), 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifyPersonalSign(tt.addr, tt.msg, tt.sig); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestGenerateAndParseJWT(t *testing.T) {
	addr := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	token, err := GenerateJWT("secret", addr, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseJWT("secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Addr() != addr {
		t.Errorf("address = %s", claims.Address)
	}

	if _, err := ParseJWT("other-secret", token); err == nil {
		t.Error("token accepted with the wrong secret")
	}
}

func TestParseJWTExpired(t *testing.T) {
	token, err := GenerateJWT("secret", common.HexToAddress("0x01"), -time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	// non-positive expiration falls back to 24h
	if _, err := ParseJWT("secret", token); err != nil {
		t.Fatalf("default expiration should apply: %v", err)
	}
}

func TestMemoryChallengeStore(t *testing.T) {
	ctx := context.Background()
	addr := common.HexToAddress("0x01")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryChallengeStore()
	s.now = func() time.Time { return now }

	if _, err := s.Take(ctx, addr); !errors.Is(err, ErrNoChallenge) {
		t.Fatalf("expected ErrNoChallenge, got %v", err)
	}

	_ = s.Put(ctx, addr, "n1", time.Minute)
	got, err := s.Take(ctx, addr)
	if err != nil || got != "n1" {
		t.Fatalf("Take = %q, %v", got, err)
	}
	if _, err := s.Take(ctx, addr); !errors.Is(err, ErrNoChallenge) {
		t.Error("nonce must be single use")
	}

	_ = s.Put(ctx, addr, "n2", time.Minute)
	now = now.Add(time.Minute)
	if _, err := s.Take(ctx, addr); !errors.Is(err, ErrNoChallenge) {
		t.Error("expired nonce accepted")
	}
}

func TestNewNonce(t *testing.T) {
	a, err := NewNonce()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewNonce()
	if len(a) != 32 || a == b || strings.Trim(a, "0123456789abcdef") != "" {
		t.Errorf("bad nonces %q %q", a, b)
	}
}
