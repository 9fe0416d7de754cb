package services

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/coinflip-escrow/backend/internal/auth"
	"github.com/coinflip-escrow/backend/internal/commit"
	"github.com/coinflip-escrow/backend/internal/config"
	"github.com/coinflip-escrow/backend/internal/events"
	"github.com/coinflip-escrow/backend/internal/ledger"
	"github.com/coinflip-escrow/backend/internal/models"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

var (
	alice = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	bob   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	stake = big.NewInt(1_000_000_000)
)

func newTestBetService(t *testing.T) (*BetService, *events.LocalBus, *MemoryAudit, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := ledger.New(ledger.NewMemoryBackend(), ledger.WithClock(clock), ledger.WithRevealWindow(time.Hour))
	bus := events.NewLocalBus()
	audit := NewMemoryAudit()
	svc := NewBetService(l, audit, bus, zap.NewNop())
	for _, a := range []common.Address{alice, bob} {
		if err := l.Deposit(context.Background(), a, new(big.Int).Mul(stake, big.NewInt(5))); err != nil {
			t.Fatal(err)
		}
	}
	return svc, bus, audit, clock
}

func openBet(t *testing.T, svc *BetService, secretA, secretB common.Hash) (common.Hash, common.Hash) {
	t.Helper()
	ctx := context.Background()
	ca, cb := commit.Commit(secretA), commit.Commit(secretB)
	if _, err := svc.Propose(ctx, alice, ca, stake); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := svc.Accept(ctx, bob, ca, cb, stake); err != nil {
		t.Fatalf("accept: %v", err)
	}
	return ca, cb
}

func TestBetServicePublishesAndAudits(t *testing.T) {
	svc, bus, audit, _ := newTestBetService(t)
	ctx := context.Background()
	secretA, secretB := common.HexToHash("0x0a"), common.HexToHash("0x0b")
	ca, cb := openBet(t, svc, secretA, secretB)

	if _, err := svc.Reveal(ctx, alice, ca, secretA); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Reveal(ctx, bob, cb, secretB); err != nil {
		t.Fatal(err)
	}
	bet, err := svc.Settle(ctx, alice, ca, cb)
	if err != nil {
		t.Fatal(err)
	}
	// 0x0a ^ 0x0b = 1, odd
	if *bet.Winner != bob {
		t.Errorf("winner = %s", bet.Winner.Hex())
	}

	var types []string
	for _, ev := range bus.Published() {
		types = append(types, ev.Type)
	}
	want := []string{events.EventBetProposed, events.EventBetAccepted, events.EventBetRevealed, events.EventBetRevealed, events.EventBetSettled}
	if len(types) != len(want) {
		t.Fatalf("published %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}

	history, err := svc.History(ctx, ca, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 5 || history[0].Action != "bet_settled" || history[4].Action != "bet_proposed" {
		t.Errorf("unexpected history: %+v", history)
	}
	if entries, _ := audit.GetByEntity(ctx, models.EntityBet, ca.Hex(), 2, 1); len(entries) != 2 || entries[0].Action != "bet_revealed" {
		t.Errorf("paging broken: %+v", entries)
	}
}

func TestBetServiceFailedTransitionPublishesNothing(t *testing.T) {
	svc, bus, _, _ := newTestBetService(t)
	_, err := svc.Propose(context.Background(), alice, commit.Commit(common.HexToHash("0x01")), big.NewInt(0))
	if !errors.Is(err, ledger.ErrInvalidStake) {
		t.Fatalf("expected ErrInvalidStake, got %v", err)
	}
	if n := len(bus.Published()); n != 0 {
		t.Errorf("%d events published for a rejected call", n)
	}
}

func TestSettleExpired(t *testing.T) {
	svc, bus, audit, clock := newTestBetService(t)
	ctx := context.Background()
	secretA := common.HexToHash("0x0a")
	ca, _ := openBet(t, svc, secretA, common.HexToHash("0x0b"))
	if _, err := svc.Reveal(ctx, alice, ca, secretA); err != nil {
		t.Fatal(err)
	}

	n, err := svc.SettleExpired(ctx, 10)
	if err != nil || n != 0 {
		t.Fatalf("settled %d before the deadline (err %v)", n, err)
	}

	clock.now = clock.now.Add(time.Hour)
	n, err = svc.SettleExpired(ctx, 10)
	if err != nil || n != 1 {
		t.Fatalf("settled %d, err %v", n, err)
	}
	bet, _ := svc.Get(ctx, ca)
	if bet.Status != models.BetStatusSettled || *bet.Winner != alice || *bet.Outcome != models.OutcomeForfeit {
		t.Errorf("unexpected bet %+v", bet)
	}

	published := bus.Published()
	if last := published[len(published)-1]; last.Type != events.EventBetSettled {
		t.Errorf("last event = %s", last.Type)
	}
	history, _ := audit.GetByEntity(ctx, models.EntityBet, ca.Hex(), 1, 0)
	if len(history) != 1 || history[0].ActorType != models.ActorKeeper || history[0].Actor != nil {
		t.Errorf("keeper settle not audited: %+v", history)
	}

	if n, _ := svc.SettleExpired(ctx, 10); n != 0 {
		t.Errorf("settled %d twice", n)
	}
}

func TestFaucet(t *testing.T) {
	svc, bus, _, _ := newTestBetService(t)
	ctx := context.Background()
	carol := common.HexToAddress("0x03")

	if err := svc.Faucet(ctx, carol, big.NewInt(42)); err != nil {
		t.Fatal(err)
	}
	bal, _ := svc.Balance(ctx, carol)
	if bal.Int64() != 42 {
		t.Errorf("balance = %s", bal)
	}
	published := bus.Published()
	if len(published) != 1 || published[0].Type != events.EventDepositCredited {
		t.Errorf("published %+v", published)
	}
}

func TestAuthServiceLogin(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	cfg := &config.Config{JWTSecret: "test", JWTExpiration: time.Hour, AuthChallengeTTL: time.Minute}
	svc := NewAuthService(auth.NewMemoryChallengeStore(), cfg, zap.NewNop())
	ctx := context.Background()

	msg, expires, err := svc.Challenge(ctx, addr)
	if err != nil {
		t.Fatal(err)
	}
	if !expires.After(time.Now()) {
		t.Errorf("expiry %v is in the past", expires)
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	if err != nil {
		t.Fatal(err)
	}

	token, err := svc.Login(ctx, addr, sig)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := auth.ParseJWT(cfg.JWTSecret, token)
	if err != nil || claims.Addr() != addr {
		t.Fatalf("bad token: %v", err)
	}

	if _, err := svc.Login(ctx, addr, sig); !errors.Is(err, auth.ErrNoChallenge) {
		t.Errorf("replayed login: %v", err)
	}
}

func TestAuthServiceRejectsWrongSigner(t *testing.T) {
	key, _ := crypto.GenerateKey()
	other := common.HexToAddress("0x04")
	cfg := &config.Config{JWTSecret: "test", AuthChallengeTTL: time.Minute}
	svc := NewAuthService(auth.NewMemoryChallengeStore(), cfg, zap.NewNop())
	ctx := context.Background()

	msg, _, _ := svc.Challenge(ctx, other)
	sig, _ := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	if _, err := svc.Login(ctx, other, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}
