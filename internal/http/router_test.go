package http

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"io"
	"math/big"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coinflip-escrow/backend/internal/auth"
	"github.com/coinflip-escrow/backend/internal/config"
	"github.com/coinflip-escrow/backend/internal/events"
	"github.com/coinflip-escrow/backend/internal/http/handlers"
	"github.com/coinflip-escrow/backend/internal/ledger"
	"github.com/coinflip-escrow/backend/internal/services"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

type testEnv struct {
	app   *fiber.App
	clock *testClock
	bus   *events.LocalBus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	cfg := &config.Config{
		Storage:          config.StorageMemory,
		JWTSecret:        "test-secret",
		JWTExpiration:    time.Hour,
		AuthChallengeTTL: time.Minute,
		FaucetEnabled:    true,
		FaucetAmountNano: big.NewInt(10_000_000_000),
		RevealWindow:     time.Hour,
	}
	clock := &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := ledger.New(ledger.NewMemoryBackend(), ledger.WithClock(clock), ledger.WithRevealWindow(cfg.RevealWindow))
	bus := events.NewLocalBus()

	betService := services.NewBetService(l, services.NewMemoryAudit(), bus, log)
	authService := services.NewAuthService(auth.NewMemoryChallengeStore(), cfg, log)

	app := fiber.New()
	SetupRouter(app, cfg, log, nil,
		handlers.NewAuthHandler(authService, log),
		handlers.NewBetHandler(betService, cfg.RevealWindow, log),
		handlers.NewAccountHandler(betService, cfg.FaucetAmountNano, log),
		handlers.NewWSHub(cfg, bus, log),
	)
	return &testEnv{app: app, clock: clock, bus: bus}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

// login runs the challenge/sign/login flow for a fresh key.
func (e *testEnv) login(t *testing.T) (string, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	status, body := e.do(t, nethttp.MethodPost, "/api/v1/auth/challenge", "", map[string]string{"address": addr})
	if status != fiber.StatusOK {
		t.Fatalf("challenge: %d %v", status, body)
	}
	sig := sign(t, key, body["message"].(string))

	status, body = e.do(t, nethttp.MethodPost, "/api/v1/auth/login", "", map[string]string{"address": addr, "signature": sig})
	if status != fiber.StatusOK {
		t.Fatalf("login: %d %v", status, body)
	}
	token := body["token"].(string)

	if status, body = e.do(t, nethttp.MethodPost, "/api/v1/me/faucet", token, nil); status != fiber.StatusOK {
		t.Fatalf("faucet: %d %v", status, body)
	}
	return addr, token
}

func sign(t *testing.T, key *ecdsa.PrivateKey, msg string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	if err != nil {
		t.Fatal(err)
	}
	sig[64] += 27
	return hexutil.Encode(sig)
}

func commitmentFor(t *testing.T, e *testEnv, secret string) string {
	t.Helper()
	status, body := e.do(t, nethttp.MethodPost, "/api/v1/tools/commitment", "", map[string]string{"secret": secret})
	if status != fiber.StatusOK {
		t.Fatalf("commitment: %d %v", status, body)
	}
	if body["secret"] != secret {
		t.Fatalf("secret echoed as %v", body["secret"])
	}
	return body["commitment"].(string)
}

func data(body map[string]any) map[string]any {
	d, _ := body["data"].(map[string]any)
	return d
}

const (
	valA     = "0x8cc3d2b4a77fde283de72228ce4cdb1ccadc68d3f30e6e01342f5aad57e8570f"
	hashA    = "0x38884439ad0358e6635220828d323035c6c16c51dc8d64f83e485055537dfa19"
	valBwin  = "0xbde6c8a86688659a961a92784950234f325503947579e2f655978e5f4b4ca8ea"
	hashBwin = "0xec4effc57acf1515c2b8f028bfeb39ae7d2d5e3986c34362cbd6955cf4c86b75"
)

func TestBetLifecycleOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	_, tokenA := e.login(t)
	addrB, tokenB := e.login(t)

	if got := commitmentFor(t, e, valA); got != hashA {
		t.Fatalf("commitment = %s, want %s", got, hashA)
	}

	status, body := e.do(t, nethttp.MethodPost, "/api/v1/bets", tokenA, map[string]string{"commitment": hashA, "stake_ton": "2"})
	if status != fiber.StatusCreated {
		t.Fatalf("propose: %d %v", status, body)
	}
	if d := data(body); d["stake_nano"] != "2000000000" || d["status"] != "proposed" {
		t.Errorf("propose data = %v", d)
	}

	status, body = e.do(t, nethttp.MethodPost, "/api/v1/bets/"+hashA+"/accept", tokenB, map[string]string{"commitment_b": hashBwin, "stake_nano": "2000000000"})
	if status != fiber.StatusOK {
		t.Fatalf("accept: %d %v", status, body)
	}
	if data(body)["reveal_deadline"] == nil {
		t.Error("accepted bet should expose its reveal deadline")
	}

	status, body = e.do(t, nethttp.MethodPost, "/api/v1/bets/"+hashA+"/settle", tokenA, map[string]string{"commitment_b": hashBwin})
	if status != fiber.StatusConflict || body["code"] != string(ledger.KindRevealPending) {
		t.Fatalf("early settle: %d %v", status, body)
	}

	for _, r := range []struct{ token, commitment, secret string }{
		{tokenA, hashA, valA},
		{tokenB, hashA, valBwin},
	} {
		status, body = e.do(t, nethttp.MethodPost, "/api/v1/bets/reveal", r.token, map[string]string{"commitment": r.commitment, "secret": r.secret})
		if status != fiber.StatusOK {
			t.Fatalf("reveal: %d %v", status, body)
		}
	}

	status, body = e.do(t, nethttp.MethodPost, "/api/v1/bets/"+hashA+"/settle", tokenA, map[string]string{"commitment_b": hashBwin})
	if status != fiber.StatusOK {
		t.Fatalf("settle: %d %v", status, body)
	}
	d := data(body)
	if d["winner"] != addrB || d["outcome"] != "coin_flip" || d["payout_nano"] != "4000000000" {
		t.Errorf("settle data = %v", d)
	}

	status, body = e.do(t, nethttp.MethodGet, "/api/v1/me/balance", tokenB, nil)
	if status != fiber.StatusOK || data(body)["balance_ton"] != "12" {
		t.Errorf("balance B: %d %v", status, body)
	}

	status, body = e.do(t, nethttp.MethodGet, "/api/v1/bets/"+hashA+"/events", "", nil)
	if status != fiber.StatusOK {
		t.Fatalf("events: %d", status)
	}
	if logs, _ := body["data"].([]any); len(logs) != 5 {
		t.Errorf("audit entries = %d, want 5", len(logs))
	}

	var settled bool
	for _, ev := range e.bus.Published() {
		if ev.Type == events.EventBetSettled {
			settled = true
		}
	}
	if !settled {
		t.Error("BetSettled not published")
	}
}

func TestBetErrorsOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.login(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"no token", nethttp.MethodPost, "/api/v1/bets", "", map[string]string{"commitment": hashA, "stake_nano": "1"}, fiber.StatusUnauthorized, ""},
		{"zero stake", nethttp.MethodPost, "/api/v1/bets", token, map[string]string{"commitment": hashA, "stake_nano": "0"}, fiber.StatusBadRequest, string(ledger.KindInvalidStake)},
		{"missing stake", nethttp.MethodPost, "/api/v1/bets", token, map[string]string{"commitment": hashA}, fiber.StatusBadRequest, ""},
		{"bad commitment", nethttp.MethodPost, "/api/v1/bets", token, map[string]string{"commitment": "0x1234", "stake_nano": "1"}, fiber.StatusBadRequest, ""},
		{"too much", nethttp.MethodPost, "/api/v1/bets", token, map[string]string{"commitment": hashA, "stake_ton": "1000"}, fiber.StatusPaymentRequired, string(ledger.KindInsufficientFunds)},
		{"accept unknown", nethttp.MethodPost, "/api/v1/bets/" + hashA + "/accept", token, map[string]string{"commitment_b": hashBwin, "stake_nano": "1"}, fiber.StatusNotFound, string(ledger.KindNotFound)},
		{"reveal unknown", nethttp.MethodPost, "/api/v1/bets/reveal", token, map[string]string{"commitment": hashA, "secret": valA}, fiber.StatusConflict, string(ledger.KindNotAccepted)},
		{"get unknown", nethttp.MethodGet, "/api/v1/bets/" + hashA, "", nil, fiber.StatusNotFound, string(ledger.KindNotFound)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := e.do(t, tt.method, tt.path, tt.token, tt.body)
			if status != tt.status {
				t.Fatalf("status = %d, want %d (%v)", status, tt.status, body)
			}
			if tt.code != "" && body["code"] != tt.code {
				t.Errorf("code = %v, want %s", body["code"], tt.code)
			}
		})
	}
}

func TestLoginRequiresChallenge(t *testing.T) {
	e := newTestEnv(t)
	key, _ := crypto.GenerateKey()
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	status, _ := e.do(t, nethttp.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"address":   addr,
		"signature": sign(t, key, auth.LoginMessage(crypto.PubkeyToAddress(key.PublicKey), "guessed")),
	})
	if status != fiber.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
}

func TestRandomCommitmentAndHealth(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.do(t, nethttp.MethodPost, "/api/v1/tools/commitment", "", nil)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
	secret, _ := hexutil.Decode(body["secret"].(string))
	if got := crypto.Keccak256Hash(secret).Hex(); got != body["commitment"] {
		t.Errorf("commitment %v does not open to secret", body["commitment"])
	}

	status, body = e.do(t, nethttp.MethodGet, "/health", "", nil)
	if status != fiber.StatusOK || body["status"] != "ok" {
		t.Errorf("health: %d %v", status, body)
	}
}
