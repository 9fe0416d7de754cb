package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// ErrNoChallenge means the nonce expired, was already used or never issued.
var ErrNoChallenge = errors.New("no pending login challenge")

// ChallengeStore keeps one pending login nonce per address.
type ChallengeStore interface {
	Put(ctx context.Context, addr common.Address, nonce string, ttl time.Duration) error
	// Take returns and deletes the nonce, so each challenge verifies once.
	Take(ctx context.Context, addr common.Address) (string, error)
}

// NewNonce returns 16 random bytes as hex.
func NewNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

type RedisChallengeStore struct {
	rdb *redis.Client
}

func NewRedisChallengeStore(rdb *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{rdb: rdb}
}

func challengeKey(addr common.Address) string {
	return "auth:challenge:" + strings.ToLower(addr.Hex())
}

func (s *RedisChallengeStore) Put(ctx context.Context, addr common.Address, nonce string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, challengeKey(addr), nonce, ttl).Err(); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

func (s *RedisChallengeStore) Take(ctx context.Context, addr common.Address) (string, error) {
	nonce, err := s.rdb.GetDel(ctx, challengeKey(addr)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoChallenge
	}
	if err != nil {
		return "", fmt.Errorf("load challenge: %w", err)
	}
	return nonce, nil
}

// MemoryChallengeStore is used when no redis is configured.
type MemoryChallengeStore struct {
	mu      sync.Mutex
	pending map[common.Address]memChallenge
	now     func() time.Time
}

type memChallenge struct {
	nonce   string
	expires time.Time
}

func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{pending: make(map[common.Address]memChallenge), now: time.Now}
}

func (s *MemoryChallengeStore) Put(_ context.Context, addr common.Address, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[addr] = memChallenge{nonce: nonce, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryChallengeStore) Take(_ context.Context, addr common.Address) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.pending[addr]
	delete(s.pending, addr)
	if !ok || !s.now().Before(c.expires) {
		return "", ErrNoChallenge
	}
	return c.nonce, nil
}
