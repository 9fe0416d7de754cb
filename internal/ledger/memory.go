package ledger

import (
	"bytes"
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/coinflip-escrow/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
)

// MemoryBackend keeps bets and balances in process. Transactions are
// serialised by a single mutex and write to a staging area that is merged
// only when the transaction function succeeds.
type MemoryBackend struct {
	mu       sync.Mutex
	bets     map[common.Hash]*models.Bet
	archive  map[common.Hash][]*models.Bet
	balances map[common.Address]*big.Int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		bets:     make(map[common.Hash]*models.Bet),
		archive:  make(map[common.Hash][]*models.Bet),
		balances: make(map[common.Address]*big.Int),
	}
}

func (m *MemoryBackend) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		m:        m,
		bets:     make(map[common.Hash]*models.Bet),
		balances: make(map[common.Address]*big.Int),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *MemoryBackend) Bet(_ context.Context, commitmentA common.Hash) (*models.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.bets[commitmentA]; ok {
		return b.Clone(), nil
	}
	if old := m.archive[commitmentA]; len(old) > 0 {
		return old[len(old)-1].Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryBackend) Balance(_ context.Context, addr common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (m *MemoryBackend) ListExpired(_ context.Context, cutoff time.Time, limit int) ([]*models.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Bet
	for _, b := range m.bets {
		if b.Status == models.BetStatusAccepted && !b.AcceptedAt.After(cutoff) {
			out = append(out, b.Clone())
		}
	}
	sortByAcceptance(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortByAcceptance(bets []*models.Bet) {
	sort.Slice(bets, func(i, j int) bool {
		ti, tj := *bets[i].AcceptedAt, *bets[j].AcceptedAt
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return bytes.Compare(bets[i].CommitmentA[:], bets[j].CommitmentA[:]) < 0
	})
}

type memTx struct {
	m        *MemoryBackend
	bets     map[common.Hash]*models.Bet // nil value marks an archived key
	archived []*models.Bet
	balances map[common.Address]*big.Int
}

func (t *memTx) lookup(c common.Hash) (*models.Bet, bool) {
	if b, ok := t.bets[c]; ok {
		return b, b != nil
	}
	b, ok := t.m.bets[c]
	return b, ok
}

func (t *memTx) GetBet(_ context.Context, commitmentA common.Hash) (*models.Bet, error) {
	b, ok := t.lookup(commitmentA)
	if !ok {
		return nil, ErrNotFound
	}
	return b.Clone(), nil
}

func (t *memTx) FindByCommitmentB(_ context.Context, commitmentB common.Hash, acceptor common.Address) (*models.Bet, error) {
	seen := make(map[common.Hash]struct{})
	var matches []*models.Bet
	consider := func(key common.Hash) {
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		b, ok := t.lookup(key)
		if !ok || b.Status != models.BetStatusAccepted {
			return
		}
		if *b.CommitmentB == commitmentB {
			matches = append(matches, b)
		}
	}
	for k := range t.bets {
		consider(k)
	}
	for k := range t.m.bets {
		consider(k)
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	sortByAcceptance(matches)
	for _, b := range matches {
		if *b.Acceptor == acceptor {
			return b.Clone(), nil
		}
	}
	return matches[0].Clone(), nil
}

func (t *memTx) InsertBet(_ context.Context, bet *models.Bet) error {
	if _, ok := t.lookup(bet.CommitmentA); ok {
		return ErrCommitmentInUse
	}
	t.bets[bet.CommitmentA] = bet.Clone()
	return nil
}

func (t *memTx) UpdateBet(_ context.Context, bet *models.Bet) error {
	if _, ok := t.lookup(bet.CommitmentA); !ok {
		return ErrNotFound
	}
	t.bets[bet.CommitmentA] = bet.Clone()
	return nil
}

func (t *memTx) ArchiveBet(_ context.Context, commitmentA common.Hash) error {
	b, ok := t.lookup(commitmentA)
	if !ok {
		return ErrNotFound
	}
	t.archived = append(t.archived, b.Clone())
	t.bets[commitmentA] = nil
	return nil
}

func (t *memTx) balance(addr common.Address) *big.Int {
	if b, ok := t.balances[addr]; ok {
		return b
	}
	if b, ok := t.m.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}

func (t *memTx) Debit(_ context.Context, addr common.Address, amount *big.Int) error {
	cur := t.balance(addr)
	if cur.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	t.balances[addr] = new(big.Int).Sub(cur, amount)
	return nil
}

func (t *memTx) Credit(_ context.Context, addr common.Address, amount *big.Int) error {
	t.balances[addr] = new(big.Int).Add(t.balance(addr), amount)
	return nil
}

func (t *memTx) commit() {
	for _, b := range t.archived {
		t.m.archive[b.CommitmentA] = append(t.m.archive[b.CommitmentA], b)
	}
	for k, b := range t.bets {
		if b == nil {
			delete(t.m.bets, k)
			continue
		}
		t.m.bets[k] = b
	}
	for k, v := range t.balances {
		t.m.balances[k] = v
	}
}
