package models

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestBetAudit(t *testing.T) {
	commitmentA := common.HexToHash("0xaa")
	player := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	tests := []struct {
		name      string
		actor     *common.Address
		actorType string
		wantActor bool
	}{
		{"player", &player, ActorUser, true},
		{"keeper", nil, ActorKeeper, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := BetAudit(tt.actor, tt.actorType, "bet_settled", commitmentA, map[string]any{"outcome": OutcomeRefund})
			if entry.EntityType != EntityBet || entry.EntityKey != commitmentA.Hex() {
				t.Errorf("entity = %s/%s", entry.EntityType, entry.EntityKey)
			}
			if entry.ActorType != tt.actorType || entry.Meta["outcome"] != OutcomeRefund {
				t.Errorf("unexpected entry %+v", entry)
			}
			addr, ok := entry.ActorAddress()
			if ok != tt.wantActor {
				t.Fatalf("ActorAddress ok = %v, want %v", ok, tt.wantActor)
			}
			if ok && addr != player {
				t.Errorf("actor = %s, want %s", addr.Hex(), player.Hex())
			}
		})
	}
}

func TestAccountAudit(t *testing.T) {
	addr := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	entry := AccountAudit(addr, ActorSystem, "faucet_credit", nil)

	if entry.EntityType != EntityAccount || entry.EntityKey != addr.Hex() {
		t.Errorf("entity = %s/%s", entry.EntityType, entry.EntityKey)
	}
	if got, ok := entry.ActorAddress(); !ok || got != addr {
		t.Errorf("actor = %v (ok %v)", got, ok)
	}

	bad := "not-an-address"
	entry.Actor = &bad
	if _, ok := entry.ActorAddress(); ok {
		t.Error("malformed actor parsed")
	}
}
