package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Actor types recorded in the audit log.
const (
	ActorUser   = "user"
	ActorKeeper = "keeper"
	ActorSystem = "system"
)

// Audited entities. A bet is keyed by its commitmentA hex, an account by its
// checksummed address.
const (
	EntityBet     = "bet"
	EntityAccount = "account"
)

// AuditLog is one row of the append-only trail of ledger changes.
type AuditLog struct {
	ID         uuid.UUID      `json:"id"`
	Actor      *string        `json:"actor,omitempty"`
	ActorType  string         `json:"actor_type"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityKey  string         `json:"entity_key"`
	Meta       map[string]any `json:"meta,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// BetAudit builds an entry for the bet keyed by commitmentA. actor is nil
// when the keeper or the system acted.
func BetAudit(actor *common.Address, actorType, action string, commitmentA common.Hash, meta map[string]any) AuditLog {
	entry := AuditLog{
		ActorType:  actorType,
		Action:     action,
		EntityType: EntityBet,
		EntityKey:  commitmentA.Hex(),
		Meta:       meta,
	}
	if actor != nil {
		a := actor.Hex()
		entry.Actor = &a
	}
	return entry
}

// AccountAudit builds an entry for a change to addr's balance made on its
// behalf.
func AccountAudit(addr common.Address, actorType, action string, meta map[string]any) AuditLog {
	a := addr.Hex()
	return AuditLog{
		Actor:      &a,
		ActorType:  actorType,
		Action:     action,
		EntityType: EntityAccount,
		EntityKey:  a,
		Meta:       meta,
	}
}

// ActorAddress returns the address that acted, if any.
func (a AuditLog) ActorAddress() (common.Address, bool) {
	if a.Actor == nil || !common.IsHexAddress(*a.Actor) {
		return common.Address{}, false
	}
	return common.HexToAddress(*a.Actor), true
}
