package handlers

import (
	"testing"

	"github.com/coinflip-escrow/backend/internal/events"
	"github.com/ethereum/go-ethereum/common"
)

func TestWSFilter(t *testing.T) {
	me := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bet := common.HexToHash("0x38884439ad0358e6635220828d323035c6c16c51dc8d64f83e485055537dfa19")
	other := common.HexToHash("0x01")

	proposed := events.Event{Type: events.EventBetProposed, Payload: map[string]any{"commitment": bet.Hex()}}
	settledOther := events.Event{Type: events.EventBetSettled, Payload: map[string]any{"commitment_a": other.Hex()}}
	myDeposit := events.Event{Type: events.EventDepositCredited, Payload: map[string]any{"address": me.Hex()}}
	theirDeposit := events.Event{Type: events.EventDepositCredited, Payload: map[string]any{"address": "0x0000000000000000000000000000000000000001"}}

	tests := []struct {
		name   string
		filter wsFilter
		event  events.Event
		want   bool
	}{
		{"all bets", wsFilter{addr: me}, settledOther, true},
		{"watched bet", wsFilter{addr: me, bet: &bet}, proposed, true},
		{"other bet", wsFilter{addr: me, bet: &bet}, settledOther, false},
		{"own deposit", wsFilter{addr: me, bet: &bet}, myDeposit, true},
		{"foreign deposit", wsFilter{addr: me}, theirDeposit, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.matches(tt.event); got != tt.want {
				t.Errorf("matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
