package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Account struct {
	Address   common.Address `json:"address"`
	Balance   *big.Int       `json:"balance"` // nanoTON
	UpdatedAt time.Time      `json:"updated_at"`
}

// Deposit is an external credit to an account, e.g. an incoming TON transfer.
type Deposit struct {
	TxRef     string         `json:"tx_ref"`
	Address   common.Address `json:"address"`
	Amount    *big.Int       `json:"amount"`
	Source    string         `json:"source"` // ton/faucet
	CreatedAt time.Time      `json:"created_at"`
}
