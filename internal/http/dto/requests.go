package dto

type ChallengeRequest struct {
	Address string `json:"address"`
}

type LoginRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"` // 0x, 65 bytes
}

// Stakes may be given either in nanoTON or as a decimal TON string.
// stake_nano wins when both are set.

type ProposeBetRequest struct {
	Commitment string `json:"commitment"`
	StakeNano  string `json:"stake_nano,omitempty"`
	StakeTON   string `json:"stake_ton,omitempty"`
}

type AcceptBetRequest struct {
	CommitmentB string `json:"commitment_b"`
	StakeNano   string `json:"stake_nano,omitempty"`
	StakeTON    string `json:"stake_ton,omitempty"`
}

type RevealRequest struct {
	Commitment string `json:"commitment"`
	Secret     string `json:"secret"`
}

type SettleRequest struct {
	CommitmentB string `json:"commitment_b"`
}

type CommitmentRequest struct {
	Secret string `json:"secret,omitempty"` // если пусто — генерируем случайный
}
