package models

// QueuedWithdrawal is a restaking withdrawal maturing toward its unlock block.
type QueuedWithdrawal struct {
	Nonce          string   `json:"nonce" bson:"nonce"`
	WithdrawalRoot string   `json:"withdrawal_root" bson:"withdrawal_root"`
	Staker         string   `json:"staker" bson:"staker"`
	DelegatedTo    string   `json:"delegated_to" bson:"delegated_to"`
	Withdrawer     string   `json:"withdrawer" bson:"withdrawer"`
	StartBlock     uint32   `json:"start_block" bson:"start_block"`
	Strategies     []string `json:"strategies" bson:"strategies"`
	Shares         []string `json:"shares" bson:"shares"`
	TxHash         string   `json:"tx_hash" bson:"tx_hash"`
	BlockNumber    uint64   `json:"block_number" bson:"block_number"`
}
