package models

// UnmatchedDeposit is a bridge DepositFinalized from the L1 vault seen
// before any completed withdrawal of the same amount. ID is
// "<txHash>:<logIndex>".
type UnmatchedDeposit struct {
	ID          string `json:"id" bson:"_id"`
	Amount      string `json:"amount" bson:"amount"`
	TxHash      string `json:"tx_hash" bson:"tx_hash"`
	BlockNumber uint64 `json:"block_number" bson:"block_number"`
	LogIndex    uint   `json:"log_index" bson:"log_index"`
}
