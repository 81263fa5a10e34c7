package models

// WithdrawalRequest is an L2 vault WithdrawalQueued event awaiting its
// initiateEigenlayerWithdrawal on L1.
type WithdrawalRequest struct {
	Account     string `json:"account" bson:"account"`
	Nonce       string `json:"nonce" bson:"nonce"`
	Assets      string `json:"assets" bson:"assets"`
	TxHash      string `json:"tx_hash" bson:"tx_hash"`
	BlockNumber uint64 `json:"block_number" bson:"block_number"`
	Status      string `json:"status" bson:"status"`
	Error       string `json:"error,omitempty" bson:"error,omitempty"`
}
