package models

// CompletedWithdrawal is an L1 WithdrawalCompleted event waiting for its
// bridge deposit to be accounted for on L2. ID is "<txHash>:<logIndex>".
type CompletedWithdrawal struct {
	ID          string `json:"id" bson:"_id"`
	Assets      string `json:"assets" bson:"assets"`
	Shares      string `json:"shares" bson:"shares"`
	Strategy    string `json:"strategy" bson:"strategy"`
	Status      string `json:"status" bson:"status"`
	BatchID     string `json:"batch_id,omitempty" bson:"batch_id,omitempty"`
	DepositLog  string `json:"deposit_log,omitempty" bson:"deposit_log,omitempty"`
	TxHash      string `json:"tx_hash" bson:"tx_hash"`
	BlockNumber uint64 `json:"block_number" bson:"block_number"`
	LogIndex    uint   `json:"log_index" bson:"log_index"`
}
