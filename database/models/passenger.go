package models

// Passenger is a ferry ticket bought by the L2 vault.
type Passenger struct {
	Index          string `json:"index" bson:"index"`
	Sender         string `json:"sender" bson:"sender"`
	Amount         string `json:"amount" bson:"amount"`
	AmountAfterFee string `json:"amount_after_fee" bson:"amount_after_fee"`
	Timestamp      uint64 `json:"timestamp" bson:"timestamp"`
	Status         string `json:"status" bson:"status"`
	BatchHash      string `json:"batch_hash,omitempty" bson:"batch_hash,omitempty"`
	Cancelled      bool   `json:"cancelled" bson:"cancelled"`
	TxHash         string `json:"tx_hash" bson:"tx_hash"`
	BlockNumber    uint64 `json:"block_number" bson:"block_number"`
}
