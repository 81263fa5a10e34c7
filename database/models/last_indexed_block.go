package models

// LastIndexedBlock is the last block a log subscription has fully handled.
// Subscriptions resume from BlockNumber+1 after a restart.
type LastIndexedBlock struct {
	Subscription string `json:"subscription" bson:"subscription"`
	BlockNumber  uint64 `json:"block_number" bson:"block_number"`
}
