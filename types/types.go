package types

// RequestStatus tracks an L2 withdrawal request until the matching L1
// restaking withdrawal has been initiated.
type RequestStatus string

const (
	// Requested - Seen on L2, waiting for finality or for initiateEigenlayerWithdrawal to succeed
	Requested RequestStatus = "REQUESTED"

	// RequestInitiated - initiateEigenlayerWithdrawal mined on L1
	RequestInitiated RequestStatus = "INITIATED"

	// RequestFailed - initiateEigenlayerWithdrawal reverted and the request was abandoned
	RequestFailed RequestStatus = "FAILED"
)

// PassengerStatus is the position of a ferry ticket between Embark and Disembark.
type PassengerStatus string

const (
	// Embarked - Ticket bought on L2, not yet covered by a Depart batch
	Embarked PassengerStatus = "EMBARKED"

	// Departed - Ticket is part of a batch in transit to L1
	Departed PassengerStatus = "DEPARTED"
)

// CompletionStatus tracks a completed L1 withdrawal until its bridge
// deposit has been accounted for on L2.
type CompletionStatus string

const (
	// Pending - Waiting for a matching DepositFinalized on L2
	Pending CompletionStatus = "PENDING"

	// Reserved - Matched to a DepositFinalized, setL1Assets not yet mined
	Reserved CompletionStatus = "RESERVED"

	// L1AssetsSet - setL1Assets mined, unlockWithdrawals still outstanding
	L1AssetsSet CompletionStatus = "L1_ASSETS_SET"
)
