package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// FloxiL1ABIJSON is the subset of the L1 vault interface the keeper uses.
const FloxiL1ABIJSON = `[
	{"type":"event","name":"AssetsDepositedIntoStrategy","anonymous":false,"inputs":[
		{"name":"assets","type":"uint256","indexed":false},
		{"name":"shares","type":"uint256","indexed":false},
		{"name":"strategy","type":"address","indexed":false}]},
	{"type":"event","name":"WithdrawalInitiated","anonymous":false,"inputs":[
		{"name":"withdrawalId","type":"bytes32","indexed":true},
		{"name":"staker","type":"address","indexed":false},
		{"name":"withdrawer","type":"address","indexed":false},
		{"name":"nonce","type":"uint256","indexed":true},
		{"name":"startBlock","type":"uint256","indexed":false},
		{"name":"strategy","type":"address","indexed":false},
		{"name":"shares","type":"uint256","indexed":false},
		{"name":"assets","type":"uint256","indexed":false},
		{"name":"withdrawalRoot","type":"bytes32","indexed":true}]},
	{"type":"event","name":"WithdrawalCompleted","anonymous":false,"inputs":[
		{"name":"assets","type":"uint256","indexed":false},
		{"name":"shares","type":"uint256","indexed":false},
		{"name":"strategy","type":"address","indexed":false}]},
	{"type":"function","name":"depositIntoStrategy","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"initiateEigenlayerWithdrawal","stateMutability":"nonpayable","inputs":[
		{"name":"data","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"completeEigenlayerWithdrawal","stateMutability":"nonpayable","inputs":[
		{"name":"withdrawal","type":"tuple","components":[
			{"name":"staker","type":"address"},
			{"name":"delegatedTo","type":"address"},
			{"name":"withdrawer","type":"address"},
			{"name":"nonce","type":"uint256"},
			{"name":"startBlock","type":"uint32"},
			{"name":"strategies","type":"address[]"},
			{"name":"shares","type":"uint256[]"}]}],"outputs":[]},
	{"type":"function","name":"shipToL2","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

// FloxiL2ABIJSON is the subset of the L2 vault interface the keeper uses.
const FloxiL2ABIJSON = `[
	{"type":"event","name":"Deposit","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}]},
	{"type":"event","name":"WithdrawalQueued","anonymous":false,"inputs":[
		{"name":"account","type":"address","indexed":true},
		{"name":"nonce","type":"uint256","indexed":true},
		{"name":"assets","type":"uint256","indexed":false}]},
	{"type":"event","name":"WithdrawalsUnlocked","anonymous":false,"inputs":[
		{"name":"assetsUnlocked","type":"uint256","indexed":true},
		{"name":"fromNonce","type":"uint256","indexed":false},
		{"name":"toNonce","type":"uint256","indexed":false}]},
	{"type":"function","name":"unlockWithdrawals","stateMutability":"nonpayable","inputs":[
		{"name":"assets","type":"uint256"},
		{"name":"maxIterations","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setL1Assets","stateMutability":"nonpayable","inputs":[
		{"name":"assets","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getL1Assets","stateMutability":"view","inputs":[],"outputs":[
		{"name":"","type":"uint256"}]}
]`

// L2StandardBridgeABIJSON holds the bridge finalization event observed on L2.
const L2StandardBridgeABIJSON = `[
	{"type":"event","name":"DepositFinalized","anonymous":false,"inputs":[
		{"name":"l1Token","type":"address","indexed":true},
		{"name":"l2Token","type":"address","indexed":true},
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"extraData","type":"bytes","indexed":false}]}
]`

// FraxFerryL2ABIJSON holds the ferry events emitted on L2.
const FraxFerryL2ABIJSON = `[
	{"type":"event","name":"Embark","anonymous":false,"inputs":[
		{"name":"sender","type":"address","indexed":true},
		{"name":"index","type":"uint256","indexed":false},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"amountAfterFee","type":"uint256","indexed":false},
		{"name":"timestamp","type":"uint256","indexed":false}]},
	{"type":"event","name":"Depart","anonymous":false,"inputs":[
		{"name":"batchNo","type":"uint256","indexed":false},
		{"name":"start","type":"uint256","indexed":false},
		{"name":"end","type":"uint256","indexed":false},
		{"name":"hash","type":"bytes32","indexed":false}]},
	{"type":"event","name":"Cancelled","anonymous":false,"inputs":[
		{"name":"index","type":"uint256","indexed":false},
		{"name":"cancel","type":"bool","indexed":false}]}
]`

// FraxFerryL1ABIJSON holds the ferry arrival event emitted on L1.
const FraxFerryL1ABIJSON = `[
	{"type":"event","name":"Disembark","anonymous":false,"inputs":[
		{"name":"start","type":"uint256","indexed":false},
		{"name":"end","type":"uint256","indexed":false},
		{"name":"hash","type":"bytes32","indexed":false}]}
]`

// DelegationManagerABIJSON is the EigenLayer delegation manager subset.
const DelegationManagerABIJSON = `[
	{"type":"event","name":"WithdrawalQueued","anonymous":false,"inputs":[
		{"name":"withdrawalRoot","type":"bytes32","indexed":false},
		{"name":"withdrawal","type":"tuple","indexed":false,"components":[
			{"name":"staker","type":"address"},
			{"name":"delegatedTo","type":"address"},
			{"name":"withdrawer","type":"address"},
			{"name":"nonce","type":"uint256"},
			{"name":"startBlock","type":"uint32"},
			{"name":"strategies","type":"address[]"},
			{"name":"shares","type":"uint256[]"}]}]},
	{"type":"function","name":"queueWithdrawals","stateMutability":"nonpayable","inputs":[
		{"name":"queuedWithdrawalParams","type":"tuple[]","components":[
			{"name":"strategies","type":"address[]"},
			{"name":"shares","type":"uint256[]"},
			{"name":"withdrawer","type":"address"}]}],"outputs":[
		{"name":"","type":"bytes32[]"}]},
	{"type":"function","name":"getWithdrawalDelay","stateMutability":"view","inputs":[
		{"name":"strategies","type":"address[]"}],"outputs":[
		{"name":"","type":"uint256"}]}
]`

// ERC20ABIJSON is used for balance reads on the sfrxEth token.
const ERC20ABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[
		{"name":"account","type":"address"}],"outputs":[
		{"name":"","type":"uint256"}]}
]`

var (
	FloxiL1ABI           = mustParseABI(FloxiL1ABIJSON)
	FloxiL2ABI           = mustParseABI(FloxiL2ABIJSON)
	L2StandardBridgeABI  = mustParseABI(L2StandardBridgeABIJSON)
	FraxFerryL2ABI       = mustParseABI(FraxFerryL2ABIJSON)
	FraxFerryL1ABI       = mustParseABI(FraxFerryL1ABIJSON)
	DelegationManagerABI = mustParseABI(DelegationManagerABIJSON)
	ERC20ABI             = mustParseABI(ERC20ABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("contracts: invalid abi: " + err.Error())
	}
	return parsed
}
