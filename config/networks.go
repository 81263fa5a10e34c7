package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// L1Addresses are the Ethereum-side contracts the keeper talks to.
type L1Addresses struct {
	SfrxEth              common.Address
	L1StandardBridge     common.Address
	CrossDomainMessenger common.Address
	FraxFerry            common.Address
	FloxiL1              common.Address
	StrategyManager      common.Address
	Strategy             common.Address
	DelegationManager    common.Address
	Operator             common.Address
	RewardsCoordinator   common.Address
}

// L2Addresses are the Fraxtal-side contracts the keeper talks to.
type L2Addresses struct {
	SfrxEth              common.Address
	L2StandardBridge     common.Address
	CrossDomainMessenger common.Address
	FraxFerry            common.Address
	FloxiL2              common.Address
}

type L1Network struct {
	Name       string
	RPCURL     string
	StartBlock uint64
	Addresses  L1Addresses
}

type L2Network struct {
	Name       string
	RPCURL     string
	StartBlock uint64
	Addresses  L2Addresses
}

// Fraxtal predeploys, identical on mainnet and testnet.
var (
	fraxtalSfrxEth              = common.HexToAddress("0xfc00000000000000000000000000000000000005")
	fraxtalL2StandardBridge     = common.HexToAddress("0x4200000000000000000000000000000000000010")
	fraxtalCrossDomainMessenger = common.HexToAddress("0x4200000000000000000000000000000000000007")
)

func mainnetNetworks(getenv func(string) string) (L1Network, L2Network, error) {
	floxiL1, err := requireAddress(getenv, "FLOXI_L1")
	if err != nil {
		return L1Network{}, L2Network{}, err
	}
	floxiL2, err := requireAddress(getenv, "FLOXI_L2")
	if err != nil {
		return L1Network{}, L2Network{}, err
	}

	l1 := L1Network{
		Name:   "mainnet",
		RPCURL: "https://eth-mainnet.g.alchemy.com/v2/" + getenv("ALCHEMY_API_KEY"),
		Addresses: L1Addresses{
			SfrxEth:              common.HexToAddress("0xac3E018457B222d93114458476f3E3416Abbe38F"),
			L1StandardBridge:     common.HexToAddress("0x34C0bD5877A5Ee7099D0f5688D65F4bB9158BDE2"),
			CrossDomainMessenger: common.HexToAddress("0x126bcc31Bc076B3d515f60FBC81FddE0B0d542Ed"),
			FraxFerry:            common.HexToAddress("0x5c5f05cF8528FFe925A2264743bFfEdbAB2b0FE3"),
			FloxiL1:              floxiL1,
			StrategyManager:      common.HexToAddress("0x858646372CC42E1A627fcE94aa7A7033e7CF075A"),
			Strategy:             common.HexToAddress("0x8CA7A5d6f3acd3A7A8bC468a8CD0FB14B6BD28b6"),
			DelegationManager:    common.HexToAddress("0x39053D51B77DC0d36036Fc1fCc8Cb819df8Ef37A"),
			Operator:             common.HexToAddress("0x5ACCC90436492F24E6aF278569691e2c942A676d"),
			RewardsCoordinator:   common.HexToAddress("0x7750d328b314EfFa365A0402CcfD489B80B0adda"),
		},
	}

	l2 := L2Network{
		Name:   "fraxtal",
		RPCURL: "https://rpc.frax.com",
		Addresses: L2Addresses{
			SfrxEth:              fraxtalSfrxEth,
			L2StandardBridge:     fraxtalL2StandardBridge,
			CrossDomainMessenger: fraxtalCrossDomainMessenger,
			FraxFerry:            common.HexToAddress("0x67c6A8A715fc726ffD0A40588701813d9eC04d9C"),
			FloxiL2:              floxiL2,
		},
	}

	return l1, l2, nil
}

func testnetNetworks(getenv func(string) string) (L1Network, L2Network, error) {
	floxiL1, err := requireAddress(getenv, "FLOXI_L1_HOLESKY")
	if err != nil {
		return L1Network{}, L2Network{}, err
	}
	floxiL2, err := requireAddress(getenv, "FLOXI_L2_TESTNET")
	if err != nil {
		return L1Network{}, L2Network{}, err
	}
	ferryL1, err := requireAddress(getenv, "FRAX_FERRY_HOLESKY")
	if err != nil {
		return L1Network{}, L2Network{}, err
	}
	ferryL2, err := requireAddress(getenv, "FRAX_FERRY_TESTNET")
	if err != nil {
		return L1Network{}, L2Network{}, err
	}

	l1 := L1Network{
		Name:   "holesky",
		RPCURL: "https://rpc.holesky.ethpandaops.io",
		Addresses: L1Addresses{
			SfrxEth:              common.HexToAddress("0xa63f56985F9C7F3bc9fFc5685535649e0C1a55f3"),
			L1StandardBridge:     common.HexToAddress("0x0BaafC217162f64930909aD9f2B27125121d6332"),
			CrossDomainMessenger: common.HexToAddress("0x45A98115D5722C6cfC48D711e0053758E7C0b8ad"),
			FraxFerry:            ferryL1,
			FloxiL1:              floxiL1,
			StrategyManager:      common.HexToAddress("0xdfB5f6CE42aAA7830E94ECFCcAd411beF4d4D5b6"),
			Strategy:             common.HexToAddress("0x9281ff96637710Cd9A5CAcce9c6FAD8C9F54631c"),
			DelegationManager:    common.HexToAddress("0xA44151489861Fe9e3055d95adC98FbD462B948e7"),
			Operator:             common.HexToAddress("0x5ACCC90436492F24E6aF278569691e2c942A676d"),
			RewardsCoordinator:   common.HexToAddress("0xAcc1fb458a1317E886dB376Fc8141540537E68fE"),
		},
	}

	l2 := L2Network{
		Name:   "fraxtalTestnet",
		RPCURL: "https://rpc.testnet.frax.com",
		Addresses: L2Addresses{
			SfrxEth:              fraxtalSfrxEth,
			L2StandardBridge:     fraxtalL2StandardBridge,
			CrossDomainMessenger: fraxtalCrossDomainMessenger,
			FraxFerry:            ferryL2,
			FloxiL2:              floxiL2,
		},
	}

	return l1, l2, nil
}

func requireAddress(getenv func(string) string, key string) (common.Address, error) {
	value := getenv(key)
	if value == "" {
		return common.Address{}, fmt.Errorf("%s is required", key)
	}
	addr, err := ParseAddress(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return addr, nil
}
