package main

import "ledgerd.dev/chain/chain"

// devnetParams is a low-difficulty network definition for local runs: real
// mainnet/testnet parameter tables belong in a chaincfg-style package of
// their own once this binary needs to speak to a live network, matching how
// the teacher's node package keeps "devnet/testnet/mainnet" as a Config
// string today without yet shipping more than one concrete table.
func devnetParams() chain.NetParams {
	const easyBits = 0x207fffff
	return chain.NetParams{
		Name: "devnet",
		GenesisHeader: chain.BlockHeader{
			Version:   1,
			Timestamp: 1_700_000_000,
			Bits:      easyBits,
		},
		Magic:                  0xd9b4feed,
		PowLimitBits:           easyBits,
		RetargetInterval:       2016,
		TargetTimespan:         2016 * 600,
		SubsidyHalvingInterval: 210_000,
		InitialSubsidy:         50_0000_0000,
		BIP34Height:            1,
		BIP66Height:            1,
		BIP65Height:            1,
		BIP68Height:            1,
		RuleChangeActivationThreshold: 1512,
		MinerConfirmationWindow:       2016,
		MaxFutureBlockTime:            7200,
		MaxOrphans:                    50,
		OrphanExpiry:                  3600,
		InvalidCacheSize:              100,
	}
}
