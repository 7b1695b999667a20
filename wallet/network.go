package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

// ParamsForNetwork maps a configured network name to chain parameters.
func ParamsForNetwork(name string) (*chaincfg.Params, error) {
	switch name {
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "mainnet", "bitcoin":
		return &chaincfg.MainNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}
