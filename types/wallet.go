package types

import "fmt"

// KeychainKind selects the external (receive) or internal (change) branch.
type KeychainKind uint8

const (
	KeychainExternal KeychainKind = 0
	KeychainInternal KeychainKind = 1
)

func (k KeychainKind) String() string {
	switch k {
	case KeychainExternal:
		return "External"
	case KeychainInternal:
		return "Internal"
	default:
		return fmt.Sprintf("Keychain(%d)", uint8(k))
	}
}

// KeychainState tracks address usage on one keychain. Addresses
// [UsedCount, NextIndex) have been handed out but never seen on chain.
type KeychainState struct {
	NextIndex uint32 `json:"next_index"`
	UsedCount uint32 `json:"used_count"`
}

type OutPoint struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID, o.Vout)
}

type UTXO struct {
	OutPoint
	Value     uint64       `json:"value"`
	Keychain  KeychainKind `json:"keychain"`
	Index     uint32       `json:"index"`
	Confirmed bool         `json:"confirmed"`
}

// WalletMeta is written once when the wallet is created and checked on
// every open.
type WalletMeta struct {
	Network     string `json:"network"`
	Fingerprint string `json:"fingerprint"`
	CreatedAt   int64  `json:"created_at"`
}

func TotalValue(utxos []UTXO) uint64 {
	var total uint64
	for _, u := range utxos {
		total += u.Value
	}
	return total
}
