// Package wallet holds the engines the background worker drives.
package wallet

import (
	"context"
)

// AddressInfo is a revealed receive address and its derivation index.
type AddressInfo struct {
	Index   uint32
	Address string
}

// ProgressFunc receives human readable sync progress lines, in order.
type ProgressFunc func(text string)

// Engine is the wallet backend behind the worker. Implementations report
// failures as *walleterr.WalletError. Only the worker calls an Engine, so
// implementations need not be safe for concurrent use.
type Engine interface {
	DeriveAddress(ctx context.Context) (AddressInfo, error)
	SyncChain(ctx context.Context, progress ProgressFunc) (uint64, error)
	GetBalance(ctx context.Context) (uint64, error)
	BroadcastTransaction(ctx context.Context, amountSats uint64) (string, error)
}
