package wallet

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/mezonai/walletd/types"
	"github.com/mezonai/walletd/walleterr"
)

type MemoryOptions struct {
	Params *chaincfg.Params
	// Funds is the balance the simulated chain holds for the wallet
	Funds uint64
	// SyncSteps is the number of progress lines a sync reports
	SyncSteps int
	// Fee is taken from the balance on every send
	Fee uint64
}

// MemoryEngine simulates a wallet without a network. The balance becomes
// visible to GetBalance only after SyncChain, like a real light wallet.
type MemoryEngine struct {
	mu      sync.Mutex
	opts    MemoryOptions
	chain   uint64
	synced  uint64
	keys    types.KeychainState
	sends   uint64
	lastTxs []string
}

func NewMemoryEngine(opts MemoryOptions) *MemoryEngine {
	if opts.Params == nil {
		opts.Params = &chaincfg.SigNetParams
	}
	if opts.SyncSteps <= 0 {
		opts.SyncSteps = 5
	}
	return &MemoryEngine{opts: opts, chain: opts.Funds}
}

// Fund credits the simulated chain; the next sync picks it up.
func (m *MemoryEngine) Fund(sats uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chain += sats
	markUsed(&m.keys, m.keys.UsedCount)
}

func (m *MemoryEngine) DeriveAddress(ctx context.Context) (AddressInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	index := nextUnused(&m.keys)
	addr, err := m.address(index)
	if err != nil {
		return AddressInfo{}, walleterr.Wrap(walleterr.CodeInternal, err, "Failed to derive address")
	}
	return AddressInfo{Index: index, Address: addr}, nil
}

func (m *MemoryEngine) SyncChain(ctx context.Context, progress ProgressFunc) (uint64, error) {
	for i := 0; i < m.opts.SyncSteps; i++ {
		if err := ctx.Err(); err != nil {
			return 0, walleterr.Wrap(walleterr.CodeNetwork, err, "Failed to sync wallet")
		}
		if progress != nil {
			progress(fmt.Sprintf("Scanning keychain %s at index %d", types.KeychainExternal, i))
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced = m.chain
	return m.synced, nil
}

func (m *MemoryEngine) GetBalance(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.synced, nil
}

func (m *MemoryEngine) BroadcastTransaction(ctx context.Context, amountSats uint64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amountSats < DustLimit {
		return "", walleterr.Newf(walleterr.CodeInvalidAmount, walleterr.MsgInvalidAmount, amountSats, DustLimit)
	}
	if !covers(m.synced, amountSats, m.opts.Fee) {
		return "", walleterr.Newf(walleterr.CodeInsufficientFunds, walleterr.MsgInsufficientFunds, requiredSats(amountSats, m.opts.Fee), m.synced)
	}

	m.sends++
	var seed [16]byte
	binary.BigEndian.PutUint64(seed[:8], m.sends)
	binary.BigEndian.PutUint64(seed[8:], amountSats)
	txid := chainhash.DoubleHashH(seed[:]).String()

	// the payment goes back to the wallet, only the fee leaves
	m.synced -= m.opts.Fee
	m.chain -= m.opts.Fee
	m.lastTxs = append(m.lastTxs, txid)
	return txid, nil
}

// Sent returns the txids broadcast so far.
func (m *MemoryEngine) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lastTxs...)
}

func (m *MemoryEngine) address(index uint32) (string, error) {
	var seed [4]byte
	binary.BigEndian.PutUint32(seed[:], index)
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(seed[:]), m.opts.Params)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

var _ Engine = (*MemoryEngine)(nil)
