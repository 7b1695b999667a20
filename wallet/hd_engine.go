package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/mezonai/walletd/esplora"
	"github.com/mezonai/walletd/logx"
	"github.com/mezonai/walletd/store"
	"github.com/mezonai/walletd/types"
	"github.com/mezonai/walletd/walleterr"
	"github.com/pkg/errors"
)

type HDConfig struct {
	Params             *chaincfg.Params
	ExternalDescriptor string
	InternalDescriptor string
	StopGap            int
	ParallelRequests   int
	// FeeRate in sat/vB
	FeeRate uint64
	// SendTo pays SendTransaction to a fixed address instead of the
	// wallet's own next receive address.
	SendTo string
}

// HDEngine is a BIP84 single-key wallet synced from Esplora.
type HDEngine struct {
	cfg         HDConfig
	external    *Keychain
	internal    *Keychain
	fingerprint string
	sendTo      []byte
	store       store.WalletStore
	chain       ChainSource
	now         func() time.Time
}

func NewHDEngine(cfg HDConfig, st store.WalletStore, chain ChainSource) (*HDEngine, error) {
	if cfg.Params == nil {
		return nil, fmt.Errorf("chain params cannot be nil")
	}
	if st == nil || chain == nil {
		return nil, fmt.Errorf("store and chain source are required")
	}
	if cfg.FeeRate == 0 {
		cfg.FeeRate = 1
	}
	external, err := NewKeychain(types.KeychainExternal, cfg.ExternalDescriptor, cfg.Params)
	if err != nil {
		return nil, err
	}
	internal, err := NewKeychain(types.KeychainInternal, cfg.InternalDescriptor, cfg.Params)
	if err != nil {
		return nil, err
	}

	e := &HDEngine{
		cfg:         cfg,
		external:    external,
		internal:    internal,
		fingerprint: DescriptorFingerprint(cfg.ExternalDescriptor, cfg.InternalDescriptor),
		store:       st,
		chain:       chain,
		now:         time.Now,
	}

	if cfg.SendTo != "" {
		addr, err := btcutil.DecodeAddress(cfg.SendTo, cfg.Params)
		if err != nil || !addr.IsForNet(cfg.Params) {
			return nil, fmt.Errorf("send_to %q is not a %s address", cfg.SendTo, cfg.Params.Name)
		}
		if e.sendTo, err = txscript.PayToAddrScript(addr); err != nil {
			return nil, err
		}
	}

	meta, err := st.LoadMeta()
	if err != nil {
		return nil, walleterr.Wrap(walleterr.CodeStorage, err, "Failed to load wallet")
	}
	if meta != nil {
		if meta.Network != cfg.Params.Name {
			return nil, walleterr.Newf(walleterr.CodeNetworkMismatch, walleterr.MsgNetworkMismatch, meta.Network, cfg.Params.Name)
		}
		if meta.Fingerprint != e.fingerprint {
			return nil, walleterr.New(walleterr.CodeNetworkMismatch, "Stored wallet was created from different descriptors")
		}
	}
	return e, nil
}

// DeriveAddress returns the lowest revealed but unused receive address,
// revealing a new one when all are used. Creates the wallet on first use.
func (e *HDEngine) DeriveAddress(ctx context.Context) (AddressInfo, error) {
	if err := e.ensureCreated(); err != nil {
		return AddressInfo{}, err
	}
	state, err := e.store.GetKeychain(types.KeychainExternal)
	if err != nil {
		return AddressInfo{}, walleterr.Wrap(walleterr.CodeStorage, err, "Failed to read keychain")
	}
	index := nextUnused(&state)
	addr, _, err := e.external.Address(index)
	if err != nil {
		return AddressInfo{}, walleterr.Wrap(walleterr.CodeInternal, err, "Failed to derive address")
	}
	if err := e.store.StoreKeychain(types.KeychainExternal, state); err != nil {
		return AddressInfo{}, walleterr.Wrap(walleterr.CodeStorage, err, "Failed to persist keychain")
	}
	logx.Info("WALLET", fmt.Sprintf("Revealed address | index=%d | address=%s", index, addr))
	return AddressInfo{Index: index, Address: addr.String()}, nil
}

// SyncChain runs a full scan of both keychains and replaces the stored
// UTXO set.
func (e *HDEngine) SyncChain(ctx context.Context, progress ProgressFunc) (uint64, error) {
	if err := e.requireWallet(); err != nil {
		return 0, err
	}

	states := make(map[types.KeychainKind]types.KeychainState, 2)
	var utxos []types.UTXO
	for _, kc := range []*Keychain{e.external, e.internal} {
		state, err := e.store.GetKeychain(kc.Kind())
		if err != nil {
			return 0, walleterr.Wrap(walleterr.CodeStorage, err, "Failed to read keychain")
		}
		res, err := scanKeychain(ctx, e.chain, kc, scanOptions{
			stopGap:  e.cfg.StopGap,
			parallel: e.cfg.ParallelRequests,
			revealed: state.NextIndex,
		}, progress)
		if err != nil {
			return 0, walleterr.Wrap(walleterr.CodeNetwork, err, "Failed to sync wallet")
		}
		if res.usedCount > state.UsedCount {
			state.UsedCount = res.usedCount
		}
		if state.NextIndex < state.UsedCount {
			state.NextIndex = state.UsedCount
		}
		states[kc.Kind()] = state
		utxos = append(utxos, res.utxos...)
	}

	if err := e.store.ReplaceSync(utxos, states); err != nil {
		return 0, walleterr.Wrap(walleterr.CodeStorage, err, "Failed to persist sync")
	}
	balance := types.TotalValue(utxos)
	logx.Info("WALLET", fmt.Sprintf("Sync completed | balance=%d | utxos=%d", balance, len(utxos)))
	return balance, nil
}

func (e *HDEngine) GetBalance(ctx context.Context) (uint64, error) {
	if err := e.requireWallet(); err != nil {
		return 0, err
	}
	utxos, err := e.store.ListUTXOs()
	if err != nil {
		return 0, walleterr.Wrap(walleterr.CodeStorage, err, "Failed to read balance")
	}
	return types.TotalValue(utxos), nil
}

// BroadcastTransaction pays amountSats to the configured recipient or to
// the wallet's own next receive address, signs, broadcasts and records the
// spend.
func (e *HDEngine) BroadcastTransaction(ctx context.Context, amountSats uint64) (string, error) {
	if err := e.requireWallet(); err != nil {
		return "", err
	}
	if amountSats < DustLimit {
		return "", walleterr.Newf(walleterr.CodeInvalidAmount, walleterr.MsgInvalidAmount, amountSats, DustLimit)
	}

	utxos, err := e.store.ListUTXOs()
	if err != nil {
		return "", walleterr.Wrap(walleterr.CodeStorage, err, "Failed to read utxos")
	}
	if available := types.TotalValue(utxos); available < amountSats {
		return "", walleterr.Newf(walleterr.CodeInsufficientFunds, walleterr.MsgInsufficientFunds, amountSats, available)
	}
	plan, err := selectCoins(utxos, amountSats, e.cfg.FeeRate)
	if err != nil {
		return "", err
	}

	extState, err := e.store.GetKeychain(types.KeychainExternal)
	if err != nil {
		return "", walleterr.Wrap(walleterr.CodeStorage, err, "Failed to read keychain")
	}
	intState, err := e.store.GetKeychain(types.KeychainInternal)
	if err != nil {
		return "", walleterr.Wrap(walleterr.CodeStorage, err, "Failed to read keychain")
	}

	payTo, ownIndex := e.sendTo, int64(-1)
	if payTo == nil {
		index := nextUnused(&extState)
		if _, payTo, err = e.external.Address(index); err != nil {
			return "", walleterr.Wrap(walleterr.CodeInternal, err, "Failed to derive recipient")
		}
		ownIndex = int64(index)
	}
	var (
		changeTo    []byte
		changeIndex uint32
	)
	if plan.change > 0 {
		changeIndex = nextUnused(&intState)
		if _, changeTo, err = e.internal.Address(changeIndex); err != nil {
			return "", walleterr.Wrap(walleterr.CodeInternal, err, "Failed to derive change address")
		}
	}

	tx, err := buildTransaction(plan, payTo, changeTo, e.signerFor)
	if err != nil {
		return "", walleterr.Wrap(walleterr.CodeInternal, err, "Failed to build transaction")
	}
	raw, err := serializeTx(tx)
	if err != nil {
		return "", walleterr.Wrap(walleterr.CodeInternal, err, "Failed to serialize transaction")
	}

	txid := tx.TxHash().String()
	reported, err := e.chain.Broadcast(ctx, raw)
	if err != nil {
		var statusErr *esplora.StatusError
		if errors.As(err, &statusErr) && statusErr.Status < 500 {
			return "", walleterr.Wrap(walleterr.CodeBroadcastRejected, err, "Transaction rejected")
		}
		return "", walleterr.Wrap(walleterr.CodeNetwork, err, "Failed to broadcast transaction")
	}
	if reported != "" && reported != txid {
		logx.Warn("WALLET", fmt.Sprintf("Esplora reported a different txid | local=%s | reported=%s", txid, reported))
	}

	spent := make([]types.OutPoint, 0, len(plan.inputs))
	for _, u := range plan.inputs {
		spent = append(spent, u.OutPoint)
	}
	var created []types.UTXO
	if ownIndex >= 0 {
		created = append(created, types.UTXO{
			OutPoint: types.OutPoint{TxID: txid, Vout: 0},
			Value:    plan.amount,
			Keychain: types.KeychainExternal,
			Index:    uint32(ownIndex),
		})
		markUsed(&extState, uint32(ownIndex))
	}
	if plan.change > 0 {
		created = append(created, types.UTXO{
			OutPoint: types.OutPoint{TxID: txid, Vout: 1},
			Value:    plan.change,
			Keychain: types.KeychainInternal,
			Index:    changeIndex,
		})
		markUsed(&intState, changeIndex)
	}

	if err := e.store.ApplySpend(spent, created); err != nil {
		return "", walleterr.Wrap(walleterr.CodeStorage, err, "Transaction sent but not recorded")
	}
	if err := e.store.StoreKeychain(types.KeychainExternal, extState); err != nil {
		return "", walleterr.Wrap(walleterr.CodeStorage, err, "Transaction sent but not recorded")
	}
	if err := e.store.StoreKeychain(types.KeychainInternal, intState); err != nil {
		return "", walleterr.Wrap(walleterr.CodeStorage, err, "Transaction sent but not recorded")
	}

	logx.Info("WALLET", fmt.Sprintf("Transaction broadcast | txid=%s | amount=%d | fee=%d | inputs=%d | change=%d", txid, plan.amount, plan.fee, len(plan.inputs), plan.change))
	return txid, nil
}

func (e *HDEngine) signerFor(u types.UTXO) (*btcec.PrivateKey, []byte, error) {
	kc := e.external
	if u.Keychain == types.KeychainInternal {
		kc = e.internal
	}
	_, script, err := kc.Address(u.Index)
	if err != nil {
		return nil, nil, err
	}
	priv, err := kc.PrivKey(u.Index)
	if err != nil {
		return nil, nil, err
	}
	return priv, script, nil
}

func (e *HDEngine) ensureCreated() error {
	meta, err := e.store.LoadMeta()
	if err != nil {
		return walleterr.Wrap(walleterr.CodeStorage, err, "Failed to load wallet")
	}
	if meta != nil {
		return nil
	}
	meta = &types.WalletMeta{
		Network:     e.cfg.Params.Name,
		Fingerprint: e.fingerprint,
		CreatedAt:   e.now().Unix(),
	}
	if err := e.store.StoreMeta(meta); err != nil {
		return walleterr.Wrap(walleterr.CodeStorage, err, "Failed to create wallet")
	}
	return nil
}

func (e *HDEngine) requireWallet() error {
	meta, err := e.store.LoadMeta()
	if err != nil {
		return walleterr.Wrap(walleterr.CodeStorage, err, "Failed to load wallet")
	}
	if meta == nil {
		return walleterr.New(walleterr.CodeWalletNotFound, walleterr.MsgWalletNotFound)
	}
	return nil
}

// nextUnused returns the lowest revealed unused index, revealing one more
// when every revealed address is used.
func nextUnused(state *types.KeychainState) uint32 {
	if state.UsedCount < state.NextIndex {
		return state.UsedCount
	}
	index := state.NextIndex
	state.NextIndex++
	return index
}

func markUsed(state *types.KeychainState, index uint32) {
	if index+1 > state.UsedCount {
		state.UsedCount = index + 1
	}
	if state.NextIndex < state.UsedCount {
		state.NextIndex = state.UsedCount
	}
}

var _ Engine = (*HDEngine)(nil)
