package store

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/mezonai/walletd/db"
	"github.com/mezonai/walletd/jsonx"
	"github.com/mezonai/walletd/logx"
	"github.com/mezonai/walletd/types"
)

// WalletStore persists everything the engine needs across restarts.
type WalletStore interface {
	// LoadMeta returns nil, nil when no wallet has been created yet
	LoadMeta() (*types.WalletMeta, error)
	StoreMeta(meta *types.WalletMeta) error

	GetKeychain(kind types.KeychainKind) (types.KeychainState, error)
	StoreKeychain(kind types.KeychainKind, state types.KeychainState) error

	ListUTXOs() ([]types.UTXO, error)
	// ReplaceSync swaps the whole UTXO set and both keychain states in one
	// batch after a full scan.
	ReplaceSync(utxos []types.UTXO, states map[types.KeychainKind]types.KeychainState) error
	// ApplySpend removes spent outputs and adds created ones in one batch.
	ApplySpend(spent []types.OutPoint, created []types.UTXO) error

	// GetLastBalance is the balance written by the last ReplaceSync or
	// ApplySpend; false when neither ran yet.
	GetLastBalance() (uint64, bool, error)

	StoreAppData(payload string) error
	GetAppData() (string, bool, error)

	MustClose()
}

type GenericWalletStore struct {
	mu         sync.RWMutex
	dbProvider db.IterableProvider
}

func NewGenericWalletStore(dbProvider db.IterableProvider) (*GenericWalletStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	return &GenericWalletStore{dbProvider: dbProvider}, nil
}

func (ws *GenericWalletStore) LoadMeta() (*types.WalletMeta, error) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	data, err := ws.dbProvider.Get([]byte(WalletMetaKey))
	if err != nil {
		return nil, fmt.Errorf("could not get wallet meta from db: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var meta types.WalletMeta
	if err := jsonx.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet meta: %w", err)
	}
	return &meta, nil
}

func (ws *GenericWalletStore) StoreMeta(meta *types.WalletMeta) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	data, err := jsonx.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet meta: %w", err)
	}
	if err := ws.dbProvider.Put([]byte(WalletMetaKey), data); err != nil {
		return fmt.Errorf("failed to write wallet meta to db: %w", err)
	}
	logx.Info("STORE", fmt.Sprintf("Wallet created | network=%s | fingerprint=%s", meta.Network, meta.Fingerprint))
	return nil
}

func (ws *GenericWalletStore) GetKeychain(kind types.KeychainKind) (types.KeychainState, error) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	var state types.KeychainState
	data, err := ws.dbProvider.Get(keychainKey(kind))
	if err != nil {
		return state, fmt.Errorf("could not get %s keychain from db: %w", kind, err)
	}
	if data == nil {
		return state, nil
	}
	if err := jsonx.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("failed to unmarshal %s keychain: %w", kind, err)
	}
	return state, nil
}

func (ws *GenericWalletStore) StoreKeychain(kind types.KeychainKind, state types.KeychainState) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	data, err := jsonx.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal %s keychain: %w", kind, err)
	}
	if err := ws.dbProvider.Put(keychainKey(kind), data); err != nil {
		return fmt.Errorf("failed to write %s keychain to db: %w", kind, err)
	}
	return nil
}

func (ws *GenericWalletStore) ListUTXOs() ([]types.UTXO, error) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.listUTXOs()
}

// listUTXOs reads the stored set. Caller holds ws.mu.
func (ws *GenericWalletStore) listUTXOs() ([]types.UTXO, error) {
	var (
		utxos  []types.UTXO
		decErr error
	)
	err := ws.dbProvider.IteratePrefix([]byte(PrefixUTXO), func(key, value []byte) bool {
		var u types.UTXO
		if err := jsonx.Unmarshal(value, &u); err != nil {
			decErr = fmt.Errorf("failed to unmarshal utxo %s: %w", key, err)
			return false
		}
		utxos = append(utxos, u)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("could not iterate utxos: %w", err)
	}
	if decErr != nil {
		return nil, decErr
	}
	return utxos, nil
}

func (ws *GenericWalletStore) ReplaceSync(utxos []types.UTXO, states map[types.KeychainKind]types.KeychainState) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	batch := ws.dbProvider.Batch()
	defer batch.Close()

	var stale [][]byte
	err := ws.dbProvider.IteratePrefix([]byte(PrefixUTXO), func(key, _ []byte) bool {
		stale = append(stale, append([]byte(nil), key...))
		return true
	})
	if err != nil {
		return fmt.Errorf("could not iterate utxos: %w", err)
	}
	for _, key := range stale {
		batch.Delete(key)
	}
	for _, u := range utxos {
		data, err := jsonx.Marshal(u)
		if err != nil {
			return fmt.Errorf("failed to marshal utxo %s: %w", u.OutPoint, err)
		}
		batch.Put(utxoKey(u.OutPoint), data)
	}
	for kind, state := range states {
		data, err := jsonx.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to marshal %s keychain: %w", kind, err)
		}
		batch.Put(keychainKey(kind), data)
	}
	balance := types.TotalValue(utxos)
	putBalance(batch, balance)

	if err := batch.Write(); err != nil {
		return fmt.Errorf("failed to write sync batch to database: %w", err)
	}
	logx.Info("STORE", fmt.Sprintf("Replaced utxo set | removed=%d | stored=%d | balance=%d", len(stale), len(utxos), balance))
	return nil
}

func (ws *GenericWalletStore) ApplySpend(spent []types.OutPoint, created []types.UTXO) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	current, err := ws.listUTXOs()
	if err != nil {
		return err
	}
	// created outputs replace any stored entry with the same outpoint
	gone := make(map[types.OutPoint]struct{}, len(spent)+len(created))
	for _, op := range spent {
		gone[op] = struct{}{}
	}
	for _, u := range created {
		gone[u.OutPoint] = struct{}{}
	}
	balance := types.TotalValue(created)
	for _, u := range current {
		if _, ok := gone[u.OutPoint]; !ok {
			balance += u.Value
		}
	}

	batch := ws.dbProvider.Batch()
	defer batch.Close()

	for _, op := range spent {
		batch.Delete(utxoKey(op))
	}
	for _, u := range created {
		data, err := jsonx.Marshal(u)
		if err != nil {
			return fmt.Errorf("failed to marshal utxo %s: %w", u.OutPoint, err)
		}
		batch.Put(utxoKey(u.OutPoint), data)
	}
	putBalance(batch, balance)
	if err := batch.Write(); err != nil {
		return fmt.Errorf("failed to write spend batch to database: %w", err)
	}
	return nil
}

func (ws *GenericWalletStore) GetLastBalance() (uint64, bool, error) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	data, err := ws.dbProvider.Get([]byte(AppBalanceKey))
	if err != nil || data == nil {
		return 0, false, err
	}
	sats, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt last balance %q: %w", data, err)
	}
	return sats, true, nil
}

func (ws *GenericWalletStore) StoreAppData(payload string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if err := ws.dbProvider.Put([]byte(AppDataKey), []byte(payload)); err != nil {
		return fmt.Errorf("failed to write app data to db: %w", err)
	}
	return nil
}

func (ws *GenericWalletStore) GetAppData() (string, bool, error) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	data, err := ws.dbProvider.Get([]byte(AppDataKey))
	if err != nil {
		return "", false, fmt.Errorf("could not get app data from db: %w", err)
	}
	if data == nil {
		return "", false, nil
	}
	return string(data), true, nil
}

func (ws *GenericWalletStore) MustClose() {
	if err := ws.dbProvider.Close(); err != nil {
		logx.Error("STORE", "Failed to close provider: ", err)
	}
}

func putBalance(batch db.DatabaseBatch, sats uint64) {
	batch.Put([]byte(AppBalanceKey), []byte(strconv.FormatUint(sats, 10)))
}

func keychainKey(kind types.KeychainKind) []byte {
	return []byte(PrefixKeychain + strconv.Itoa(int(kind)))
}

func utxoKey(op types.OutPoint) []byte {
	return []byte(PrefixUTXO + op.String())
}

var _ WalletStore = (*GenericWalletStore)(nil)
