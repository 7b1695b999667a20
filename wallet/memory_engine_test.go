package wallet

import (
	"context"
	"math"
	"testing"

	"github.com/mezonai/walletd/walleterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEngineBalanceVisibleAfterSync(t *testing.T) {
	engine := NewMemoryEngine(MemoryOptions{Funds: 120000, SyncSteps: 3, Fee: 141})
	ctx := context.Background()

	balance, err := engine.GetBalance(ctx)
	require.NoError(t, err)
	assert.Zero(t, balance)

	var progress []string
	synced, err := engine.SyncChain(ctx, func(text string) { progress = append(progress, text) })
	require.NoError(t, err)
	assert.Equal(t, uint64(120000), synced)
	assert.Equal(t, []string{
		"Scanning keychain External at index 0",
		"Scanning keychain External at index 1",
		"Scanning keychain External at index 2",
	}, progress)

	balance, err = engine.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, synced, balance)
}

func TestMemoryEngineAddresses(t *testing.T) {
	engine := NewMemoryEngine(MemoryOptions{})
	ctx := context.Background()

	a, err := engine.DeriveAddress(ctx)
	require.NoError(t, err)
	b, err := engine.DeriveAddress(ctx)
	require.NoError(t, err)
	assert.Equal(t, a, b, "unused address is handed out again")

	engine.Fund(1000)
	c, err := engine.DeriveAddress(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.Index+1, c.Index)
	assert.NotEqual(t, a.Address, c.Address)
}

func TestMemoryEngineSend(t *testing.T) {
	engine := NewMemoryEngine(MemoryOptions{Funds: 100000, Fee: 141})
	ctx := context.Background()
	_, err := engine.SyncChain(ctx, nil)
	require.NoError(t, err)

	_, err = engine.BroadcastTransaction(ctx, 100)
	assert.True(t, walleterr.Is(err, walleterr.CodeInvalidAmount))

	_, err = engine.BroadcastTransaction(ctx, 999999999)
	assert.True(t, walleterr.Is(err, walleterr.CodeInsufficientFunds))

	txid, err := engine.BroadcastTransaction(ctx, 5000)
	require.NoError(t, err)
	assert.Len(t, txid, 64)
	assert.Equal(t, []string{txid}, engine.Sent())

	balance, err := engine.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100000-141), balance)
}

func TestMemoryEngineSendOverflowingAmount(t *testing.T) {
	engine := NewMemoryEngine(MemoryOptions{Funds: 100000, Fee: 141})
	ctx := context.Background()
	_, err := engine.SyncChain(ctx, nil)
	require.NoError(t, err)

	_, err = engine.BroadcastTransaction(ctx, math.MaxUint64-100)
	require.Error(t, err)
	assert.True(t, walleterr.Is(err, walleterr.CodeInsufficientFunds))
	assert.Equal(t, "Not enough funds. Required: 18446744073709551615 sat, Available: 100000 sat", err.Error())
	assert.Empty(t, engine.Sent())

	balance, err := engine.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100000), balance)
}

func TestMemoryEngineSyncHonorsContext(t *testing.T) {
	engine := NewMemoryEngine(MemoryOptions{Funds: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.SyncChain(ctx, nil)
	assert.True(t, walleterr.Is(err, walleterr.CodeNetwork))
}
