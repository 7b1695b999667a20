package viewmodel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mezonai/walletd/events"
	"github.com/mezonai/walletd/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTimers records scheduled callbacks so tests decide when they fire.
type manualTimers struct {
	mu      sync.Mutex
	pending []func()
	delays  []time.Duration
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

func (m *manualTimers) afterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, f)
	m.delays = append(m.delays, d)
	return noopTimer{}
}

func (m *manualTimers) fire(i int) {
	m.mu.Lock()
	f := m.pending[i]
	m.mu.Unlock()
	f()
}

func TestReducersSetOneFieldEach(t *testing.T) {
	vm := New(Options{})
	defer vm.Close()

	vm.Apply(messages.NewBackgroundEvent("pong"))
	vm.Apply(messages.NewDataUpdated("Hello from frontend!"))
	vm.Apply(messages.NewHeartbeat(4))
	vm.Apply(messages.NewWalletAddress(2, "tb1qxyz"))
	vm.Apply(messages.NewWalletBalance(1500))
	vm.Apply(messages.NewTransactionSent("ab12"))

	s := vm.Snapshot()
	assert.Equal(t, "pong", *s.LastPingResponse)
	assert.Equal(t, "Hello from frontend!", *s.LastDataUpdate)
	assert.Equal(t, uint64(4), s.HeartbeatCount)
	assert.Equal(t, "2|tb1qxyz", *s.WalletAddress)
	assert.Equal(t, uint64(1500), *s.WalletBalance)
	assert.Equal(t, "ab12", *s.TxID)
	assert.Nil(t, s.SyncStatus)
	assert.Nil(t, s.WalletError)
}

func TestSyncEventsDriveStatus(t *testing.T) {
	vm := New(Options{})

	vm.Apply(messages.SyncStarted{})
	assert.Equal(t, SyncStatusStarted, *vm.Snapshot().SyncStatus)

	vm.Apply(messages.NewSyncProgress("Scanning keychain External at index 3"))
	assert.Equal(t, "Scanning keychain External at index 3", *vm.Snapshot().SyncStatus)

	vm.Apply(messages.NewSyncCompleted(98765))
	s := vm.Snapshot()
	assert.Equal(t, SyncStatusCompleted, *s.SyncStatus)
	assert.Equal(t, uint64(98765), *s.WalletBalance)
}

func TestLastWriteWins(t *testing.T) {
	vm := New(Options{})
	vm.Apply(messages.NewWalletBalance(1))
	vm.Apply(messages.NewWalletBalance(2))
	assert.Equal(t, uint64(2), *vm.Snapshot().WalletBalance)
}

func TestSnapshotIsACopy(t *testing.T) {
	vm := New(Options{})
	vm.Apply(messages.NewTransactionSent("first"))
	s := vm.Snapshot()
	*s.TxID = "mutated"
	assert.Equal(t, "first", *vm.Snapshot().TxID)
}

func TestNewerErrorSurvivesOlderTimer(t *testing.T) {
	timers := &manualTimers{}
	vm := New(Options{ClearErrorAfter: 5 * time.Second, AfterFunc: timers.afterFunc})

	vm.Apply(messages.NewWalletError("A"))
	vm.Apply(messages.NewWalletError("B"))
	require.Len(t, timers.pending, 2)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, timers.delays)

	// A's deadline passes first
	timers.fire(0)
	require.NotNil(t, vm.Snapshot().WalletError)
	assert.Equal(t, "B", *vm.Snapshot().WalletError)

	timers.fire(1)
	assert.Nil(t, vm.Snapshot().WalletError)
}

func TestErrorClearsWithRealTimer(t *testing.T) {
	vm := New(Options{ClearErrorAfter: 20 * time.Millisecond})
	defer vm.Close()

	vm.Apply(messages.NewWalletError("Wallet not found. Create a wallet first."))
	require.NotNil(t, vm.Snapshot().WalletError)
	assert.Eventually(t, func() bool { return vm.Snapshot().WalletError == nil }, time.Second, 5*time.Millisecond)
}

func TestAttachFollowsBus(t *testing.T) {
	bus := events.NewEventBus()
	vm := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	sub := vm.Attach(ctx, bus)

	bus.Publish(messages.NewSyncCompleted(42))
	assert.Eventually(t, func() bool {
		s := vm.Snapshot()
		return s.WalletBalance != nil && *s.WalletBalance == 42
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-sub.Done()
	assert.Equal(t, 0, bus.GetTotalSubscriptions())
}

type storedState struct {
	balance    uint64
	hasBalance bool
	data       string
	hasData    bool
	err        error
}

func (s storedState) GetLastBalance() (uint64, bool, error) { return s.balance, s.hasBalance, s.err }
func (s storedState) GetAppData() (string, bool, error)     { return s.data, s.hasData, nil }

func TestRestore(t *testing.T) {
	vm := New(Options{})
	require.NoError(t, vm.Restore(storedState{balance: 4200, hasBalance: true, data: "saved", hasData: true}))

	snap := vm.Snapshot()
	require.NotNil(t, snap.WalletBalance)
	assert.Equal(t, uint64(4200), *snap.WalletBalance)
	require.NotNil(t, snap.LastDataUpdate)
	assert.Equal(t, "saved", *snap.LastDataUpdate)
	assert.Nil(t, snap.SyncStatus)
}

func TestRestoreLeavesUnsetFieldsNil(t *testing.T) {
	vm := New(Options{})
	require.NoError(t, vm.Restore(storedState{}))
	snap := vm.Snapshot()
	assert.Nil(t, snap.WalletBalance)
	assert.Nil(t, snap.LastDataUpdate)

	assert.Error(t, New(Options{}).Restore(storedState{err: assert.AnError}))
}
