package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mezonai/walletd/events"
	"github.com/mezonai/walletd/messages"
	"github.com/mezonai/walletd/wallet"
	"github.com/mezonai/walletd/walleterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const noHeartbeat = time.Hour

type recorder struct {
	mu     sync.Mutex
	events []messages.Event
}

func (r *recorder) Publish(ev messages.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []messages.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]messages.Event(nil), r.events...)
}

type fakeEngine struct {
	mu        sync.Mutex
	balance   uint64
	steps     []string
	syncErr   error
	deriveErr error
	panicSync bool
	block     chan struct{}
	cancelled chan struct{}
}

func (f *fakeEngine) DeriveAddress(ctx context.Context) (wallet.AddressInfo, error) {
	if f.deriveErr != nil {
		return wallet.AddressInfo{}, f.deriveErr
	}
	return wallet.AddressInfo{Index: 0, Address: "tb1qfake"}, nil
}

func (f *fakeEngine) SyncChain(ctx context.Context, progress wallet.ProgressFunc) (uint64, error) {
	if f.panicSync {
		panic("engine bug")
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			close(f.cancelled)
			return 0, ctx.Err()
		}
	}
	for _, s := range f.steps {
		progress(s)
	}
	if f.syncErr != nil {
		return 0, f.syncErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeEngine) GetBalance(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeEngine) BroadcastTransaction(ctx context.Context, amountSats uint64) (string, error) {
	return "", walleterr.New(walleterr.CodeNetwork, "offline")
}

type memoryAppData struct {
	mu      sync.Mutex
	payload string
	err     error
}

func (m *memoryAppData) StoreAppData(payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.payload = payload
	return nil
}

func startWorker(t *testing.T, engine wallet.Engine, opts Options) (*Worker, *recorder) {
	t.Helper()
	rec := &recorder{}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = noHeartbeat
	}
	w := New(engine, rec, opts)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Shutdown(context.Background()) })
	return w, rec
}

func withoutHeartbeats(evs []messages.Event) []messages.Event {
	out := evs[:0:0]
	for _, ev := range evs {
		if ev.Name() != messages.EventHeartbeat {
			out = append(out, ev)
		}
	}
	return out
}

// runCommands submits cmds followed by a Ping and returns what the worker
// emitted before the pong.
func runCommands(t *testing.T, w *Worker, rec *recorder, cmds ...messages.Command) []messages.Event {
	t.Helper()
	before := len(rec.snapshot())
	d := w.Dispatcher()
	for _, cmd := range cmds {
		require.NoError(t, d.Submit(cmd))
	}
	require.NoError(t, d.Submit(messages.Ping{}))

	pong := messages.NewBackgroundEvent(messages.PongText)
	var out []messages.Event
	require.Eventually(t, func() bool {
		evs := rec.snapshot()[before:]
		for i, ev := range evs {
			if ev == pong {
				out = withoutHeartbeats(evs[:i])
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	return out
}

func names(evs []messages.Event) []messages.EventName {
	out := make([]messages.EventName, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Name())
	}
	return out
}

func TestPingProducesPong(t *testing.T) {
	w, rec := startWorker(t, &fakeEngine{}, Options{})
	assert.Empty(t, runCommands(t, w, rec))

	evs := withoutHeartbeats(rec.snapshot())
	require.Len(t, evs, 1)
	assert.Equal(t, messages.NewBackgroundEvent("pong"), evs[0])
}

func TestEachCommandEmitsOnlyItsEvents(t *testing.T) {
	engine := wallet.NewMemoryEngine(wallet.MemoryOptions{Funds: 100000, SyncSteps: 3, Fee: 141})
	w, rec := startWorker(t, engine, Options{})

	allowed := map[messages.CommandKind][]messages.EventName{
		messages.KindUpdateData:       {messages.EventDataUpdated, messages.EventWalletError},
		messages.KindGetWalletAddress: {messages.EventWalletAddress, messages.EventWalletError},
		messages.KindSyncWallet:       {messages.EventSyncStarted, messages.EventSyncProgress, messages.EventSyncCompleted, messages.EventWalletError},
		messages.KindGetWalletBalance: {messages.EventWalletBalance, messages.EventWalletError},
		messages.KindSendTransaction:  {messages.EventTransactionSent, messages.EventWalletError},
	}
	cmds := []messages.Command{
		messages.NewUpdateData("Hello from frontend!"),
		messages.GetWalletAddress{},
		messages.SyncWallet{},
		messages.GetWalletBalance{},
		messages.NewSendTransaction(5000),
		messages.NewSendTransaction(0),
	}
	for _, cmd := range cmds {
		evs := runCommands(t, w, rec, cmd)
		require.NotEmpty(t, evs, "%s emitted nothing", cmd.Kind())
		for _, name := range names(evs) {
			assert.Contains(t, allowed[cmd.Kind()], name, "%s emitted %s", cmd.Kind(), name)
		}
	}
}

func TestUpdateDataIsStoredAndEchoed(t *testing.T) {
	store := &memoryAppData{}
	w, rec := startWorker(t, &fakeEngine{}, Options{AppData: store})

	evs := runCommands(t, w, rec, messages.NewUpdateData("Hello from frontend!"))
	assert.Equal(t, []messages.Event{messages.NewDataUpdated("Hello from frontend!")}, evs)
	assert.Equal(t, "Hello from frontend!", store.payload)

	store.err = errors.New("disk full")
	evs = runCommands(t, w, rec, messages.NewUpdateData("lost"))
	require.Len(t, evs, 1)
	assert.Equal(t, messages.EventWalletError, evs[0].Name())
}

func TestGetWalletAddressPacksIndex(t *testing.T) {
	w, rec := startWorker(t, &fakeEngine{}, Options{})
	evs := runCommands(t, w, rec, messages.GetWalletAddress{})
	require.Len(t, evs, 1)
	assert.Equal(t, "0|tb1qfake", evs[0].Payload())
}

func TestSyncCompletedMatchesNextBalance(t *testing.T) {
	engine := wallet.NewMemoryEngine(wallet.MemoryOptions{Funds: 120000, SyncSteps: 2})
	w, rec := startWorker(t, engine, Options{})

	evs := runCommands(t, w, rec, messages.SyncWallet{}, messages.GetWalletBalance{})
	assert.Equal(t, []messages.Event{
		messages.SyncStarted{},
		messages.NewSyncProgress("Scanning keychain External at index 0"),
		messages.NewSyncProgress("Scanning keychain External at index 1"),
		messages.NewSyncCompleted(120000),
		messages.NewWalletBalance(120000),
	}, evs)
	assert.Equal(t, Idle, w.SyncStatus())
}

func TestSyncThenBalancesKeepSubmissionOrder(t *testing.T) {
	engine := &fakeEngine{balance: 777, steps: []string{"a", "b", "c"}}
	w, rec := startWorker(t, engine, Options{})

	evs := runCommands(t, w, rec,
		messages.SyncWallet{},
		messages.GetWalletBalance{},
		messages.GetWalletBalance{},
		messages.GetWalletBalance{},
	)
	assert.Equal(t, []messages.Event{
		messages.SyncStarted{},
		messages.NewSyncProgress("a"),
		messages.NewSyncProgress("b"),
		messages.NewSyncProgress("c"),
		messages.NewSyncCompleted(777),
		messages.NewWalletBalance(777),
		messages.NewWalletBalance(777),
		messages.NewWalletBalance(777),
	}, evs)
}

func TestSyncFailureReturnsToIdle(t *testing.T) {
	engine := &fakeEngine{steps: []string{"a"}, syncErr: walleterr.New(walleterr.CodeNetwork, "esplora unreachable")}
	w, rec := startWorker(t, engine, Options{})

	evs := runCommands(t, w, rec, messages.SyncWallet{})
	assert.Equal(t, []messages.EventName{messages.EventSyncStarted, messages.EventSyncProgress, messages.EventWalletError}, names(evs))
	assert.Equal(t, "esplora unreachable", evs[2].Payload())
	assert.Equal(t, Idle, w.SyncStatus())
}

func TestSendTransactionSucceeds(t *testing.T) {
	engine := wallet.NewMemoryEngine(wallet.MemoryOptions{Funds: 100000, Fee: 141})
	w, rec := startWorker(t, engine, Options{})

	runCommands(t, w, rec, messages.SyncWallet{})
	evs := runCommands(t, w, rec, messages.NewSendTransaction(5000))
	require.Len(t, evs, 1)
	sent, ok := evs[0].(messages.TransactionSent)
	require.True(t, ok, "got %s", evs[0].Name())
	assert.NotEmpty(t, sent.TxID)
}

func TestSendTransactionInsufficientFunds(t *testing.T) {
	engine := wallet.NewMemoryEngine(wallet.MemoryOptions{Funds: 100000})
	w, rec := startWorker(t, engine, Options{})

	runCommands(t, w, rec, messages.SyncWallet{})
	evs := runCommands(t, w, rec, messages.NewSendTransaction(999999999))
	require.Len(t, evs, 1)
	werr, ok := evs[0].(messages.WalletError)
	require.True(t, ok, "got %s", evs[0].Name())
	assert.Contains(t, werr.Message, "Not enough funds")
}

func TestEngineFailureDoesNotStopLoop(t *testing.T) {
	engine := &fakeEngine{deriveErr: walleterr.New(walleterr.CodeWalletNotFound, walleterr.MsgWalletNotFound)}
	w, rec := startWorker(t, engine, Options{})

	evs := runCommands(t, w, rec, messages.GetWalletAddress{}, messages.GetWalletAddress{})
	assert.Equal(t, []messages.Event{
		messages.NewWalletError(walleterr.MsgWalletNotFound),
		messages.NewWalletError(walleterr.MsgWalletNotFound),
	}, evs)
	assert.Equal(t, []messages.Event{messages.NewWalletBalance(0)}, runCommands(t, w, rec, messages.GetWalletBalance{}))
}

func TestHandlerPanicBecomesWalletError(t *testing.T) {
	w, rec := startWorker(t, &fakeEngine{panicSync: true}, Options{})

	evs := runCommands(t, w, rec, messages.SyncWallet{})
	require.Equal(t, []messages.EventName{messages.EventSyncStarted, messages.EventWalletError}, names(evs))
	assert.Contains(t, evs[1].Payload(), "engine bug")
	assert.Equal(t, Idle, w.SyncStatus())

	evs = runCommands(t, w, rec, messages.SyncWallet{})
	assert.Equal(t, messages.EventSyncStarted, evs[0].Name(), "sync state must not stay stuck")
}

func TestHeartbeatCountsFromOne(t *testing.T) {
	bus := events.NewEventBus()
	sub := bus.Subscribe(messages.EventHeartbeat)
	defer sub.Close()

	w := New(&fakeEngine{}, bus, Options{HeartbeatInterval: 5 * time.Millisecond})
	require.NoError(t, w.Start(context.Background()))
	defer w.Shutdown(context.Background())

	for want := uint64(1); want <= 5; want++ {
		select {
		case ev := <-sub.C():
			assert.Equal(t, messages.NewHeartbeat(want), ev)
		case <-time.After(time.Second):
			t.Fatalf("no heartbeat %d", want)
		}
	}
}

func TestHeartbeatRunsDuringLongCommand(t *testing.T) {
	engine := &fakeEngine{block: make(chan struct{}), cancelled: make(chan struct{})}
	w, rec := startWorker(t, engine, Options{HeartbeatInterval: 5 * time.Millisecond})

	require.NoError(t, w.Dispatcher().Submit(messages.SyncWallet{}))
	require.Eventually(t, func() bool { return w.SyncStatus() == Syncing }, time.Second, time.Millisecond)

	start := w.HeartbeatCount()
	require.Eventually(t, func() bool { return w.HeartbeatCount() >= start+3 }, time.Second, time.Millisecond)
	assert.Equal(t, Syncing, w.SyncStatus())

	close(engine.block)
	require.Eventually(t, func() bool {
		for _, ev := range rec.snapshot() {
			if ev.Name() == messages.EventSyncCompleted {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

func TestShutdownDrainsQueuedCommands(t *testing.T) {
	rec := &recorder{}
	w := New(&fakeEngine{}, rec, Options{HeartbeatInterval: noHeartbeat})
	d := w.Dispatcher()
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Submit(messages.Ping{}))
	}
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Shutdown(context.Background()))

	assert.Len(t, withoutHeartbeats(rec.snapshot()), 3)
	assert.ErrorIs(t, d.Submit(messages.Ping{}), ErrWorkerUnavailable)
	assert.ErrorIs(t, w.Start(context.Background()), ErrWorkerUnavailable)
}

func TestHeartbeatContinuesWhileShutdownDrains(t *testing.T) {
	engine := &fakeEngine{block: make(chan struct{}), cancelled: make(chan struct{})}
	rec := &recorder{}
	w := New(engine, rec, Options{HeartbeatInterval: 5 * time.Millisecond})
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Dispatcher().Submit(messages.SyncWallet{}))
	require.Eventually(t, func() bool { return w.SyncStatus() == Syncing }, time.Second, time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- w.Shutdown(context.Background()) }()

	start := w.HeartbeatCount()
	require.Eventually(t, func() bool { return w.HeartbeatCount() >= start+3 }, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("shutdown returned while a command was still running")
	default:
	}

	close(engine.block)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("shutdown did not finish")
	}
	stopped := w.HeartbeatCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, w.HeartbeatCount())
	assert.Contains(t, names(rec.snapshot()), messages.EventSyncCompleted)
}

func TestShutdownTimeoutCancelsEngineCall(t *testing.T) {
	engine := &fakeEngine{block: make(chan struct{}), cancelled: make(chan struct{})}
	rec := &recorder{}
	w := New(engine, rec, Options{HeartbeatInterval: noHeartbeat})
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Dispatcher().Submit(messages.SyncWallet{}))
	require.Eventually(t, func() bool { return w.SyncStatus() == Syncing }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Shutdown(ctx), context.DeadlineExceeded)

	select {
	case <-engine.cancelled:
	default:
		t.Fatal("engine call was not cancelled")
	}
	assert.Equal(t, Idle, w.SyncStatus())
}

func TestStartTwice(t *testing.T) {
	w, _ := startWorker(t, &fakeEngine{}, Options{})
	assert.Error(t, w.Start(context.Background()))
}

func TestSubmitNil(t *testing.T) {
	w, _ := startWorker(t, &fakeEngine{}, Options{})
	assert.Error(t, w.Dispatcher().Submit(nil))
}

func TestSyncState(t *testing.T) {
	var s SyncState
	assert.Equal(t, Idle, s.Status())
	assert.True(t, s.Begin())
	assert.False(t, s.Begin(), "overlapping sync refused")
	assert.Equal(t, Syncing, s.Status())
	s.Finish()
	s.Finish()
	assert.Equal(t, Idle, s.Status())
	assert.Equal(t, "Syncing", Syncing.String())
}
