// Package viewmodel folds the event stream into the state a UI renders.
package viewmodel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mezonai/walletd/events"
	"github.com/mezonai/walletd/logx"
	"github.com/mezonai/walletd/messages"
)

const (
	DefaultClearErrorAfter = 5 * time.Second

	SyncStatusStarted   = "Syncing..."
	SyncStatusCompleted = "Sync completed"
)

// Snapshot is a copy of the state. Nil fields have not been set yet.
type Snapshot struct {
	WalletAddress    *string `json:"walletAddress"`
	WalletBalance    *uint64 `json:"walletBalance"`
	SyncStatus       *string `json:"syncStatus"`
	TxID             *string `json:"txid"`
	WalletError      *string `json:"walletError"`
	HeartbeatCount   uint64  `json:"heartbeatCount"`
	LastPingResponse *string `json:"lastPingResponse"`
	LastDataUpdate   *string `json:"lastDataUpdate"`
}

// Timer is the part of *time.Timer the error clearing needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d; time.AfterFunc in production.
type AfterFunc func(d time.Duration, f func()) Timer

type Options struct {
	ClearErrorAfter time.Duration
	AfterFunc       AfterFunc
}

type reducer func(s *Snapshot, ev messages.Event)

// ViewModel applies one reducer per event name. Safe for concurrent use.
type ViewModel struct {
	mu         sync.RWMutex
	state      Snapshot
	reducers   map[messages.EventName]reducer
	clearAfter time.Duration
	afterFunc  AfterFunc
	errorGen   uint64
	errorTimer Timer
}

func New(opts Options) *ViewModel {
	if opts.ClearErrorAfter <= 0 {
		opts.ClearErrorAfter = DefaultClearErrorAfter
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	vm := &ViewModel{clearAfter: opts.ClearErrorAfter, afterFunc: opts.AfterFunc}
	vm.reducers = map[messages.EventName]reducer{
		messages.EventBackground: func(s *Snapshot, ev messages.Event) {
			s.LastPingResponse = ptr(ev.(messages.BackgroundEvent).Text)
		},
		messages.EventDataUpdated: func(s *Snapshot, ev messages.Event) {
			s.LastDataUpdate = ptr(ev.(messages.DataUpdated).Text)
		},
		messages.EventHeartbeat: func(s *Snapshot, ev messages.Event) {
			s.HeartbeatCount = ev.(messages.Heartbeat).Count
		},
		messages.EventWalletAddress: func(s *Snapshot, ev messages.Event) {
			s.WalletAddress = ptr(ev.(messages.WalletAddress).Packed())
		},
		messages.EventWalletBalance: func(s *Snapshot, ev messages.Event) {
			s.WalletBalance = ptr(ev.(messages.WalletBalance).Sats)
		},
		messages.EventSyncStarted: func(s *Snapshot, _ messages.Event) {
			s.SyncStatus = ptr(SyncStatusStarted)
		},
		messages.EventSyncProgress: func(s *Snapshot, ev messages.Event) {
			s.SyncStatus = ptr(ev.(messages.SyncProgress).Text)
		},
		messages.EventSyncCompleted: func(s *Snapshot, ev messages.Event) {
			s.SyncStatus = ptr(SyncStatusCompleted)
			s.WalletBalance = ptr(ev.(messages.SyncCompleted).Sats)
		},
		messages.EventTransactionSent: func(s *Snapshot, ev messages.Event) {
			s.TxID = ptr(ev.(messages.TransactionSent).TxID)
		},
		messages.EventWalletError: func(s *Snapshot, ev messages.Event) {
			s.WalletError = ptr(ev.(messages.WalletError).Message)
		},
	}
	return vm
}

// Apply folds one event into the state.
func (vm *ViewModel) Apply(ev messages.Event) {
	reduce, ok := vm.reducers[ev.Name()]
	if !ok {
		logx.Warn("VIEWMODEL", "No reducer for event ", ev.Name())
		return
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	reduce(&vm.state, ev)
	if ev.Name() == messages.EventWalletError {
		vm.scheduleErrorClear()
	}
}

// scheduleErrorClear arms a timer that clears the error only if no newer
// error arrived meanwhile. Caller holds vm.mu.
func (vm *ViewModel) scheduleErrorClear() {
	vm.errorGen++
	gen := vm.errorGen
	if vm.errorTimer != nil {
		vm.errorTimer.Stop()
	}
	vm.errorTimer = vm.afterFunc(vm.clearAfter, func() {
		vm.mu.Lock()
		defer vm.mu.Unlock()
		if vm.errorGen == gen {
			vm.state.WalletError = nil
		}
	})
}

func (vm *ViewModel) Snapshot() Snapshot {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	s := vm.state
	s.WalletAddress = clone(s.WalletAddress)
	s.WalletBalance = clone(s.WalletBalance)
	s.SyncStatus = clone(s.SyncStatus)
	s.TxID = clone(s.TxID)
	s.WalletError = clone(s.WalletError)
	s.LastPingResponse = clone(s.LastPingResponse)
	s.LastDataUpdate = clone(s.LastDataUpdate)
	return s
}

// StateSource is the persisted state a restarted daemon starts from.
type StateSource interface {
	GetLastBalance() (uint64, bool, error)
	GetAppData() (string, bool, error)
}

// Restore seeds the balance and the last data update from src through the
// same reducers live events use. Unset values stay nil.
func (vm *ViewModel) Restore(src StateSource) error {
	balance, ok, err := src.GetLastBalance()
	if err != nil {
		return fmt.Errorf("restore balance: %w", err)
	}
	if ok {
		vm.Apply(messages.NewWalletBalance(balance))
	}
	payload, ok, err := src.GetAppData()
	if err != nil {
		return fmt.Errorf("restore data: %w", err)
	}
	if ok {
		vm.Apply(messages.NewDataUpdated(payload))
	}
	logx.Info("VIEWMODEL", fmt.Sprintf("Restored state | balance_known=%v | data_known=%v", vm.Snapshot().WalletBalance != nil, vm.Snapshot().LastDataUpdate != nil))
	return nil
}

// Attach subscribes the view-model to every event until ctx ends.
func (vm *ViewModel) Attach(ctx context.Context, bus *events.EventBus) *events.Subscription {
	return bus.SubscribeFunc(ctx, vm.Apply)
}

// Close stops a pending error clear.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.errorTimer != nil {
		vm.errorTimer.Stop()
		vm.errorTimer = nil
	}
}

func ptr[T any](v T) *T {
	return &v
}

func clone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
