package worker

import (
	"sync/atomic"

	"github.com/mezonai/walletd/monitoring"
)

type SyncStatus int32

const (
	Idle SyncStatus = iota
	Syncing
)

func (s SyncStatus) String() string {
	if s == Syncing {
		return "Syncing"
	}
	return "Idle"
}

// SyncState guards against overlapping syncs.
type SyncState struct {
	status atomic.Int32
}

// Begin moves Idle to Syncing and reports whether it did.
func (s *SyncState) Begin() bool {
	if !s.status.CompareAndSwap(int32(Idle), int32(Syncing)) {
		return false
	}
	monitoring.SetSyncing(true)
	return true
}

// Finish returns to Idle. Calling it while Idle is a no-op.
func (s *SyncState) Finish() {
	if s.status.Swap(int32(Idle)) == int32(Syncing) {
		monitoring.SetSyncing(false)
	}
}

func (s *SyncState) Status() SyncStatus {
	return SyncStatus(s.status.Load())
}
