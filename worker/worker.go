// Package worker runs the single background task that owns the wallet.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mezonai/walletd/events"
	"github.com/mezonai/walletd/exception"
	"github.com/mezonai/walletd/logx"
	"github.com/mezonai/walletd/messages"
	"github.com/mezonai/walletd/monitoring"
	"github.com/mezonai/walletd/queue"
	"github.com/mezonai/walletd/wallet"
)

// AppDataStore keeps the last UpdateData payload.
type AppDataStore interface {
	StoreAppData(payload string) error
}

type Options struct {
	HeartbeatInterval time.Duration
	// AppData is optional; without it UpdateData is only echoed
	AppData AppDataStore
}

// Worker consumes commands one at a time, in submission order.
type Worker struct {
	engine    wallet.Engine
	bus       events.Publisher
	appData   AppDataStore
	inbox     *queue.Mailbox[messages.Command]
	sync      SyncState
	heartbeat *Heartbeat

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	loopWg  sync.WaitGroup
	beatWg  sync.WaitGroup
	stopHB  context.CancelFunc
}

func New(engine wallet.Engine, bus events.Publisher, opts Options) *Worker {
	return &Worker{
		engine:    engine,
		bus:       bus,
		appData:   opts.AppData,
		inbox:     queue.NewMailbox[messages.Command](),
		heartbeat: NewHeartbeat(opts.HeartbeatInterval, bus),
	}
}

// Dispatcher returns the handle controllers submit through.
func (w *Worker) Dispatcher() *Dispatcher {
	return &Dispatcher{inbox: w.inbox}
}

// Start launches the command loop and the heartbeat. It may be called once.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inbox.Closed() {
		return ErrWorkerUnavailable
	}
	if w.started {
		return fmt.Errorf("worker already started")
	}
	w.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	hbCtx, stopHB := context.WithCancel(loopCtx)
	w.stopHB = stopHB

	w.loopWg.Add(1)
	exception.SafeGo("wallet-worker", func() {
		defer w.loopWg.Done()
		w.run(loopCtx)
	})
	w.beatWg.Add(1)
	exception.SafeGo("heartbeat", func() {
		defer w.beatWg.Done()
		w.heartbeat.Run(hbCtx)
	})
	return nil
}

// Shutdown stops accepting commands and lets the loop drain what is already
// queued. The heartbeat keeps beating until the loop has returned. If ctx
// ends first the in-flight engine call is cancelled and the rest of the
// queue is dropped.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.inbox.Close()

	w.mu.Lock()
	started, cancel, stopHB := w.started, w.cancel, w.stopHB
	w.mu.Unlock()
	if !started {
		return nil
	}

	drained := make(chan struct{})
	go func() {
		w.loopWg.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		cancel()
		<-drained
		err = ctx.Err()
	}
	stopHB()
	w.beatWg.Wait()
	cancel()

	if err != nil {
		logx.Warn("WORKER", fmt.Sprintf("Background task stopped before draining | dropped=%d", w.inbox.Len()))
		return err
	}
	logx.Info("WORKER", "Background task stopped")
	return nil
}

func (w *Worker) SyncStatus() SyncStatus {
	return w.sync.Status()
}

func (w *Worker) HeartbeatCount() uint64 {
	return w.heartbeat.Count()
}

func (w *Worker) run(ctx context.Context) {
	logx.Info("WORKER", "Background task started")
	for {
		cmd, ok := w.inbox.Pop(ctx)
		if !ok {
			return
		}
		monitoring.SetInboxDepth(w.inbox.Len())
		w.process(ctx, cmd)
	}
}

// process handles one command. A panic in a handler becomes a
// WalletError and the loop carries on.
func (w *Worker) process(ctx context.Context, cmd messages.Command) {
	start := time.Now()
	if r := exception.Recover("worker-"+string(cmd.Kind()), func() { w.handle(ctx, cmd) }); r != nil {
		w.sync.Finish()
		w.walletError(cmd.Kind(), fmt.Errorf("internal error: %v", r))
	}
	monitoring.IncreaseCommandProcessed(string(cmd.Kind()))
	logx.Debug("WORKER", fmt.Sprintf("Processed command | command=%s | took=%s", cmd.Kind(), time.Since(start)))
}

func (w *Worker) handle(ctx context.Context, cmd messages.Command) {
	switch c := cmd.(type) {
	case messages.Ping:
		w.bus.Publish(messages.NewBackgroundEvent(messages.PongText))

	case messages.UpdateData:
		if w.appData != nil {
			if err := w.appData.StoreAppData(c.Payload); err != nil {
				w.walletError(c.Kind(), fmt.Errorf("failed to store data: %w", err))
				return
			}
		}
		w.bus.Publish(messages.NewDataUpdated(c.Payload))

	case messages.GetWalletAddress:
		info, err := w.engine.DeriveAddress(ctx)
		if err != nil {
			w.walletError(c.Kind(), err)
			return
		}
		w.bus.Publish(messages.NewWalletAddress(info.Index, info.Address))

	case messages.SyncWallet:
		w.syncWallet(ctx)

	case messages.GetWalletBalance:
		sats, err := w.engine.GetBalance(ctx)
		if err != nil {
			w.walletError(c.Kind(), err)
			return
		}
		w.bus.Publish(messages.NewWalletBalance(sats))

	case messages.SendTransaction:
		txid, err := w.engine.BroadcastTransaction(ctx, c.AmountSats)
		if err != nil {
			w.walletError(c.Kind(), err)
			return
		}
		logx.Info("WORKER", fmt.Sprintf("Transaction sent | amount=%d | txid=%s", c.AmountSats, txid))
		w.bus.Publish(messages.NewTransactionSent(txid))

	default:
		logx.Warn("WORKER", fmt.Sprintf("Ignoring unknown command %T", cmd))
	}
}

func (w *Worker) syncWallet(ctx context.Context) {
	if !w.sync.Begin() {
		logx.Warn("WORKER", "SyncWallet ignored, a sync is already running")
		return
	}
	defer w.sync.Finish()

	start := time.Now()
	w.bus.Publish(messages.SyncStarted{})
	balance, err := w.engine.SyncChain(ctx, func(text string) {
		w.bus.Publish(messages.NewSyncProgress(text))
	})
	monitoring.RecordSyncDuration(time.Since(start))
	w.sync.Finish()

	if err != nil {
		w.walletError(messages.KindSyncWallet, err)
		return
	}
	logx.Info("WORKER", fmt.Sprintf("Sync completed | balance=%d | took=%s", balance, time.Since(start)))
	w.bus.Publish(messages.NewSyncCompleted(balance))
}

func (w *Worker) walletError(kind messages.CommandKind, err error) {
	monitoring.IncreaseWalletError()
	logx.Error("WORKER", fmt.Sprintf("Command failed | command=%s | error=%v", kind, err))
	w.bus.Publish(messages.NewWalletError(err.Error()))
}
