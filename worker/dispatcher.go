package worker

import (
	"errors"
	"fmt"

	"github.com/mezonai/walletd/logx"
	"github.com/mezonai/walletd/messages"
	"github.com/mezonai/walletd/monitoring"
	"github.com/mezonai/walletd/queue"
)

// ErrWorkerUnavailable is returned by Submit once the worker has shut down.
var ErrWorkerUnavailable = errors.New("wallet worker is not accepting commands")

// Submitter is what controllers hold to talk to the worker.
type Submitter interface {
	Submit(cmd messages.Command) error
}

// Dispatcher enqueues commands on the worker inbox without waiting for
// them to run.
type Dispatcher struct {
	inbox *queue.Mailbox[messages.Command]
}

// Submit never blocks. A nil error means the command is queued, not that
// it succeeded; outcomes arrive as events.
func (d *Dispatcher) Submit(cmd messages.Command) error {
	if cmd == nil {
		return fmt.Errorf("nil command")
	}
	if !d.inbox.Push(cmd) {
		monitoring.IncreaseCommandRejected()
		logx.Warn("WORKER", fmt.Sprintf("Command rejected, worker stopped | command=%s", cmd.Kind()))
		return ErrWorkerUnavailable
	}
	monitoring.IncreaseCommandReceived(string(cmd.Kind()))
	monitoring.SetInboxDepth(d.inbox.Len())
	return nil
}

var _ Submitter = (*Dispatcher)(nil)
