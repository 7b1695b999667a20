// Package messages defines the closed sets of commands sent to the wallet
// worker and events it emits, together with their wire encoding.
package messages

// CommandKind is the wire tag of a command variant.
type CommandKind string

const (
	KindPing             CommandKind = "Ping"
	KindUpdateData       CommandKind = "UpdateData"
	KindGetWalletAddress CommandKind = "GetWalletAddress"
	KindSyncWallet       CommandKind = "SyncWallet"
	KindGetWalletBalance CommandKind = "GetWalletBalance"
	KindSendTransaction  CommandKind = "SendTransaction"
)

// Command is implemented only by the variants in this file.
type Command interface {
	Kind() CommandKind
	isCommand()
}

// command is embedded by every variant to seal the interface.
type command struct{}

func (command) isCommand() {}

type Ping struct{ command }

type UpdateData struct {
	command
	Payload string
}

type GetWalletAddress struct{ command }

type SyncWallet struct{ command }

type GetWalletBalance struct{ command }

// SendTransaction carries the amount unvalidated; clamping is a UI concern.
type SendTransaction struct {
	command
	AmountSats uint64
}

func (Ping) Kind() CommandKind             { return KindPing }
func (UpdateData) Kind() CommandKind       { return KindUpdateData }
func (GetWalletAddress) Kind() CommandKind { return KindGetWalletAddress }
func (SyncWallet) Kind() CommandKind       { return KindSyncWallet }
func (GetWalletBalance) Kind() CommandKind { return KindGetWalletBalance }
func (SendTransaction) Kind() CommandKind  { return KindSendTransaction }

func NewUpdateData(payload string) UpdateData {
	return UpdateData{Payload: payload}
}

func NewSendTransaction(amountSats uint64) SendTransaction {
	return SendTransaction{AmountSats: amountSats}
}

// AllCommandKinds lists every variant in declaration order.
func AllCommandKinds() []CommandKind {
	return []CommandKind{
		KindPing,
		KindUpdateData,
		KindGetWalletAddress,
		KindSyncWallet,
		KindGetWalletBalance,
		KindSendTransaction,
	}
}
