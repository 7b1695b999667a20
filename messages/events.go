package messages

import (
	"fmt"
	"strconv"
	"strings"
)

// EventName is the literal channel name an event is broadcast under.
type EventName string

const (
	EventBackground      EventName = "background-event"
	EventDataUpdated     EventName = "data-updated"
	EventHeartbeat       EventName = "heartbeat"
	EventWalletAddress   EventName = "wallet-address"
	EventWalletBalance   EventName = "wallet-balance"
	EventSyncStarted     EventName = "sync-started"
	EventSyncProgress    EventName = "sync-progress"
	EventSyncCompleted   EventName = "sync-completed"
	EventTransactionSent EventName = "transaction-sent"
	EventWalletError     EventName = "wallet-error"
)

// PongText is the acknowledgment sent back for a Ping.
const PongText = "pong"

// WalletAddressSeparator splits the packed index and address.
const WalletAddressSeparator = "|"

// Event is implemented only by the variants in this file. Variants are
// plain values, so every receiver holds its own copy.
type Event interface {
	Name() EventName
	// Payload is the value carried on the wire: string, uint64 or nil.
	Payload() interface{}
	isEvent()
}

type event struct{}

func (event) isEvent() {}

type BackgroundEvent struct {
	event
	Text string
}

type DataUpdated struct {
	event
	Text string
}

type Heartbeat struct {
	event
	Count uint64
}

type WalletAddress struct {
	event
	Index   uint32
	Address string
}

type WalletBalance struct {
	event
	Sats uint64
}

type SyncStarted struct{ event }

type SyncProgress struct {
	event
	Text string
}

type SyncCompleted struct {
	event
	Sats uint64
}

type TransactionSent struct {
	event
	TxID string
}

type WalletError struct {
	event
	Message string
}

func (BackgroundEvent) Name() EventName { return EventBackground }
func (DataUpdated) Name() EventName     { return EventDataUpdated }
func (Heartbeat) Name() EventName       { return EventHeartbeat }
func (WalletAddress) Name() EventName   { return EventWalletAddress }
func (WalletBalance) Name() EventName   { return EventWalletBalance }
func (SyncStarted) Name() EventName     { return EventSyncStarted }
func (SyncProgress) Name() EventName    { return EventSyncProgress }
func (SyncCompleted) Name() EventName   { return EventSyncCompleted }
func (TransactionSent) Name() EventName { return EventTransactionSent }
func (WalletError) Name() EventName     { return EventWalletError }

func (e BackgroundEvent) Payload() interface{} { return e.Text }
func (e DataUpdated) Payload() interface{}     { return e.Text }
func (e Heartbeat) Payload() interface{}       { return e.Count }
func (e WalletAddress) Payload() interface{}   { return e.Packed() }
func (e WalletBalance) Payload() interface{}   { return e.Sats }
func (SyncStarted) Payload() interface{}       { return nil }
func (e SyncProgress) Payload() interface{}    { return e.Text }
func (e SyncCompleted) Payload() interface{}   { return e.Sats }
func (e TransactionSent) Payload() interface{} { return e.TxID }
func (e WalletError) Payload() interface{}     { return e.Message }

func NewBackgroundEvent(text string) BackgroundEvent { return BackgroundEvent{Text: text} }
func NewDataUpdated(text string) DataUpdated         { return DataUpdated{Text: text} }
func NewHeartbeat(count uint64) Heartbeat            { return Heartbeat{Count: count} }
func NewWalletBalance(sats uint64) WalletBalance     { return WalletBalance{Sats: sats} }
func NewSyncProgress(text string) SyncProgress       { return SyncProgress{Text: text} }
func NewSyncCompleted(sats uint64) SyncCompleted     { return SyncCompleted{Sats: sats} }
func NewTransactionSent(txid string) TransactionSent { return TransactionSent{TxID: txid} }
func NewWalletError(message string) WalletError      { return WalletError{Message: message} }

func NewWalletAddress(index uint32, address string) WalletAddress {
	return WalletAddress{Index: index, Address: address}
}

// Packed renders "{index}|{address}".
func (e WalletAddress) Packed() string {
	return strconv.FormatUint(uint64(e.Index), 10) + WalletAddressSeparator + e.Address
}

// ParseWalletAddress splits on the first separator, so an address that
// itself contains '|' still comes back intact.
func ParseWalletAddress(packed string) (WalletAddress, error) {
	idx, addr, ok := strings.Cut(packed, WalletAddressSeparator)
	if !ok {
		return WalletAddress{}, fmt.Errorf("wallet address %q has no %q separator", packed, WalletAddressSeparator)
	}
	index, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return WalletAddress{}, fmt.Errorf("wallet address index %q: %w", idx, err)
	}
	return NewWalletAddress(uint32(index), addr), nil
}

// AllEventNames lists every variant in declaration order.
func AllEventNames() []EventName {
	return []EventName{
		EventBackground,
		EventDataUpdated,
		EventHeartbeat,
		EventWalletAddress,
		EventWalletBalance,
		EventSyncStarted,
		EventSyncProgress,
		EventSyncCompleted,
		EventTransactionSent,
		EventWalletError,
	}
}

// ValidEventName reports whether name is one of the ten event channels.
func ValidEventName(name string) bool {
	for _, n := range AllEventNames() {
		if string(n) == name {
			return true
		}
	}
	return false
}
