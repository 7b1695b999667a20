package messages

import (
	"bytes"
	"fmt"

	"github.com/mezonai/walletd/jsonx"
)

// EncodeCommand produces the externally tagged form, e.g. {"Ping":null}
// or {"SendTransaction":5000}.
func EncodeCommand(cmd Command) ([]byte, error) {
	var value interface{}
	switch c := cmd.(type) {
	case Ping, GetWalletAddress, SyncWallet, GetWalletBalance:
		value = nil
	case UpdateData:
		value = c.Payload
	case SendTransaction:
		value = c.AmountSats
	default:
		return nil, fmt.Errorf("unknown command type %T", cmd)
	}
	return jsonx.Marshal(map[CommandKind]interface{}{cmd.Kind(): value})
}

// DecodeCommand accepts the tagged object form and, for variants without a
// value, a bare JSON string such as "Ping".
func DecodeCommand(data []byte) (Command, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	if data[0] == '"' {
		var tag string
		if err := jsonx.Unmarshal(data, &tag); err != nil {
			return nil, fmt.Errorf("decode command tag: %w", err)
		}
		return commandFromTag(CommandKind(tag), nil)
	}

	var tagged map[string]jsonx.RawMessage
	if err := jsonx.Unmarshal(data, &tagged); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	if len(tagged) != 1 {
		return nil, fmt.Errorf("command must have exactly one variant tag, got %d", len(tagged))
	}
	for tag, raw := range tagged {
		return commandFromTag(CommandKind(tag), raw)
	}
	return nil, fmt.Errorf("unreachable")
}

func commandFromTag(kind CommandKind, raw jsonx.RawMessage) (Command, error) {
	isNull := len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))

	switch kind {
	case KindPing:
		return Ping{}, nil
	case KindGetWalletAddress:
		return GetWalletAddress{}, nil
	case KindSyncWallet:
		return SyncWallet{}, nil
	case KindGetWalletBalance:
		return GetWalletBalance{}, nil
	case KindUpdateData:
		if isNull {
			return nil, fmt.Errorf("%s requires a string payload", kind)
		}
		var payload string
		if err := jsonx.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("%s payload: %w", kind, err)
		}
		return NewUpdateData(payload), nil
	case KindSendTransaction:
		if isNull {
			return nil, fmt.Errorf("%s requires an amount in sats", kind)
		}
		var amount uint64
		if err := jsonx.Unmarshal(raw, &amount); err != nil {
			return nil, fmt.Errorf("%s amount: %w", kind, err)
		}
		return NewSendTransaction(amount), nil
	default:
		return nil, fmt.Errorf("unknown command %q", kind)
	}
}

// Envelope is the event wire form: {"event":"heartbeat","payload":3}.
type Envelope struct {
	Event   EventName        `json:"event"`
	Payload jsonx.RawMessage `json:"payload"`
}

func EncodeEvent(e Event) ([]byte, error) {
	payload, err := jsonx.Marshal(e.Payload())
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", e.Name(), err)
	}
	return jsonx.Marshal(Envelope{Event: e.Name(), Payload: payload})
}

func DecodeEvent(data []byte) (Event, error) {
	var env Envelope
	if err := jsonx.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return EventFromPayload(env.Event, env.Payload)
}

// EventFromPayload rebuilds an event from its name and raw payload.
func EventFromPayload(name EventName, raw jsonx.RawMessage) (Event, error) {
	var (
		text string
		num  uint64
	)
	decodeText := func() error { return jsonx.Unmarshal(raw, &text) }
	decodeNum := func() error { return jsonx.Unmarshal(raw, &num) }

	switch name {
	case EventSyncStarted:
		return SyncStarted{}, nil
	case EventBackground, EventDataUpdated, EventSyncProgress, EventTransactionSent, EventWalletError, EventWalletAddress:
		if err := decodeText(); err != nil {
			return nil, fmt.Errorf("%s payload: %w", name, err)
		}
	case EventHeartbeat, EventWalletBalance, EventSyncCompleted:
		if err := decodeNum(); err != nil {
			return nil, fmt.Errorf("%s payload: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("unknown event %q", name)
	}

	switch name {
	case EventBackground:
		return NewBackgroundEvent(text), nil
	case EventDataUpdated:
		return NewDataUpdated(text), nil
	case EventSyncProgress:
		return NewSyncProgress(text), nil
	case EventTransactionSent:
		return NewTransactionSent(text), nil
	case EventWalletError:
		return NewWalletError(text), nil
	case EventWalletAddress:
		return ParseWalletAddress(text)
	case EventHeartbeat:
		return NewHeartbeat(num), nil
	case EventWalletBalance:
		return NewWalletBalance(num), nil
	default:
		return NewSyncCompleted(num), nil
	}
}
