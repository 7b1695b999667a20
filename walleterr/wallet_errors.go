package walleterr

import (
	"errors"
	"fmt"

	"github.com/mezonai/walletd/jsonx"
)

// Code is a stable identifier for a wallet engine failure.
type Code string

const (
	CodeInternal          Code = "internal_error"
	CodeInvalidAmount     Code = "invalid_amount"
	CodeInsufficientFunds Code = "insufficient_funds"
	CodeWalletNotFound    Code = "wallet_not_found"
	CodeNetwork           Code = "network_error"
	CodeBroadcastRejected Code = "broadcast_rejected"
	CodeStorage           Code = "storage_error"
	CodeNetworkMismatch   Code = "network_mismatch"
)

const (
	MsgWalletNotFound    = "Wallet not found. Create a wallet first."
	MsgInsufficientFunds = "Not enough funds. Required: %d sat, Available: %d sat"
	MsgInvalidAmount     = "Amount %d sat is below the dust limit of %d sat"
	MsgNetworkMismatch   = "Wallet was created for %s, configured network is %s"
)

// WalletError is what the engine reports; the worker surfaces Message.
type WalletError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *WalletError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *WalletError) Unwrap() error {
	return e.cause
}

// JSON renders the error the same way it is reported to API clients.
func (e *WalletError) JSON() string {
	out, _ := jsonx.Marshal(e)
	return string(out)
}

// New creates a WalletError and returns it as error interface
func New(code Code, message string) error {
	return &WalletError{Code: code, Message: message}
}

func Newf(code Code, format string, args ...interface{}) error {
	return &WalletError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap keeps err as the cause; a nil err yields nil.
func Wrap(code Code, err error, message string) error {
	if err == nil {
		return nil
	}
	return &WalletError{Code: code, Message: message, cause: err}
}

// CodeOf returns CodeInternal for errors that are not WalletErrors.
func CodeOf(err error) Code {
	var we *WalletError
	if errors.As(err, &we) {
		return we.Code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
