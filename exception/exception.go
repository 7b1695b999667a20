package exception

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/walletd/logx"
	"github.com/mezonai/walletd/monitoring"
)

func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				monitoring.IncreasePanicCount()
				logx.Error("PANIC", "Panic in: ", name, " ", r, "\n", string(debug.Stack()))
			}
		}()
		fn()
	}()
}

func SafeGoWithPanic(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				monitoring.IncreasePanicCount()
				logx.Error("PANIC", "Panic in: ", name, " ", r, "\n", string(debug.Stack()))
				os.Exit(1)
			}
		}()
		fn()
	}()
}

// Recover runs fn and turns a panic into a non-nil return value.
func Recover(name string, fn func()) (recovered interface{}) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.IncreasePanicCount()
			logx.Error("PANIC", "Recovered in: ", name, " ", r, "\n", string(debug.Stack()))
			recovered = r
		}
	}()
	fn()
	return nil
}
