package main

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/walletd/cmd"
	"github.com/mezonai/walletd/logx"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			_ = logx.Errorf("WALLETD CRASHED: %v\n%s", r, debug.Stack())
			os.Exit(1)
		}
	}()

	cmd.Execute()
}
