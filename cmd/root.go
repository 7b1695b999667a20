package cmd

import (
	"os"

	"github.com/mezonai/walletd/logx"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "walletd",
	Short: "Single-wallet Bitcoin light client daemon",
	Long: `walletd runs a BIP84 wallet against an Esplora server. Commands go to a
single background worker and results come back as events.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to walletd.yml (defaults are used when empty)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}
