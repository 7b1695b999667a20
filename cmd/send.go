package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mezonai/walletd/amount"
	"github.com/mezonai/walletd/client"
	"github.com/mezonai/walletd/config"
	"github.com/mezonai/walletd/messages"
	"github.com/spf13/cobra"
)

var (
	endpoint   string
	sendAmount string
)

// sendCmd groups the subcommands that queue one command on a running daemon
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Queue a command on a running walletd",
	Long: `Each subcommand submits one command and returns once it is queued.
The outcome is published as an event; use "walletd watch" to see it.

Examples:
  walletd send sync
  walletd send tx --amount 5000
  walletd send tx --amount 0.0001btc`,
}

func newClient() (*client.WalletClient, error) {
	return client.NewClient(client.Config{Endpoint: endpoint, Timeout: 10 * time.Second})
}

func submit(cmd messages.Command) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	if err := c.SubmitCommand(context.Background(), cmd); err != nil {
		return fmt.Errorf("failed to submit %s: %w", cmd.Kind(), err)
	}
	fmt.Printf("queued %s\n", cmd.Kind())
	return nil
}

func simpleSend(use, short string, cmd messages.Command) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return submit(cmd)
		},
	}
}

var sendDataCmd = &cobra.Command{
	Use:   "data <text>",
	Short: "Store a text payload; echoed back as data-updated",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return submit(messages.NewUpdateData(args[0]))
	},
}

var sendTxCmd = &cobra.Command{
	Use:   "tx",
	Short: "Send a transaction",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		sats, err := amount.ParseSats(sendAmount)
		if err != nil {
			return fmt.Errorf("could not parse amount: %w", err)
		}
		return submit(messages.NewSendTransaction(sats))
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", config.DefaultAPIListenAddr, "walletd api address")

	sendTxCmd.Flags().StringVarP(&sendAmount, "amount", "a", "", "amount in sats, or BTC with a btc suffix")
	_ = sendTxCmd.MarkFlagRequired("amount")

	sendCmd.AddCommand(
		simpleSend("ping", "Check the worker is alive", messages.Ping{}),
		sendDataCmd,
		simpleSend("address", "Reveal the next unused receive address", messages.GetWalletAddress{}),
		simpleSend("sync", "Scan the chain and refresh the balance", messages.SyncWallet{}),
		simpleSend("balance", "Report the last synced balance", messages.GetWalletBalance{}),
		sendTxCmd,
	)
}
