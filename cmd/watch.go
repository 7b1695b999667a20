package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mezonai/walletd/amount"
	"github.com/mezonai/walletd/config"
	"github.com/mezonai/walletd/messages"
	"github.com/spf13/cobra"
)

var watchNames []string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print events from a running walletd until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		names := make([]messages.EventName, 0, len(watchNames))
		for _, n := range watchNames {
			n = strings.TrimSpace(n)
			if !messages.ValidEventName(n) {
				return fmt.Errorf("unknown event name %q", n)
			}
			names = append(names, messages.EventName(n))
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err = c.StreamEvents(ctx, names, func(ev messages.Event) error {
			fmt.Println(describeEvent(ev))
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&endpoint, "endpoint", "e", config.DefaultAPIListenAddr, "walletd api address")
	watchCmd.Flags().StringSliceVarP(&watchNames, "names", "n", nil, "only print these events")
}

func describeEvent(ev messages.Event) string {
	switch e := ev.(type) {
	case messages.WalletBalance:
		return fmt.Sprintf("%-18s %d sat (%s BTC)", e.Name(), e.Sats, amount.FormatBTC(e.Sats))
	case messages.SyncCompleted:
		return fmt.Sprintf("%-18s %d sat (%s BTC)", e.Name(), e.Sats, amount.FormatBTC(e.Sats))
	case messages.WalletAddress:
		return fmt.Sprintf("%-18s #%d %s", e.Name(), e.Index, e.Address)
	case messages.SyncStarted:
		return string(e.Name())
	default:
		return fmt.Sprintf("%-18s %v", ev.Name(), ev.Payload())
	}
}
