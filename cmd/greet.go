package cmd

import (
	"context"
	"fmt"

	"github.com/mezonai/walletd/config"
	"github.com/spf13/cobra"
)

var greetCmd = &cobra.Command{
	Use:   "greet <name>",
	Short: "Ask the daemon for a greeting",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		greeting, err := c.Greet(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(greeting)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(greetCmd)
	greetCmd.Flags().StringVarP(&endpoint, "endpoint", "e", config.DefaultAPIListenAddr, "walletd api address")
}
