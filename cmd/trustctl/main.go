package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "trustctl",
		Short:         "Operator tooling for the trustline address verification service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("TRUSTLINE_CONFIG"), "path to a YAML config file")

	rootCmd.AddCommand(createTokenCmd())
	rootCmd.AddCommand(createSimulateCmd())
	rootCmd.AddCommand(createHistoryCmd())
	rootCmd.AddCommand(createAddressCmd())
	return rootCmd
}
