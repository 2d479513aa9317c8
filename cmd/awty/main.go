package main

import (
	"os"

	"github.com/konveyor/awty/config"
	"github.com/spf13/cobra"
)

func AwtyCmd() *cobra.Command {
	cfg := config.Default()

	rootCmd := &cobra.Command{
		Use:          "awty",
		Short:        "Transfer data and report how far along it is",
		SilenceUsage: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			return cfg.Load(c)
		},
	}
	cfg.AddFlags(rootCmd)
	rootCmd.AddCommand(FetchCmd(cfg), CopyCmd(cfg))
	return rootCmd
}

func main() {
	if err := AwtyCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
