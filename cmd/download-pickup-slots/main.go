package main

import (
	"context"
	"os"
	"os/signal"

	"grocery-helpers/adapters"
	"grocery-helpers/internal/cli"
	"grocery-helpers/internal/config"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:       "download-pickup-slots <store> <location_name>",
	Short:     "Prints the pickup slot table of a store location.",
	ValidArgs: adapters.SupportedStores(),
	Args: cobra.MatchAll(cobra.ExactArgs(2), func(cmd *cobra.Command, args []string) error {
		return cobra.OnlyValidArgs(cmd, args[:1])
	}),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger := cli.NewLogger(verbose)

		adapter, err := adapters.New(args[0], cfg, logger)
		if err != nil {
			return err
		}
		defer adapter.Close()

		slots, err := adapter.GetPickupSlots(cmd.Context(), cfg.PostalCode, args[1])
		if err != nil {
			return err
		}
		cli.RenderSlots(os.Stdout, slots)
		return nil
	},
}

func main() {
	config.RegisterFlags(rootCmd.Flags())
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		cli.Exit(err)
	}
}
