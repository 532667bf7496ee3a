package main

import (
	"context"
	"os"
	"os/signal"

	"grocery-helpers/flyers"
	"grocery-helpers/internal/cli"
	"grocery-helpers/internal/config"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:       "download-flyers <store>",
	Short:     "Downloads the current flyers of a store into <output_data_dir>/<store>/flyers.",
	ValidArgs: []string{"Real Canadian Superstore", "Walmart"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger := cli.NewLogger(verbose)

		service, err := flyers.NewService(cfg, logger)
		if err != nil {
			return err
		}
		defer service.Close()

		downloaded, err := service.GetFlyers(cmd.Context(), args[0], cfg.PostalCode, cfg.DataDir)
		if err != nil {
			return err
		}
		for _, flyer := range downloaded {
			logger.Infof("Flyer %d for %s: %d items %s", flyer.ID, flyer.Merchant, len(flyer.Rows), flyer.Path)
		}
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
