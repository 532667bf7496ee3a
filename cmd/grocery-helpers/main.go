package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"grocery-helpers/adapters"
	"grocery-helpers/internal/cli"
	"grocery-helpers/internal/config"
	"grocery-helpers/internal/types"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var outputFlag string

var rootCmd = &cobra.Command{
	Use:   "grocery-helpers",
	Short: "grocery-helpers drives a grocery retailer's website from the command line.",
}

// session loads the configuration and builds the adapter for store
func session(cmd *cobra.Command, store string) (types.RetailerAdapter, *types.Config, *logrus.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, nil, err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := cli.NewLogger(verbose)

	adapter, err := adapters.New(store, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return adapter, cfg, logger, nil
}

// writeResult prints v as indented JSON to --output or stdout
func writeResult(logger *logrus.Logger, v interface{}) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if outputFlag != "" {
		if err := os.WriteFile(outputFlag, jsonData, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		logger.Infof("Results written to: %s", outputFlag)
		return nil
	}
	fmt.Println(string(jsonData))
	return nil
}

var searchCmd = &cobra.Command{
	Use:   "search <store> <term>",
	Short: "Searches the store and prints the matching products.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, _, logger, err := session(cmd, args[0])
		if err != nil {
			return err
		}
		defer adapter.Close()

		startTime := time.Now()
		products, err := adapter.Search(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		logger.Infof("Found %d products in %v", len(products), time.Since(startTime))
		return writeResult(logger, products)
	},
}

var productCmd = &cobra.Command{
	Use:   "product <store> <link>",
	Short: "Prints the details of one product page.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, _, logger, err := session(cmd, args[0])
		if err != nil {
			return err
		}
		defer adapter.Close()

		product, err := adapter.GetProductInfo(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		return writeResult(logger, product)
	},
}

var orderHistoryCmd = &cobra.Command{
	Use:   "order-history <store>",
	Short: "Syncs past orders into <output_data_dir>/<store> and prints every order line.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, _, logger, err := session(cmd, args[0])
		if err != nil {
			return err
		}
		defer adapter.Close()

		items, err := adapter.GetItemizedOrderHistory(cmd.Context())
		if err != nil {
			return err
		}
		logger.Infof("Order history has %d items", len(items))
		return writeResult(logger, items)
	},
}

var addToCartCmd = &cobra.Command{
	Use:   "add-to-cart <store> <link> <quantity>",
	Short: "Adds a product to the current order.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		quantity, err := strconv.Atoi(args[2])
		if err != nil || quantity < 1 {
			return fmt.Errorf("invalid quantity %q", args[2])
		}
		adapter, _, logger, err := session(cmd, args[0])
		if err != nil {
			return err
		}
		defer adapter.Close()

		if err := adapter.AddProductToCurrentOrder(cmd.Context(), args[1], quantity); err != nil {
			return err
		}
		logger.Infof("Added %d x %s", quantity, args[1])
		return nil
	},
}

type signer interface {
	SignIn(ctx context.Context, user, password string) error
}

var signInCmd = &cobra.Command{
	Use:   "sign-in <store>",
	Short: "Signs in with GH_USER and GH_PASSWORD unless the browser profile already is.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, cfg, logger, err := session(cmd, args[0])
		if err != nil {
			return err
		}
		defer adapter.Close()

		signedIn, err := adapter.IsSignedIn(cmd.Context())
		if err != nil {
			return err
		}
		if signedIn {
			logger.Infof("Already signed in to %s", adapter.GetStoreName())
			return nil
		}

		s, ok := adapter.(signer)
		if !ok {
			return fmt.Errorf("%s: sign in: %w", adapter.GetStoreName(), types.ErrNotSupported)
		}
		if cfg.User == "" || cfg.Password == "" {
			return fmt.Errorf("GH_USER and GH_PASSWORD are required to sign in")
		}
		if err := s.SignIn(cmd.Context(), cfg.User, cfg.Password); err != nil {
			return err
		}
		logger.Infof("Signed in to %s", adapter.GetStoreName())
		return nil
	},
}

func main() {
	config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().StringVar(&outputFlag, "output", "", "Output file path (default: stdout)")
	rootCmd.AddCommand(searchCmd, productCmd, orderHistoryCmd, addToCartCmd, signInCmd)
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		cli.Exit(err)
	}
}
