package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"stock_go/internal/app"
	"stock_go/internal/engine"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stock_go",
		Short: "Paper-trading stock agent",
		Long: `stock_go runs paper-trading cycles for registered users: it fetches a
quote, asks the prediction service for a direction, sizes the position and
settles the trade against a simulated cash account.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", app.DefaultConfigPath, "Path to the YAML configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Also print logs to stderr")

	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(runAllCmd())
	rootCmd.AddCommand(portfolioCmd())
	rootCmd.AddCommand(cashCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(symbolsCmd())
	rootCmd.AddCommand(serveCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap initializes the application for one command. Logs go to the log
// file only unless --verbose is set.
func bootstrap() (*app.Bootstrap, error) {
	b := app.NewBootstrap()
	var console io.Writer
	if verbose {
		console = os.Stderr
	}
	if err := b.Initialize(configPath, console); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <user> [username]",
		Short: "Create a paper account with the initial cash",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bootstrap()
			if err != nil {
				return err
			}
			defer b.Close()

			username := args[0]
			if len(args) > 1 {
				username = args[1]
			}
			acc, created, err := b.Accounts.Register(cmd.Context(), args[0], username)
			if err != nil {
				return err
			}
			printRegistration(cmd.OutOrStdout(), acc, created, b.Config.Market.Symbols)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <user> <symbol>",
		Short: "Run one trading cycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bootstrap()
			if err != nil {
				return err
			}
			defer b.Close()

			symbol := strings.ToUpper(args[1])
			if !b.Config.IsSupported(symbol) {
				return fmt.Errorf("unsupported symbol %s (supported: %s)", symbol, strings.Join(b.Config.Market.Symbols, ", "))
			}

			res := b.Coordinator.RunCycle(cmd.Context(), args[0], symbol)
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func runAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-all <user>",
		Short: "Run a trading cycle for every supported symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bootstrap()
			if err != nil {
				return err
			}
			defer b.Close()

			batch := b.Coordinator.RunAll(cmd.Context(), args[0], b.Config.Market.Symbols,
				engine.WithPacing(b.Config.Trading.BatchPace))
			printBatch(cmd.OutOrStdout(), batch)
			return nil
		},
	}
}

func portfolioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio <user>",
		Short: "Show open positions valued at cost",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bootstrap()
			if err != nil {
				return err
			}
			defer b.Close()

			p, err := b.Accounts.Portfolio(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printPortfolio(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func cashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cash <user>",
		Short: "Show the cash balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bootstrap()
			if err != nil {
				return err
			}
			defer b.Close()

			cash, err := b.Accounts.Cash(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cash: $%s\n", cash.StringFixed(2))
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <user>",
		Short: "Show the most recent trades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bootstrap()
			if err != nil {
				return err
			}
			defer b.Close()

			trades, err := b.Accounts.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), trades)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of trades to show")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <user>",
		Short: "Show the decision distribution of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bootstrap()
			if err != nil {
				return err
			}
			defer b.Close()

			stats, err := b.Accounts.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

func symbolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "symbols",
		Short: "List supported symbols",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bootstrap()
			if err != nil {
				return err
			}
			defer b.Close()

			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(b.Config.Market.Symbols, ", "))
			return nil
		},
	}
}
