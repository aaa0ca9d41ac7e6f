package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"spendtrack/internal/cli"
	"spendtrack/internal/config"
	applog "spendtrack/internal/log"
)

var (
	envFile   string
	logFormat string
	rootCmd   = &cobra.Command{
		Use:   "spendtrack",
		Short: "Track expenses and incomes against a remote ledger",
		Long: `spendtrack keeps categories, budgets, expenses and incomes in sync with a
remote ledger and shows per-category totals in the session currency.`,
		SilenceUsage:      true,
		PersistentPreRunE: initApp,
	}

	appConfig *config.Config
	logger    *applog.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default: .env when present)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(expenseCmd())
	rootCmd.AddCommand(incomeCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(currencyCmd())
	rootCmd.AddCommand(eventsCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initApp(_ *cobra.Command, _ []string) error {
	if envFile != "" {
		cli.LoadEnvFile(envFile)
	} else {
		cli.LoadEnvFile()
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	appConfig = cfg
	logger = cli.SetupLogger(cfg.LogLevel, logFormat)
	return nil
}

// withRuntime builds the ledger service, loads the user's data and runs fn.
// Load failures are reported as warnings.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *cli.Runtime) error) error {
	ctx := cmd.Context()
	rt, err := cli.Bootstrap(ctx, appConfig, logger.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Failed to release resources", "error", err)
		}
	}()

	if err := rt.Service.Load(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	return fn(ctx, rt)
}
