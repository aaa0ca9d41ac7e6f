package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"spendtrack/internal/cli"
)

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <user-id>",
		Short: "Store the user id and load the user's data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				if err := rt.Service.Login(ctx, args[0]); err != nil {
					return fmt.Errorf("failed to log in: %w", err)
				}
				if err := rt.Service.Load(ctx); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%d expenses, %d incomes)\n",
					args[0], len(rt.Service.Expenses()), len(rt.Service.Incomes()))
				return nil
			})
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored user id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				if err := rt.Service.Logout(ctx); err != nil {
					return fmt.Errorf("failed to log out: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func currencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "currency [code]",
		Short: "Show or set the display currency",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				if len(args) == 1 {
					if err := rt.Service.SetCurrency(ctx, args[0]); err != nil {
						return err
					}
				}
				sess, err := rt.Service.Session(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), sess.Currency)
				return nil
			})
		},
	}
}
