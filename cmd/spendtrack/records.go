package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"spendtrack/internal/cli"
	"spendtrack/internal/currency"
	"spendtrack/internal/services"
)

func expenseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Record and list expenses",
	}
	cmd.AddCommand(addExpenseCmd())
	cmd.AddCommand(listExpensesCmd())
	return cmd
}

func addExpenseCmd() *cobra.Command {
	var (
		categoryID int64
		note       string
		date       string
	)

	cmd := &cobra.Command{
		Use:   "add <amount>",
		Short: "Record an expense",
		Long:  `Record an expense. The amount accepts a dot or a comma as decimal separator.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				e, err := rt.Service.AddExpense(ctx, services.ExpenseDraft{
					Amount:     args[0],
					CategoryID: categoryID,
					Note:       note,
					Date:       date,
				})
				if err != nil {
					return fmt.Errorf("failed to record expense: %w", err)
				}
				sess, err := rt.Service.Session(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded expense %d: %s in %s\n",
					e.ID, currency.FormatMoney(e.Amount, sess.Currency), e.CategoryName)
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&categoryID, "category", "c", 0, "category id")
	cmd.Flags().StringVarP(&note, "note", "n", "", "free-text note")
	cmd.Flags().StringVarP(&date, "date", "d", "", "date as YYYY-MM-DD (default: today)")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func listExpensesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List expenses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				sess, err := rt.Service.Session(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				defer w.Flush()
				fmt.Fprintln(w, "ID\tDATE\tCATEGORY\tAMOUNT\tNOTE")
				for _, e := range rt.Service.Expenses() {
					date := "-"
					if !e.Date.IsZero() {
						date = e.Date.Format("2006-01-02")
					}
					fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
						e.ID, date, e.CategoryID, currency.FormatMoney(e.Amount, sess.Currency), e.Note)
				}
				return nil
			})
		},
	}
}

func incomeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "income",
		Short: "Record and list incomes",
	}
	cmd.AddCommand(addIncomeCmd())
	cmd.AddCommand(listIncomesCmd())
	return cmd
}

func addIncomeCmd() *cobra.Command {
	var (
		id         int64
		categoryID int64
		note       string
		date       string
		code       string
	)

	cmd := &cobra.Command{
		Use:   "add <amount>",
		Short: "Record an income, or replace one with --id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := services.IncomeDraft{
				ID:       id,
				Amount:   args[0],
				Note:     note,
				Date:     date,
				Currency: code,
			}
			if cmd.Flags().Changed("category") {
				draft.CategoryID = &categoryID
			}
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				in, err := rt.Service.AddIncome(ctx, draft)
				if err != nil {
					return fmt.Errorf("failed to record income: %w", err)
				}
				display := in.Currency
				if display == "" {
					sess, err := rt.Service.Session(ctx)
					if err != nil {
						return err
					}
					display = sess.Currency
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved income %d: %s\n", in.ID, currency.FormatMoney(in.Amount, display))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "id of the income to replace")
	cmd.Flags().Int64VarP(&categoryID, "category", "c", 0, "category id")
	cmd.Flags().StringVarP(&note, "note", "n", "", "free-text note")
	cmd.Flags().StringVarP(&date, "date", "d", "", "date as YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&code, "currency", "", "currency override, e.g. EUR")
	return cmd
}

func listIncomesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List incomes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				sess, err := rt.Service.Session(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				defer w.Flush()
				fmt.Fprintln(w, "ID\tDATE\tCATEGORY\tAMOUNT\tNOTE")
				for _, in := range rt.Service.Incomes() {
					date, cat := "-", "-"
					if !in.Date.IsZero() {
						date = in.Date.Format("2006-01-02")
					}
					if in.CategoryID != nil {
						cat = fmt.Sprint(*in.CategoryID)
					}
					code := in.Currency
					if code == "" {
						code = sess.Currency
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
						in.ID, date, cat, currency.FormatMoney(in.Amount, code), in.Note)
				}
				return nil
			})
		},
	}
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show per-category totals and the overview",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				view, err := rt.Service.Summaries(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CATEGORY\tEXPENSES\tINCOME\tBUDGET\tREMAINING")
				for _, c := range view.Categories {
					budget, remaining := orDash(c.Budget), orDash(c.BudgetRemaining)
					if c.OverBudget {
						remaining += " (over)"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Name, c.TotalExpenses, c.TotalIncome, budget, remaining)
				}
				if err := w.Flush(); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "\nExpenses: %s\nIncome:   %s\nBalance:  %s\n",
					view.Overview.TotalExpenses, view.Overview.TotalIncome, view.Overview.Balance)
				return nil
			})
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
