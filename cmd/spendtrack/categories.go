package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"spendtrack/internal/cli"
	"spendtrack/internal/core"
	"spendtrack/internal/currency"
	"spendtrack/internal/services"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage categories and budgets",
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(updateCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())
	cmd.AddCommand(budgetCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List default and custom categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				sess, err := rt.Service.Session(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				defer w.Flush()
				fmt.Fprintln(w, "ID\tNAME\tKIND\tBUDGET")
				for _, c := range rt.Service.Categories() {
					kind := "custom"
					if c.IsDefault {
						kind = "default"
					}
					budget := "-"
					if c.Budget != nil {
						budget = currency.FormatMoney(*c.Budget, sess.Currency)
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, c.Name, kind, budget)
				}
				return nil
			})
		},
	}
}

func addCategoryCmd() *cobra.Command {
	var icon, color string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a custom category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				c, err := rt.Service.AddCategory(ctx, services.CategoryDraft{Name: args[0], Icon: icon, Color: color})
				if err != nil {
					return fmt.Errorf("failed to add category: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added category %d %q\n", c.ID, c.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&icon, "icon", "", "icon name")
	cmd.Flags().StringVar(&color, "color", "", "display color, e.g. #FF6B6B")
	return cmd
}

func updateCategoryCmd() *cobra.Command {
	var name, icon, color string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a custom category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var u core.CategoryUpdate
			if cmd.Flags().Changed("name") {
				u.Name = &name
			}
			if cmd.Flags().Changed("icon") {
				u.Icon = &icon
			}
			if cmd.Flags().Changed("color") {
				u.Color = &color
			}

			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				c, err := rt.Service.UpdateCategory(ctx, id, u)
				if err != nil {
					return fmt.Errorf("failed to update category: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated category %d %q\n", c.ID, c.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&icon, "icon", "", "new icon")
	cmd.Flags().StringVar(&color, "color", "", "new color")
	return cmd
}

func deleteCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a custom category",
		Long:  `Delete a custom category. Expenses recorded against it are kept.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				if err := rt.Service.DeleteCategory(ctx, id); err != nil {
					return fmt.Errorf("failed to delete category: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %d\n", id)
				return nil
			})
		},
	}
}

func budgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "budget <id> <amount>",
		Short: "Set the budget of a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			amount, err := core.ParseAmount(args[1])
			if err != nil {
				return fmt.Errorf("budget %q: %w", args[1], err)
			}
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				if err := rt.Service.SetBudget(ctx, id, amount.Float()); err != nil {
					return fmt.Errorf("failed to set budget: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Budget for category %d set to %.2f\n", id, amount.Float())
				return nil
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
