package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"expensebot/internal/core"
	"expensebot/internal/services"
)

func (c *ctl) recordCmd() *cobra.Command {
	var vendor, category, date, currency, notes string
	cmd := &cobra.Command{
		Use:   "record <amount>",
		Short: "Record an expense",
		Example: `  expensectl record 12.50 --vendor Starbucks --category Coffee
  expensectl record 40 --date 2024-03-02`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseAmount(args[0])
			if err != nil {
				return explain(core.NewValidationError("amount", fmt.Sprintf("invalid amount %q", args[0]), "Use a number such as 12.50"))
			}
			res, err := c.app.Expenses.RecordExpense(cmd.Context(), services.RecordExpenseRequest{
				Amount:   &amount,
				Vendor:   vendor,
				Category: category,
				Date:     date,
				Currency: currency,
				Notes:    notes,
			})
			if err != nil {
				return explain(err)
			}
			return c.render(res, func(p *printer) {
				p.linef("Saved %s", formatExpense(res.Expense))
			})
		},
	}
	cmd.Flags().StringVar(&vendor, "vendor", "", "merchant name")
	cmd.Flags().StringVar(&category, "category", "", "category (default: Uncategorized)")
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&currency, "currency", "", "ISO currency code")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

func (c *ctl) recentCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List this month's most recent expenses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return explain(core.NewValidationError("limit", "limit must be at least 1", ""))
			}
			expenses, err := c.app.Expenses.RecentExpenses(cmd.Context(), limit)
			if err != nil {
				return explain(err)
			}
			return c.render(map[string]any{"expenses": expenses}, func(p *printer) {
				if len(expenses) == 0 {
					p.line("No expenses this month.")
					return
				}
				p.row("ID", "DATE", "VENDOR", "AMOUNT", "CATEGORY")
				for _, e := range expenses {
					p.row(strconv.FormatInt(e.ID, 10), e.Date, e.Vendor, money(e.Amount, e.Currency), e.Category)
				}
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of expenses to show")
	return cmd
}

func (c *ctl) summaryCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the monthly spending summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			y, m, err := parseMonthFlag(month)
			if err != nil {
				return err
			}
			s, err := c.app.Expenses.MonthlySummary(cmd.Context(), y, m)
			if err != nil {
				return explain(err)
			}
			return c.render(s, func(p *printer) {
				p.linef("%s: %.2f spent", s.Period, s.TotalSpent)
				if len(s.ByCategory) > 0 {
					p.line("")
					p.row("CATEGORY", "AMOUNT", "COUNT")
					for _, cat := range s.ByCategory {
						p.row(cat.Category, fmt.Sprintf("%.2f", cat.Amount), strconv.Itoa(cat.Count))
					}
				}
				if len(s.TopVendors) > 0 {
					p.line("")
					p.row("VENDOR", "AMOUNT")
					for _, v := range s.TopVendors {
						p.row(v.Vendor, fmt.Sprintf("%.2f", v.Amount))
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: current)")
	return cmd
}

func (c *ctl) compareCmd() *cobra.Command {
	var month string
	var weekly bool
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare spending with the previous month or week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				view services.ComparisonView
				err  error
			)
			if weekly {
				view, err = c.app.Expenses.WeekOverWeek(cmd.Context())
			} else {
				y, m, perr := parseMonthFlag(month)
				if perr != nil {
					return perr
				}
				view, err = c.app.Expenses.MonthOverMonth(cmd.Context(), y, m)
			}
			if err != nil {
				return explain(err)
			}
			return c.render(view, func(p *printer) {
				p.linef("%s..%s: %.2f", view.CurrentStart, view.CurrentEnd, view.Current)
				p.linef("%s..%s: %.2f", view.PreviousStart, view.PreviousEnd, view.Previous)
				if view.ChangePercent != nil {
					p.linef("Change: %+.2f (%+.1f%%)", view.Delta, *view.ChangePercent)
				} else {
					p.linef("Change: %+.2f", view.Delta)
				}
			})
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: current)")
	cmd.Flags().BoolVar(&weekly, "week", false, "compare the last 7 days with the 7 before")
	return cmd
}

func (c *ctl) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := c.app.Expenses.ListCategories(cmd.Context())
			if err != nil {
				return explain(err)
			}
			return c.render(view, func(p *printer) {
				if len(view.Categories) == 0 {
					p.line("No categories yet.")
					return
				}
				for _, name := range view.Categories {
					p.line(name)
				}
			})
		},
	}
}

func (c *ctl) categoryCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "category <name>",
		Short: "Show spending in one category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			y, m, err := parseMonthFlag(month)
			if err != nil {
				return err
			}
			view, err := c.app.Expenses.CategorySpending(cmd.Context(), args[0], y, m)
			if err != nil {
				return explain(err)
			}
			return c.render(view, func(p *printer) {
				p.linef("%s in %s: %.2f across %d transactions", view.Category, view.Period, view.Total, view.TransactionCount)
				for _, t := range view.Transactions {
					p.row(t.Date, t.Vendor, fmt.Sprintf("%.2f", t.Amount))
				}
			})
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: current)")
	return cmd
}

func (c *ctl) recategorizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recategorize <id> <category>",
		Short: "Move an expense to another category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id < 1 {
				return explain(core.NewValidationError("id", fmt.Sprintf("invalid expense id %q", args[0]), "Use the id shown by 'expensectl recent'"))
			}
			e, err := c.app.Expenses.ReassignCategory(cmd.Context(), id, args[1])
			if err != nil {
				return explain(err)
			}
			return c.render(e, func(p *printer) {
				p.linef("Moved %s", formatExpense(e))
			})
		},
	}
}

func (c *ctl) budgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage monthly budgets",
	}
	cmd.AddCommand(c.budgetSetCmd(), c.budgetListCmd(), c.budgetStatusCmd())
	return cmd
}

func (c *ctl) budgetSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set <category> <amount>",
		Short:   "Set the monthly budget of a category",
		Example: "  expensectl budget set Food 300",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := c.app.Expenses.SetBudget(cmd.Context(), args[0], args[1])
			if err != nil {
				return explain(err)
			}
			return c.render(b, func(p *printer) {
				p.linef("Budget for %s set to %.2f per month", b.Category, b.Amount)
			})
		},
	}
}

func (c *ctl) budgetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured budgets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			budgets, err := c.app.Expenses.ListBudgets(cmd.Context())
			if err != nil {
				return explain(err)
			}
			return c.render(map[string]any{"budgets": budgets}, func(p *printer) {
				if len(budgets) == 0 {
					p.line("No budgets set.")
					return
				}
				p.row("CATEGORY", "AMOUNT", "PERIOD")
				for _, b := range budgets {
					p.row(b.Category, fmt.Sprintf("%.2f", b.Amount), b.Period)
				}
			})
		},
	}
}

func (c *ctl) budgetStatusCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Compare spending with budgets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			y, m, err := parseMonthFlag(month)
			if err != nil {
				return err
			}
			lines, err := c.app.Expenses.BudgetStatus(cmd.Context(), y, m)
			if err != nil {
				return explain(err)
			}
			return c.render(map[string]any{"budgets": lines}, func(p *printer) {
				if len(lines) == 0 {
					p.line("No spending or budgets for this month.")
					return
				}
				p.row("CATEGORY", "BUDGET", "SPENT", "REMAINING", "")
				for _, l := range lines {
					flag := ""
					if l.OverBudget {
						flag = "OVER"
					}
					p.row(l.Category, optional(l.Budget), fmt.Sprintf("%.2f", l.Spent), optional(l.Remaining), flag)
				}
			})
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: current)")
	return cmd
}

func (c *ctl) askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message>",
		Short: "Send a chat message to the assistant",
		Example: `  expensectl ask "spent 12.50 at Starbucks"
  expensectl ask /budgets`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := c.app.Assistant.Handle(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				// The reply already explains the failure to the user.
				c.debugf("assistant error: %v", err)
			}
			return c.render(reply, func(p *printer) {
				p.line(reply.Text)
			})
		},
	}
}

func (c *ctl) reportCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compose the monthly report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			y, m, err := parseMonthFlag(month)
			if err != nil {
				return err
			}
			if y == 0 {
				y, m = core.CurrentYearMonth()
			}
			rep, err := c.app.Composer.Compose(cmd.Context(), y, m)
			if err != nil {
				return explain(err)
			}
			view := rep.View()
			return c.render(view, func(p *printer) {
				p.line(view.Text)
			})
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: current)")
	return cmd
}

func (c *ctl) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Pull expenses from the configured inbox once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sweeper := c.app.Sweeper()
			if sweeper == nil {
				return fmt.Errorf("email sweeps are disabled: set EMAIL_SOURCE and OPENAI_API_KEY")
			}
			stats, err := sweeper.Sweep(cmd.Context())
			if err != nil {
				return explain(err)
			}
			return c.render(stats, func(p *printer) {
				p.linef("Checked %d emails, found %d expenses, saved %d (%d skipped)",
					stats.EmailsChecked, stats.ExpensesFound, stats.ExpensesSaved, stats.Skipped)
			})
		},
	}
}

func (c *ctl) exportCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a month of expenses to the configured Google spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.app.Sheets == nil {
				return fmt.Errorf("spreadsheet export is disabled: set GOOGLE_SPREADSHEET_ID and service account credentials")
			}
			y, m, err := parseMonthFlag(month)
			if err != nil {
				return err
			}
			res, err := c.app.Expenses.ExportMonth(cmd.Context(), c.app.Sheets, y, m)
			if err != nil {
				return explain(err)
			}
			return c.render(res, func(p *printer) {
				p.linef("Exported %d expenses (%.2f) to %s", res.Expenses, res.Total, res.Range)
			})
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: current)")
	return cmd
}

// parseMonthFlag parses YYYY-MM; an empty flag yields zeros, meaning the
// current month.
func parseMonthFlag(s string) (int, int, error) {
	if s == "" {
		return 0, 0, nil
	}
	y, m, err := core.ParseYearMonth(s)
	if err != nil {
		return 0, 0, explain(core.NewValidationError("month", fmt.Sprintf("invalid month %q", s), "Use YYYY-MM, for example 2024-03"))
	}
	return y, m, nil
}
