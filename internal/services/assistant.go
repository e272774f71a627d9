package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"expensebot/internal/core"
	"expensebot/internal/report"
)

const (
	welcomeText = "Welcome to Expense Bot!\n\n" +
		"I can help you track and understand your expenses.\n\n" +
		"Just talk to me naturally:\n" +
		"- \"I spent $15 on lunch at Chipotle\"\n" +
		"- \"How much did I spend this month?\"\n" +
		"- \"What's my biggest expense category?\"\n" +
		"- \"Am I over budget on Food?\"\n\n" +
		"Commands:\n" +
		"/pull_gmail - Import expenses from Gmail\n" +
		"/report - Get monthly report with charts\n" +
		"/set_budget <category> <amount> - Set a budget\n" +
		"/help - See all commands"

	helpText = "Commands:\n" +
		"/pull_gmail - Pull Gmail and extract expenses\n" +
		"/report [YYYY-MM] - Monthly report with charts\n" +
		"/set_budget <category> <amount> - Set monthly budget\n" +
		"/list_budgets - Show all budgets\n" +
		"/categories - List known categories\n\n" +
		"Or just chat with me:\n" +
		"- Send receipt photos\n" +
		"- Tell me about expenses: \"Coffee $5 at Starbucks\"\n" +
		"- Ask questions: \"How much did I spend on food?\""

	genericErrorText  = "Sorry, I encountered an error processing your message. Please try again."
	unknownIntentText = "I'm not sure what you mean. Tell me about an expense or ask about your spending. Send /help to see all commands."
	reportFormatText  = "Format: /report YYYY-MM (e.g. /report 2025-11)"
	setBudgetUsage    = "Usage: /set_budget <category> <amount>"
)

type (
	// Sweeper runs one inbox sweep.
	Sweeper interface {
		Sweep(ctx context.Context) (core.SweepStats, error)
	}

	// Reporter composes the monthly report.
	Reporter interface {
		Compose(ctx context.Context, year, month int) (report.Report, error)
	}
)

// Reply is the assistant's answer to one chat message. Data carries the
// structured result behind Text when there is one.
type Reply struct {
	Text   string       `json:"text"`
	Data   any          `json:"data,omitempty"`
	Report *report.View `json:"report,omitempty"`
}

// Assistant is the conversational front-end: slash commands are handled
// directly, free text goes through the NLU collaborator.
type Assistant struct {
	expenses *ExpenseService
	nlu      ExpenseNLU
	sweeper  Sweeper
	reporter Reporter
}

func NewAssistant(expenses *ExpenseService, nlu ExpenseNLU, sweeper Sweeper, reporter Reporter) *Assistant {
	return &Assistant{
		expenses: expenses,
		nlu:      nlu,
		sweeper:  sweeper,
		reporter: reporter,
	}
}

// Handle answers one chat message. Errors are rendered into the reply text;
// the returned error is only set for failures the caller should log or
// surface as a server error.
func (a *Assistant) Handle(ctx context.Context, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		return a.command(ctx, text)
	}
	return a.chat(ctx, text)
}

func (a *Assistant) command(ctx context.Context, text string) (Reply, error) {
	fields := strings.Fields(text)
	name := strings.ToLower(fields[0])
	// Telegram-style addressing: /report@expense_bot
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}
	args := fields[1:]

	slog.DebugContext(ctx, "Handling command", "command", name, "args", len(args))

	switch name {
	case "/start":
		return Reply{Text: welcomeText}, nil
	case "/help":
		return Reply{Text: helpText}, nil
	case "/pull_gmail":
		return a.pullInbox(ctx)
	case "/report":
		return a.report(ctx, args)
	case "/set_budget":
		return a.setBudget(ctx, args)
	case "/list_budgets":
		return a.listBudgets(ctx)
	case "/categories":
		return a.categories(ctx)
	}
	return Reply{Text: fmt.Sprintf("Unknown command %s. Send /help to see all commands.", name)}, nil
}

func (a *Assistant) pullInbox(ctx context.Context) (Reply, error) {
	if a.sweeper == nil {
		return Reply{Text: "Gmail setup required: no inbox configured"}, nil
	}
	stats, err := a.sweeper.Sweep(ctx)
	if err != nil {
		if errors.Is(err, core.ErrMissingCredentials) {
			return Reply{Text: fmt.Sprintf("Gmail setup required: %v", err)}, nil
		}
		slog.ErrorContext(ctx, "Inbox pull failed", "error", err)
		return Reply{Text: fmt.Sprintf("Failed to pull Gmail: %v", err)}, err
	}
	return Reply{Text: SweepText(stats), Data: stats}, nil
}

// SweepText renders sweep counters the way the chat reports them.
func SweepText(stats core.SweepStats) string {
	return fmt.Sprintf("Processed %d emails.\nFound %d expense-related emails.\nSaved %d new expenses.",
		stats.EmailsChecked, stats.ExpensesFound, stats.ExpensesSaved)
}

// report falls back to the current month when the argument is malformed,
// prefixing the reply with the expected format.
func (a *Assistant) report(ctx context.Context, args []string) (Reply, error) {
	year, month := core.CurrentYearMonth()
	var notice string
	if len(args) > 0 {
		y, m, err := core.ParseYearMonth(args[0])
		if err != nil {
			notice = reportFormatText + "\n"
		} else {
			year, month = y, m
		}
	}
	if a.reporter == nil {
		return Reply{Text: genericErrorText}, errors.New("reporter not configured")
	}

	r, err := a.reporter.Compose(ctx, year, month)
	if err != nil {
		slog.ErrorContext(ctx, "Report failed", "period", core.PeriodLabel(year, month), "error", err)
		return Reply{Text: genericErrorText}, err
	}
	view := r.View()
	text := fmt.Sprintf("%sGenerating report for %s...\n%s", notice, core.PeriodLabel(year, month), r.Text)
	return Reply{Text: text, Report: &view}, nil
}

func (a *Assistant) setBudget(ctx context.Context, args []string) (Reply, error) {
	if len(args) < 2 {
		return Reply{Text: setBudgetUsage}, nil
	}
	b, err := a.expenses.SetBudget(ctx, args[0], args[1])
	if err != nil {
		return a.failure(ctx, err)
	}
	return Reply{Text: fmt.Sprintf("Budget set: %s = %.2f/month", b.Category, b.Amount), Data: b}, nil
}

func (a *Assistant) listBudgets(ctx context.Context) (Reply, error) {
	budgets, err := a.expenses.ListBudgets(ctx)
	if err != nil {
		return a.failure(ctx, err)
	}
	if len(budgets) == 0 {
		return Reply{Text: "No budgets set. Use " + strings.TrimPrefix(setBudgetUsage, "Usage: "), Data: budgets}, nil
	}
	lines := []string{"Your budgets:"}
	for _, b := range budgets {
		lines = append(lines, fmt.Sprintf("  %s: %.2f/%s", b.Category, b.Amount, b.Period))
	}
	return Reply{Text: strings.Join(lines, "\n"), Data: budgets}, nil
}

func (a *Assistant) categories(ctx context.Context) (Reply, error) {
	view, err := a.expenses.ListCategories(ctx)
	if err != nil {
		return a.failure(ctx, err)
	}
	if len(view.Categories) == 0 {
		return Reply{Text: "No categories yet. Add some expenses first!", Data: view}, nil
	}
	lines := []string{"Categories:"}
	for _, c := range view.Categories {
		lines = append(lines, "  "+c)
	}
	return Reply{Text: strings.Join(lines, "\n"), Data: view}, nil
}

func (a *Assistant) chat(ctx context.Context, text string) (Reply, error) {
	if text == "" {
		return Reply{Text: unknownIntentText}, nil
	}
	if a.nlu == nil {
		return Reply{Text: genericErrorText}, &core.CollaboratorError{Collaborator: "nlu", Err: errors.New("not configured")}
	}
	intent, err := a.nlu.Interpret(ctx, text)
	if err != nil {
		slog.ErrorContext(ctx, "Message interpretation failed", "error", err)
		return Reply{Text: genericErrorText}, err
	}

	switch intent.Kind {
	case core.IntentRecordExpense:
		res, err := a.expenses.RecordExtracted(ctx, intent.Expense, core.SourceChat)
		if err != nil {
			return a.failure(ctx, err)
		}
		return Reply{Text: savedText(res.Expense), Data: res}, nil
	case core.IntentQuery:
		return a.query(ctx, intent)
	}
	return Reply{Text: unknownIntentText}, nil
}

func (a *Assistant) query(ctx context.Context, intent core.Intent) (Reply, error) {
	switch intent.Query {
	case core.QuerySummary:
		s, err := a.expenses.MonthlySummary(ctx, intent.Year, intent.Month)
		if err != nil {
			return a.failure(ctx, err)
		}
		return Reply{Text: summaryText(s), Data: s}, nil
	case core.QueryBudgetStatus:
		lines, err := a.expenses.BudgetStatus(ctx, intent.Year, intent.Month)
		if err != nil {
			return a.failure(ctx, err)
		}
		return Reply{Text: budgetStatusText(lines), Data: lines}, nil
	case core.QueryRecent:
		recent, err := a.expenses.RecentExpenses(ctx, intent.Limit)
		if err != nil {
			return a.failure(ctx, err)
		}
		return Reply{Text: recentText(recent), Data: recent}, nil
	case core.QueryCategorySpending:
		v, err := a.expenses.CategorySpending(ctx, intent.Category, intent.Year, intent.Month)
		if err != nil {
			return a.failure(ctx, err)
		}
		return Reply{Text: categoryText(v), Data: v}, nil
	case core.QueryCategories:
		return a.categories(ctx)
	case core.QueryBudgets:
		return a.listBudgets(ctx)
	}
	return Reply{Text: unknownIntentText}, nil
}

// failure turns validation errors into their hint and everything else
// into the generic apology.
func (a *Assistant) failure(ctx context.Context, err error) (Reply, error) {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		text := ve.Hint
		if text == "" {
			text = ve.Message
		}
		return Reply{Text: text}, nil
	}
	slog.ErrorContext(ctx, "Assistant operation failed", "error", err)
	return Reply{Text: genericErrorText}, err
}

func savedText(e ExpenseView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Saved %.2f", e.Amount)
	if e.Currency != "" {
		sb.WriteString(" " + e.Currency)
	}
	if e.Vendor != unknownVendor {
		sb.WriteString(" at " + e.Vendor)
	}
	fmt.Fprintf(&sb, " (%s) on %s.", e.Category, e.Date)
	return sb.String()
}

func summaryText(s SummaryView) string {
	lines := []string{fmt.Sprintf("You spent %.2f in %s.", s.TotalSpent, s.Period)}
	if len(s.ByCategory) > 0 {
		lines = append(lines, "By category:")
		for _, c := range s.ByCategory {
			lines = append(lines, fmt.Sprintf("  %s: %.2f (%d)", c.Category, c.Amount, c.Count))
		}
	}
	if len(s.TopVendors) > 0 {
		lines = append(lines, "Top vendors:")
		for _, v := range s.TopVendors {
			lines = append(lines, fmt.Sprintf("  %s: %.2f", v.Vendor, v.Amount))
		}
	}
	return strings.Join(lines, "\n")
}

func budgetStatusText(lines []BudgetStatusView) string {
	if len(lines) == 0 {
		return "No budgets or spending this month."
	}
	out := []string{"Budget status:"}
	for _, l := range lines {
		switch {
		case l.Budget == nil:
			out = append(out, fmt.Sprintf("  %s: %.2f spent, no budget", l.Category, l.Spent))
		case l.OverBudget:
			out = append(out, fmt.Sprintf("  %s: %.2f of %.2f, over by %.2f", l.Category, l.Spent, *l.Budget, -*l.Remaining))
		default:
			out = append(out, fmt.Sprintf("  %s: %.2f of %.2f, %.2f left", l.Category, l.Spent, *l.Budget, *l.Remaining))
		}
	}
	return strings.Join(out, "\n")
}

func recentText(expenses []ExpenseView) string {
	if len(expenses) == 0 {
		return "No expenses this month yet."
	}
	out := []string{"Recent expenses:"}
	for _, e := range expenses {
		out = append(out, fmt.Sprintf("  %s %s %.2f (%s)", e.Date, e.Vendor, e.Amount, e.Category))
	}
	return strings.Join(out, "\n")
}

func categoryText(v CategorySpendingView) string {
	out := []string{fmt.Sprintf("%s in %s: %.2f across %d transactions.", v.Category, v.Period, v.Total, v.TransactionCount)}
	for _, t := range v.Transactions {
		vendor := t.Vendor
		if vendor == "" {
			vendor = unknownVendor
		}
		out = append(out, fmt.Sprintf("  %s %s %.2f", t.Date, vendor, t.Amount))
	}
	return strings.Join(out, "\n")
}
