package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"expensebot/internal/core"
	"expensebot/internal/services"
)

// printer writes aligned text output.
type printer struct {
	tw *tabwriter.Writer
}

func (p *printer) line(s string) {
	fmt.Fprintln(p.tw, s)
}

func (p *printer) linef(format string, args ...any) {
	fmt.Fprintf(p.tw, format+"\n", args...)
}

func (p *printer) row(cols ...string) {
	fmt.Fprintln(p.tw, strings.Join(cols, "\t"))
}

// render prints v as indented JSON with --json, otherwise runs text.
func (c *ctl) render(v any, text func(p *printer)) error {
	if c.asJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	p := &printer{tw: tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)}
	text(p)
	return p.tw.Flush()
}

func (c *ctl) debugf(format string, args ...any) {
	if c.verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// explain turns service errors into messages fit for a terminal.
func explain(err error) error {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		if ve.Hint != "" {
			return fmt.Errorf("%s (%s)", ve.Message, ve.Hint)
		}
		return errors.New(ve.Message)
	case errors.Is(err, core.ErrNotFound):
		return errors.New("not found")
	case errors.Is(err, core.ErrMissingCredentials):
		return errors.New("the inbox is not authorized: run oauth-init first")
	case core.IsCollaborator(err):
		return fmt.Errorf("a remote service is unavailable, please try again later: %w", err)
	default:
		return err
	}
}

func formatExpense(e services.ExpenseView) string {
	return fmt.Sprintf("#%d %s at %s on %s [%s]", e.ID, money(e.Amount, e.Currency), e.Vendor, e.Date, e.Category)
}

func money(amount float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", amount)
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
