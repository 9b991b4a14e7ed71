package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/coopledger/internal/app"
	"github.com/odyssey-erp/coopledger/internal/ledger/reports"
)

const dateLayout = "2006-01-02"

// reportOptions are the parsed flags of the report command.
type reportOptions struct {
	tenant     int64
	kind       string
	date       string
	start, end string
	unit       string
	lang       string
	asJSON     bool
}

func newReportCommand(e *env) *cobra.Command {
	var opts reportOptions
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a financial statement",
		Long:  "Print one of balance-sheet, income-statement, cash-flow, equity-changes or trial-balance for a tenant.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ledger.Close(e.logger)
			return runReport(cmd.Context(), cmd.OutOrStdout(), ledger, opts, time.Now().UTC())
		},
	}
	f := cmd.Flags()
	f.Int64Var(&opts.tenant, "tenant", 0, "Tenant id")
	f.StringVar(&opts.kind, "kind", "balance-sheet", "Statement to print")
	f.StringVar(&opts.date, "date", "", "As-of date for balance-sheet and trial-balance (YYYY-MM-DD, default today)")
	f.StringVar(&opts.start, "start", "", "Range start (YYYY-MM-DD, default first day of the end month)")
	f.StringVar(&opts.end, "end", "", "Range end (YYYY-MM-DD, default today)")
	f.StringVar(&opts.unit, "unit", "", "Restrict to one business unit")
	f.StringVar(&opts.lang, "lang", "id", "Locale used to format amounts")
	f.BoolVar(&opts.asJSON, "json", false, "Print JSON instead of a table")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func runReport(ctx context.Context, out io.Writer, ledger *app.Ledger, opts reportOptions, now time.Time) error {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	asOf, err := parseDate(opts.date, today)
	if err != nil {
		return err
	}
	end, err := parseDate(opts.end, today)
	if err != nil {
		return err
	}
	start, err := parseDate(opts.start, time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return err
	}

	var statement any
	switch opts.kind {
	case "balance-sheet":
		statement, err = ledger.Reports.BalanceSheet(ctx, opts.tenant, asOf, opts.unit)
	case "income-statement":
		statement, err = ledger.Reports.IncomeStatement(ctx, opts.tenant, start, end, opts.unit)
	case "cash-flow":
		statement, err = ledger.Reports.CashFlow(ctx, opts.tenant, start, end, opts.unit)
	case "equity-changes":
		statement, err = ledger.Reports.EquityChanges(ctx, opts.tenant, start, end, opts.unit)
	case "trial-balance":
		statement, err = ledger.Reports.TrialBalance(ctx, opts.tenant, asOf, opts.unit)
	default:
		return fmt.Errorf("unknown report kind %q", opts.kind)
	}
	if err != nil {
		return err
	}
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(statement)
	}
	return printStatement(out, newPrinter(opts.lang), statement)
}

func parseDate(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
	}
	return t, nil
}

func newPrinter(lang string) *message.Printer {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Indonesian
	}
	return message.NewPrinter(tag)
}

const width = 64

// statementWriter renders labelled amounts in two columns.
type statementWriter struct {
	w io.Writer
	p *message.Printer
}

func (s statementWriter) title(name, subtitle string) {
	fmt.Fprintln(s.w)
	fmt.Fprintln(s.w, center(name))
	fmt.Fprintln(s.w, center(subtitle))
	fmt.Fprintln(s.w)
}

func (s statementWriter) amount(label string, d decimal.Decimal) {
	fmt.Fprintf(s.w, "  %-*s%18s\n", width-20, truncate(label, width-22), s.money(d))
}

func (s statementWriter) total(label string, d decimal.Decimal) {
	fmt.Fprintf(s.w, "  %*s%s\n", width-20, "", strings.Repeat("─", 18))
	s.amount(label, d)
	fmt.Fprintln(s.w)
}

func (s statementWriter) section(sec reports.Section) {
	fmt.Fprintf(s.w, "  %s\n", strings.ToUpper(sec.Title))
	for _, line := range sec.Lines {
		s.amount("  "+line.Code+" "+line.Name, line.Amount)
	}
	s.total("Total "+sec.Title, sec.Total)
}

func (s statementWriter) flag(ok bool, yes, no string) {
	if ok {
		fmt.Fprintf(s.w, "  [%s]\n", yes)
		return
	}
	fmt.Fprintf(s.w, "  [%s]\n", no)
}

// money formats negatives in parentheses.
func (s statementWriter) money(d decimal.Decimal) string {
	v := d.Round(2)
	if v.IsNegative() {
		return "(" + s.p.Sprintf("%.2f", v.Neg().InexactFloat64()) + ")"
	}
	return s.p.Sprintf("%.2f", v.InexactFloat64())
}

func printStatement(out io.Writer, p *message.Printer, statement any) error {
	s := statementWriter{w: out, p: p}
	switch st := statement.(type) {
	case reports.BalanceSheet:
		s.title("BALANCE SHEET", "as of "+st.AsOf.Format(dateLayout)+unitSuffix(st.Unit))
		s.section(st.CurrentAssets)
		s.section(st.NonCurrentAssets)
		s.total("Total Assets", st.TotalAssets)
		s.section(st.CurrentLiabilities)
		s.section(st.LongTermLiabilities)
		s.total("Total Liabilities", st.TotalLiabilities)
		s.section(st.Equity)
		s.amount("Current Earnings", st.CurrentEarnings)
		s.total("Total Equity", st.TotalEquity)
		s.total("Total Liabilities and Equity", st.TotalLiabEquity)
		s.flag(st.Balanced, "BALANCED", "UNBALANCED")
	case reports.IncomeStatement:
		s.title("INCOME STATEMENT", rangeSubtitle(st.Start, st.End, st.Unit))
		s.section(st.OperatingRevenue)
		s.section(st.OtherRevenue)
		s.total("Total Revenue", st.TotalRevenue)
		s.section(st.OperatingExpense)
		s.section(st.OtherExpense)
		s.total("Total Expense", st.TotalExpense)
		s.amount("Operating Profit", st.OperatingProfit)
		s.total("Net Profit", st.NetProfit)
	case reports.CashFlow:
		s.title("CASH FLOW STATEMENT", rangeSubtitle(st.Start, st.End, st.Unit))
		s.amount("Net Profit", st.NetProfit)
		s.amount("Change in Receivables", st.ChangeReceivables)
		s.amount("Change in Other Current Assets", st.ChangeOtherCurrentAssets)
		s.amount("Change in Current Liabilities", st.ChangeCurrentLiabilities)
		s.total("Operating Cash Flow", st.OperatingCashFlow)
		s.amount("Change in Non-current Assets", st.ChangeNonCurrentAssets)
		s.total("Investing Cash Flow", st.InvestingCashFlow)
		s.amount("Change in Long-term Liabilities", st.ChangeLongTermLiabilities)
		s.amount("Change in Equity", st.ChangeEquity)
		s.total("Financing Cash Flow", st.FinancingCashFlow)
		s.amount("Net Change in Cash", st.NetChange)
		s.amount("Beginning Cash", st.BeginningCash)
		s.amount("Computed Ending Cash", st.ComputedEndingCash)
		s.amount("Actual Ending Cash", st.ActualEndingCash)
		s.total("Discrepancy", st.Discrepancy)
		s.flag(st.Reconciled, "RECONCILED", "NOT RECONCILED")
	case reports.EquityChanges:
		s.title("STATEMENT OF CHANGES IN EQUITY", rangeSubtitle(st.Start, st.End, st.Unit))
		s.amount("Beginning Equity", st.BeginningEquity)
		s.amount("Paid-in Capital", st.PaidInCapital)
		s.amount("Retained Earnings", st.RetainedEarnings)
		s.amount("Other Equity", st.OtherEquity)
		s.amount("Net Profit", st.NetProfit)
		s.total("Computed Ending Equity", st.ComputedEndingEquity)
		s.amount("Actual Ending Equity", st.ActualEndingEquity)
		s.amount("Difference", st.Difference)
	case reports.TrialBalance:
		s.title("TRIAL BALANCE", "as of "+st.AsOf.Format(dateLayout)+unitSuffix(st.Unit))
		fmt.Fprintf(out, "  %-8s %-24s %18s %18s\n", "CODE", "NAME", "DEBIT", "CREDIT")
		for _, l := range st.Lines {
			fmt.Fprintf(out, "  %-8s %-24s %18s %18s\n", l.Code, truncate(l.Name, 24),
				blankZero(s, l.DebitBalance), blankZero(s, l.CreditBalance))
		}
		fmt.Fprintf(out, "  %s\n", strings.Repeat("─", 71))
		fmt.Fprintf(out, "  %-33s %18s %18s\n", "TOTALS", s.money(st.TotalDebitBalance), s.money(st.TotalCreditBalance))
		s.flag(st.Balanced, "BALANCED", "UNBALANCED")
	default:
		return fmt.Errorf("cannot print %T", statement)
	}
	return nil
}

func blankZero(s statementWriter, d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return s.money(d)
}

func rangeSubtitle(start, end time.Time, unit string) string {
	return start.Format(dateLayout) + " to " + end.Format(dateLayout) + unitSuffix(unit)
}

func unitSuffix(unit string) string {
	if unit == "" {
		return ""
	}
	return " (" + unit + ")"
}

func center(s string) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return strings.Repeat(" ", (width-n)/2) + s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-2]) + ".."
}
