// Command fidelity-example prints Fidelity transactions for a date range.
//
// It opens a visible browser at fidelity.com, waits for a human to finish
// logging in, then runs the fetch calls inside that session.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/righteffort/finance-helper/fidelity"
	"github.com/spf13/cobra"
)

func init() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)
}

type runFlags struct {
	Accounts []string
	Start    string
	End      string
}

func main() {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "fidelity-example",
		Short: "Print Fidelity transactions for a date range",
		Long: `Print Fidelity transactions for a date range.

Opens a browser window at fidelity.com and waits. Log in there, come back
to the terminal and press Enter; the transactions are then fetched through
the logged-in session and printed one per line.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse(time.DateOnly, flags.Start)
			if err != nil {
				return fmt.Errorf("bad --start: %w", err)
			}
			end, err := time.Parse(time.DateOnly, flags.End)
			if err != nil {
				return fmt.Errorf("bad --end: %w", err)
			}
			return run(cmd.Context(), flags.Accounts, start, end)
		},
	}
	cmd.Flags().StringSliceVarP(&flags.Accounts, "accounts", "a", nil, "Account number(s)")
	cmd.Flags().StringVarP(&flags.Start, "start", "s", "", "Start date in YYYY-MM-DD, interpreted in America/New_York")
	cmd.Flags().StringVarP(&flags.End, "end", "e", "", "End date in YYYY-MM-DD, interpreted in America/New_York")
	cobra.CheckErr(cmd.MarkFlagRequired("accounts"))
	cobra.CheckErr(cmd.MarkFlagRequired("start"))
	cobra.CheckErr(cmd.MarkFlagRequired("end"))

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, accountNumbers []string, start, end time.Time) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if err := chromedp.Run(browserCtx, chromedp.Navigate("https://www.fidelity.com/")); err != nil {
		return fmt.Errorf("open fidelity.com: %w", err)
	}

	fmt.Print("Login to Fidelity, then press Enter: ")
	if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	client := fidelity.New(pageEvaluator(browserCtx))
	transactions, err := client.GetTransactions(browserCtx, accountNumbers, start, end)
	if err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("fetched %d transactions", len(transactions)))
	for _, t := range transactions {
		fmt.Println(formatTransaction(t))
	}
	return nil
}

// pageEvaluator adapts the browser tab behind browserCtx into an EvalFunc.
// Expressions evaluate with promise awaiting on, so the fetch wrapper's
// settled value comes back as plain JSON.
func pageEvaluator(browserCtx context.Context) fidelity.EvalFunc {
	return func(ctx context.Context, expr string) (json.RawMessage, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var result json.RawMessage
		err := chromedp.Run(browserCtx, chromedp.Evaluate(expr, &result,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true).WithReturnByValue(true)
			}))
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

func formatTransaction(t fidelity.Transaction) string {
	amount := "-"
	if t.Amount.Valid {
		amount = "$" + t.Amount.Decimal.StringFixed(2)
	}
	suffix := ""
	if t.Pending {
		suffix = " (pending)"
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s%s",
		t.Date.Format(time.DateOnly), t.AccountNumber, amount, t.Description, suffix)
}
