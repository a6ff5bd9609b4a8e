package fidelity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	getAccountsURL     = "https://digital.fidelity.com/ftgw/digital/portfolio/api/graphql?ref_at=portsum"
	getTransactionsURL = "https://digital.fidelity.com/ftgw/digital/webactivity/api/graphql?ref_at=activity"
)

// historyDateLayout matches upstream transaction dates like "Nov-28-2025".
const historyDateLayout = "Jan-02-2006"

// EvalFunc evaluates a JavaScript expression in a logged-in fidelity.com
// page and returns the expression's settled value as JSON. Implementations
// typically delegate to a browser automation framework's evaluate call
// with promise awaiting enabled; the client never touches cookies,
// sessions, or headers itself.
type EvalFunc func(ctx context.Context, expr string) (json.RawMessage, error)

// Account is a Fidelity account.
type Account struct {
	// Number is the Fidelity account number.
	Number string
	// Name is the account name selected by the account owner.
	Name string
}

// Transaction is a Fidelity transaction.
type Transaction struct {
	// AccountNumber is the Fidelity account number.
	AccountNumber string
	// Date is the transaction date: midnight UTC standing in for the
	// America/New_York calendar day.
	Date time.Time
	// Description is the transaction description.
	Description string
	// Amount is the transaction amount in dollars, rounded to cents.
	// Invalid when upstream reports no usable amount, which happens only
	// on pending transactions.
	Amount decimal.NullDecimal
	// OrderNumber identifies the transaction uniquely within its account.
	// Nil only while the transaction is pending.
	OrderNumber *string
	// Pending is true until the transaction settles.
	Pending bool
}

// Client retrieves accounts and transactions from fidelity.com through
// fetch calls evaluated inside an authenticated browser context. A Client
// caches the account list after its first successful fetch and is not safe
// for concurrent use.
type Client struct {
	eval      EvalFunc
	templates Templates

	// Both cache fields are set together after one fully successful
	// account fetch, never partially.
	accountList  []Account
	accountIndex map[string]Account
}

// New returns a Client that issues its fetch calls through eval, using the
// compiled-in request templates.
func New(eval EvalFunc) *Client {
	return NewWithTemplates(eval, DefaultTemplates())
}

// NewWithTemplates is New with caller-supplied template text.
func NewWithTemplates(eval EvalFunc, templates Templates) *Client {
	return &Client{eval: eval, templates: templates}
}

// GetTransactions retrieves transactions for the given account numbers
// between start and end, both inclusive America/New_York calendar days
// carried as exact-midnight UTC values. Transactions come back in upstream
// order; on any failure the result is nil and the error is a *Error, never
// a partial list.
func (c *Client) GetTransactions(ctx context.Context, accountNumbers []string, start, end time.Time) ([]Transaction, error) {
	if err := checkDateRange(start, end); err != nil {
		return nil, err
	}
	accounts, err := c.resolveAccounts(ctx, accountNumbers)
	if err != nil {
		return nil, err
	}

	options, err := c.GetTransactionsOptions(accounts, start, end)
	if err != nil {
		return nil, err
	}
	respJSON, err := c.fetch(ctx, getTransactionsURL, options)
	if err != nil {
		return nil, err
	}

	var resp getTransactionsResponse
	if err := json.Unmarshal(respJSON, &resp); err != nil {
		return nil, wrapError(err, "failed to parse get_transactions response")
	}
	if resp.Data == nil || resp.Data.GetTransactions == nil || resp.Data.GetTransactions.Historys == nil {
		return nil, newError("failed to parse get_transactions response: missing data.getTransactions.historys")
	}

	historys := resp.Data.GetTransactions.Historys
	transactions := make([]Transaction, 0, len(historys))
	for _, h := range historys {
		t, err := historyEntryToTransaction(h)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, nil
}

// GetAccounts retrieves the logged-in user's accounts in upstream order.
// The list is cached for the lifetime of the Client, so at most the first
// successful call fetches.
func (c *Client) GetAccounts(ctx context.Context) ([]Account, error) {
	if err := c.ensureAccounts(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(c.accountList), nil
}

// checkDateRange reports every violation at once so a caller fixing its
// input does not chase errors one at a time.
func checkDateRange(start, end time.Time) error {
	var problems []string
	if err := checkDayBoundary("start", start); err != nil {
		problems = append(problems, err.Error())
	}
	if err := checkDayBoundary("end", end); err != nil {
		problems = append(problems, err.Error())
	}
	if utcDay(start).After(utcDay(end)) {
		problems = append(problems, fmt.Sprintf("start %s is after end %s",
			utcDay(start).Format(time.DateOnly), utcDay(end).Format(time.DateOnly)))
	}
	if len(problems) > 0 {
		return newError("invalid date range: %s", strings.Join(problems, "; "))
	}
	return nil
}

// resolveAccounts maps account numbers to accounts in input order,
// duplicates included. Unknown numbers fail the whole call, all named.
func (c *Client) resolveAccounts(ctx context.Context, accountNumbers []string) ([]Account, error) {
	if err := c.ensureAccounts(ctx); err != nil {
		return nil, err
	}
	accounts := make([]Account, 0, len(accountNumbers))
	var missing []string
	seen := make(map[string]bool)
	for _, number := range accountNumbers {
		account, ok := c.accountIndex[number]
		if !ok {
			if !seen[number] {
				seen[number] = true
				missing = append(missing, number)
			}
			continue
		}
		accounts = append(accounts, account)
	}
	if len(missing) > 0 {
		return nil, newError("account(s) not found: %s", strings.Join(missing, ", "))
	}
	return accounts, nil
}

func (c *Client) ensureAccounts(ctx context.Context) error {
	if c.accountIndex != nil {
		return nil
	}
	accounts, err := c.fetchAccounts(ctx)
	if err != nil {
		return err
	}
	index := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		index[a.Number] = a
	}
	c.accountList = accounts
	c.accountIndex = index
	return nil
}

func (c *Client) fetchAccounts(ctx context.Context) ([]Account, error) {
	options, err := c.GetAccountsOptions()
	if err != nil {
		return nil, err
	}
	respJSON, err := c.fetch(ctx, getAccountsURL, options)
	if err != nil {
		return nil, err
	}

	var resp getAccountsResponse
	if err := json.Unmarshal(respJSON, &resp); err != nil {
		return nil, wrapError(err, "failed to parse get_accounts response")
	}
	if resp.Data == nil || resp.Data.GetContext == nil ||
		resp.Data.GetContext.SysStatus == nil || resp.Data.GetContext.SysStatus.Backend == nil ||
		resp.Data.GetContext.Person == nil {
		return nil, newError("failed to parse get_accounts response: missing data.getContext fields")
	}
	getContext := resp.Data.GetContext

	if status := getContext.SysStatus.Backend.Account; !strings.EqualFold(status, "ok") {
		return nil, newError("fidelity backend not ok: %s", status)
	}

	accounts := make([]Account, 0, len(getContext.Person.Assets))
	for _, asset := range getContext.Person.Assets {
		accounts = append(accounts, Account{Number: asset.AcctNum, Name: asset.PreferenceDetail.Name})
	}
	return accounts, nil
}

// fetch runs one fetch call with the given options inside the browser and
// returns the response JSON. Exactly one attempt is made; any status other
// than 200 is an error carrying the status and raw response text.
func (c *Client) fetch(ctx context.Context, url string, options map[string]any) (json.RawMessage, error) {
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return nil, wrapError(err, "marshal fetch options")
	}
	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		if desc, err := DescribeOptions(options); err == nil {
			slog.Debug("fetch " + url + "\n" + desc)
		}
	}

	raw, err := c.eval(ctx, fetchScript(url, string(optionsJSON)))
	if err != nil {
		return nil, wrapError(err, "evaluate fetch call")
	}
	var result fetchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, wrapError(err, "unexpected evaluator result")
	}
	if result.Status != http.StatusOK {
		return nil, newError("fetch failed, code: %d, text: %s", result.Status, result.Text)
	}
	return result.JSON, nil
}

// fetchScript wraps a fetch call in an async IIFE that reports either the
// parsed JSON or the raw text, keyed by status.
func fetchScript(url, optionsJSON string) string {
	return fmt.Sprintf(`
	(async () => {
		const r = await fetch(%q, %s);
		if (!r.ok) {
			return { status: r.status, text: await r.text() };
		}
		const json = await r.json();
		return { status: r.status, json: json };
	})()`, url, optionsJSON)
}

// amountJunk strips currency symbols and thousands separators before
// numeric parsing.
var amountJunk = strings.NewReplacer(",", "", "$", "")

func historyEntryToTransaction(h historyEntry) (Transaction, error) {
	parsed, err := time.Parse(historyDateLayout, h.Date)
	if err != nil {
		return Transaction{}, wrapError(err, "bad date %q in history entry", h.Date)
	}
	// The calendar day is authoritative; any time-of-day or zone artifact
	// in the raw string is discarded.
	date := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)

	// Blank and unparseable amounts (seen on pending transactions) map to
	// an absent value, not zero and not an error.
	var amount decimal.NullDecimal
	if text := strings.TrimSpace(amountJunk.Replace(h.Amount)); text != "" {
		if value, err := decimal.NewFromString(text); err == nil {
			amount = decimal.NullDecimal{Decimal: value.Round(2), Valid: true}
		}
	}

	var orderNumber *string
	if h.OrderNumber != "" {
		orderNumber = &h.OrderNumber
	}

	return Transaction{
		AccountNumber: h.AcctNum,
		Date:          date,
		Description:   h.Description,
		Amount:        amount,
		OrderNumber:   orderNumber,
		Pending:       h.IntradayInd,
	}, nil
}
