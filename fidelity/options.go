package fidelity

import (
	_ "embed"
	"encoding/json"
	"strings"
	"time"

	"github.com/cbroglie/mustache"
)

//go:embed templates/getAccountsOptions.json
var defaultAccountsOptions string

//go:embed templates/getTransactionsBody.json.mustache
var defaultTransactionsBody string

//go:embed templates/getTransactionsOptions.json.mustache
var defaultTransactionsOptions string

// Templates holds the request template text a Client renders fetch options
// from. The transaction templates are mustache documents; the accounts
// options are static JSON.
type Templates struct {
	AccountsOptions     string
	TransactionsBody    string
	TransactionsOptions string
}

// DefaultTemplates returns the compiled-in request templates.
func DefaultTemplates() Templates {
	return Templates{
		AccountsOptions:     defaultAccountsOptions,
		TransactionsBody:    defaultTransactionsBody,
		TransactionsOptions: defaultTransactionsOptions,
	}
}

// GetAccountsOptions returns the fetch options object for the account-list
// call. The template carries no variable slots; each call returns a fresh
// object.
func (c *Client) GetAccountsOptions() (map[string]any, error) {
	var options map[string]any
	if err := json.Unmarshal([]byte(c.templates.AccountsOptions), &options); err != nil {
		return nil, wrapError(err, "get_accounts options template is not valid JSON")
	}
	return options, nil
}

// GetTransactionsOptions returns the fetch options object for a
// transaction-history call covering accounts between start and end,
// inclusive America/New_York calendar days.
//
// The rendered body is serialized to JSON twice: once to text, and once
// more as a JSON string literal substituted into the body slot of the
// outer options template. The Fidelity endpoint requires this double
// encoding.
func (c *Client) GetTransactionsOptions(accounts []Account, start, end time.Time) (map[string]any, error) {
	body, err := c.transactionsBody(accounts, start, end)
	if err != nil {
		return nil, err
	}
	inner, err := json.Marshal(body)
	if err != nil {
		return nil, wrapError(err, "marshal get_transactions body")
	}
	quoted, err := json.Marshal(string(inner))
	if err != nil {
		return nil, wrapError(err, "encode get_transactions body")
	}
	rendered, err := mustache.Render(c.templates.TransactionsOptions, map[string]any{"body": string(quoted)})
	if err != nil {
		return nil, wrapError(err, "render get_transactions options template")
	}
	var options map[string]any
	if err := json.Unmarshal([]byte(rendered), &options); err != nil {
		return nil, wrapError(err, "get_transactions options template rendered invalid JSON")
	}
	return options, nil
}

// transactionsBody renders the inner GraphQL envelope and decodes it into
// the strict request model, rejecting unknown fields so template drift
// fails here instead of at the endpoint.
func (c *Client) transactionsBody(accounts []Account, start, end time.Time) (*GetTransactionsRequest, error) {
	ctxAccounts := make([]map[string]any, len(accounts))
	for i, a := range accounts {
		ctxAccounts[i] = map[string]any{
			"number": a.Number,
			"name":   EncodeAccountName(a.Name),
			"last":   i == len(accounts)-1,
		}
	}
	rendered, err := mustache.Render(c.templates.TransactionsBody, map[string]any{
		"accounts": ctxAccounts,
		"start":    FidelityDate(start),
		"end":      FidelityDate(end),
	})
	if err != nil {
		return nil, wrapError(err, "render get_transactions body template")
	}
	var body GetTransactionsRequest
	dec := json.NewDecoder(strings.NewReader(rendered))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return nil, wrapError(err, "get_transactions body template rendered invalid JSON")
	}
	return &body, nil
}

// DescribeOptions renders fetch options for humans: the options with the
// body lifted out, the body with the query lifted out, and the query text
// verbatim, so nothing lands in a log as an escaped blob.
func DescribeOptions(options map[string]any) (string, error) {
	rest := make(map[string]any, len(options))
	for k, v := range options {
		if k != "body" {
			rest[k] = v
		}
	}
	bodyText, ok := options["body"].(string)
	if !ok {
		return "", newError("options carry no body string")
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(bodyText), &body); err != nil {
		return "", wrapError(err, "options body is not valid JSON")
	}
	query, _ := body["query"].(string)
	delete(body, "query")

	restJSON, err := json.MarshalIndent(rest, "", "  ")
	if err != nil {
		return "", wrapError(err, "marshal options")
	}
	bodyJSON, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return "", wrapError(err, "marshal options body")
	}
	return strings.Join([]string{
		"options_minus_body=" + string(restJSON),
		"body_minus_query=" + string(bodyJSON),
		"query=" + query,
	}, "\n"), nil
}
