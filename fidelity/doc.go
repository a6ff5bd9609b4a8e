// Package fidelity retrieves Fidelity account and transaction data via
// fetch calls to fidelity.com.
//
// The caller owns the browser session: log in with whatever automation
// framework you use, then hand the client a callback that evaluates
// JavaScript in the logged-in page and returns the settled value as JSON.
//
//	client := fidelity.New(func(ctx context.Context, expr string) (json.RawMessage, error) {
//		// page.Evaluate is whatever your browser framework provides;
//		// the expression resolves to a promise, so await it.
//		return page.Evaluate(ctx, expr)
//	})
//
//	transactions, err := client.GetTransactions(ctx,
//		[]string{"123456789", "987654321"},
//		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
//		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
//	if err != nil {
//		return err
//	}
//	for _, t := range transactions {
//		fmt.Printf("%s\t%v\t%s\n", t.Date.Format(time.DateOnly), t.Amount, t.Description)
//	}
//
// See cmd/fidelity-example for a complete program driving a real browser.
package fidelity
