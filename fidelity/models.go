package fidelity

import "encoding/json"

// Wire shapes for the two Fidelity GraphQL endpoints. Request structs are
// exported so callers can decode and inspect the body produced by
// GetTransactionsOptions; field order matters because rendered bodies are
// re-serialized from these structs before being embedded in the outer
// fetch options.

// AcctDetail is one account entry in the get-transactions request body.
type AcctDetail struct {
	AcctNum  string `json:"acctNum"`
	AcctType string `json:"acctType"`
	// Name is the base64-encoded account name.
	Name string `json:"name"`
}

// SearchCriteriaDetail carries the date range and the fixed search
// switches of the get-transactions request body.
type SearchCriteriaDetail struct {
	TimePeriod    int     `json:"timePeriod"`
	TxnCat        *string `json:"txnCat"`
	ViewType      string  `json:"viewType"`
	HistSortDir   string  `json:"histSortDir"`
	AcctHistSort  string  `json:"acctHistSort"`
	HasBasketName bool    `json:"hasBasketName"`
	// TxnFromDate and TxnToDate are epoch seconds as decimal strings.
	TxnFromDate string `json:"txnFromDate"`
	TxnToDate   string `json:"txnToDate"`
}

// GetTransactionsVariables is the variables object of the get-transactions
// GraphQL envelope.
type GetTransactionsVariables struct {
	IsNewOrderAPI        bool                 `json:"isNewOrderApi"`
	IsSupportCrypto      bool                 `json:"isSupportCrypto"`
	HideDCOrders         bool                 `json:"hideDCOrders"`
	AcctIDList           string               `json:"acctIdList"`
	AcctDetailList       []AcctDetail         `json:"acctDetailList"`
	SearchCriteriaDetail SearchCriteriaDetail `json:"searchCriteriaDetail"`
}

// GetTransactionsRequest is the get-transactions GraphQL envelope.
type GetTransactionsRequest struct {
	OperationName string                   `json:"operationName"`
	Variables     GetTransactionsVariables `json:"variables"`
	Query         string                   `json:"query"`
}

// historyEntry is one raw transaction record in the get-transactions
// response, before normalization.
type historyEntry struct {
	AcctNum     string `json:"acctNum"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description"`
	IntradayInd bool   `json:"intradayInd"`
	OrderNumber string `json:"orderNumber"`
}

// Response envelopes use pointer levels so a missing layer is
// distinguishable from an empty one.

type getTransactionsResponse struct {
	Data *struct {
		GetTransactions *struct {
			Historys []historyEntry `json:"historys"`
		} `json:"getTransactions"`
	} `json:"data"`
}

type getAccountsResponse struct {
	Data *struct {
		GetContext *struct {
			SysStatus *struct {
				Backend *struct {
					Account string `json:"account"`
				} `json:"backend"`
			} `json:"sysStatus"`
			Person *struct {
				Assets []struct {
					AcctNum          string `json:"acctNum"`
					AcctType         string `json:"acctType"`
					PreferenceDetail struct {
						Name string `json:"name"`
					} `json:"preferenceDetail"`
				} `json:"assets"`
			} `json:"person"`
		} `json:"getContext"`
	} `json:"data"`
}

// fetchResult is what the in-page fetch wrapper returns through the
// evaluator: status plus parsed JSON on success, status plus raw text
// otherwise.
type fetchResult struct {
	Status int             `json:"status"`
	Text   string          `json:"text"`
	JSON   json.RawMessage `json:"json"`
}
