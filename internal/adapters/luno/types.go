package luno

type marketOrderResponse struct {
	OrderID string `json:"order_id"`
}

type orderResponse struct {
	OrderID    string `json:"order_id"`
	State      string `json:"state"`
	Base       string `json:"base"`
	Counter    string `json:"counter"`
	FeeBase    string `json:"fee_base"`
	FeeCounter string `json:"fee_counter"`
}

type balanceResponse struct {
	Balance []balanceEntry `json:"balance"`
}

type balanceEntry struct {
	AccountID string `json:"account_id"`
	Asset     string `json:"asset"`
	Balance   string `json:"balance"`
	Reserved  string `json:"reserved"`
}

type tickerResponse struct {
	Pair      string `json:"pair"`
	LastTrade string `json:"last_trade"`
}

type apiError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}
