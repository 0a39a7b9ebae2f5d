package kucoin

type orderPayload struct {
	ClientOid string `json:"clientOid"`
	Side      string `json:"side"`
	Symbol    string `json:"symbol"`
	Type      string `json:"type"`
	Funds     string `json:"funds,omitempty"`
	Size      string `json:"size,omitempty"`
}

type apiEnvelope struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (e apiEnvelope) envelope() (string, string) { return e.Code, e.Msg }

type submitEnvelope struct {
	apiEnvelope
	Data struct {
		OrderID string `json:"orderId"`
	} `json:"data"`
}

type orderDetail struct {
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	DealFunds   string `json:"dealFunds"`
	DealSize    string `json:"dealSize"`
	Fee         string `json:"fee"`
	FeeCurrency string `json:"feeCurrency"`
	IsActive    bool   `json:"isActive"`
	CancelExist bool   `json:"cancelExist"`
}

type orderDetailEnvelope struct {
	apiEnvelope
	Data orderDetail `json:"data"`
}

type accountEntry struct {
	Currency  string `json:"currency"`
	Type      string `json:"type"`
	Balance   string `json:"balance"`
	Available string `json:"available"`
	Holds     string `json:"holds"`
}

type accountsEnvelope struct {
	apiEnvelope
	Data []accountEntry `json:"data"`
}

type tickerEnvelope struct {
	apiEnvelope
	Data struct {
		Price string `json:"price"`
	} `json:"data"`
}
