package binance

import (
	"bytes"
	"strconv"
	"strings"
)

// flexString tolerates venue API drift where the same field arrives as either
// a JSON number or a string across response variants.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		unquoted, err := strconv.Unquote(string(trimmed))
		if err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(unquoted))
		return nil
	}
	*f = flexString(trimmed)
	return nil
}

func (f flexString) String() string { return string(f) }

type orderResponse struct {
	Symbol              string     `json:"symbol"`
	OrderID             flexString `json:"orderId"`
	ClientOrderID       string     `json:"clientOrderId"`
	TransactTime        int64      `json:"transactTime"`
	Price               string     `json:"price"`
	OrigQty             string     `json:"origQty"`
	ExecutedQty         string     `json:"executedQty"`
	CummulativeQuoteQty string     `json:"cummulativeQuoteQty"`
	CumQuote            string     `json:"cumQuote"`
	Status              string     `json:"status"`
	TimeInForce         string     `json:"timeInForce"`
	Type                string     `json:"type"`
	Side                string     `json:"side"`
	Fills               []fill     `json:"fills"`
}

type fill struct {
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
}

type accountResponse struct {
	Balances []accountBalance `json:"balances"`
}

type accountBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
