package kraken

// apiEnvelope is Kraken's uniform response wrapper: a (possibly empty) error
// array plus a result whose shape depends on the endpoint. Result must hold a
// non-nil pointer before decoding.
type apiEnvelope struct {
	Errors []string `json:"error"`
	Result any      `json:"result"`
}

type addOrderResult struct {
	TxID  []string `json:"txid"`
	Descr struct {
		Order string `json:"order"`
	} `json:"descr"`
}

type orderInfo struct {
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	VolExec string `json:"vol_exec"`
	Cost    string `json:"cost"`
	Fee     string `json:"fee"`
	Price   string `json:"price"`
}

type tickerEntry struct {
	Close []string `json:"c"`
}
