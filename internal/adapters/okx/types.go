package okx

type orderPayload struct {
	InstID  string `json:"instId"`
	TdMode  string `json:"tdMode"`
	ClOrdID string `json:"clOrdId"`
	Side    string `json:"side"`
	OrdType string `json:"ordType"`
	Size    string `json:"sz"`
	TgtCcy  string `json:"tgtCcy,omitempty"`
}

type apiEnvelope struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (e apiEnvelope) envelope() (string, string) { return e.Code, e.Msg }

type submitEntry struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

type submitEnvelope struct {
	apiEnvelope
	Data []submitEntry `json:"data"`
}

type orderDetail struct {
	OrdID     string `json:"ordId"`
	InstID    string `json:"instId"`
	State     string `json:"state"`
	AvgPx     string `json:"avgPx"`
	AccFillSz string `json:"accFillSz"`
	Fee       string `json:"fee"`
	FeeCcy    string `json:"feeCcy"`
}

type orderDetailEnvelope struct {
	apiEnvelope
	Data []orderDetail `json:"data"`
}

type balanceDetail struct {
	Ccy       string `json:"ccy"`
	AvailBal  string `json:"availBal"`
	FrozenBal string `json:"frozenBal"`
}

type balanceAccount struct {
	Details []balanceDetail `json:"details"`
}

type balanceEnvelope struct {
	apiEnvelope
	Data []balanceAccount `json:"data"`
}

type tickerEntry struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
}

type tickerEnvelope struct {
	apiEnvelope
	Data []tickerEntry `json:"data"`
}
