package terminal

import "github.com/yanun0323/decimal"

type Response[T any] struct {
	ID    int64         `json:"id"`
	Error ResponseError `json:"error,omitempty"`
	Data  T             `json:"result"`
}

type ResponseError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type ResponsePlaceOrder struct {
	OrderID  string          `json:"order_id"`
	Market   string          `json:"market"`
	Side     int             `json:"side"`
	Type     int             `json:"type"`
	Price    decimal.Decimal `json:"price"`
	Amount   decimal.Decimal `json:"amount"`
	Left     decimal.Decimal `json:"left"`
	ClientID string          `json:"client_id"`
	Ctime    float64         `json:"ctime"`
}

type ResponseCancelOrder struct {
	OrderID string `json:"order_id"`
	Status  int    `json:"status"`
}

type ResponsePosition struct {
	Market   string          `json:"market"`
	Amount   decimal.Decimal `json:"amount"`
	AvgPrice decimal.Decimal `json:"avg_price"`
	Side     int             `json:"side"`
}

type ResponseOpenOrder struct {
	OrderID string          `json:"order_id"`
	Market  string          `json:"market"`
	Side    int             `json:"side"`
	Status  int             `json:"status"`
	Price   decimal.Decimal `json:"price"`
	Amount  decimal.Decimal `json:"amount"`
	Left    decimal.Decimal `json:"left"`
}

// Venue order-status codes on the private stream.
const (
	statusAccepted   = 1
	statusPartFilled = 2
	statusFilled     = 3
	statusCancelled  = 4
	statusRejected   = 5
)

type StreamOrderUpdate struct {
	Account string          `json:"account"`
	OrderID string          `json:"order_id"`
	Market  string          `json:"market"`
	Status  int             `json:"status"`
	Reason  string          `json:"reason"`
	Filled  decimal.Decimal `json:"filled"`
	Left    decimal.Decimal `json:"left"`
	Time    int64           `json:"time"`
}

type StreamDealUpdate struct {
	Account string          `json:"account"`
	OrderID string          `json:"order_id"`
	DealID  string          `json:"deal_id"`
	Market  string          `json:"market"`
	Side    int             `json:"side"`
	Price   decimal.Decimal `json:"price"`
	Amount  decimal.Decimal `json:"amount"`
	Time    int64           `json:"time"`
}

type StreamSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result struct {
		Status string `json:"status"`
	} `json:"result"`
	Error *ResponseError `json:"error"`
}

type StreamEnvelope struct {
	Method string `json:"method"`
}
