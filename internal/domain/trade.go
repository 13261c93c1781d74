package domain

import "time"

// TradeSide is the direction of a trade as reported by the data source.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// Trade is a single fill on a prediction-market outcome within the trailing
// window. Trades are read-only inputs to a computation pass; optional fields
// may be empty or nil and are never treated as fatal.
type Trade struct {
	ID             int64
	Timestamp      time.Time
	ConditionID    string // market condition identifier, may be empty
	EventTitle     string // fallback market identity when ConditionID is empty
	Outcome        string // outcome label, e.g. "Yes"
	Question       string // human-readable market question
	Side           TradeSide
	Price          float64 // probability-price in [0,1]
	USDValue       float64
	Wallet         string
	CloseTime      *time.Time
	ResolutionTime *time.Time
}

// MarketKey returns the identity of the market this trade belongs to:
// the condition ID when present, otherwise the event title, otherwise
// the catch-all "unknown" bucket.
func (t Trade) MarketKey() string {
	if t.ConditionID != "" {
		return t.ConditionID
	}
	if t.EventTitle != "" {
		return t.EventTitle
	}
	return "unknown"
}

// OutcomeLabel returns the outcome label, substituting "unknown" when absent.
func (t Trade) OutcomeLabel() string {
	if t.Outcome == "" {
		return "unknown"
	}
	return t.Outcome
}
