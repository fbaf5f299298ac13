package domain

// TenderData is the slice of the tender API payload the worker consumes:
// the active bids, the qualitative feature definitions and the auction
// period. Field names follow the tender API wire format.
type TenderData struct {
	Bids                  []BidInfo      `json:"bids,omitempty"`
	Features              []Feature      `json:"features,omitempty"`
	AuctionPeriod         AuctionPeriod  `json:"auctionPeriod,omitempty"`
	TenderPeriod          *AuctionPeriod `json:"tenderPeriod,omitempty"`
	ID                    string         `json:"id,omitempty"`
	TenderID              string         `json:"tenderID,omitempty"`
	Title                 string         `json:"title,omitempty"`
	Description           string         `json:"description,omitempty"`
	ProcurementMethodType string         `json:"procurementMethodType,omitempty"`
	ProcuringEntity       map[string]any `json:"procuringEntity,omitempty"`
	Mode                  string         `json:"mode,omitempty"`
}

type AuctionPeriod struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// BidInfo is one bidder's submission as reported by the tender API.
type BidInfo struct {
	ID         string      `json:"id"`
	Date       string      `json:"date,omitempty"`
	Value      BidValue    `json:"value"`
	Parameters []Parameter `json:"parameters,omitempty"`
	Status     string      `json:"status,omitempty"`
	Tenderers  []Tenderer  `json:"tenderers,omitempty"`
}

type Tenderer struct {
	Name string `json:"name"`
}

type BidValue struct {
	Amount float64 `json:"amount"`
}

// Parameter selects one enum option of a tender feature.
type Parameter struct {
	Code  string  `json:"code"`
	Value float64 `json:"value"`
}

// Feature is a qualitative criterion; each bid's parameter picks one of the
// enum option values, which feed the ranking coefficient.
type Feature struct {
	Code  string          `json:"code"`
	Title string          `json:"title,omitempty"`
	Enum  []FeatureOption `json:"enum"`
}

type FeatureOption struct {
	Value float64 `json:"value"`
	Title string  `json:"title,omitempty"`
}
