package domain

// Sentinel values for AuctionDocument.CurrentStage. Part of the wire
// contract with downstream consumers, do not renumber.
const (
	StageCancelled   = -100
	StageRescheduled = -101
)

// Stage types
const (
	StageTypeBids  = "bids"
	StageTypePause = "pause"
)

// Stage is one scheduled segment of the auction: a bidding window, a pause,
// or the trailing announcement stage. Initial bids and results reuse the
// same shape with Type left empty.
type Stage struct {
	Type           string            `json:"type,omitempty"`
	Start          string            `json:"start,omitempty"`
	BidderID       string            `json:"bidder_id,omitempty"`
	Amount         float64           `json:"amount"`
	Time           string            `json:"time,omitempty"`
	AmountFeatures string            `json:"amount_features,omitempty"`
	Coeficient     string            `json:"coeficient,omitempty"`
	Changed        bool              `json:"changed,omitempty"`
	Label          map[string]string `json:"label,omitempty"`
}

// AuctionDocument is the shared persisted auction record. Every mutation
// happens under the worker's bids gate; the store enforces optimistic
// revisioning on save.
type AuctionDocument struct {
	ID                    string  `json:"_id"`
	TenderID              string  `json:"tenderID"`
	LotID                 string  `json:"lot_id,omitempty"`
	CurrentStage          int     `json:"current_stage"`
	Stages                []Stage `json:"stages"`
	InitialBids           []Stage `json:"initial_bids"`
	Results               []Stage `json:"results"`
	StartDate             string  `json:"startDate,omitempty"`
	EndDate               string  `json:"endDate,omitempty"`
	Title                 string  `json:"title,omitempty"`
	Description           string  `json:"description,omitempty"`
	AuctionType           string  `json:"auction_type,omitempty"`
	ProcurementMethodType string  `json:"procurementMethodType,omitempty"`

	// TestAuctionData carries the tender payload inline when the worker
	// runs in debug mode and must not call the tender API.
	TestAuctionData *TenderData `json:"test_auction_data,omitempty"`

	// Rev is managed by the store, never serialized into the document body.
	Rev int64 `json:"-"`
}

// InBiddingRange reports whether the current stage is a real stage index
// rather than one of the terminal sentinels.
func (d *AuctionDocument) InBiddingRange() bool {
	return d.CurrentStage >= 0 && d.CurrentStage < len(d.Stages)
}
