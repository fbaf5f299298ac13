package domain

// AuditRecord is the compliance artifact assembled during the auction and
// reconciled afterwards. Weighted amounts and coefficients are kept as the
// exact strings that were used for ranking; they are never re-parsed.
// The record is append-only: reconciliation annotates, it never deletes.
type AuditRecord struct {
	ID       string         `yaml:"id" json:"id"`
	TenderID string         `yaml:"tenderId" json:"tenderId"`
	LotID    string         `yaml:"lot_id,omitempty" json:"lot_id,omitempty"`
	Timeline *AuditTimeline `yaml:"timeline" json:"timeline"`
}

type AuditTimeline struct {
	AuctionStart AuditAuctionStart `yaml:"auction_start" json:"auction_start"`
	Results      *AuditResults     `yaml:"results,omitempty" json:"results,omitempty"`

	// Rounds holds the round_N sections keyed by label, inlined so the
	// rendered artifact keeps the flat timeline layout consumers expect.
	Rounds map[string]AuditRound `yaml:",inline" json:"rounds,omitempty"`
}

type AuditAuctionStart struct {
	Time        string     `yaml:"time,omitempty" json:"time,omitempty"`
	InitialBids []AuditBid `yaml:"initial_bids" json:"initial_bids"`
}

type AuditBid struct {
	Bidder         string  `yaml:"bidder" json:"bidder"`
	Date           string  `yaml:"date" json:"date"`
	Amount         float64 `yaml:"amount" json:"amount"`
	AmountFeatures string  `yaml:"amount_features,omitempty" json:"amount_features,omitempty"`
	Coeficient     string  `yaml:"coeficient,omitempty" json:"coeficient,omitempty"`
	Approved       *bool   `yaml:"approved,omitempty" json:"approved,omitempty"`
}

// AuditRound maps turn labels (turn_1, turn_2, ...) to the turn detail.
// Turns that were never exercised stay absent, they are not zero-filled.
type AuditRound map[string]*AuditTurn

type AuditTurn struct {
	Time    string  `yaml:"time" json:"time"`
	Bidder  string  `yaml:"bidder" json:"bidder"`
	BidTime string  `yaml:"bid_time,omitempty" json:"bid_time,omitempty"`
	Amount  float64 `yaml:"amount,omitempty" json:"amount,omitempty"`
}

type AuditResults struct {
	Time string     `yaml:"time" json:"time"`
	Bids []AuditBid `yaml:"bids" json:"bids"`
}
