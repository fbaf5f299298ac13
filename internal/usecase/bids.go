package usecase

import (
	"fmt"
	"time"

	"github.com/openprocurement/auction-worker/internal/domain"
)

// TurnInfo is what the bid-submission surface needs to know: which stage is
// open and whose turn it is. Transport and authentication live elsewhere;
// this package only owns the mutation contract.
type TurnInfo struct {
	StageIndex int
	Type       string
	BidderID   string
	Start      string
}

// CurrentTurn reports the currently open stage under the gate.
func (a *Auction) CurrentTurn() (TurnInfo, bool) {
	a.gate.Lock()
	defer a.gate.Unlock()

	doc := a.auctionDocument
	if doc == nil || a.ended || !doc.InBiddingRange() {
		return TurnInfo{}, false
	}
	stage := doc.Stages[doc.CurrentStage]
	return TurnInfo{
		StageIndex: doc.CurrentStage,
		Type:       stage.Type,
		BidderID:   stage.BidderID,
		Start:      stage.Start,
	}, true
}

// RecordBid accepts a bid against the currently open bidding stage. It runs
// under the same gate as the scheduled transitions: a bid can never land in
// a stage that is concurrently being closed. The accepted bid stays
// buffered until EndBidsStage approves it into the document.
func (a *Auction) RecordBid(bidderID string, amount float64) error {
	a.gate.Lock()
	defer a.gate.Unlock()

	doc := a.auctionDocument
	if doc == nil || a.ended {
		return fmt.Errorf("auction is not accepting bids: %w", domain.ErrBidRejected)
	}
	if !doc.InBiddingRange() {
		return fmt.Errorf("no open stage: %w", domain.ErrBidRejected)
	}
	stage := doc.Stages[doc.CurrentStage]
	if stage.Type != domain.StageTypeBids {
		return fmt.Errorf("stage %d is not a bidding stage: %w", doc.CurrentStage, domain.ErrBidRejected)
	}
	if stage.BidderID != bidderID {
		return fmt.Errorf("not bidder %s's turn: %w", bidderID, domain.ErrBidRejected)
	}
	if amount <= 0 {
		return fmt.Errorf("invalid amount %v: %w", amount, domain.ErrBidRejected)
	}

	a.bidsData[doc.CurrentStage] = append(a.bidsData[doc.CurrentStage], domain.Stage{
		BidderID: bidderID,
		Amount:   amount,
		Time:     time.Now().Format(time.RFC3339Nano),
	})
	a.metrics.RecordBid()
	a.log().Info("bid recorded",
		"stage", doc.CurrentStage, "bidder_id", bidderID, "amount", amount)
	return nil
}
