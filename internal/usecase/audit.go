package usecase

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openprocurement/auction-worker/internal/domain"
)

// PrepareAudit seeds the audit record: an empty auction_start section plus
// one empty round section per configured round. The record only ever grows
// from here; reconciliation annotates existing entries.
func PrepareAudit(auctionID, tenderID, lotID string, rounds int) *domain.AuditRecord {
	timeline := &domain.AuditTimeline{
		AuctionStart: domain.AuditAuctionStart{InitialBids: []domain.AuditBid{}},
		Rounds:       make(map[string]domain.AuditRound, rounds),
	}
	for round := 1; round <= rounds; round++ {
		timeline.Rounds[RoundLabel(round)] = domain.AuditRound{}
	}
	return &domain.AuditRecord{
		ID:       auctionID,
		TenderID: tenderID,
		LotID:    lotID,
		Timeline: timeline,
	}
}

func RoundLabel(round int) string {
	return fmt.Sprintf("round_%d", round)
}

func TurnLabel(turn int) string {
	return fmt.Sprintf("turn_%d", turn)
}

// ApproveAuditOnAnnouncement appends the results section from the final
// document. When confirmed bid data from the tender API is supplied, every
// result entry is annotated confirmed/unconfirmed; nothing is removed.
func ApproveAuditOnAnnouncement(audit *domain.AuditRecord, doc *domain.AuctionDocument, approved map[string]domain.BidInfo) {
	results := &domain.AuditResults{
		Time: time.Now().Format(time.RFC3339Nano),
		Bids: make([]domain.AuditBid, 0, len(doc.Results)),
	}
	for _, bid := range doc.Results {
		entry := domain.AuditBid{
			Bidder: bid.BidderID,
			Date:   bid.Time,
			Amount: bid.Amount,
		}
		if approved != nil {
			confirmed := false
			if _, ok := approved[bid.BidderID]; ok {
				confirmed = true
			}
			entry.Approved = &confirmed
		}
		results.Bids = append(results.Bids, entry)
	}
	audit.Timeline.Results = results
}

// RenderAudit serializes the audit record into the archival YAML artifact.
func RenderAudit(audit *domain.AuditRecord) ([]byte, error) {
	out, err := yaml.Marshal(audit)
	if err != nil {
		return nil, fmt.Errorf("failed to render audit record: %w", err)
	}
	return out, nil
}
