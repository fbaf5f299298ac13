package usecase

import (
	"context"
	"fmt"

	"github.com/openprocurement/auction-worker/internal/domain"
	"github.com/openprocurement/auction-worker/internal/journal"
)

// PostAudit reconstructs the audit record from a persisted, already
// concluded auction, reconciles it against the bid data the tender API
// confirms, and ships the rendered artifact to the audit sink. Only turns
// that were actually exercised (changed stages) get round/turn entries;
// a stage index off the round grid aborts the whole reconstruction since a
// mis-attributed turn would corrupt audit integrity.
func (a *Auction) PostAudit(ctx context.Context) error {
	a.generateRequestID()
	a.log().Info("---------------- Post audit ----------------",
		"message_id", journal.ServicePostAudit)

	doc, err := a.GetAuctionDocument(ctx)
	if err != nil {
		return err
	}
	if len(doc.Stages) == 0 {
		return fmt.Errorf("auction %s has no stages: %w", a.auctionDocID, domain.ErrDataInconsistency)
	}

	a.auditRecord = PrepareAudit(a.auctionDocID, a.tenderID, a.lotID, a.cfg.Timing.Rounds)

	data, err := a.tender.GetTenderData(ctx, a.requestID)
	if err != nil {
		return fmt.Errorf("failed to get tender data: %w", err)
	}
	bidsInformation := make(map[string]domain.BidInfo, len(data.Bids))
	for _, bid := range data.Bids {
		if bid.Status == "" || bid.Status == "active" || bid.Status == "invalid" {
			bidsInformation[bid.ID] = bid
		}
	}
	ApproveAuditOnAnnouncement(a.auditRecord, doc, bidsInformation)

	a.auditRecord.Timeline.AuctionStart.Time = doc.Stages[0].Start
	for _, bid := range doc.InitialBids {
		a.auditRecord.Timeline.AuctionStart.InitialBids = append(
			a.auditRecord.Timeline.AuctionStart.InitialBids,
			domain.AuditBid{
				Bidder: bid.BidderID,
				Date:   bid.Time,
				Amount: bid.Amount,
			})
	}

	// The grid is derived from the recorded initial bids, fixed at start.
	biddersCount := len(doc.InitialBids)
	if biddersCount == 0 {
		return fmt.Errorf("auction %s has no initial bids: %w", a.auctionDocID, domain.ErrDataInconsistency)
	}

	for index, stage := range doc.Stages {
		if stage.Type != domain.StageTypeBids {
			continue
		}
		round := RoundNumber(index, biddersCount, a.cfg.Timing.Rounds)
		turn, err := TurnInRound(index, round, biddersCount)
		if err != nil {
			return err
		}
		if index+1 >= len(doc.Stages) {
			return fmt.Errorf("bids stage %d has no closing boundary: %w", index, domain.ErrDataInconsistency)
		}
		// Turns that were never exercised stay absent from the timeline.
		if !stage.Changed {
			continue
		}
		roundSection, ok := a.auditRecord.Timeline.Rounds[RoundLabel(round)]
		if !ok {
			roundSection = domain.AuditRound{}
			a.auditRecord.Timeline.Rounds[RoundLabel(round)] = roundSection
		}
		roundSection[TurnLabel(turn)] = &domain.AuditTurn{
			Time:    doc.Stages[index+1].Start,
			Bidder:  stage.BidderID,
			BidTime: stage.Time,
			Amount:  stage.Amount,
		}
	}

	artifact, err := RenderAudit(a.auditRecord)
	if err != nil {
		return err
	}
	a.log().Info("audit data reconstructed", "bytes", len(artifact))

	if a.auditSink == nil {
		return nil
	}
	if err := a.auditSink.Upload(ctx, a.auctionDocID, artifact); err != nil {
		return fmt.Errorf("failed to upload audit artifact: %w", err)
	}
	return nil
}
