package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openprocurement/auction-worker/internal/domain"
	"github.com/openprocurement/auction-worker/internal/eligibility"
	"github.com/openprocurement/auction-worker/internal/journal"
	"github.com/openprocurement/auction-worker/internal/scheduler"
)

// ScheduleAuction prepares the run: reload the document, snapshot the
// tender data, seed the audit record, lay out the stage timeline and
// register every timed transition. Must run after the readiness check.
func (a *Auction) ScheduleAuction(ctx context.Context, sched *scheduler.Scheduler) error {
	a.generateRequestID()

	doc, err := a.GetAuctionDocument(ctx)
	if err != nil {
		return err
	}
	if a.debug {
		a.log().Info("Get auction data from auction document")
	}
	if err := a.GetAuctionInfo(ctx); err != nil {
		return err
	}

	a.auditRecord = PrepareAudit(a.auctionDocID, a.tenderID, a.lotID, a.cfg.Timing.Rounds)

	start, err := time.Parse(time.RFC3339Nano, a.auctionData.AuctionPeriod.StartDate)
	if err != nil {
		return fmt.Errorf("unparseable auction start %q: %w",
			a.auctionData.AuctionPeriod.StartDate, domain.ErrDataInconsistency)
	}
	doc.Stages = PrepareAuctionStages(start, a.biddersCount, a.cfg.Timing)
	doc.StartDate = start.Format(time.RFC3339Nano)

	if err := a.saveAuctionDocument(ctx, doc); err != nil {
		return err
	}

	if err := a.BuildSchedule(sched, doc.Stages); err != nil {
		return err
	}
	a.log().Info("Prepare server ...", "message_id", journal.ServicePrepareServer)
	return nil
}

// PrepareAuctionDocument builds the initial auction document from the
// tender data (the planning command). The document starts at stage -1:
// scheduled but not yet started.
func (a *Auction) PrepareAuctionDocument(ctx context.Context) error {
	a.generateRequestID()
	if err := a.GetAuctionInfo(ctx); err != nil {
		return err
	}

	start, err := time.Parse(time.RFC3339Nano, a.auctionData.AuctionPeriod.StartDate)
	if err != nil {
		return fmt.Errorf("unparseable auction start %q: %w",
			a.auctionData.AuctionPeriod.StartDate, domain.ErrDataInconsistency)
	}

	doc := &domain.AuctionDocument{
		ID:                    a.auctionDocID,
		TenderID:              a.tenderID,
		LotID:                 a.lotID,
		CurrentStage:          -1,
		Title:                 a.auctionData.Title,
		Description:           a.auctionData.Description,
		ProcurementMethodType: a.auctionData.ProcurementMethodType,
		StartDate:             start.Format(time.RFC3339Nano),
		Stages:                PrepareAuctionStages(start, a.biddersCount, a.cfg.Timing),
		InitialBids:           []domain.Stage{},
		Results:               []domain.Stage{},
	}
	if a.debug {
		doc.TestAuctionData = a.auctionData
	}
	if existing, loadErr := a.store.Load(ctx, a.auctionDocID); loadErr == nil {
		doc.Rev = existing.Rev
	}
	a.auctionDocument = doc
	return a.saveAuctionDocument(ctx, doc)
}

// TenderEligible reports whether this worker generation should process the
// snapshotted tender. Requires GetAuctionInfo to have run first; a nil
// filter accepts everything.
func (a *Auction) TenderEligible(filter eligibility.FilterConfig, auctionType string) (bool, error) {
	if filter == nil {
		return true, nil
	}
	raw, err := json.Marshal(a.auctionData)
	if err != nil {
		return false, err
	}
	var tender eligibility.Tender
	if err := json.Unmarshal(raw, &tender); err != nil {
		return false, err
	}
	return filter.IsTenderProcessedByAuction(a.log(), tender, auctionType)
}

// PostAnnounce reveals the real bidder names in the published document once
// the tender's qualification allows it.
func (a *Auction) PostAnnounce(ctx context.Context) error {
	a.generateRequestID()

	data, err := a.tender.GetTenderData(ctx, a.requestID)
	if err != nil {
		return fmt.Errorf("failed to get tender data: %w", err)
	}
	names := make(map[string]string, len(data.Bids))
	for _, bid := range data.Bids {
		if len(bid.Tenderers) > 0 {
			names[bid.ID] = bid.Tenderers[0].Name
		}
	}

	return a.updateDocument(ctx, func(doc *domain.AuctionDocument) error {
		reveal := func(stages []domain.Stage) {
			for i, stage := range stages {
				name, ok := names[stage.BidderID]
				if !ok {
					continue
				}
				stages[i].Label = map[string]string{"en": name, "uk": name, "ru": name}
			}
		}
		reveal(doc.InitialBids)
		reveal(doc.Results)
		reveal(doc.Stages)
		return nil
	})
}
