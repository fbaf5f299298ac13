package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openprocurement/auction-worker/internal/config"
	"github.com/openprocurement/auction-worker/internal/domain"
	"github.com/openprocurement/auction-worker/internal/infrastructure/metrics"
	"github.com/openprocurement/auction-worker/internal/journal"
)

// Deps carries the collaborator ports injected into the Auction worker.
// Journal and Metrics are optional; everything else is required.
type Deps struct {
	Store     domain.Store
	Tender    domain.TenderClient
	Mapping   domain.MappingStore
	AuditSink domain.AuditSink
	Journal   domain.JournalPublisher
	Metrics   *metrics.AuctionMetrics
	Logger    *slog.Logger
}

// Auction drives one auction document through its lifecycle. Every mutation
// of the shared document happens inside the bids gate; the bid-recording
// path (RecordBid) takes the same gate, so scheduled transitions and
// inbound bids never observe a stale intermediate state.
type Auction struct {
	tenderID     string
	lotID        string
	auctionDocID string
	cfg          *config.WorkerConfig
	debug        bool

	store     domain.Store
	tender    domain.TenderClient
	mapping   domain.MappingStore
	auditSink domain.AuditSink
	jrnl      domain.JournalPublisher
	metrics   *metrics.AuctionMetrics
	logger    *slog.Logger

	gate      sync.Mutex
	endEvent  chan struct{}
	endOnce   sync.Once
	ended     bool
	retries   int
	requestID string
	startedAt time.Time

	auctionDocument *domain.AuctionDocument
	auditRecord     *domain.AuditRecord
	auctionData     *domain.TenderData
	testData        *domain.TenderData

	biddersData       []domain.BidInfo
	biddersCount      int
	features          []domain.Feature
	biddersCoeficient map[string]decimal.Decimal
	mappingTable      map[string]string

	// bidsData buffers bids recorded during live windows, keyed by the
	// stage index they were submitted against. Guarded by the gate.
	bidsData map[int][]domain.Stage
}

func NewAuction(tenderID, lotID string, cfg *config.WorkerConfig, debug bool, deps Deps) *Auction {
	auctionDocID := tenderID
	if lotID != "" {
		auctionDocID = tenderID + "_" + lotID
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retries := cfg.Timing.PublishRetries
	if retries < 1 {
		retries = 1
	}
	return &Auction{
		tenderID:          tenderID,
		lotID:             lotID,
		auctionDocID:      auctionDocID,
		cfg:               cfg,
		debug:             debug,
		store:             deps.Store,
		tender:            deps.Tender,
		mapping:           deps.Mapping,
		auditSink:         deps.AuditSink,
		jrnl:              deps.Journal,
		metrics:           deps.Metrics,
		logger:            logger.With("auction_id", auctionDocID),
		endEvent:          make(chan struct{}),
		retries:           retries,
		biddersCoeficient: make(map[string]decimal.Decimal),
		mappingTable:      make(map[string]string),
		bidsData:          make(map[int][]domain.Stage),
	}
}

func (a *Auction) AuctionDocID() string {
	return a.auctionDocID
}

// UseTestAuctionData injects tender data for a debug run, taking precedence
// over the document's embedded test_auction_data.
func (a *Auction) UseTestAuctionData(data *domain.TenderData) {
	a.testData = data
}

func (a *Auction) generateRequestID() {
	a.requestID = uuid.NewString()
}

func (a *Auction) log() *slog.Logger {
	return a.logger.With("request_id", a.requestID)
}

func (a *Auction) publishEvent(messageID string, stage int) {
	if a.jrnl == nil {
		return
	}
	err := a.jrnl.Publish(domain.JournalEvent{
		AuctionID: a.auctionDocID,
		RequestID: a.requestID,
		MessageID: messageID,
		Stage:     stage,
		Time:      time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		a.log().Error("failed to publish journal event", "message_id", messageID, "error", err)
	}
}

// handleTransitionError surfaces a scheduled transition failure to the
// operator channels: correlation-id log record, journal event, metric.
func (a *Auction) handleTransitionError(jobID string, err error) {
	a.metrics.RecordTransitionFailure(jobID)
	a.log().Error("scheduled transition failed",
		"job_id", jobID,
		"message_id", journal.ServiceTransitionFailed,
		"error", err)
	a.publishEvent(journal.ServiceTransitionFailed, -1)
}

// GetAuctionDocument reloads the persisted document into the worker.
func (a *Auction) GetAuctionDocument(ctx context.Context) (*domain.AuctionDocument, error) {
	doc, err := a.store.Load(ctx, a.auctionDocID)
	if err != nil {
		return nil, err
	}
	a.auctionDocument = doc
	return doc, nil
}

// updateDocument runs one transactional read-modify-write: reload the
// latest revision, apply mutate, save. A save conflict retries the whole
// cycle; the document is never assumed unchanged since it was last read.
func (a *Auction) updateDocument(ctx context.Context, mutate func(doc *domain.AuctionDocument) error) error {
	var lastErr error
	for attempt := 0; attempt < a.retries; attempt++ {
		doc, err := a.GetAuctionDocument(ctx)
		if err != nil {
			return err
		}
		if err := mutate(doc); err != nil {
			return err
		}
		err = a.store.Save(ctx, doc)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrSaveConflict) {
			return err
		}
		a.metrics.RecordSaveConflict()
		a.log().Warn("save conflict, rereading auction document", "attempt", attempt+1)
		lastErr = err
	}
	return fmt.Errorf("auction %s: save retries exhausted: %w", a.auctionDocID, lastErr)
}

// GetAuctionInfo snapshots the tender data: active bids, features, the
// per-bidder coefficients (computed exactly once per run) and the
// anonymized bidder mapping.
func (a *Auction) GetAuctionInfo(ctx context.Context) error {
	if a.debug {
		switch {
		case a.testData != nil:
			a.auctionData = a.testData
		case a.auctionDocument != nil && a.auctionDocument.TestAuctionData != nil:
			a.auctionData = a.auctionDocument.TestAuctionData
		default:
			return fmt.Errorf("debug run without test_auction_data: %w", domain.ErrDataInconsistency)
		}
	} else {
		data, err := a.tender.GetTenderData(ctx, a.requestID)
		if err != nil {
			return fmt.Errorf("failed to get tender data: %w", err)
		}
		a.auctionData = data
	}

	a.biddersData = a.biddersData[:0]
	for _, bid := range a.auctionData.Bids {
		if bid.Status != "" && bid.Status != "active" {
			continue
		}
		a.biddersData = append(a.biddersData, bid)
	}
	a.biddersCount = len(a.biddersData)
	a.features = a.auctionData.Features

	for index, bid := range a.biddersData {
		a.mappingTable[bid.ID] = fmt.Sprintf("%d", index+1)
		if len(a.features) > 0 {
			a.biddersCoeficient[bid.ID] = CalculateCoeficient(a.features, bid.Parameters)
		}
	}

	if a.mapping != nil {
		if err := a.mapping.Set(ctx, a.auctionDocID, a.mappingTable); err != nil {
			a.log().Error("failed to store bidder mapping", "error", err)
		}
	}
	return nil
}

// StartAuction ranks the initial bid snapshot, seeds the future bidding
// order and opens round switchToRound (0 by default).
func (a *Auction) StartAuction(ctx context.Context, switchToRound int) error {
	a.generateRequestID()
	a.metrics.RecordTransition("start_auction")
	a.startedAt = time.Now()
	a.log().Info("---------------- Start auction ----------------",
		"message_id", journal.ServiceStartAuction)

	a.gate.Lock()
	defer a.gate.Unlock()

	if a.auditRecord == nil {
		a.auditRecord = PrepareAudit(a.auctionDocID, a.tenderID, a.lotID, a.cfg.Timing.Rounds)
	}
	a.auditRecord.Timeline.AuctionStart.Time = time.Now().Format(time.RFC3339Nano)

	if _, err := a.GetAuctionDocument(ctx); err != nil {
		return err
	}
	if err := a.GetAuctionInfo(ctx); err != nil {
		return err
	}

	return a.updateDocument(ctx, func(doc *domain.AuctionDocument) error {
		// The closure re-runs on save conflicts; both sides of the initial
		// bid assembly must reset or retries would duplicate audit entries.
		doc.InitialBids = []domain.Stage{}
		a.auditRecord.Timeline.AuctionStart.InitialBids = []domain.AuditBid{}
		for _, bid := range SortingStartBidsByAmount(a.biddersData, a.biddersCoeficient) {
			amount := bid.Value.Amount
			auditInfo := domain.AuditBid{
				Bidder: bid.ID,
				Date:   bid.Date,
				Amount: amount,
			}
			var coeficient, amountFeatures string
			if len(a.features) > 0 {
				amountFeatures = Cooking(amount, a.biddersCoeficient[bid.ID]).String()
				coeficient = a.biddersCoeficient[bid.ID].String()
				auditInfo.AmountFeatures = amountFeatures
				auditInfo.Coeficient = coeficient
			}
			a.auditRecord.Timeline.AuctionStart.InitialBids = append(
				a.auditRecord.Timeline.AuctionStart.InitialBids, auditInfo)

			bidTime := bid.Date
			if bidTime == "" {
				bidTime = doc.StartDate
			}
			doc.InitialBids = append(doc.InitialBids, PrepareInitialBidStage(
				bidTime, bid.ID, a.mappingTable[bid.ID], amount, coeficient, amountFeatures))
		}

		if switchToRound >= 0 {
			doc.CurrentStage = switchToRound
		} else {
			doc.CurrentStage = 0
		}

		minimalBids := a.minimalBids(doc.InitialBids)
		a.updateFutureBiddingOrders(doc, minimalBids)
		return nil
	})
}

// minimalBids selects each bidder's latest (leading) bid and ranks the
// selection ascending.
func (a *Auction) minimalBids(allBids []domain.Stage) []domain.Stage {
	minimal := make([]domain.Stage, 0, len(a.biddersData))
	for _, bid := range a.biddersData {
		if latest, ok := GetLatestBidForBidder(allBids, bid.ID); ok {
			minimal = append(minimal, latest)
		}
	}
	return SortingByAmount(minimal)
}

// updateFutureBiddingOrders reassigns every not-yet-played round's bids
// stages from the ranked minimal bids. Within a round the current leader
// bids last, so the stage order is the ranking reversed.
func (a *Auction) updateFutureBiddingOrders(doc *domain.AuctionDocument, minimalBids []domain.Stage) {
	currentRound := RoundNumber(doc.CurrentStage, a.biddersCount, a.cfg.Timing.Rounds)
	for round := currentRound + 1; round <= a.cfg.Timing.Rounds; round++ {
		start, _ := RoundStageRange(round, a.biddersCount)
		for turn := 0; turn < len(minimalBids) && start+turn < len(doc.Stages); turn++ {
			bid := minimalBids[len(minimalBids)-1-turn]
			doc.Stages[start+turn] = PrepareBidsStage(
				doc.Stages[start+turn], bid, a.mappingTable[bid.BidderID])
		}
	}
}

// EndFirstPause opens the first bidding round.
func (a *Auction) EndFirstPause(ctx context.Context, switchToRound int) error {
	a.generateRequestID()
	a.metrics.RecordTransition("end_first_pause")
	a.log().Info("---------------- End First Pause ----------------",
		"message_id", journal.ServiceEndFirstPause)

	a.gate.Lock()
	defer a.gate.Unlock()

	err := a.updateDocument(ctx, func(doc *domain.AuctionDocument) error {
		a.switchStage(doc, switchToRound)
		return nil
	})
	if err != nil {
		return err
	}
	a.publishEvent(journal.ServiceEndFirstPause, switchToRound)
	return nil
}

func (a *Auction) switchStage(doc *domain.AuctionDocument, switchToRound int) {
	if switchToRound >= 0 {
		doc.CurrentStage = switchToRound
	} else {
		doc.CurrentStage++
	}
}

// EndBidsStage closes a bidding window: bids buffered for the closing stage
// are approved into the document, rankings and future bidding orders are
// refreshed, and the document advances. Closing the final bids stage ends
// the auction instead.
func (a *Auction) EndBidsStage(ctx context.Context, switchToRound int) error {
	a.generateRequestID()
	a.metrics.RecordTransition("end_bids_stage")
	a.log().Info("---------------- End Bids Stage ----------------",
		"message_id", journal.ServiceEndBidStage)

	a.gate.Lock()

	endAuction := false
	err := a.updateDocument(ctx, func(doc *domain.AuctionDocument) error {
		a.approveBidsInformation(doc)
		if doc.CurrentStage == len(doc.Stages)-2 {
			endAuction = true
			return nil
		}
		a.switchStage(doc, switchToRound)
		return nil
	})
	a.gate.Unlock()
	if err != nil {
		return err
	}
	if endAuction {
		return a.EndAuction(ctx)
	}
	a.publishEvent(journal.ServiceEndBidStage, switchToRound)
	return nil
}

// approveBidsInformation folds the buffered bids for the current stage into
// the document: the stage is rewritten with the accepted bid
// (changed=true), and every future round's bidding order is re-seeded from
// the refreshed ranking. Caller holds the gate.
func (a *Auction) approveBidsInformation(doc *domain.AuctionDocument) {
	stageIndex := doc.CurrentStage
	if stageIndex < 0 || stageIndex >= len(doc.Stages) {
		return
	}
	pending := a.bidsData[stageIndex]
	if len(pending) == 0 {
		return
	}
	bid := pending[len(pending)-1]

	stage := doc.Stages[stageIndex]
	stage.Amount = bid.Amount
	stage.Time = bid.Time
	stage.Changed = true
	if len(a.features) > 0 {
		coeficient := a.biddersCoeficient[stage.BidderID]
		stage.AmountFeatures = Cooking(bid.Amount, coeficient).String()
		stage.Coeficient = coeficient.String()
	}
	doc.Stages[stageIndex] = stage
	delete(a.bidsData, stageIndex)

	a.log().Info("bid approved into stage",
		"stage", stageIndex,
		"bidder_id", stage.BidderID,
		"amount", bid.Amount,
		"message_id", journal.BidsReceived)

	minimalBids := a.minimalBids(a.playedBids(doc))
	a.updateFutureBiddingOrders(doc, minimalBids)
}

// playedBids gathers each bidder's standing entries: the initial bids plus
// every changed bids stage so far.
func (a *Auction) playedBids(doc *domain.AuctionDocument) []domain.Stage {
	all := make([]domain.Stage, 0, len(doc.InitialBids))
	all = append(all, doc.InitialBids...)
	for _, stage := range doc.Stages {
		if stage.Type == domain.StageTypeBids && stage.Changed {
			all = append(all, stage)
		}
	}
	return all
}

// NextStage is the steady-state advance out of a pause stage.
func (a *Auction) NextStage(ctx context.Context, switchToRound int) error {
	a.generateRequestID()
	a.metrics.RecordTransition("next_stage")
	a.log().Info("---------------- Next Stage ----------------",
		"message_id", journal.ServiceNextStage)

	a.gate.Lock()
	defer a.gate.Unlock()

	err := a.updateDocument(ctx, func(doc *domain.AuctionDocument) error {
		a.switchStage(doc, switchToRound)
		return nil
	})
	if err != nil {
		return err
	}
	a.publishEvent(journal.ServiceNextStage, switchToRound)
	return nil
}

// EndAuction is the only clean termination path: stop accepting bids,
// release the bidder mapping, collapse the final round into results,
// publish them to the tender API with bounded retries and persist the
// outcome. In debug mode publishing is skipped and the local document is
// persisted after a settle delay.
func (a *Auction) EndAuction(ctx context.Context) error {
	a.generateRequestID()
	a.metrics.RecordTransition("end_auction")
	a.log().Info("---------------- End auction ----------------",
		"message_id", journal.ServiceEndAuction)

	a.gate.Lock()
	defer a.gate.Unlock()
	a.ended = true

	if a.mapping != nil {
		if err := a.mapping.Delete(ctx, a.auctionDocID); err != nil {
			a.log().Error("failed to delete bidder mapping", "error", err)
		}
	}

	doc, err := a.GetAuctionDocument(ctx)
	if err != nil {
		return err
	}

	start, end := RoundStageRange(a.cfg.Timing.Rounds, a.biddersCount)
	if start < 0 || start > len(doc.Stages) {
		return fmt.Errorf("result window [%d:%d) outside stages: %w", start, end, domain.ErrDataInconsistency)
	}
	if end > len(doc.Stages) {
		end = len(doc.Stages)
	}
	window := make([]domain.Stage, end-start)
	copy(window, doc.Stages[start:end])

	doc.Results = []domain.Stage{}
	for _, item := range FilterBidsKeys(SortingByAmount(window)) {
		doc.Results = append(doc.Results, PrepareResultsStage(
			item.Time, item.BidderID, a.mappingTable[item.BidderID], item.Amount, "", ""))
	}
	doc.CurrentStage = len(doc.Stages) - 1
	doc.EndDate = time.Now().Format(time.RFC3339Nano)

	if a.auditRecord == nil {
		a.auditRecord = PrepareAudit(a.auctionDocID, a.tenderID, a.lotID, a.cfg.Timing.Rounds)
	}
	ApproveAuditOnAnnouncement(a.auditRecord, doc, nil)
	if artifact, renderErr := RenderAudit(a.auditRecord); renderErr == nil {
		a.log().Info("audit data assembled", "bytes", len(artifact))
	} else {
		a.log().Error("failed to render audit record", "error", renderErr)
	}

	// The final record becomes durable only after the publish outcome is
	// known: on success as the published result, on exhausted retries as a
	// best-effort local copy for operator recovery.
	if a.debug {
		a.log().Debug("debug run: put auction data disabled")
		time.Sleep(debugSettleDelay)
	} else if err := a.putAuctionData(ctx); err != nil {
		a.log().Error("results left unpublished",
			"message_id", journal.ServicePublishFailed, "error", err)
		a.metrics.RecordPublishFailure()
		if saveErr := a.saveAuctionDocument(ctx, doc); saveErr != nil {
			a.log().Error("failed to persist unpublished document", "error", saveErr)
		}
		a.signalEnd()
		return err
	}

	if err := a.saveAuctionDocument(ctx, doc); err != nil {
		a.log().Error("failed to persist final document", "error", err)
		return err
	}

	if !a.startedAt.IsZero() {
		a.metrics.ObserveAuctionDuration(time.Since(a.startedAt).Seconds())
	}
	a.publishEvent(journal.ServiceEndAuction, doc.CurrentStage)
	a.signalEnd()
	return nil
}

// saveAuctionDocument persists doc, refreshing the revision and retrying on
// optimistic conflicts. Used where the worker's in-memory document is the
// source of truth (auction end); stage switches go through updateDocument
// instead.
func (a *Auction) saveAuctionDocument(ctx context.Context, doc *domain.AuctionDocument) error {
	var lastErr error
	for attempt := 0; attempt < a.retries; attempt++ {
		lastErr = a.store.Save(ctx, doc)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, domain.ErrSaveConflict) {
			return lastErr
		}
		a.metrics.RecordSaveConflict()
		latest, err := a.store.Load(ctx, doc.ID)
		if err != nil {
			return err
		}
		doc.Rev = latest.Rev
	}
	return fmt.Errorf("auction %s: save retries exhausted: %w", a.auctionDocID, lastErr)
}

var debugSettleDelay = 10 * time.Second

// putAuctionData submits the result list to the tender API with bounded
// retries and linear backoff. Each attempt is idempotent on the API side.
func (a *Auction) putAuctionData(ctx context.Context) error {
	submission := &domain.ResultsSubmission{}
	for _, result := range a.auctionDocument.Results {
		submission.Bids = append(submission.Bids, domain.ResultBid{
			ID:    result.BidderID,
			Date:  result.Time,
			Value: domain.BidValue{Amount: result.Amount},
		})
	}

	var lastErr error
	for attempt := 1; attempt <= a.retries; attempt++ {
		a.metrics.RecordPublishAttempt()
		lastErr = a.tender.PublishResults(ctx, a.requestID, submission)
		if lastErr == nil {
			return nil
		}
		a.log().Warn("failed to publish results",
			"attempt", attempt,
			"message_id", journal.ServicePublishRetry,
			"error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrPublishFailed, lastErr)
}

func (a *Auction) signalEnd() {
	a.endOnce.Do(func() { close(a.endEvent) })
}

// WaitToEnd blocks until the auction signals completion.
func (a *Auction) WaitToEnd(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-a.endEvent:
	}
	a.logger.Info("Stop auction worker", "message_id", journal.ServiceStopAuctionWorker)
}

// CancelAuction marks the document with the cancelled sentinel. A missing
// document is a normal outcome, reported but not raised; re-cancelling an
// already terminal record just restamps the same sentinel.
func (a *Auction) CancelAuction(ctx context.Context) error {
	a.generateRequestID()
	a.metrics.RecordTransition("cancel_auction")

	a.gate.Lock()
	defer a.gate.Unlock()

	err := a.updateDocument(ctx, func(doc *domain.AuctionDocument) error {
		a.log().Info("Auction canceled", "message_id", journal.ServiceAuctionCancelled)
		doc.CurrentStage = domain.StageCancelled
		doc.EndDate = time.Now().Format(time.RFC3339Nano)
		a.log().Info("Change auction status to canceled",
			"message_id", journal.ServiceAuctionStatusCancelled)
		return nil
	})
	if errors.Is(err, domain.ErrAuctionNotFound) {
		a.log().Info("Auction not found", "message_id", journal.ServiceAuctionNotFound)
		return nil
	}
	if err == nil {
		a.publishEvent(journal.ServiceAuctionCancelled, domain.StageCancelled)
	}
	return err
}

// RescheduleAuction marks the document with the rescheduled sentinel.
func (a *Auction) RescheduleAuction(ctx context.Context) error {
	a.generateRequestID()
	a.metrics.RecordTransition("reschedule_auction")

	a.gate.Lock()
	defer a.gate.Unlock()

	err := a.updateDocument(ctx, func(doc *domain.AuctionDocument) error {
		a.log().Info("Auction has not started and will be rescheduled",
			"message_id", journal.ServiceAuctionReschedule)
		doc.CurrentStage = domain.StageRescheduled
		return nil
	})
	if errors.Is(err, domain.ErrAuctionNotFound) {
		a.log().Info("Auction not found", "message_id", journal.ServiceAuctionNotFound)
		return nil
	}
	if err == nil {
		a.publishEvent(journal.ServiceAuctionReschedule, domain.StageRescheduled)
	}
	return err
}
