package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/openprocurement/auction-worker/internal/domain"
	"github.com/openprocurement/auction-worker/internal/journal"
	"github.com/openprocurement/auction-worker/internal/scheduler"
)

func scheduledAuction(t *testing.T) (*Auction, *testHarness, *scheduler.Scheduler) {
	t.Helper()
	h, deps := newHarness(threeBidderTender())
	h.store.put(&domain.AuctionDocument{ID: "tender-1", TenderID: "tender-1", CurrentStage: -1})

	a := NewAuction("tender-1", "", testConfig(), false, deps)
	sched := scheduler.New(100*time.Second, testLogger())
	assert.NoError(t, a.ScheduleAuction(context.Background(), sched))
	return a, h, sched
}

func TestScheduleAuction_LaysOutStagesAndJobs(t *testing.T) {
	a, h, sched := scheduledAuction(t)

	doc := h.store.get(a.AuctionDocID())
	assert.NotNil(t, doc)
	assert.Equal(t, 13, len(doc.Stages))
	check.Equal(t, "2026-06-01T11:00:00Z", doc.StartDate)

	check.Equal(t, 13, sched.Len())
	ids := sched.JobIDs()
	check.Equal(t, "Start of Auction", ids[0])
	check.Equal(t, "End of Pause Stage: [0 -> 1]", ids[1])
	check.Equal(t, "End of Bids Stage: [1 -> 2]", ids[2])
	check.Equal(t, "End of Pause Stage: [4 -> 5]", ids[5])
	check.Equal(t, "End of Bids Stage: [11 -> 12]", ids[12])
}

func TestScheduleAuction_RebuildIsIdempotent(t *testing.T) {
	a, h, sched := scheduledAuction(t)

	doc := h.store.get(a.AuctionDocID())
	assert.NoError(t, a.BuildSchedule(sched, doc.Stages))
	check.Equal(t, 13, sched.Len())
}

func TestStartAuction_RanksInitialBids(t *testing.T) {
	a, h, _ := scheduledAuction(t)
	ctx := context.Background()

	assert.NoError(t, a.StartAuction(ctx, 0))

	doc := h.store.get(a.AuctionDocID())
	assert.Equal(t, 3, len(doc.InitialBids))
	check.Equal(t, "b2", doc.InitialBids[0].BidderID)
	check.Equal(t, "b3", doc.InitialBids[1].BidderID)
	check.Equal(t, "b1", doc.InitialBids[2].BidderID)
	check.Equal(t, 0, doc.CurrentStage)

	// round 1 bidding order: current leader bids last
	check.Equal(t, "b1", doc.Stages[1].BidderID)
	check.Equal(t, "b3", doc.Stages[2].BidderID)
	check.Equal(t, "b2", doc.Stages[3].BidderID)
	check.Equal(t, 100.0, doc.Stages[1].Amount)
	check.Equal(t, 90.0, doc.Stages[3].Amount)

	// anonymized mapping published for the run
	check.Equal(t, "1", h.mapping.set["tender-1"]["b1"])
	check.Equal(t, "2", h.mapping.set["tender-1"]["b2"])
}

func TestStartAuction_SaveConflictKeepsAuditBidsSingular(t *testing.T) {
	a, h, _ := scheduledAuction(t)
	ctx := context.Background()

	// force one optimistic-concurrency retry of the start transition
	h.store.conflicts = 1
	assert.NoError(t, a.StartAuction(ctx, 0))

	doc := h.store.get(a.AuctionDocID())
	assert.Equal(t, 3, len(doc.InitialBids))
	assert.Equal(t, 3, len(a.auditRecord.Timeline.AuctionStart.InitialBids))
	check.Equal(t, doc.InitialBids[0].BidderID, a.auditRecord.Timeline.AuctionStart.InitialBids[0].Bidder)
}

func TestBuildSchedule_FailedTransitionIsJournaled(t *testing.T) {
	// no document in the store, so the start transition must fail
	h, deps := newHarness(threeBidderTender())
	a := NewAuction("tender-1", "", testConfig(), false, deps)
	sched := scheduler.New(100*time.Second, testLogger())
	defer sched.Shutdown()

	soon := time.Now().Add(20 * time.Millisecond)
	stages := []domain.Stage{
		{Type: domain.StageTypePause, Start: soon.Format(time.RFC3339Nano)},
		{Type: domain.StageTypePause, Start: soon.Add(5 * time.Second).Format(time.RFC3339Nano)},
	}
	assert.NoError(t, a.BuildSchedule(sched, stages))
	sched.Start()

	deadline := time.Now().Add(2 * time.Second)
	for !h.journal.hasMessage(journal.ServiceTransitionFailed) {
		if time.Now().After(deadline) {
			t.Fatal("transition failure was not journaled")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRecordBid_OnlyCurrentBidderInWindow(t *testing.T) {
	a, _, _ := scheduledAuction(t)
	ctx := context.Background()

	assert.NoError(t, a.StartAuction(ctx, 0))

	// stage 0 is a pause, nobody may bid
	err := a.RecordBid("b1", 80)
	check.True(t, errors.Is(err, domain.ErrBidRejected))

	assert.NoError(t, a.EndFirstPause(ctx, 1))

	turn, open := a.CurrentTurn()
	assert.True(t, open)
	check.Equal(t, 1, turn.StageIndex)
	check.Equal(t, "b1", turn.BidderID)

	check.True(t, errors.Is(a.RecordBid("b2", 70), domain.ErrBidRejected))
	check.True(t, errors.Is(a.RecordBid("b1", -5), domain.ErrBidRejected))
	check.NoError(t, a.RecordBid("b1", 80))
}

func TestEndBidsStage_ApprovesLastBidAndReseedsOrder(t *testing.T) {
	a, h, _ := scheduledAuction(t)
	ctx := context.Background()

	assert.NoError(t, a.StartAuction(ctx, 0))
	assert.NoError(t, a.EndFirstPause(ctx, 1))

	// two bids in the window, the last one stands
	assert.NoError(t, a.RecordBid("b1", 85))
	assert.NoError(t, a.RecordBid("b1", 80))
	assert.NoError(t, a.EndBidsStage(ctx, 2))

	doc := h.store.get(a.AuctionDocID())
	check.Equal(t, 2, doc.CurrentStage)
	check.True(t, doc.Stages[1].Changed)
	check.Equal(t, 80.0, doc.Stages[1].Amount)

	// b1 now leads with 80, so future rounds put b1 last
	check.Equal(t, "b3", doc.Stages[5].BidderID)
	check.Equal(t, "b2", doc.Stages[6].BidderID)
	check.Equal(t, "b1", doc.Stages[7].BidderID)
	check.Equal(t, "b1", doc.Stages[11].BidderID)
	check.Equal(t, 80.0, doc.Stages[11].Amount)
}

func TestEndBidsStage_WithoutBidsLeavesStageUnchanged(t *testing.T) {
	a, h, _ := scheduledAuction(t)
	ctx := context.Background()

	assert.NoError(t, a.StartAuction(ctx, 0))
	assert.NoError(t, a.EndFirstPause(ctx, 1))
	assert.NoError(t, a.EndBidsStage(ctx, 2))

	doc := h.store.get(a.AuctionDocID())
	check.False(t, doc.Stages[1].Changed)
	check.Equal(t, 100.0, doc.Stages[1].Amount)
}

func TestEndAuction_PublishesSortedResults(t *testing.T) {
	a, h, _ := scheduledAuction(t)
	ctx := context.Background()

	assert.NoError(t, a.StartAuction(ctx, 0))
	assert.NoError(t, a.EndFirstPause(ctx, 1))
	assert.NoError(t, a.RecordBid("b1", 80))

	// jump to the last bids stage; closing it ends the auction
	doc := h.store.get(a.AuctionDocID())
	doc.CurrentStage = len(doc.Stages) - 2
	h.store.put(doc)

	assert.NoError(t, a.EndBidsStage(ctx, -1))

	final := h.store.get(a.AuctionDocID())
	check.Equal(t, len(final.Stages)-1, final.CurrentStage)
	check.NotEqual(t, "", final.EndDate)

	assert.Equal(t, 3, len(final.Results))
	check.Equal(t, "b2", final.Results[0].BidderID)
	check.Equal(t, 90.0, final.Results[0].Amount)
	check.Equal(t, "b3", final.Results[1].BidderID)
	check.Equal(t, "b1", final.Results[2].BidderID)

	assert.Equal(t, 1, len(h.tender.published))
	assert.Equal(t, 3, len(h.tender.published[0].Bids))
	check.Equal(t, "b2", h.tender.published[0].Bids[0].ID)
	check.Equal(t, 90.0, h.tender.published[0].Bids[0].Value.Amount)

	check.Equal(t, []string{"tender-1"}, h.mapping.deleted)

	done := make(chan struct{})
	go func() {
		a.WaitToEnd(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("auction did not signal completion")
	}

	// terminal state rejects further bids
	check.True(t, errors.Is(a.RecordBid("b1", 70), domain.ErrBidRejected))
}

func TestEndAuction_LateComebackWins(t *testing.T) {
	a, h, _ := scheduledAuction(t)
	ctx := context.Background()

	assert.NoError(t, a.StartAuction(ctx, 0))
	assert.NoError(t, a.EndFirstPause(ctx, 1))
	assert.NoError(t, a.RecordBid("b1", 80))
	assert.NoError(t, a.EndBidsStage(ctx, 2))

	doc := h.store.get(a.AuctionDocID())
	doc.CurrentStage = len(doc.Stages) - 2
	h.store.put(doc)
	assert.NoError(t, a.EndBidsStage(ctx, -1))

	final := h.store.get(a.AuctionDocID())
	check.Equal(t, "b1", final.Results[0].BidderID)
	check.Equal(t, 80.0, final.Results[0].Amount)
}

func TestEndAuction_PublishFailureStillPersists(t *testing.T) {
	h, deps := newHarness(threeBidderTender())
	h.store.put(&domain.AuctionDocument{ID: "tender-1", TenderID: "tender-1", CurrentStage: -1})
	h.tender.publishErr = errors.New("api down")

	cfg := testConfig()
	cfg.Timing.PublishRetries = 1
	a := NewAuction("tender-1", "", cfg, false, deps)
	sched := scheduler.New(100*time.Second, testLogger())
	ctx := context.Background()

	assert.NoError(t, a.ScheduleAuction(ctx, sched))
	assert.NoError(t, a.StartAuction(ctx, 0))

	doc := h.store.get(a.AuctionDocID())
	doc.CurrentStage = len(doc.Stages) - 2
	h.store.put(doc)

	err := a.EndBidsStage(ctx, -1)
	assert.Error(t, err)
	check.True(t, errors.Is(err, domain.ErrPublishFailed))

	// the final record is still persisted locally for operator recovery
	final := h.store.get(a.AuctionDocID())
	check.Equal(t, len(final.Stages)-1, final.CurrentStage)
	check.Equal(t, 3, len(final.Results))
}

func TestCancelAuction(t *testing.T) {
	h, deps := newHarness(threeBidderTender())
	h.store.put(&domain.AuctionDocument{ID: "tender-1", TenderID: "tender-1", CurrentStage: 3})

	a := NewAuction("tender-1", "", testConfig(), false, deps)
	ctx := context.Background()

	assert.NoError(t, a.CancelAuction(ctx))
	doc := h.store.get("tender-1")
	check.Equal(t, domain.StageCancelled, doc.CurrentStage)
	check.NotEqual(t, "", doc.EndDate)

	// restamping the sentinel is allowed
	assert.NoError(t, a.CancelAuction(ctx))
	check.Equal(t, domain.StageCancelled, h.store.get("tender-1").CurrentStage)
}

func TestCancelAuction_MissingDocumentIsNormal(t *testing.T) {
	_, deps := newHarness(threeBidderTender())
	a := NewAuction("ghost", "", testConfig(), false, deps)
	check.NoError(t, a.CancelAuction(context.Background()))
}

func TestRescheduleAuction(t *testing.T) {
	h, deps := newHarness(threeBidderTender())
	h.store.put(&domain.AuctionDocument{ID: "tender-1", TenderID: "tender-1", CurrentStage: -1})

	a := NewAuction("tender-1", "", testConfig(), false, deps)
	assert.NoError(t, a.RescheduleAuction(context.Background()))
	check.Equal(t, domain.StageRescheduled, h.store.get("tender-1").CurrentStage)
}

func TestBuildSchedule_RejectsShortStageList(t *testing.T) {
	_, deps := newHarness(threeBidderTender())
	a := NewAuction("tender-1", "", testConfig(), false, deps)
	sched := scheduler.New(100*time.Second, testLogger())

	err := a.BuildSchedule(sched, []domain.Stage{{Type: domain.StageTypePause}})
	check.True(t, errors.Is(err, domain.ErrDataInconsistency))
}

func TestNewAuction_LotScopedDocumentID(t *testing.T) {
	_, deps := newHarness(threeBidderTender())
	a := NewAuction("tender-1", "lot-7", testConfig(), false, deps)
	check.Equal(t, "tender-1_lot-7", a.AuctionDocID())
}
