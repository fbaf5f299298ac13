package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/openprocurement/auction-worker/internal/domain"
	"github.com/openprocurement/auction-worker/internal/scheduler"
)

// BuildSchedule registers one date job per stage boundary: the auction
// start, the end of the first pause, and then one advance per boundary
// whose kind depends on the stage being left. Job ids embed the boundary
// indices, so rebuilding against an unchanged stage list replaces jobs
// instead of duplicating them.
func (a *Auction) BuildSchedule(sched *scheduler.Scheduler, stages []domain.Stage) error {
	if len(stages) < 2 {
		return fmt.Errorf("cannot schedule auction %s: %d stages: %w",
			a.auctionDocID, len(stages), domain.ErrDataInconsistency)
	}

	starts := make([]time.Time, len(stages))
	for i, stage := range stages {
		t, err := time.Parse(time.RFC3339Nano, stage.Start)
		if err != nil {
			return fmt.Errorf("stage %d has unparseable start %q: %w", i, stage.Start, domain.ErrDataInconsistency)
		}
		starts[i] = t
	}

	roundNumber := 0
	sched.AddDateJob("Start of Auction", starts[0], func(ctx context.Context) {
		if err := a.StartAuction(ctx, 0); err != nil {
			a.handleTransitionError("Start of Auction", err)
		}
	})
	roundNumber++

	sched.AddDateJob("End of Pause Stage: [0 -> 1]", starts[1], func(ctx context.Context) {
		if err := a.EndFirstPause(ctx, 1); err != nil {
			a.handleTransitionError("End of Pause Stage: [0 -> 1]", err)
		}
	})
	roundNumber++

	for index := 2; index < len(stages); index++ {
		round := roundNumber
		switch stages[index-1].Type {
		case domain.StageTypeBids:
			jobID := fmt.Sprintf("End of Bids Stage: [%d -> %d]", index-1, index)
			sched.AddDateJob(jobID, starts[index], func(ctx context.Context) {
				if err := a.EndBidsStage(ctx, round); err != nil {
					a.handleTransitionError(jobID, err)
				}
			})
		case domain.StageTypePause:
			jobID := fmt.Sprintf("End of Pause Stage: [%d -> %d]", index-1, index)
			sched.AddDateJob(jobID, starts[index], func(ctx context.Context) {
				if err := a.NextStage(ctx, round); err != nil {
					a.handleTransitionError(jobID, err)
				}
			})
		default:
			return fmt.Errorf("stage %d has unknown type %q: %w", index-1, stages[index-1].Type, domain.ErrDataInconsistency)
		}
		roundNumber++
	}

	return nil
}
