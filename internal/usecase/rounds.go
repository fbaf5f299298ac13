package usecase

import (
	"fmt"

	"github.com/openprocurement/auction-worker/internal/domain"
)

// The stage grid is fixed at auction start: every round occupies
// bidders_count+1 stages (one bids stage per bidder plus the pause that
// follows), preceded by the opening pause at index 0. bidders_count never
// changes mid-auction; a stage index that does not fit the grid is a data
// inconsistency, not a case to guess around.

// roundFirstStages lists the stage index opening each round.
func roundFirstStages(biddersCount, rounds int) []int {
	width := biddersCount + 1
	firsts := make([]int, 0, rounds)
	for stage := 0; stage < width*rounds+1; stage++ {
		if (stage+biddersCount)%width == 0 {
			firsts = append(firsts, stage)
		}
	}
	return firsts
}

// RoundNumber maps a stage index onto its round. Index 0 (the opening
// pause) is round 0; the final announcement stage lands in the last round.
func RoundNumber(stageIndex, biddersCount, rounds int) int {
	for round, first := range roundFirstStages(biddersCount, rounds) {
		if stageIndex < first {
			return round
		}
	}
	return rounds
}

// RoundStageRange returns the half-open [start, end) stage window of the
// given round, including the service stage that closes it.
func RoundStageRange(round, biddersCount int) (int, int) {
	start := round*(biddersCount+1) - biddersCount
	end := round*(biddersCount+1) + 1
	return start, end
}

// TurnInRound derives a bids stage's turn coordinate within its round.
// Fails with ErrDataInconsistency when the index is not aligned to the grid.
func TurnInRound(stageIndex, round, biddersCount int) (int, error) {
	turn := stageIndex - (round*(biddersCount+1) - biddersCount) + 1
	if turn < 1 || turn > biddersCount {
		return 0, fmt.Errorf("stage %d does not align to round %d grid (bidders=%d): %w",
			stageIndex, round, biddersCount, domain.ErrDataInconsistency)
	}
	return turn, nil
}
