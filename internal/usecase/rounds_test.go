package usecase

import (
	"errors"
	"testing"

	"github.com/peterldowns/testy/check"

	"github.com/openprocurement/auction-worker/internal/domain"
)

// Three bidders, three rounds: stages 1-3, 5-7 and 9-11 are bids stages,
// stages 0, 4, 8 are pauses, stage 12 is the announcement.

func TestRoundNumber(t *testing.T) {
	check.Equal(t, 0, RoundNumber(0, 3, 3))
	check.Equal(t, 1, RoundNumber(1, 3, 3))
	check.Equal(t, 1, RoundNumber(3, 3, 3))
	check.Equal(t, 1, RoundNumber(4, 3, 3))
	check.Equal(t, 2, RoundNumber(5, 3, 3))
	check.Equal(t, 2, RoundNumber(8, 3, 3))
	check.Equal(t, 3, RoundNumber(9, 3, 3))
	check.Equal(t, 3, RoundNumber(12, 3, 3))
}

func TestRoundStageRange(t *testing.T) {
	start, end := RoundStageRange(1, 3)
	check.Equal(t, 1, start)
	check.Equal(t, 5, end)

	start, end = RoundStageRange(3, 3)
	check.Equal(t, 9, start)
	check.Equal(t, 13, end)
}

func TestRoundStageRange_TwoBidders(t *testing.T) {
	start, end := RoundStageRange(1, 2)
	check.Equal(t, 1, start)
	check.Equal(t, 4, end)

	start, end = RoundStageRange(2, 2)
	check.Equal(t, 4, start)
	check.Equal(t, 7, end)
}

func TestTurnInRound(t *testing.T) {
	turn, err := TurnInRound(1, 1, 3)
	check.NoError(t, err)
	check.Equal(t, 1, turn)

	turn, err = TurnInRound(3, 1, 3)
	check.NoError(t, err)
	check.Equal(t, 3, turn)

	turn, err = TurnInRound(5, 2, 3)
	check.NoError(t, err)
	check.Equal(t, 1, turn)

	turn, err = TurnInRound(11, 3, 3)
	check.NoError(t, err)
	check.Equal(t, 3, turn)
}

func TestTurnInRound_MisalignedStage(t *testing.T) {
	// Stage 4 is a pause; it has no turn in round 1.
	_, err := TurnInRound(4, 1, 3)
	check.Error(t, err)
	check.True(t, errors.Is(err, domain.ErrDataInconsistency))
}
