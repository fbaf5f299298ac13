package usecase

import (
	"fmt"
	"time"

	"github.com/openprocurement/auction-worker/internal/config"
	"github.com/openprocurement/auction-worker/internal/domain"
)

const stageTypeAnnouncement = "announcement"

// BidderLabel builds the multilingual anonymized label for a bidder's
// ordinal name.
func BidderLabel(bidderName string) map[string]string {
	if bidderName == "" {
		return map[string]string{"en": "", "uk": "", "ru": ""}
	}
	return map[string]string{
		"en": fmt.Sprintf("Bidder #%s", bidderName),
		"uk": fmt.Sprintf("Учасник №%s", bidderName),
		"ru": fmt.Sprintf("Участник №%s", bidderName),
	}
}

// PrepareInitialBidStage builds one entry of the initial_bids list. The
// feature-adjusted amount and coefficient stay string-preserved; they are
// only attached when features are in use.
func PrepareInitialBidStage(bidTime, bidderID, bidderName string, amount float64, coeficient, amountFeatures string) domain.Stage {
	stage := domain.Stage{
		BidderID: bidderID,
		Time:     bidTime,
		Amount:   amount,
		Label:    BidderLabel(bidderName),
	}
	if amountFeatures != "" {
		stage.AmountFeatures = amountFeatures
	}
	if coeficient != "" {
		stage.Coeficient = coeficient
	}
	return stage
}

// PrepareResultsStage builds one entry of the public results list; it is
// shaped exactly like an initial bid entry.
func PrepareResultsStage(bidTime, bidderID, bidderName string, amount float64, coeficient, amountFeatures string) domain.Stage {
	return PrepareInitialBidStage(bidTime, bidderID, bidderName, amount, coeficient, amountFeatures)
}

// PrepareBidsStage rewrites a bids stage in place with the given bid data,
// keeping the stage's start time.
func PrepareBidsStage(existing domain.Stage, bid domain.Stage, bidderName string) domain.Stage {
	stage := domain.Stage{
		Type:     domain.StageTypeBids,
		Start:    existing.Start,
		BidderID: bid.BidderID,
		Amount:   bid.Amount,
		Time:     bid.Time,
		Label:    BidderLabel(bidderName),
	}
	if bid.AmountFeatures != "" {
		stage.AmountFeatures = bid.AmountFeatures
	}
	if bid.Coeficient != "" {
		stage.Coeficient = bid.Coeficient
	}
	return stage
}

// PrepareServiceStage builds a pause stage.
func PrepareServiceStage(start string) domain.Stage {
	return domain.Stage{Type: domain.StageTypePause, Start: start}
}

// PrepareAuctionStages lays out the full stage timeline: the opening pause,
// then rounds of one bids window per bidder followed by a pause, with the
// trailing announcement stage closing the last round. Bidder assignment is
// left empty; start_auction seeds the bidding order once initial bids are
// ranked.
func PrepareAuctionStages(start time.Time, biddersCount int, timing config.Timing) []domain.Stage {
	stages := []domain.Stage{PrepareServiceStage(start.Format(time.RFC3339Nano))}
	next := start.Add(timing.FirstPause)
	for round := 1; round <= timing.Rounds; round++ {
		for turn := 0; turn < biddersCount; turn++ {
			stages = append(stages, domain.Stage{
				Type:  domain.StageTypeBids,
				Start: next.Format(time.RFC3339Nano),
				Label: BidderLabel(""),
			})
			next = next.Add(timing.BidsWindow)
		}
		if round == timing.Rounds {
			stages = append(stages, domain.Stage{
				Type:  stageTypeAnnouncement,
				Start: next.Format(time.RFC3339Nano),
			})
		} else {
			stages = append(stages, PrepareServiceStage(next.Format(time.RFC3339Nano)))
			next = next.Add(timing.Pause)
		}
	}
	return stages
}
