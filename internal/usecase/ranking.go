package usecase

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openprocurement/auction-worker/internal/domain"
)

// rankingAmount is the sort key for a stage entry: the string-preserved
// feature-adjusted amount when present, the raw amount otherwise.
func rankingAmount(s domain.Stage) decimal.Decimal {
	if s.AmountFeatures != "" {
		if d, err := decimal.NewFromString(s.AmountFeatures); err == nil {
			return d
		}
	}
	return decimal.NewFromFloat(s.Amount)
}

// SortingByAmount orders stage entries ascending by ranking amount.
// The sort is stable: equal amounts keep their original submission order.
func SortingByAmount(bids []domain.Stage) []domain.Stage {
	sorted := make([]domain.Stage, len(bids))
	copy(sorted, bids)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rankingAmount(sorted[i]).LessThan(rankingAmount(sorted[j]))
	})
	return sorted
}

// SortingStartBidsByAmount orders the tender's raw bid snapshot ascending.
// With features configured each amount is weighted by the bidder's
// precomputed coefficient before comparison.
func SortingStartBidsByAmount(bids []domain.BidInfo, coeficients map[string]decimal.Decimal) []domain.BidInfo {
	sorted := make([]domain.BidInfo, len(bids))
	copy(sorted, bids)
	key := func(b domain.BidInfo) decimal.Decimal {
		if c, ok := coeficients[b.ID]; ok {
			return Cooking(b.Value.Amount, c)
		}
		return decimal.NewFromFloat(b.Value.Amount)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return key(sorted[i]).LessThan(key(sorted[j]))
	})
	return sorted
}

// GetLatestBidForBidder picks the bidder's most recent entry from a stage
// list. Entries with unparseable times lose to parseable ones.
func GetLatestBidForBidder(bids []domain.Stage, bidderID string) (domain.Stage, bool) {
	var latest domain.Stage
	var latestTime time.Time
	found := false
	for _, bid := range bids {
		if bid.BidderID != bidderID {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, bid.Time)
		if !found || (err == nil && t.After(latestTime)) {
			latest = bid
			if err == nil {
				latestTime = t
			}
			found = true
		}
	}
	return latest, found
}

// FilterBidsKeys strips internal-only fields (coefficient, feature-adjusted
// amount, stage bookkeeping) from entries crossing the public boundary.
// Non-bid service stages are dropped.
func FilterBidsKeys(bids []domain.Stage) []domain.Stage {
	filtered := make([]domain.Stage, 0, len(bids))
	for _, bid := range bids {
		if bid.Type != "" && bid.Type != domain.StageTypeBids {
			continue
		}
		filtered = append(filtered, domain.Stage{
			BidderID: bid.BidderID,
			Amount:   bid.Amount,
			Time:     bid.Time,
			Label:    bid.Label,
		})
	}
	return filtered
}
