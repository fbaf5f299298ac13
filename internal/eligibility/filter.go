// Package eligibility decides whether a tender is processed by this worker
// generation. The filter config maps tender fields to cutover dates: a
// tender whose field value has a cutover date at or before its
// tenderPeriod start matches the "new" auction type.
package eligibility

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"
)

const (
	AuctionTypeNew        = "new"
	AuctionTypeDeprecated = "deprecated"
)

// fallback applied when a tender carries no tenderPeriod start date;
// predates every cutover so such tenders never match the new filters.
const zeroTenderPeriodStart = "2000-01-01T00:00:00+00:00"

// FilterConfig maps a tender field name to {field value -> cutover date}.
type FilterConfig map[string]map[string]string

// LoadFilterConfig reads the filter config, honoring the
// DEPRECATED_AUCTION_CONFIG_PATH override.
func LoadFilterConfig(defaultPath string) (FilterConfig, error) {
	path := os.Getenv("DEPRECATED_AUCTION_CONFIG_PATH")
	if path == "" {
		path = defaultPath
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read auction filter config: %w", err)
	}
	var cfg FilterConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse auction filter config: %w", err)
	}
	return cfg, nil
}

// Tender is the untyped tender payload the filter inspects.
type Tender map[string]any

// IsTenderProcessedByAuction reports whether the tender belongs to the
// given auction type: "new" when any filter matches, "deprecated" when
// none do.
func (c FilterConfig) IsTenderProcessedByAuction(logger *slog.Logger, tender Tender, auctionType string) (bool, error) {
	if auctionType != AuctionTypeNew && auctionType != AuctionTypeDeprecated {
		return false, fmt.Errorf("auction type must be one of [%s %s], got %q",
			AuctionTypeNew, AuctionTypeDeprecated, auctionType)
	}

	startStr := tenderPeriodStart(tender)
	if startStr == "" {
		logger.Error("There is no tenderPeriod startDate in tender", "tender_id", tender["id"])
		startStr = zeroTenderPeriodStart
	}
	periodStart, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		logger.Error("Invalid tenderPeriod startDate", "tender_id", tender["id"], "value", startStr)
		periodStart, _ = time.Parse(time.RFC3339, zeroTenderPeriodStart)
	}

	anyMatched := false
	for filterKey, filterData := range c {
		if c.matchCriteria(logger, filterData, tender, filterKey, periodStart) {
			anyMatched = true
		}
	}

	if auctionType == AuctionTypeNew {
		return anyMatched, nil
	}
	return !anyMatched, nil
}

// matchCriteria evaluates one filter key. Missing tender fields and
// malformed config dates are logged and treated as non-matches rather than
// crashing the whole pipeline.
func (c FilterConfig) matchCriteria(logger *slog.Logger, filterData map[string]string, tender Tender, filterKey string, periodStart time.Time) bool {
	value, ok := tender[filterKey].(string)
	if !ok {
		logger.Error("Missing field in tender", "field", filterKey, "tender_id", tender["id"])
		return false
	}
	cutover, ok := filterData[value]
	if !ok {
		return false
	}
	cutoverDate, err := time.Parse(time.RFC3339, cutover)
	if err != nil {
		logger.Error("Invalid date string in filter config", "value", cutover, "field", filterKey)
		return false
	}
	return !periodStart.Before(cutoverDate)
}

func tenderPeriodStart(tender Tender) string {
	period, ok := tender["tenderPeriod"].(map[string]any)
	if !ok {
		return ""
	}
	start, _ := period["startDate"].(string)
	return start
}
