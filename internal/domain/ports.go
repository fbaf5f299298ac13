package domain

import "context"

// Store is the revisioned auction-document store. Save must fail with
// ErrSaveConflict when the document revision moved underneath the caller,
// who is expected to reload, reapply and retry.
type Store interface {
	Load(ctx context.Context, id string) (*AuctionDocument, error)
	Save(ctx context.Context, doc *AuctionDocument) error
	Ping(ctx context.Context) error
}

// TenderClient talks to the tender API. Every call is a single attempt;
// retry policy lives with the caller.
type TenderClient interface {
	Health(ctx context.Context) error
	GetTenderData(ctx context.Context, requestID string) (*TenderData, error)
	PublishResults(ctx context.Context, requestID string, results *ResultsSubmission) error
}

// ResultsSubmission is the payload posted back to the tender API at auction
// end: per-bid closing amounts and submission times.
type ResultsSubmission struct {
	Bids []ResultBid `json:"bids"`
}

type ResultBid struct {
	ID    string   `json:"id"`
	Date  string   `json:"date,omitempty"`
	Value BidValue `json:"value"`
}

// MappingStore keeps the anonymized bidder_id -> ordinal label mapping for
// the lifetime of one auction run.
type MappingStore interface {
	Set(ctx context.Context, auctionID string, mapping map[string]string) error
	Delete(ctx context.Context, auctionID string) error
}

// AuditSink archives the rendered audit artifact.
type AuditSink interface {
	Upload(ctx context.Context, auctionID string, artifact []byte) error
	Ping(ctx context.Context) error
}

// JournalPublisher emits lifecycle events to the operations journal.
// Publishing is best-effort; callers log failures and move on.
type JournalPublisher interface {
	Publish(event JournalEvent) error
}

// JournalEvent is one operator-facing lifecycle event.
type JournalEvent struct {
	EventID   string `json:"event_id"`
	AuctionID string `json:"auction_id"`
	RequestID string `json:"request_id"`
	MessageID string `json:"message_id"`
	Stage     int    `json:"stage"`
	Time      string `json:"time"`
}
