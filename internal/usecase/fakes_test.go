package usecase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/openprocurement/auction-worker/internal/config"
	"github.com/openprocurement/auction-worker/internal/domain"
)

type fakeStore struct {
	mu        sync.Mutex
	docs      map[string]*domain.AuctionDocument
	conflicts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]*domain.AuctionDocument)}
}

func cloneDoc(doc *domain.AuctionDocument) *domain.AuctionDocument {
	raw, _ := json.Marshal(doc)
	var clone domain.AuctionDocument
	_ = json.Unmarshal(raw, &clone)
	clone.Rev = doc.Rev
	return &clone
}

func (s *fakeStore) put(doc *domain.AuctionDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = cloneDoc(doc)
}

func (s *fakeStore) get(id string) *domain.AuctionDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil
	}
	return cloneDoc(doc)
}

func (s *fakeStore) Load(ctx context.Context, id string) (*domain.AuctionDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return cloneDoc(doc), nil
}

func (s *fakeStore) Save(ctx context.Context, doc *domain.AuctionDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts > 0 {
		s.conflicts--
		return domain.ErrSaveConflict
	}
	if existing, ok := s.docs[doc.ID]; ok && existing.Rev != doc.Rev {
		return domain.ErrSaveConflict
	}
	doc.Rev++
	s.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (s *fakeStore) Ping(ctx context.Context) error { return nil }

type fakeTender struct {
	mu         sync.Mutex
	data       *domain.TenderData
	healthErr  error
	publishErr error
	published  []*domain.ResultsSubmission
	attempts   int
}

func (f *fakeTender) Health(ctx context.Context) error { return f.healthErr }

func (f *fakeTender) GetTenderData(ctx context.Context, requestID string) (*domain.TenderData, error) {
	return f.data, nil
}

func (f *fakeTender) PublishResults(ctx context.Context, requestID string, results *domain.ResultsSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, results)
	return nil
}

type fakeMapping struct {
	mu      sync.Mutex
	set     map[string]map[string]string
	deleted []string
}

func newFakeMapping() *fakeMapping {
	return &fakeMapping{set: make(map[string]map[string]string)}
}

func (f *fakeMapping) Set(ctx context.Context, auctionID string, mapping map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set[auctionID] = mapping
	return nil
}

func (f *fakeMapping) Delete(ctx context.Context, auctionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, auctionID)
	return nil
}

type fakeSink struct {
	mu        sync.Mutex
	uploads   map[string][]byte
	uploadErr error
}

func newFakeSink() *fakeSink {
	return &fakeSink{uploads: make(map[string][]byte)}
}

func (f *fakeSink) Upload(ctx context.Context, auctionID string, artifact []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads[auctionID] = artifact
	return nil
}

func (f *fakeSink) Ping(ctx context.Context) error { return nil }

type fakeJournal struct {
	mu     sync.Mutex
	events []domain.JournalEvent
}

func (f *fakeJournal) Publish(event domain.JournalEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeJournal) hasMessage(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, event := range f.events {
		if event.MessageID == id {
			return true
		}
	}
	return false
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.WorkerConfig {
	return &config.WorkerConfig{Timing: testTiming()}
}

type testHarness struct {
	store   *fakeStore
	tender  *fakeTender
	mapping *fakeMapping
	sink    *fakeSink
	journal *fakeJournal
}

func newHarness(data *domain.TenderData) (*testHarness, Deps) {
	h := &testHarness{
		store:   newFakeStore(),
		tender:  &fakeTender{data: data},
		mapping: newFakeMapping(),
		sink:    newFakeSink(),
		journal: &fakeJournal{},
	}
	return h, Deps{
		Store:     h.store,
		Tender:    h.tender,
		Mapping:   h.mapping,
		AuditSink: h.sink,
		Journal:   h.journal,
		Logger:    testLogger(),
	}
}

// threeBidderTender builds the canonical scenario: three active bidders at
// 100, 90 and 95, no features.
func threeBidderTender() *domain.TenderData {
	return &domain.TenderData{
		AuctionPeriod: domain.AuctionPeriod{StartDate: "2026-06-01T11:00:00Z"},
		Bids: []domain.BidInfo{
			{ID: "b1", Date: "2026-05-31T10:00:00Z", Value: domain.BidValue{Amount: 100}, Status: "active"},
			{ID: "b2", Date: "2026-05-31T10:05:00Z", Value: domain.BidValue{Amount: 90}, Status: "active"},
			{ID: "b3", Date: "2026-05-31T10:10:00Z", Value: domain.BidValue{Amount: 95}, Status: "active"},
		},
	}
}
