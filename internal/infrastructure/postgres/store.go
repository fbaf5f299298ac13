package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/openprocurement/auction-worker/internal/config"
	"github.com/openprocurement/auction-worker/internal/domain"
)

// AuctionDocumentModel persists one auction document as a jsonb payload
// plus an integer revision used for optimistic concurrency.
type AuctionDocumentModel struct {
	ID   string         `gorm:"primaryKey"`
	Rev  int64          `gorm:"not null;default:0"`
	Data datatypes.JSON `gorm:"type:jsonb"`
}

func (AuctionDocumentModel) TableName() string {
	return "auction_documents"
}

func MustInitDB(cfg *config.WorkerConfig) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.AuctionDB.Dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to init db: %v\n", err.Error())
	}

	db.AutoMigrate(&AuctionDocumentModel{})

	return db
}

type DefaultAuctionStore struct {
	DB *gorm.DB
}

func NewDefaultAuctionStore(db *gorm.DB) *DefaultAuctionStore {
	return &DefaultAuctionStore{DB: db}
}

func (s *DefaultAuctionStore) Load(ctx context.Context, id string) (*domain.AuctionDocument, error) {
	var model AuctionDocumentModel
	err := s.DB.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAuctionNotFound
	}
	if err != nil {
		return nil, err
	}

	var doc domain.AuctionDocument
	if err := json.Unmarshal(model.Data, &doc); err != nil {
		return nil, fmt.Errorf("corrupt auction document %s: %w", id, err)
	}
	doc.ID = model.ID
	doc.Rev = model.Rev
	return &doc, nil
}

// Save persists the document iff its revision still matches; a concurrent
// writer surfaces as ErrSaveConflict and the caller re-reads and reapplies.
func (s *DefaultAuctionStore) Save(ctx context.Context, doc *domain.AuctionDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	if doc.Rev == 0 {
		model := AuctionDocumentModel{ID: doc.ID, Rev: 1, Data: payload}
		if err := s.DB.WithContext(ctx).Create(&model).Error; err != nil {
			if isDuplicateKey(err) {
				return domain.ErrSaveConflict
			}
			return err
		}
		doc.Rev = 1
		return nil
	}

	res := s.DB.WithContext(ctx).
		Model(&AuctionDocumentModel{}).
		Where("id = ? AND rev = ?", doc.ID, doc.Rev).
		Updates(map[string]any{"rev": doc.Rev + 1, "data": datatypes.JSON(payload)})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrSaveConflict
	}
	doc.Rev++
	return nil
}

func (s *DefaultAuctionStore) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
