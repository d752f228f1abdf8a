package storage

import (
	"time"

	"indistocks/pkg/contracts/domain"
)

// SymbolModel is the symbols table. Rows are never deleted, only marked
// inactive, so price history keeps a valid referent.
type SymbolModel struct {
	ID        int64  `gorm:"primaryKey"`
	Code      string `gorm:"size:32;not null;uniqueIndex"`
	ISIN      string `gorm:"size:12;index"`
	Name      string `gorm:"size:128"`
	Status    string `gorm:"size:16;not null;default:active;index"`
	SyncedAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SymbolModel) TableName() string { return "symbols" }

func (m SymbolModel) toDomain() domain.Symbol {
	return domain.Symbol{
		ID:       m.ID,
		Code:     m.Code,
		ISIN:     m.ISIN,
		Name:     m.Name,
		Status:   domain.ListingStatus(m.Status),
		SyncedAt: m.SyncedAt,
	}
}

// PriceRecordModel is the price_records table. The composite unique
// index on (symbol_id, date) backs both the no-duplicates invariant and
// range queries for the grid.
type PriceRecordModel struct {
	ID       uint64      `gorm:"primaryKey"`
	SymbolID int64       `gorm:"not null;uniqueIndex:price_sym_date,priority:1"`
	Symbol   SymbolModel `gorm:"foreignKey:SymbolID;constraint:OnDelete:RESTRICT"`
	Date     time.Time   `gorm:"not null;uniqueIndex:price_sym_date,priority:2;index"`
	Open     float64     `gorm:"not null"`
	High     float64     `gorm:"not null"`
	Low      float64     `gorm:"not null"`
	Close    float64     `gorm:"not null"`
	Volume   int64       `gorm:"not null;default:0"`
}

func (PriceRecordModel) TableName() string { return "price_records" }

// RecentlyViewedModel is the recently_viewed table: one row per symbol,
// re-viewing bumps viewed_at instead of appending.
type RecentlyViewedModel struct {
	ID       int64       `gorm:"primaryKey"`
	SymbolID int64       `gorm:"not null;uniqueIndex"`
	Symbol   SymbolModel `gorm:"foreignKey:SymbolID;constraint:OnDelete:CASCADE"`
	ViewedAt time.Time   `gorm:"not null;index"`
}

func (RecentlyViewedModel) TableName() string { return "recently_viewed" }

// DownloadDayModel is the download_days table, tracking per-date fetch
// outcomes so interrupted runs resume without re-downloading stored days.
type DownloadDayModel struct {
	ID        int64     `gorm:"primaryKey"`
	Date      time.Time `gorm:"not null;uniqueIndex"`
	Status    string    `gorm:"size:16;not null"`
	ByteSize  int64
	Error     string `gorm:"size:512"`
	FetchedAt time.Time
}

func (DownloadDayModel) TableName() string { return "download_days" }

func (m DownloadDayModel) toDomain() domain.DownloadDay {
	return domain.DownloadDay{
		Date:      m.Date,
		Status:    domain.DayStatus(m.Status),
		ByteSize:  m.ByteSize,
		Error:     m.Error,
		FetchedAt: m.FetchedAt,
	}
}
