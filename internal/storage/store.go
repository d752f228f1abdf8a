package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "indistocks/internal/errors"
	"indistocks/pkg/contracts/domain"
)

// DefaultRecentlyViewedCap bounds the recently-viewed list when no cap
// is configured.
const DefaultRecentlyViewedCap = 20

// ErrSymbolNotFound is returned by lookups for codes the store has
// never seen.
var ErrSymbolNotFound = stderrors.New("symbol not found")

// Store is the single source of truth queried by all external
// consumers. All mutating operations are transactional; readers never
// observe a transaction in progress.
type Store struct {
	db        *gorm.DB
	recentCap int
}

// NewStore wraps an opened database. recentCap bounds the
// recently-viewed list; zero means DefaultRecentlyViewedCap.
func NewStore(db *gorm.DB, recentCap int) *Store {
	if recentCap <= 0 {
		recentCap = DefaultRecentlyViewedCap
	}
	return &Store{db: db, recentCap: recentCap}
}

// SymbolFilter narrows GetSymbols. Zero value lists active symbols.
type SymbolFilter struct {
	IncludeInactive bool
	Limit           int
}

// GetSymbols returns symbols ordered by code ascending.
func (s *Store) GetSymbols(ctx context.Context, filter SymbolFilter) ([]domain.Symbol, error) {
	q := s.db.WithContext(ctx).Model(&SymbolModel{}).Order("code ASC")
	if !filter.IncludeInactive {
		q = q.Where("status = ?", string(domain.ListingActive))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []SymbolModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	out := make([]domain.Symbol, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// GetSymbolByCode resolves one symbol by exact code, regardless of
// listing status.
func (s *Store) GetSymbolByCode(ctx context.Context, code string) (domain.Symbol, error) {
	var m SymbolModel
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&m).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Symbol{}, ErrSymbolNotFound
	}
	if err != nil {
		return domain.Symbol{}, fmt.Errorf("failed to look up symbol %s: %w", code, err)
	}
	return m.toDomain(), nil
}

// SymbolIDsByCode returns the code → id mapping for the whole symbol
// universe. Used to resolve identity once per ingestion run.
func (s *Store) SymbolIDsByCode(ctx context.Context) (map[string]int64, error) {
	var rows []SymbolModel
	if err := s.db.WithContext(ctx).Select("id", "code").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load symbol ids: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, m := range rows {
		out[m.Code] = m.ID
	}
	return out, nil
}

// EnsureSymbol registers a minimal placeholder symbol for code if it
// does not exist, returning its id. Used by the auto-register policy
// for unknown symbols.
func (s *Store) EnsureSymbol(ctx context.Context, code string) (int64, error) {
	now := time.Now().UTC()
	m := SymbolModel{Code: code, Status: string(domain.ListingActive), SyncedAt: now}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&m).Error
	if err != nil {
		return 0, fmt.Errorf("failed to register symbol %s: %w", code, err)
	}
	if m.ID != 0 {
		return m.ID, nil
	}
	// Conflict path: the row already existed.
	var existing SymbolModel
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&existing).Error; err != nil {
		return 0, fmt.Errorf("failed to look up symbol %s: %w", code, err)
	}
	return existing.ID, nil
}

// ReconcileSymbols applies one master-list snapshot as a single atomic
// transaction: new codes are inserted active, codes absent from the
// snapshot are deactivated, name/ISIN changes are applied in place. No
// partial symbol-table state is ever visible to readers.
func (s *Store) ReconcileSymbols(ctx context.Context, incoming []domain.Symbol) (domain.SyncSummary, error) {
	var summary domain.SyncSummary
	now := time.Now().UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []SymbolModel
		if err := tx.Find(&existing).Error; err != nil {
			return err
		}
		byCode := make(map[string]*SymbolModel, len(existing))
		for i := range existing {
			byCode[existing[i].Code] = &existing[i]
		}

		seen := make(map[string]bool, len(incoming))
		for _, sym := range incoming {
			seen[sym.Code] = true
			cur, ok := byCode[sym.Code]
			if !ok {
				status := sym.Status
				if status == "" {
					status = domain.ListingActive
				}
				m := SymbolModel{
					Code:     sym.Code,
					ISIN:     sym.ISIN,
					Name:     sym.Name,
					Status:   string(status),
					SyncedAt: now,
				}
				if err := tx.Create(&m).Error; err != nil {
					return err
				}
				summary.Added++
				continue
			}

			status := sym.Status
			if status == "" {
				status = domain.ListingActive
			}
			changed := cur.Name != sym.Name || cur.ISIN != sym.ISIN || cur.Status != string(status)
			updates := map[string]any{"synced_at": now}
			if changed {
				updates["name"] = sym.Name
				updates["isin"] = sym.ISIN
				updates["status"] = string(status)
			}
			if err := tx.Model(&SymbolModel{}).Where("id = ?", cur.ID).Updates(updates).Error; err != nil {
				return err
			}
			if changed {
				summary.Updated++
			}
		}

		for _, cur := range existing {
			if seen[cur.Code] || cur.Status != string(domain.ListingActive) {
				continue
			}
			err := tx.Model(&SymbolModel{}).Where("id = ?", cur.ID).
				Updates(map[string]any{"status": string(domain.ListingDelisted), "synced_at": now}).Error
			if err != nil {
				return err
			}
			summary.Deactivated++
		}

		var total int64
		if err := tx.Model(&SymbolModel{}).Count(&total).Error; err != nil {
			return err
		}
		summary.Total = int(total)
		return nil
	})
	if err != nil {
		return domain.SyncSummary{}, apperrors.NewPartialSyncError(err)
	}
	return summary, nil
}

// UpsertDay atomically replaces every price row for date with records.
// A concurrent reader observes either the pre-upsert or post-upsert
// state for that date, never a mix. Re-running with identical records
// is idempotent.
func (s *Store) UpsertDay(ctx context.Context, date time.Time, records []domain.PriceRecord) error {
	date = domain.Day(date)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		codes := make([]string, 0, len(records))
		for _, r := range records {
			codes = append(codes, r.SymbolCode)
		}

		ids := make(map[string]int64, len(codes))
		if len(codes) > 0 {
			var syms []SymbolModel
			if err := tx.Select("id", "code").Where("code IN ?", codes).Find(&syms).Error; err != nil {
				return err
			}
			for _, m := range syms {
				ids[m.Code] = m.ID
			}
		}

		rows := make([]PriceRecordModel, 0, len(records))
		for _, r := range records {
			id, ok := ids[r.SymbolCode]
			if !ok {
				return fmt.Errorf("%w: %s", ErrSymbolNotFound, r.SymbolCode)
			}
			rows = append(rows, PriceRecordModel{
				SymbolID: id,
				Date:     date,
				Open:     r.Open,
				High:     r.High,
				Low:      r.Low,
				Close:    r.Close,
				Volume:   r.Volume,
			})
		}

		if err := tx.Where("date = ?", date).Delete(&PriceRecordModel{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 500).Error
	})
	if stderrors.Is(err, ErrSymbolNotFound) {
		return err
	}
	if err != nil {
		return apperrors.NewStorageError(date, err)
	}
	return nil
}

// GetPriceHistory returns a symbol's rows within [from, to] ordered by
// date ascending, with the percent change vs the previous close
// computed at query time.
func (s *Store) GetPriceHistory(ctx context.Context, code string, from, to time.Time) ([]domain.PriceRecord, error) {
	sym, err := s.GetSymbolByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Model(&PriceRecordModel{}).
		Where("symbol_id = ?", sym.ID).Order("date ASC")
	if !from.IsZero() {
		q = q.Where("date >= ?", domain.Day(from))
	}
	if !to.IsZero() {
		q = q.Where("date <= ?", domain.Day(to))
	}

	var rows []PriceRecordModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query price history for %s: %w", code, err)
	}

	prevClose := 0.0
	if len(rows) > 0 && !from.IsZero() {
		var prior PriceRecordModel
		err := s.db.WithContext(ctx).
			Where("symbol_id = ? AND date < ?", sym.ID, rows[0].Date).
			Order("date DESC").First(&prior).Error
		if err == nil {
			prevClose = prior.Close
		} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to query prior close for %s: %w", code, err)
		}
	}

	return toHistory(code, rows, prevClose), nil
}

// GetRecentHistory returns the latest n rows for a symbol, most recent
// last, suitable for the grid's latest-N-days view.
func (s *Store) GetRecentHistory(ctx context.Context, code string, n int) ([]domain.PriceRecord, error) {
	sym, err := s.GetSymbolByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	var rows []PriceRecordModel
	err = s.db.WithContext(ctx).
		Where("symbol_id = ?", sym.ID).
		Order("date DESC").Limit(n + 1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recent history for %s: %w", code, err)
	}

	// Reverse into chronological order; the extra row, if any, only
	// seeds the previous close.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	prevClose := 0.0
	if len(rows) > n {
		prevClose = rows[0].Close
		rows = rows[1:]
	}
	return toHistory(code, rows, prevClose), nil
}

func toHistory(code string, rows []PriceRecordModel, prevClose float64) []domain.PriceRecord {
	out := make([]domain.PriceRecord, 0, len(rows))
	for _, m := range rows {
		rec := domain.PriceRecord{
			SymbolCode: code,
			Date:       m.Date,
			Open:       m.Open,
			High:       m.High,
			Low:        m.Low,
			Close:      m.Close,
			Volume:     m.Volume,
			PrevClose:  prevClose,
		}
		if prevClose > 0 {
			rec.ChangePct = (m.Close - prevClose) / prevClose * 100
		}
		out = append(out, rec)
		prevClose = m.Close
	}
	return out
}

// RecordView pushes a symbol to the front of the recently-viewed list,
// deduplicating by symbol and trimming to the configured cap.
func (s *Store) RecordView(ctx context.Context, code string) error {
	sym, err := s.GetSymbolByCode(ctx, code)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := RecentlyViewedModel{SymbolID: sym.ID, ViewedAt: time.Now().UTC()}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"viewed_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to record view for %s: %w", code, err)
		}

		keep := tx.Model(&RecentlyViewedModel{}).Select("id").
			Order("viewed_at DESC").Limit(s.recentCap)
		if err := tx.Where("id NOT IN (?)", keep).Delete(&RecentlyViewedModel{}).Error; err != nil {
			return fmt.Errorf("failed to trim recently viewed: %w", err)
		}
		return nil
	})
}

// GetRecentlyViewed returns recently viewed symbols, most recent first.
func (s *Store) GetRecentlyViewed(ctx context.Context, limit int) ([]domain.RecentSymbol, error) {
	if limit <= 0 || limit > s.recentCap {
		limit = s.recentCap
	}

	var rows []struct {
		Code     string
		Name     string
		ViewedAt time.Time
	}
	err := s.db.WithContext(ctx).Model(&RecentlyViewedModel{}).
		Select("symbols.code, symbols.name, recently_viewed.viewed_at").
		Joins("JOIN symbols ON symbols.id = recently_viewed.symbol_id").
		Order("recently_viewed.viewed_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recently viewed: %w", err)
	}

	out := make([]domain.RecentSymbol, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.RecentSymbol{Code: r.Code, Name: r.Name, ViewedAt: r.ViewedAt})
	}
	return out, nil
}

// UpsertDownloadDay records or updates one date's fetch outcome.
func (s *Store) UpsertDownloadDay(ctx context.Context, day domain.DownloadDay) error {
	m := DownloadDayModel{
		Date:      domain.Day(day.Date),
		Status:    string(day.Status),
		ByteSize:  day.ByteSize,
		Error:     day.Error,
		FetchedAt: day.FetchedAt,
	}
	if m.FetchedAt.IsZero() {
		m.FetchedAt = time.Now().UTC()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "byte_size", "error", "fetched_at"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("failed to record download day: %w", err)
	}
	return nil
}

// ListDownloadDays returns the most recent download records.
func (s *Store) ListDownloadDays(ctx context.Context, limit int) ([]domain.DownloadDay, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []DownloadDayModel
	err := s.db.WithContext(ctx).Order("date DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list download days: %w", err)
	}
	out := make([]domain.DownloadDay, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// StoredDates returns the set of dates in [from, to] already marked
// stored, keyed by YYYY-MM-DD. The coordinator uses it to resume an
// interrupted run without re-downloading.
func (s *Store) StoredDates(ctx context.Context, from, to time.Time) (map[string]bool, error) {
	var rows []DownloadDayModel
	err := s.db.WithContext(ctx).
		Where("status = ? AND date >= ? AND date <= ?", string(domain.DayStored), domain.Day(from), domain.Day(to)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query stored dates: %w", err)
	}
	out := make(map[string]bool, len(rows))
	for _, m := range rows {
		out[m.Date.Format("2006-01-02")] = true
	}
	return out, nil
}
