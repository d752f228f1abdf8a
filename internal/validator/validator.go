// Package validator applies structural and semantic sanity checks to
// parsed rows. Validation is pure: it consults an in-memory symbol
// snapshot supplied by the caller and never touches storage.
package validator

import (
	"fmt"
	"time"

	apperrors "indistocks/internal/errors"
	"indistocks/pkg/contracts/domain"
)

// KnownSymbols reports whether a code resolves to a known (possibly
// inactive) symbol. The coordinator supplies a snapshot taken at the
// start of the run.
type KnownSymbols func(code string) bool

// Validator checks records against the accepted date window and the
// price-relation invariants.
type Validator struct {
	// Epoch is the earliest accepted trading date.
	Epoch time.Time
	// Now supplies the upper bound of the date window; defaults to
	// time.Now. Injectable for tests.
	Now func() time.Time
}

// New creates a Validator with the given epoch.
func New(epoch time.Time) *Validator {
	return &Validator{Epoch: domain.Day(epoch), Now: time.Now}
}

// Validate checks a single raw record and, when it passes, returns the
// typed price record. Rows with unknown symbol codes fail with an
// unknown-symbol error the caller resolves by policy (auto-register or
// reject).
func (v *Validator) Validate(rec domain.RawRecord, known KnownSymbols) (domain.PriceRecord, error) {
	if rec.SymbolCode == "" {
		return domain.PriceRecord{}, apperrors.NewValidationError(rec.Line, "empty symbol code")
	}

	if rec.Date.IsZero() {
		return domain.PriceRecord{}, apperrors.NewValidationError(rec.Line, "missing trading date")
	}
	date := domain.Day(rec.Date)
	if date.Before(v.Epoch) {
		return domain.PriceRecord{}, apperrors.NewValidationError(rec.Line,
			fmt.Sprintf("trading date %s before epoch %s", date.Format("2006-01-02"), v.Epoch.Format("2006-01-02")))
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	if date.After(domain.Day(now())) {
		return domain.PriceRecord{}, apperrors.NewValidationError(rec.Line,
			fmt.Sprintf("trading date %s is in the future", date.Format("2006-01-02")))
	}

	if rec.Volume < 0 {
		return domain.PriceRecord{}, apperrors.NewValidationError(rec.Line, "negative volume")
	}
	if rec.High < rec.Low {
		return domain.PriceRecord{}, apperrors.NewValidationError(rec.Line, "high below low")
	}
	if rec.High < rec.Open || rec.High < rec.Close {
		return domain.PriceRecord{}, apperrors.NewValidationError(rec.Line, "high below open or close")
	}
	if rec.Low > rec.Open || rec.Low > rec.Close {
		return domain.PriceRecord{}, apperrors.NewValidationError(rec.Line, "low above open or close")
	}

	if known != nil && !known(rec.SymbolCode) {
		return domain.PriceRecord{}, apperrors.NewUnknownSymbolError(rec.Line, rec.SymbolCode)
	}

	return domain.PriceRecord{
		SymbolCode: rec.SymbolCode,
		Date:       date,
		Open:       rec.Open,
		High:       rec.High,
		Low:        rec.Low,
		Close:      rec.Close,
		Volume:     rec.Volume,
	}, nil
}
