package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "indistocks/internal/errors"
	"indistocks/pkg/contracts/domain"
)

var (
	epoch   = time.Date(1994, 11, 3, 0, 0, 0, 0, time.UTC)
	today   = time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC)
	tradeDt = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
)

func testValidator() *Validator {
	v := New(epoch)
	v.Now = func() time.Time { return today }
	return v
}

func goodRecord() domain.RawRecord {
	return domain.RawRecord{
		SymbolCode: "TCS",
		Date:       tradeDt,
		Open:       3500,
		High:       3550,
		Low:        3480,
		Close:      3520,
		Volume:     100000,
		Line:       7,
	}
}

func allKnown(string) bool { return true }

func TestValidate_OK(t *testing.T) {
	v := testValidator()

	rec, err := v.Validate(goodRecord(), allKnown)
	require.NoError(t, err)
	assert.Equal(t, "TCS", rec.SymbolCode)
	assert.Equal(t, tradeDt, rec.Date)
	assert.Equal(t, int64(100000), rec.Volume)
}

func TestValidate_NormalizesDate(t *testing.T) {
	v := testValidator()
	raw := goodRecord()
	raw.Date = time.Date(2024, 4, 1, 15, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))

	rec, err := v.Validate(raw, allKnown)
	require.NoError(t, err)
	assert.Equal(t, tradeDt, rec.Date)
}

func TestValidate_Rejections(t *testing.T) {
	v := testValidator()

	tests := []struct {
		name   string
		mutate func(*domain.RawRecord)
	}{
		{"empty symbol", func(r *domain.RawRecord) { r.SymbolCode = "" }},
		{"missing date", func(r *domain.RawRecord) { r.Date = time.Time{} }},
		{"date before epoch", func(r *domain.RawRecord) { r.Date = epoch.AddDate(0, 0, -1) }},
		{"future date", func(r *domain.RawRecord) { r.Date = today.AddDate(0, 0, 1) }},
		{"negative volume", func(r *domain.RawRecord) { r.Volume = -1 }},
		{"high below low", func(r *domain.RawRecord) { r.High, r.Low = 100, 200; r.Open, r.Close = 150, 150 }},
		{"high below open", func(r *domain.RawRecord) { r.Open = r.High + 1 }},
		{"high below close", func(r *domain.RawRecord) { r.Close = r.High + 1 }},
		{"low above open", func(r *domain.RawRecord) { r.Open = r.Low - 1 }},
		{"low above close", func(r *domain.RawRecord) { r.Close = r.Low - 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := goodRecord()
			tt.mutate(&raw)
			_, err := v.Validate(raw, allKnown)
			require.Error(t, err)
			assert.Equal(t, apperrors.TypeValidation, apperrors.TypeOf(err))
		})
	}
}

func TestValidate_EpochDateAccepted(t *testing.T) {
	v := testValidator()
	raw := goodRecord()
	raw.Date = epoch

	_, err := v.Validate(raw, allKnown)
	assert.NoError(t, err)
}

func TestValidate_ZeroVolumeAccepted(t *testing.T) {
	// Suspended or illiquid symbols legitimately trade nothing.
	v := testValidator()
	raw := goodRecord()
	raw.Volume = 0

	_, err := v.Validate(raw, allKnown)
	assert.NoError(t, err)
}

func TestValidate_UnknownSymbol(t *testing.T) {
	v := testValidator()

	_, err := v.Validate(goodRecord(), func(string) bool { return false })
	require.Error(t, err)
	assert.Equal(t, apperrors.TypeUnknownSymbol, apperrors.TypeOf(err))
}

func TestValidate_NilSnapshotSkipsSymbolCheck(t *testing.T) {
	v := testValidator()

	_, err := v.Validate(goodRecord(), nil)
	assert.NoError(t, err)
}
