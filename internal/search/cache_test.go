package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indistocks/internal/storage"
	"indistocks/pkg/contracts/domain"
)

func setupCache(t *testing.T) *Cache {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	store := storage.NewStore(db, 20)

	_, err = store.ReconcileSymbols(context.Background(), []domain.Symbol{
		{Code: "TCS", Name: "Tata Consultancy Services"},
		{Code: "TATAMOTORS", Name: "Tata Motors"},
		{Code: "TATASTEEL", Name: "Tata Steel"},
		{Code: "INFY", Name: "Infosys"},
		{Code: "RELIANCE", Name: "Reliance Industries"},
	})
	require.NoError(t, err)

	// RELIANCE drops out of a later sync and becomes inactive.
	_, err = store.ReconcileSymbols(context.Background(), []domain.Symbol{
		{Code: "TCS", Name: "Tata Consultancy Services"},
		{Code: "TATAMOTORS", Name: "Tata Motors"},
		{Code: "TATASTEEL", Name: "Tata Steel"},
		{Code: "INFY", Name: "Infosys"},
	})
	require.NoError(t, err)

	cache := NewCache(store)
	require.NoError(t, cache.Rebuild(context.Background()))
	return cache
}

func TestSearch_PrefixBeforeContains(t *testing.T) {
	cache := setupCache(t)

	matches := cache.Search("tata", 10)
	require.NotEmpty(t, matches)

	// Code-prefix and name-prefix hits come first, in code order;
	// TCS matches only via its company name prefix "Tata".
	codes := make([]string, 0, len(matches))
	for _, m := range matches {
		codes = append(codes, m.Code)
	}
	assert.Equal(t, []string{"TATAMOTORS", "TATASTEEL", "TCS"}, codes)
}

func TestSearch_ContainsRanksAfterPrefix(t *testing.T) {
	cache := setupCache(t)

	matches := cache.Search("steel", 10)
	require.Len(t, matches, 1)
	assert.Equal(t, "TATASTEEL", matches[0].Code)
}

func TestSearch_CaseInsensitive(t *testing.T) {
	cache := setupCache(t)

	assert.Equal(t, cache.Search("infy", 5), cache.Search("INFY", 5))
}

func TestSearch_Limit(t *testing.T) {
	cache := setupCache(t)

	matches := cache.Search("tata", 2)
	assert.Len(t, matches, 2)
}

func TestSearch_InactiveOnlyByExactCode(t *testing.T) {
	cache := setupCache(t)

	// Fuzzy queries never surface inactive symbols.
	assert.Empty(t, cache.Search("reli", 10))

	matches := cache.Search("RELIANCE", 10)
	require.Len(t, matches, 1)
	assert.Equal(t, "RELIANCE", matches[0].Code)
}

func TestSearch_EmptyQuery(t *testing.T) {
	cache := setupCache(t)

	assert.Nil(t, cache.Search("", 10))
	assert.Nil(t, cache.Search("   ", 10))
	assert.Nil(t, cache.Search("tcs", 0))
}

func TestRebuild_ReplacesIndex(t *testing.T) {
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	store := storage.NewStore(db, 20)
	cache := NewCache(store)

	require.NoError(t, cache.Rebuild(context.Background()))
	assert.Zero(t, cache.Len())

	_, err = store.ReconcileSymbols(context.Background(), []domain.Symbol{{Code: "TCS", Name: "Tata Consultancy Services"}})
	require.NoError(t, err)

	// The index is stale until rebuilt.
	assert.Empty(t, cache.Search("tcs", 5))
	require.NoError(t, cache.Rebuild(context.Background()))
	assert.Len(t, cache.Search("tcs", 5), 1)
}
