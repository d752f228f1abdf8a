package symbols

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "indistocks/internal/errors"
	"indistocks/internal/storage"
	"indistocks/pkg/contracts/domain"
)

const masterList = `SYMBOL,NAME OF COMPANY, SERIES, DATE OF LISTING, PAID UP VALUE, MARKET LOT, ISIN NUMBER, FACE VALUE
TCS,Tata Consultancy Services Limited,EQ,25-AUG-2004,1,1,INE467B01029,1
INFY,Infosys Limited,EQ,08-FEB-1995,5,1,INE009A01021,5
RELIANCE,Reliance Industries Limited,EQ,29-NOV-1995,10,1,INE002A01018,10
`

type rebuildCounter struct{ calls int }

func (r *rebuildCounter) Rebuild(context.Context) error {
	r.calls++
	return nil
}

func setupStore(t *testing.T) *storage.Store {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	return storage.NewStore(db, 20)
}

func serveCSV(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRefresh_InitialSync(t *testing.T) {
	store := setupStore(t)
	srv := serveCSV(t, masterList)
	rebuilder := &rebuildCounter{}

	m := NewManager(srv.URL, "test-agent", 5*time.Second, store, rebuilder, nil)
	summary, err := m.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Added)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, rebuilder.calls, "a successful refresh must rebuild the search cache")

	tcs, err := store.GetSymbolByCode(context.Background(), "TCS")
	require.NoError(t, err)
	assert.Equal(t, "Tata Consultancy Services Limited", tcs.Name)
	assert.Equal(t, "INE467B01029", tcs.ISIN)
	assert.True(t, tcs.Active())
}

func TestRefresh_DeactivatesMissing(t *testing.T) {
	store := setupStore(t)
	srv := serveCSV(t, masterList)
	m := NewManager(srv.URL, "test-agent", 5*time.Second, store, nil, nil)

	_, err := m.Refresh(context.Background())
	require.NoError(t, err)

	// RELIANCE disappears from the next snapshot.
	shrunk := serveCSV(t, `SYMBOL,NAME OF COMPANY,ISIN NUMBER
TCS,Tata Consultancy Services Limited,INE467B01029
INFY,Infosys Limited,INE009A01021
`)
	m2 := NewManager(shrunk.URL, "test-agent", 5*time.Second, store, nil, nil)
	summary, err := m2.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Deactivated)

	rel, err := store.GetSymbolByCode(context.Background(), "RELIANCE")
	require.NoError(t, err)
	assert.False(t, rel.Active(), "missing symbols are deactivated, never deleted")
}

func TestRefresh_EmptyListRejected(t *testing.T) {
	store := setupStore(t)
	srv := serveCSV(t, "SYMBOL,NAME OF COMPANY,ISIN NUMBER\n")

	m := NewManager(srv.URL, "test-agent", 5*time.Second, store, nil, nil)
	_, err := m.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.TypeFormat, apperrors.TypeOf(err))
}

func TestRefresh_UpstreamError(t *testing.T) {
	store := setupStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	m := NewManager(srv.URL, "test-agent", 5*time.Second, store, nil, nil)
	_, err := m.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.TypeNetwork, apperrors.TypeOf(err))
}

func TestParseMasterList(t *testing.T) {
	syms, err := parseMasterList([]byte(masterList))
	require.NoError(t, err)
	require.Len(t, syms, 3)
	assert.Equal(t, domain.Symbol{
		Code:   "TCS",
		Name:   "Tata Consultancy Services Limited",
		ISIN:   "INE467B01029",
		Status: domain.ListingActive,
	}, syms[0])
}

func TestParseMasterList_DedupesAndSkipsBlank(t *testing.T) {
	syms, err := parseMasterList([]byte(`SYMBOL,NAME OF COMPANY
TCS,Tata Consultancy Services
TCS,Duplicate Row
,No Code
INFY,Infosys
`))
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, "TCS", syms[0].Code)
	assert.Equal(t, "Tata Consultancy Services", syms[0].Name)
	assert.Equal(t, "INFY", syms[1].Code)
}

func TestParseMasterList_MissingSymbolColumn(t *testing.T) {
	_, err := parseMasterList([]byte("NAME,ISIN\nFoo,X\n"))
	require.Error(t, err)
	assert.Equal(t, apperrors.TypeFormat, apperrors.TypeOf(err))
}
