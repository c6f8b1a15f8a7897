package registry

import (
	"context"
	"testing"

	"github.com/rfzwl/janus/internal/db/models"
	"github.com/rfzwl/janus/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.SymbolRegistryRecord{}, &models.HistoricalBar{}))

	r := New(db, zap.NewNop())
	require.NoError(t, r.Load(context.Background()))
	return r
}

func TestNormalizeIsIdempotent(t *testing.T) {
	assert.Equal(t, Normalize(" aapl "), Normalize(Normalize(" aapl ")))
	assert.Equal(t, "AAPL", Normalize(" aapl "))
}

func TestLookupByCanonicalIgnoresCaseAndWhitespace(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Ensure(ctx, "aapl", EnsureFields{BrokerBConID: 265598})
	require.NoError(t, err)

	for _, input := range []string{"AAPL", " aapl ", "Aapl"} {
		entry, ok := r.LookupByCanonical(input)
		require.True(t, ok)
		assert.Equal(t, int64(265598), entry.BrokerBConID)
	}
}

func TestEnsureFillsMissingOnly(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	e1, err := r.Ensure(ctx, "MSFT", EnsureFields{BrokerBConID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e1.BrokerBConID)

	// Second ensure with the same conid is a no-op, not a conflict.
	e2, err := r.Ensure(ctx, "MSFT", EnsureFields{BrokerBConID: 1})
	require.NoError(t, err)
	assert.Equal(t, e1, e2)

	// Filling the missing broker-A ticker succeeds.
	e3, err := r.Ensure(ctx, "MSFT", EnsureFields{BrokerATicker: "MSFT.US"})
	require.NoError(t, err)
	assert.Equal(t, "MSFT.US", e3.BrokerATicker)
	assert.Equal(t, int64(1), e3.BrokerBConID)
}

func TestEnsureConflictingBrokerIDFails(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Ensure(ctx, "AAPL", EnsureFields{BrokerBConID: 265598})
	require.NoError(t, err)

	_, err = r.Ensure(ctx, "MSFT", EnsureFields{BrokerBConID: 265598})
	assert.ErrorIs(t, err, domain.ErrRegistryConflict)

	// Store unchanged: MSFT still has no conid bound.
	entry, ok := r.LookupByCanonical("MSFT")
	assert.False(t, ok || entry.HasBrokerB())
}

type fakeResolver struct {
	results []ContractDetails
	err     error
}

func (f fakeResolver) RequestContractDetails(ctx context.Context, q domain.ContractQuery) ([]ContractDetails, error) {
	return f.results, f.err
}

func TestAutoFillBrokerBZeroMatchesIsRegistryMiss(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.AutoFillBrokerB(context.Background(), "ACME", fakeResolver{})
	assert.ErrorIs(t, err, domain.ErrRegistryMiss)

	_, ok := r.LookupByCanonical("ACME")
	assert.False(t, ok)
}

func TestAutoFillBrokerBAmbiguousMatchesNoWrite(t *testing.T) {
	r := newTestRegistry(t)
	resolver := fakeResolver{results: []ContractDetails{
		{BrokerBConID: 1},
		{BrokerBConID: 2},
	}}

	_, err := r.AutoFillBrokerB(context.Background(), "ACME", resolver)
	assert.ErrorIs(t, err, domain.ErrRegistryAmbiguous)

	_, ok := r.LookupByCanonical("ACME")
	assert.False(t, ok)
}

func TestAutoFillBrokerBUniqueMatchWrites(t *testing.T) {
	r := newTestRegistry(t)
	resolver := fakeResolver{results: []ContractDetails{{BrokerBConID: 265598}}}

	entry, err := r.AutoFillBrokerB(context.Background(), "AAPL", resolver)
	require.NoError(t, err)
	assert.Equal(t, int64(265598), entry.BrokerBConID)
}
