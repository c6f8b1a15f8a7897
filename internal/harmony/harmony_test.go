package harmony

import (
	"context"
	"errors"
	"testing"

	"github.com/rfzwl/janus/internal/config"
	"github.com/rfzwl/janus/internal/db/models"
	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeResolver struct {
	byCanonical map[string][]registry.ContractDetails
	failOn      string
}

func (f *fakeResolver) RequestContractDetails(ctx context.Context, query domain.ContractQuery) ([]registry.ContractDetails, error) {
	if query.Symbol == f.failOn {
		return nil, errors.New("boom")
	}
	return f.byCanonical[query.Symbol], nil
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.SymbolRegistryRecord{}))
	r := registry.New(db, zap.NewNop())
	require.NoError(t, r.Load(context.Background()))
	return r
}

func TestHarmonyFillsMissingBrokerBIDs(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	for _, sym := range []string{"AAPL", "MSFT", "GOOG"} {
		_, err := reg.Ensure(ctx, sym, registry.EnsureFields{BrokerATicker: sym})
		require.NoError(t, err)
	}

	resolver := &fakeResolver{byCanonical: map[string][]registry.ContractDetails{
		"AAPL": {{BrokerBConID: 1}},
		"MSFT": {{BrokerBConID: 2}, {BrokerBConID: 3}}, // ambiguous
		"GOOG": {},                                     // no match
	}}

	o := New(reg)
	results, err := o.Run(ctx, []ConnectedBroker{{Kind: config.BrokerB, Resolver: resolver}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Filled)
	assert.Equal(t, 1, results[0].SkippedAmbiguous)
	assert.Equal(t, 1, results[0].SkippedNoMatch)

	entry, ok := reg.LookupByCanonical("AAPL")
	require.True(t, ok)
	assert.Equal(t, int64(1), entry.BrokerBConID)
}

func TestHarmonyAbortsOnStoreError(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.SymbolRegistryRecord{}))
	reg := registry.New(db, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, reg.Load(ctx))

	for _, sym := range []string{"A", "B", "C"} {
		_, ensureErr := reg.Ensure(ctx, sym, registry.EnsureFields{BrokerATicker: sym})
		require.NoError(t, ensureErr)
	}

	o := New(reg)

	// Fill A and B first so their writes are durably committed.
	results1, runErr := o.Run(ctx, []ConnectedBroker{{Kind: config.BrokerB, Resolver: &fakeResolver{
		byCanonical: map[string][]registry.ContractDetails{"A": {{BrokerBConID: 10}}, "B": {{BrokerBConID: 20}}},
	}}})
	require.NoError(t, runErr)
	require.Equal(t, 2, results1[0].Filled)

	// Now break the store and run the full set: C's write fails and
	// the run aborts, while A/B's earlier commits remain untouched.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	resolver := &fakeResolver{byCanonical: map[string][]registry.ContractDetails{"C": {{BrokerBConID: 30}}}}
	results2, runErr := o.Run(ctx, []ConnectedBroker{{Kind: config.BrokerB, Resolver: resolver}})
	require.Error(t, runErr)
	require.Len(t, results2, 1)
	assert.Equal(t, 0, results2[0].Filled) // A and B already have broker-B ids, skipped
	assert.Len(t, results2[0].Errors, 1)

	entryA, _ := reg.LookupByCanonical("A")
	assert.True(t, entryA.HasBrokerB(), "writes committed before the abort remain")
	entryB, _ := reg.LookupByCanonical("B")
	assert.True(t, entryB.HasBrokerB())
}
