// Package registry implements the SymbolRegistry: the single source of
// truth for canonical_symbol <-> {broker_a_ticker, broker_b_conid}
// mappings. It is backed by a relational store (gorm/Postgres) and
// fronted by an immutable in-memory snapshot, swapped by a single
// writer goroutine so reads never take a lock.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rfzwl/janus/internal/config"
	"github.com/rfzwl/janus/internal/db/models"
	"github.com/rfzwl/janus/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ContractDetails is one candidate match for an auto-fill lookup.
type ContractDetails struct {
	Contract      domain.ContractData
	BrokerATicker string
	BrokerBConID  int64
}

// ContractResolver is implemented by a broker adapter to resolve
// contract details for registry auto-fill. It mirrors
// BrokerGateway.RequestContractDetails so the registry never depends
// on the gateway package directly (avoids an import cycle: gateway
// implementations depend on registry for symbol resolution).
type ContractResolver interface {
	RequestContractDetails(ctx context.Context, query domain.ContractQuery) ([]ContractDetails, error)
}

type snapshot struct {
	byCanonical    map[string]domain.SymbolRegistryEntry
	byBrokerA      map[string]domain.SymbolRegistryEntry
	byBrokerBConID map[int64]domain.SymbolRegistryEntry
}

func emptySnapshot() *snapshot {
	return &snapshot{
		byCanonical:    make(map[string]domain.SymbolRegistryEntry),
		byBrokerA:      make(map[string]domain.SymbolRegistryEntry),
		byBrokerBConID: make(map[int64]domain.SymbolRegistryEntry),
	}
}

func (s *snapshot) clone() *snapshot {
	clone := emptySnapshot()
	for k, v := range s.byCanonical {
		clone.byCanonical[k] = v
	}
	for k, v := range s.byBrokerA {
		clone.byBrokerA[k] = v
	}
	for k, v := range s.byBrokerBConID {
		clone.byBrokerBConID[k] = v
	}
	return clone
}

func (s *snapshot) put(e domain.SymbolRegistryEntry) {
	s.byCanonical[e.CanonicalSymbol] = e
	if e.HasBrokerA() {
		s.byBrokerA[e.BrokerATicker] = e
	}
	if e.HasBrokerB() {
		s.byBrokerBConID[e.BrokerBConID] = e
	}
}

// Registry is the SymbolRegistry component.
type Registry struct {
	db     *gorm.DB
	logger *zap.Logger

	snap atomic.Pointer[snapshot]
	// writeMu serializes writers; per §4.1 concurrency the registry
	// has a single writer while reads go lock-free over the snapshot.
	writeMu sync.Mutex
}

// New constructs a Registry. Call Load before any other method.
func New(db *gorm.DB, logger *zap.Logger) *Registry {
	r := &Registry{db: db, logger: logger}
	r.snap.Store(emptySnapshot())
	return r
}

// Load populates the in-memory snapshot from the store. On store
// unavailability this returns an error; the caller (server startup)
// must treat that as a hard failure — there is no degraded mode.
func (r *Registry) Load(ctx context.Context) error {
	var rows []models.SymbolRegistryRecord
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return fmt.Errorf("%w: load: %v", domain.ErrRegistryStore, err)
	}

	snap := emptySnapshot()
	for _, row := range rows {
		snap.put(recordToEntry(row))
	}
	r.snap.Store(snap)

	r.logger.Info("symbol registry loaded", zap.Int("entries", len(rows)))
	return nil
}

func recordToEntry(row models.SymbolRegistryRecord) domain.SymbolRegistryEntry {
	e := domain.SymbolRegistryEntry{
		ID:              row.ID,
		CanonicalSymbol: row.CanonicalSymbol,
		AssetClass:      domain.AssetClass(row.AssetClass),
		Currency:        row.Currency,
		Description:     row.Description,
	}
	if row.BrokerATicker != nil {
		e.BrokerATicker = *row.BrokerATicker
	}
	if row.BrokerBConID != nil {
		e.BrokerBConID = *row.BrokerBConID
	}
	return e
}

// Normalize trims and uppercases sym; applied before every lookup and
// write so case/whitespace never affects resolution.
func Normalize(sym string) string {
	return strings.ToUpper(strings.TrimSpace(sym))
}

// LookupByCanonical returns the entry for sym, if any.
func (r *Registry) LookupByCanonical(sym string) (domain.SymbolRegistryEntry, bool) {
	e, ok := r.snap.Load().byCanonical[Normalize(sym)]
	return e, ok
}

// LookupByBrokerBConID returns the entry bound to conid, if any.
func (r *Registry) LookupByBrokerBConID(conid int64) (domain.SymbolRegistryEntry, bool) {
	e, ok := r.snap.Load().byBrokerBConID[conid]
	return e, ok
}

// LookupByBrokerATicker returns the entry bound to ticker, if any.
func (r *Registry) LookupByBrokerATicker(ticker string) (domain.SymbolRegistryEntry, bool) {
	e, ok := r.snap.Load().byBrokerA[ticker]
	return e, ok
}

// EnsureFields are the broker ids ensure() will fill in if missing.
// A zero value means "not provided" for that field.
type EnsureFields struct {
	AssetClass    domain.AssetClass
	Currency      string
	BrokerATicker string
	BrokerBConID  int64
	Description   string
}

// Ensure is a write-through upsert that only fills missing broker-id
// fields on an existing entry, or inserts a new one. Binding a broker
// id already bound to a different canonical symbol is a conflict and
// is rejected without writing anything.
func (r *Registry) Ensure(ctx context.Context, sym string, fields EnsureFields) (domain.SymbolRegistryEntry, error) {
	sym = Normalize(sym)

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	var result domain.SymbolRegistryEntry

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if fields.BrokerATicker != "" {
			if conflict, ok := r.conflictingOwner(tx, "broker_a_ticker", fields.BrokerATicker, sym); ok {
				return fmt.Errorf("%w: broker_a_ticker %q already bound to %q", domain.ErrRegistryConflict, fields.BrokerATicker, conflict)
			}
		}
		if fields.BrokerBConID != 0 {
			if conflict, ok := r.conflictingOwnerInt(tx, "broker_b_con_id", fields.BrokerBConID, sym); ok {
				return fmt.Errorf("%w: broker_b_conid %d already bound to %q", domain.ErrRegistryConflict, fields.BrokerBConID, conflict)
			}
		}

		var row models.SymbolRegistryRecord
		err := tx.Where("canonical_symbol = ?", sym).First(&row).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			row = models.SymbolRegistryRecord{
				CanonicalSymbol: sym,
				AssetClass:      string(orDefault(fields.AssetClass, domain.AssetClassEquity)),
				Currency:        orDefaultStr(fields.Currency, "USD"),
				Description:     fields.Description,
			}
			if fields.BrokerATicker != "" {
				row.BrokerATicker = &fields.BrokerATicker
			}
			if fields.BrokerBConID != 0 {
				row.BrokerBConID = &fields.BrokerBConID
			}
			if createErr := tx.Create(&row).Error; createErr != nil {
				return fmt.Errorf("%w: insert: %v", domain.ErrRegistryStore, createErr)
			}
		case err != nil:
			return fmt.Errorf("%w: lookup: %v", domain.ErrRegistryStore, err)
		default:
			// Fill-missing-only: never overwrite a bound id in place.
			updates := map[string]interface{}{}
			if row.BrokerATicker == nil && fields.BrokerATicker != "" {
				updates["broker_a_ticker"] = fields.BrokerATicker
			}
			if row.BrokerBConID == nil && fields.BrokerBConID != 0 {
				updates["broker_b_con_id"] = fields.BrokerBConID
			}
			if len(updates) > 0 {
				if updErr := tx.Model(&row).Updates(updates).Error; updErr != nil {
					return fmt.Errorf("%w: update: %v", domain.ErrRegistryStore, updErr)
				}
				if v, ok := updates["broker_a_ticker"].(string); ok {
					row.BrokerATicker = &v
				}
				if v, ok := updates["broker_b_con_id"].(int64); ok {
					row.BrokerBConID = &v
				}
			}
		}

		result = recordToEntry(row)
		return nil
	})
	if err != nil {
		// Begin/commit failures come back from gorm unwrapped; they are
		// store errors too.
		if !errors.Is(err, domain.ErrRegistryConflict) && !errors.Is(err, domain.ErrRegistryStore) {
			err = fmt.Errorf("%w: %v", domain.ErrRegistryStore, err)
		}
		return domain.SymbolRegistryEntry{}, err
	}

	snap := r.snap.Load().clone()
	snap.put(result)
	r.snap.Store(snap)

	return result, nil
}

func (r *Registry) conflictingOwner(tx *gorm.DB, column, value, excludeSym string) (string, bool) {
	var row models.SymbolRegistryRecord
	err := tx.Where(column+" = ? AND canonical_symbol <> ?", value, excludeSym).First(&row).Error
	if err == nil {
		return row.CanonicalSymbol, true
	}
	return "", false
}

func (r *Registry) conflictingOwnerInt(tx *gorm.DB, column string, value int64, excludeSym string) (string, bool) {
	var row models.SymbolRegistryRecord
	err := tx.Where(column+" = ? AND canonical_symbol <> ?", value, excludeSym).First(&row).Error
	if err == nil {
		return row.CanonicalSymbol, true
	}
	return "", false
}

func orDefault(v domain.AssetClass, def domain.AssetClass) domain.AssetClass {
	if v == "" {
		return def
	}
	return v
}

func orDefaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// AutoFillBrokerB resolves a missing broker_b_conid for sym via the
// given resolver using the default filter (US + SMART + USD, STK).
// Zero or more than one match is an ambiguity/miss error and nothing
// is written; exactly one match is stored via Ensure.
func (r *Registry) AutoFillBrokerB(ctx context.Context, sym string, resolver ContractResolver) (domain.SymbolRegistryEntry, error) {
	return r.autoFill(ctx, sym, resolver, func(c ContractDetails) bool { return c.BrokerBConID != 0 },
		func(c ContractDetails) EnsureFields { return EnsureFields{BrokerBConID: c.BrokerBConID} })
}

// AutoFillBrokerA resolves a missing broker_a_ticker for sym via the
// given resolver, ticker-only variant of the same auto-fill policy.
func (r *Registry) AutoFillBrokerA(ctx context.Context, sym string, resolver ContractResolver) (domain.SymbolRegistryEntry, error) {
	return r.autoFill(ctx, sym, resolver, func(c ContractDetails) bool { return c.BrokerATicker != "" },
		func(c ContractDetails) EnsureFields { return EnsureFields{BrokerATicker: c.BrokerATicker} })
}

func (r *Registry) autoFill(
	ctx context.Context,
	sym string,
	resolver ContractResolver,
	usable func(ContractDetails) bool,
	toFields func(ContractDetails) EnsureFields,
) (domain.SymbolRegistryEntry, error) {
	sym = Normalize(sym)

	matches, err := resolver.RequestContractDetails(ctx, domain.DefaultContractQuery(sym))
	if err != nil {
		return domain.SymbolRegistryEntry{}, fmt.Errorf("%w: contract details request failed: %v", domain.ErrRegistryAmbiguous, err)
	}

	var usableMatches []ContractDetails
	for _, m := range matches {
		if usable(m) {
			usableMatches = append(usableMatches, m)
		}
	}

	switch len(usableMatches) {
	case 0:
		return domain.SymbolRegistryEntry{}, fmt.Errorf("%w: %s", domain.ErrRegistryMiss, sym)
	case 1:
		return r.Ensure(ctx, sym, toFields(usableMatches[0]))
	default:
		return domain.SymbolRegistryEntry{}, fmt.Errorf("%w: %s matched %d contracts", domain.ErrRegistryAmbiguous, sym, len(usableMatches))
	}
}

// BrokerKindResolver pairs a config.BrokerKind with its ContractResolver,
// used by the router and the harmony orchestrator to pick the right
// auto-fill path without a type switch on the broker kind.
type BrokerKindResolver struct {
	Kind     config.BrokerKind
	Resolver ContractResolver
}

// Snapshot returns every entry currently in the registry, for the
// harmony orchestrator's "iterate registry entries" scan. The returned
// slice is a point-in-time copy, safe to range over freely.
func (r *Registry) Snapshot() []domain.SymbolRegistryEntry {
	snap := r.snap.Load()
	out := make([]domain.SymbolRegistryEntry, 0, len(snap.byCanonical))
	for _, e := range snap.byCanonical {
		out = append(out, e)
	}
	return out
}
