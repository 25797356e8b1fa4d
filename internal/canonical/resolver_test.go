package canonical

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/normalize"
)

// fakeMaps implements the three reader interfaces in memory.
type fakeMaps struct {
	aliases   map[string]*model.EntityAlias    // "kind|raw" -> alias
	canonical map[string]string                // "kind|cleaned" -> canonical name
	entities  map[string]*model.Entity         // "kind|cleaned name" -> entity
	byID      map[string]*model.Entity
}

func newFakeMaps() *fakeMaps {
	return &fakeMaps{
		aliases:   map[string]*model.EntityAlias{},
		canonical: map[string]string{},
		entities:  map[string]*model.Entity{},
		byID:      map[string]*model.Entity{},
	}
}

func (f *fakeMaps) addEntity(kind model.EntityKind, id, name string) {
	e := &model.Entity{ID: id, Kind: kind, Name: name}
	f.entities[string(kind)+"|"+normalize.CleanForMatching(name)] = e
	f.byID[id] = e
}

func (f *fakeMaps) LookupAlias(_ context.Context, kind model.EntityKind, raw string) (*model.EntityAlias, error) {
	return f.aliases[string(kind)+"|"+raw], nil
}

func (f *fakeMaps) LookupCanonical(_ context.Context, kind model.EntityKind, alias string) (string, bool, error) {
	name, ok := f.canonical[string(kind)+"|"+alias]
	return name, ok, nil
}

func (f *fakeMaps) FindEntityByName(_ context.Context, kind model.EntityKind, name string) (*model.Entity, error) {
	return f.entities[string(kind)+"|"+normalize.CleanForMatching(name)], nil
}

func (f *fakeMaps) GetEntity(_ context.Context, id string) (*model.Entity, error) {
	return f.byID[id], nil
}

func newTestResolver(f *fakeMaps) *Resolver {
	return NewResolver(f, f, f, 0)
}

func TestResolve_AliasExactWins(t *testing.T) {
	f := newFakeMaps()
	f.addEntity(model.EntityKindCustomer, "cust-1", "ACME MEDIA")
	f.aliases["customer|Acme Corp PRODUCTION"] = &model.EntityAlias{
		Alias:    "Acme Corp PRODUCTION",
		Kind:     model.EntityKindCustomer,
		EntityID: "cust-1",
		Active:   true,
	}
	// A canonical map entry for the same cleaned text points elsewhere;
	// alias resolution must win.
	f.canonical["customer|ACME CORP"] = "SOMEWHERE ELSE"

	res, err := newTestResolver(f).Resolve(context.Background(), "Acme Corp PRODUCTION", model.EntityKindCustomer)
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, model.MethodAliasExact, res.Method)
	assert.Equal(t, "cust-1", res.EntityID)
	assert.Equal(t, "ACME MEDIA", res.CanonicalName)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	assert.False(t, res.RequiresReview)
}

func TestResolve_InactiveAliasIgnored(t *testing.T) {
	f := newFakeMaps()
	f.aliases["customer|Acme"] = &model.EntityAlias{
		Alias: "Acme", Kind: model.EntityKindCustomer, EntityID: "cust-1", Active: false,
	}

	res, err := newTestResolver(f).Resolve(context.Background(), "Acme", model.EntityKindCustomer)
	require.NoError(t, err)
	assert.Equal(t, model.MethodUnresolved, res.Method)
}

func TestResolve_CanonicalMap(t *testing.T) {
	f := newFakeMaps()
	f.addEntity(model.EntityKindCustomer, "cust-7", "Golden State Dental")
	f.canonical["customer|GOLDEN STATE DENTAL GROUP INC"] = "Golden State Dental"

	res, err := newTestResolver(f).Resolve(context.Background(), "Golden State Dental Group Inc.", model.EntityKindCustomer)
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, model.MethodCanonicalMap, res.Method)
	assert.Equal(t, "Golden State Dental", res.CanonicalName)
	assert.Equal(t, "cust-7", res.EntityID)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
}

func TestResolve_DirectMatch(t *testing.T) {
	f := newFakeMaps()
	f.addEntity(model.EntityKindCustomer, "cust-2", "PACIFIC MARKET")

	res, err := newTestResolver(f).Resolve(context.Background(), "Pacific Market", model.EntityKindCustomer)
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, model.MethodDirectMatch, res.Method)
	assert.Equal(t, "cust-2", res.EntityID)
	assert.Equal(t, "PACIFIC MARKET", res.CanonicalName)
}

func TestResolve_DirectMatchSuffixVariant(t *testing.T) {
	f := newFakeMaps()
	f.addEntity(model.EntityKindCustomer, "cust-3", "ACME CORP")

	// The stored display name carries a suffix; raw variants of it must
	// still land on the entity.
	for _, raw := range []string{"Acme Corp", "Acme Corp.", "Acme Corporation"} {
		res, err := newTestResolver(f).Resolve(context.Background(), raw, model.EntityKindCustomer)
		require.NoError(t, err, raw)
		assert.Equal(t, model.MethodDirectMatch, res.Method, raw)
		assert.Equal(t, "cust-3", res.EntityID, raw)
		assert.Equal(t, "ACME CORP", res.CanonicalName, raw)
	}
}

func TestResolve_Unresolved(t *testing.T) {
	f := newFakeMaps()

	res, err := newTestResolver(f).Resolve(context.Background(), "Totally Unknown LLC", model.EntityKindCustomer)
	require.NoError(t, err)
	assert.False(t, res.Resolved)
	assert.Equal(t, model.MethodUnresolved, res.Method)
	assert.Equal(t, "Totally Unknown LLC", res.CanonicalName)
	assert.Zero(t, res.Confidence)
	assert.True(t, res.RequiresReview)
}

func TestResolve_AgencyFromCompound(t *testing.T) {
	f := newFakeMaps()
	f.addEntity(model.EntityKindAgency, "ag-1", "MEDIABUYERS")

	res, err := newTestResolver(f).Resolve(context.Background(), "MediaBuyers:Acme Corp", model.EntityKindAgency)
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, model.MethodDirectMatch, res.Method)
	assert.Equal(t, "ag-1", res.EntityID)
	assert.Equal(t, "MediaBuyers", res.Candidate.AgencyCandidate)
}

func TestResolve_UnknownKind(t *testing.T) {
	f := newFakeMaps()

	_, err := newTestResolver(f).Resolve(context.Background(), "Acme", model.EntityKind("station"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrUnknownEntityKind))
}

func TestResolve_AmbiguousSplit(t *testing.T) {
	f := newFakeMaps()

	_, err := newTestResolver(f).Resolve(context.Background(), "A:B:C:D", model.EntityKindCustomer)
	require.Error(t, err)

	var ambiguous *model.AmbiguousSplitError
	assert.True(t, errors.As(err, &ambiguous))
}

// failingEntities fails every entity read with a store error.
type failingEntities struct{ *fakeMaps }

var errStoreDown = errors.New("store down")

func (failingEntities) FindEntityByName(context.Context, model.EntityKind, string) (*model.Entity, error) {
	return nil, errStoreDown
}

func (failingEntities) GetEntity(context.Context, string) (*model.Entity, error) {
	return nil, errStoreDown
}

func TestResolve_GetEntityErrorPropagates(t *testing.T) {
	f := newFakeMaps()
	f.aliases["customer|Acme"] = &model.EntityAlias{
		Alias: "Acme", Kind: model.EntityKindCustomer, EntityID: "cust-1", Active: true,
	}

	r := NewResolver(f, f, failingEntities{f}, 0)
	_, err := r.Resolve(context.Background(), "Acme", model.EntityKindCustomer)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errStoreDown))
}

func TestResolve_EntityLookupErrorPropagates(t *testing.T) {
	f := newFakeMaps()
	f.canonical["customer|ACME CORP"] = "ACME MEDIA"

	r := NewResolver(f, f, failingEntities{f}, 0)
	_, err := r.Resolve(context.Background(), "Acme Corp", model.EntityKindCustomer)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errStoreDown))
}

func TestAuditRow_CarriesBatch(t *testing.T) {
	f := newFakeMaps()
	res, err := newTestResolver(f).Resolve(context.Background(), "Nobody", model.EntityKindCustomer)
	require.NoError(t, err)

	row := res.AuditRow("batch-123", time.Now().UTC())
	assert.Equal(t, "batch-123", row.BatchID)
	assert.Equal(t, "Nobody", row.RawText)
	assert.Equal(t, model.MethodUnresolved, row.Method)
	assert.NotEmpty(t, row.ID)
}
