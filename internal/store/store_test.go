package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
)

// storeTestSuite exercises the Store contract against any backend.
func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	month := func(t *testing.T, key string) model.BroadcastMonth {
		t.Helper()
		m, err := model.ParseBroadcastMonth(key)
		require.NoError(t, err)
		return m
	}

	newBatch := func(t *testing.T, s Store, mode model.ImportMode) string {
		t.Helper()
		id := uuid.New().String()
		require.NoError(t, s.CreateBatch(context.Background(), model.ImportBatch{
			ID:         id,
			SourceFile: "extract.xlsx",
			Mode:       mode,
			Actor:      "tester",
			StartedAt:  time.Now().UTC(),
		}))
		return id
	}

	newSpot := func(m model.BroadcastMonth, batchID, billCode string, gross string) model.Spot {
		g, _ := decimal.NewFromString(gross)
		return model.Spot{
			ID:           uuid.New().String(),
			Month:        m,
			BillCode:     billCode,
			RawCustomer:  "Acme Corp",
			CustomerName: "ACME CORP",
			GrossRate:    g,
			StationNet:   g,
			SpotType:     "COM",
			RevenueType:  "Internal Ad Sales",
			LanguageCode: "M",
			BatchID:      batchID,
			LoadedAt:     time.Now().UTC(),
		}
	}

	t.Run("replace month inserts and is idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		m := month(t, "Jan-25")
		batchID := newBatch(t, s, model.ImportModeWeekly)

		write := MonthWrite{
			Spots: []model.Spot{
				newSpot(m, batchID, "Acme Corp", "100.00"),
				newSpot(m, batchID, "Agency:Acme Corp", "250.50"),
			},
		}
		deleted, inserted, err := s.ReplaceMonth(ctx, m, write)
		require.NoError(t, err)
		assert.Equal(t, 0, deleted)
		assert.Equal(t, 2, inserted)

		// Replaying the same write replaces rather than duplicates.
		deleted, inserted, err = s.ReplaceMonth(ctx, m, write)
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)
		assert.Equal(t, 2, inserted)

		stats, err := s.MonthStats(ctx, m)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.SpotCount)
		assert.True(t, stats.GrossRevenue.Equal(decimal.RequireFromString("350.50")),
			"got %s", stats.GrossRevenue)

		spots, err := s.ListSpots(ctx, m)
		require.NoError(t, err)
		require.Len(t, spots, 2)
		assert.Equal(t, m, spots[0].Month)
	})

	t.Run("replace month carries audit and assignments atomically", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		m := month(t, "Feb-25")
		batchID := newBatch(t, s, model.ImportModeWeekly)

		spot := newSpot(m, batchID, "Acme Corp", "10.00")
		write := MonthWrite{
			Spots: []model.Spot{spot},
			Audits: []model.NormalizationAudit{{
				ID:           uuid.New().String(),
				BatchID:      batchID,
				Kind:         model.EntityKindCustomer,
				RawText:      "Acme Corp PRODUCTION",
				ResolvedName: "ACME CORP",
				Method:       model.MethodDirectMatch,
				Confidence:   1.0,
				CreatedAt:    time.Now().UTC(),
			}},
			Assignments: []model.LanguageAssignment{{
				SpotID:       spot.ID,
				LanguageCode: "M",
				LanguageName: "Mandarin",
				Category:     model.CategoryLanguageRequired,
				Status:       model.StatusDetermined,
				Confidence:   1.0,
				Method:       "code_mapped",
				AssignedAt:   time.Now().UTC(),
			}},
		}
		_, _, err := s.ReplaceMonth(ctx, m, write)
		require.NoError(t, err)

		audit, err := s.ListAudit(ctx, batchID)
		require.NoError(t, err)
		require.Len(t, audit, 1)
		assert.Equal(t, "Acme Corp PRODUCTION", audit[0].RawText)
		assert.Equal(t, model.MethodDirectMatch, audit[0].Method)

		got, err := s.ListAssignments(ctx, AssignmentFilter{Month: m.String()})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, spot.ID, got[0].SpotID)
		assert.Equal(t, model.StatusDetermined, got[0].Status)
	})

	t.Run("close month is idempotent and listed in order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		dec := month(t, "Dec-24")
		jan := month(t, "Jan-25")
		now := time.Now().UTC()

		require.NoError(t, s.CloseMonth(ctx, model.ClosedPeriod{Month: jan, ClosedBy: "ops", ClosedAt: now}))
		require.NoError(t, s.CloseMonth(ctx, model.ClosedPeriod{Month: dec, ClosedBy: "ops", ClosedAt: now}))
		// Closing twice must not error or change the original record.
		require.NoError(t, s.CloseMonth(ctx, model.ClosedPeriod{Month: jan, ClosedBy: "someone-else", ClosedAt: now}))

		closed, err := s.ClosedMonths(ctx)
		require.NoError(t, err)
		require.Len(t, closed, 2)
		assert.Equal(t, "Dec-24", closed[0].Month.String())
		assert.Equal(t, "Jan-25", closed[1].Month.String())
		assert.Equal(t, "ops", closed[1].ClosedBy)
	})

	t.Run("entities and direct lookup", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		e, err := s.CreateEntity(ctx, model.EntityKindCustomer, "ACME CORP")
		require.NoError(t, err)
		require.NotEmpty(t, e.ID)

		found, err := s.FindEntityByName(ctx, model.EntityKindCustomer, "ACME CORP")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, e.ID, found.ID)

		// Lookup matches on the cleaned name, so case and suffix variants
		// of the display name find the same entity.
		for _, variant := range []string{"Acme Corp", "Acme Corp.", "Acme Corporation"} {
			got, err := s.FindEntityByName(ctx, model.EntityKindCustomer, variant)
			require.NoError(t, err)
			require.NotNil(t, got, variant)
			assert.Equal(t, e.ID, got.ID, variant)
		}

		// Same name under a different kind is a different namespace.
		missing, err := s.FindEntityByName(ctx, model.EntityKindAgency, "ACME CORP")
		require.NoError(t, err)
		assert.Nil(t, missing)

		byID, err := s.GetEntity(ctx, e.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, "ACME CORP", byID.Name)

		all, err := s.ListEntities(ctx, model.EntityKindCustomer)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("alias bind conflict leaves original intact", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.CreateEntity(ctx, model.EntityKindCustomer, "ACME CORP")
		require.NoError(t, err)
		b, err := s.CreateEntity(ctx, model.EntityKindCustomer, "OTHER CO")
		require.NoError(t, err)

		bind := model.EntityAlias{
			Alias:      "ACME",
			Kind:       model.EntityKindCustomer,
			EntityID:   a.ID,
			Confidence: 1.0,
			CreatedBy:  "tester",
			Active:     true,
		}
		require.NoError(t, s.BindAlias(ctx, bind, false))

		// Rebinding to a different entity without force fails.
		rebind := bind
		rebind.EntityID = b.ID
		err = s.BindAlias(ctx, rebind, false)
		var conflict *model.AliasConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, a.ID, conflict.ExistingEntityID)
		assert.Equal(t, b.ID, conflict.NewEntityID)

		got, err := s.LookupAlias(ctx, model.EntityKindCustomer, "ACME")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, a.ID, got.EntityID, "conflict must not mutate the existing binding")

		// Same target is a no-op update, not a conflict.
		require.NoError(t, s.BindAlias(ctx, bind, false))

		// Force moves the binding.
		require.NoError(t, s.BindAlias(ctx, rebind, true))
		got, err = s.LookupAlias(ctx, model.EntityKindCustomer, "ACME")
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.EntityID)

		aliases, err := s.ListAliases(ctx, model.EntityKindCustomer)
		require.NoError(t, err)
		assert.Len(t, aliases, 1)
	})

	t.Run("canonical map upsert", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, ok, err := s.LookupCanonical(ctx, model.EntityKindCustomer, "GOLDEN STATE DENTAL GROUP")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.UpsertCanonicalEntry(ctx, model.CanonicalMapEntry{
			Kind:      model.EntityKindCustomer,
			Alias:     "GOLDEN STATE DENTAL GROUP",
			Canonical: "Golden State Dental",
		}))
		require.NoError(t, s.UpsertCanonicalEntry(ctx, model.CanonicalMapEntry{
			Kind:      model.EntityKindCustomer,
			Alias:     "GOLDEN STATE DENTAL GROUP",
			Canonical: "Golden State Dental Group",
		}))

		canonical, ok, err := s.LookupCanonical(ctx, model.EntityKindCustomer, "GOLDEN STATE DENTAL GROUP")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Golden State Dental Group", canonical)

		// A mixed-case alias is stored in its cleaned lookup form.
		require.NoError(t, s.UpsertCanonicalEntry(ctx, model.CanonicalMapEntry{
			Kind:      model.EntityKindCustomer,
			Alias:     "Pacific Media Co.",
			Canonical: "PACIFIC MEDIA",
		}))
		canonical, ok, err = s.LookupCanonical(ctx, model.EntityKindCustomer, "PACIFIC MEDIA CO")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "PACIFIC MEDIA", canonical)

		entries, err := s.ListCanonicalEntries(ctx, model.EntityKindCustomer)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("batch finalize stores the summary", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		batchID := newBatch(t, s, model.ImportModeHistorical)

		summary := &model.BatchSummary{
			Mode:           model.ImportModeHistorical,
			SourceFile:     "extract.xlsx",
			RecordsIn:      10,
			SpotsInserted:  10,
			MonthsReplaced: 2,
			MonthsClosed:   2,
			Outcomes: []model.MonthOutcome{
				{Month: "Jan-25", Action: model.MonthReplaced, Inserted: 5},
				{Month: "Feb-25", Action: model.MonthReplaced, Inserted: 5},
			},
		}
		require.NoError(t, s.FinalizeBatch(ctx, batchID, summary))

		err := s.FinalizeBatch(ctx, "no-such-batch", summary)
		require.Error(t, err)

		batches, err := s.ListBatches(ctx, 10)
		require.NoError(t, err)
		require.Len(t, batches, 1)
		require.NotNil(t, batches[0].CompletedAt)
		require.NotNil(t, batches[0].Summary)
		assert.Equal(t, 10, batches[0].Summary.RecordsIn)
		assert.Len(t, batches[0].Summary.Outcomes, 2)
	})

	t.Run("assignment filters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		m := month(t, "Mar-25")
		batchID := newBatch(t, s, model.ImportModeWeekly)

		good := newSpot(m, batchID, "Acme Corp", "1.00")
		bad := newSpot(m, batchID, "Unknown LLC", "2.00")
		_, _, err := s.ReplaceMonth(ctx, m, MonthWrite{
			Spots: []model.Spot{good, bad},
			Assignments: []model.LanguageAssignment{
				{
					SpotID: good.ID, LanguageCode: "M", LanguageName: "Mandarin",
					Category: model.CategoryLanguageRequired, Status: model.StatusDetermined,
					Confidence: 1.0, Method: "code_mapped", AssignedAt: time.Now().UTC(),
				},
				{
					SpotID: bad.ID, LanguageCode: "E", LanguageName: "English",
					Category: model.CategoryLanguageRequired, Status: model.StatusInvalid,
					Confidence: 0.0, Method: "invalid_code", RequiresReview: true,
					AssignedAt: time.Now().UTC(),
				},
			},
		})
		require.NoError(t, err)

		review, err := s.ListAssignments(ctx, AssignmentFilter{RequireReview: true})
		require.NoError(t, err)
		require.Len(t, review, 1)
		assert.Equal(t, bad.ID, review[0].SpotID)

		determined, err := s.ListAssignments(ctx, AssignmentFilter{Status: model.StatusDetermined})
		require.NoError(t, err)
		require.Len(t, determined, 1)
		assert.Equal(t, good.ID, determined[0].SpotID)

		none, err := s.ListAssignments(ctx, AssignmentFilter{Month: "Apr-25"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("spot months sorted chronologically", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		batchID := newBatch(t, s, model.ImportModeWeekly)

		for _, key := range []string{"Feb-25", "Nov-24", "Jan-25"} {
			m := month(t, key)
			_, _, err := s.ReplaceMonth(ctx, m, MonthWrite{
				Spots: []model.Spot{newSpot(m, batchID, "Acme Corp", "1.00")},
			})
			require.NoError(t, err)
		}

		months, err := s.SpotMonths(ctx)
		require.NoError(t, err)
		require.Len(t, months, 3)
		assert.Equal(t, "Nov-24", months[0].String())
		assert.Equal(t, "Jan-25", months[1].String())
		assert.Equal(t, "Feb-25", months[2].String())
	})

	t.Run("lookups miss cleanly", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		alias, err := s.LookupAlias(ctx, model.EntityKindCustomer, "NOPE")
		require.NoError(t, err)
		assert.Nil(t, alias)

		entity, err := s.GetEntity(ctx, "missing-id")
		require.NoError(t, err)
		assert.Nil(t, entity)

		stats, err := s.MonthStats(ctx, month(t, "Sep-25"))
		require.NoError(t, err)
		assert.Equal(t, 0, stats.SpotCount)
		assert.True(t, stats.GrossRevenue.IsZero())
	})
}

// Guard against accidentally comparing wrapped sentinel errors with ==.
func TestAliasConflictErrorIsComparable(t *testing.T) {
	err := error(&model.AliasConflictError{Alias: "X", Kind: model.EntityKindCustomer})
	var conflict *model.AliasConflictError
	assert.True(t, errors.As(err, &conflict))
}
