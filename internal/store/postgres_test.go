package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresReplaceMonthTransaction(t *testing.T) {
	s, mock := newMockPostgres(t)
	ctx := context.Background()

	m, err := model.ParseBroadcastMonth("Jan-25")
	require.NoError(t, err)

	spot := model.Spot{
		ID:          "spot-1",
		Month:       m,
		BillCode:    "Acme Corp",
		RawCustomer: "Acme Corp",
		GrossRate:   decimal.RequireFromString("100.00"),
		StationNet:  decimal.RequireFromString("90.00"),
		BatchID:     "batch-1",
		LoadedAt:    time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM spots WHERE month`).
		WithArgs("Jan-25").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"spots"}, []string{
		"id", "month", "month_sort", "bill_code", "raw_customer", "raw_agency",
		"customer_name", "customer_id", "agency_name", "agency_id",
		"gross_rate", "station_net", "spot_type", "revenue_type",
		"time_in", "time_out", "language_code", "source_tag", "batch_id", "loaded_at",
	}).WillReturnResult(1)
	mock.ExpectCommit()

	deleted, inserted, err := s.ReplaceMonth(ctx, m, MonthWrite{Spots: []model.Spot{spot}})
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	assert.Equal(t, 1, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReplaceMonthRollsBackOnDeleteError(t *testing.T) {
	s, mock := newMockPostgres(t)
	ctx := context.Background()

	m, err := model.ParseBroadcastMonth("Jan-25")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM spots WHERE month`).
		WithArgs("Jan-25").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, _, err = s.ReplaceMonth(ctx, m, MonthWrite{})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLookupAliasNotFound(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT kind, alias, entity_id`).
		WithArgs("customer", "NOPE").
		WillReturnRows(pgxmock.NewRows([]string{
			"kind", "alias", "entity_id", "confidence", "created_by", "notes", "active", "created_at", "updated_at",
		}))

	alias, err := s.LookupAlias(context.Background(), model.EntityKindCustomer, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, alias)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLookupCanonical(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT canonical FROM canonical_map`).
		WithArgs("customer", "GOLDEN STATE DENTAL GROUP").
		WillReturnRows(pgxmock.NewRows([]string{"canonical"}).AddRow("Golden State Dental Group"))

	canonical, ok, err := s.LookupCanonical(context.Background(), model.EntityKindCustomer, "GOLDEN STATE DENTAL GROUP")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Golden State Dental Group", canonical)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCloseMonthIdempotent(t *testing.T) {
	s, mock := newMockPostgres(t)

	m, err := model.ParseBroadcastMonth("Dec-24")
	require.NoError(t, err)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO closed_months`).
		WithArgs("Dec-24", m.SortKey(), "ops", now, "year-end close").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err = s.CloseMonth(context.Background(), model.ClosedPeriod{
		Month: m, ClosedBy: "ops", ClosedAt: now, Notes: "year-end close",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFinalizeBatchNotFound(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`UPDATE import_batches SET completed_at`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinalizeBatch(context.Background(), "missing", &model.BatchSummary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMonthStats(t *testing.T) {
	s, mock := newMockPostgres(t)

	m, err := model.ParseBroadcastMonth("Jan-25")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE`).
		WithArgs("Jan-25").
		WillReturnRows(pgxmock.NewRows([]string{"count", "sum"}).AddRow(4, "350.50"))

	stats, err := s.MonthStats(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.SpotCount)
	assert.True(t, stats.GrossRevenue.Equal(decimal.RequireFromString("350.50")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
