package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/db"
	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/normalize"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS import_batches (
	id           TEXT PRIMARY KEY,
	source_file  TEXT NOT NULL,
	mode         TEXT NOT NULL,
	actor        TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	summary      JSONB
);

CREATE TABLE IF NOT EXISTS spots (
	id            TEXT PRIMARY KEY,
	month         TEXT NOT NULL,
	month_sort    INTEGER NOT NULL,
	bill_code     TEXT NOT NULL,
	raw_customer  TEXT NOT NULL,
	raw_agency    TEXT NOT NULL DEFAULT '',
	customer_name TEXT NOT NULL DEFAULT '',
	customer_id   TEXT,
	agency_name   TEXT NOT NULL DEFAULT '',
	agency_id     TEXT,
	gross_rate    NUMERIC(12,2) NOT NULL DEFAULT 0,
	station_net   NUMERIC(12,2) NOT NULL DEFAULT 0,
	spot_type     TEXT NOT NULL DEFAULT '',
	revenue_type  TEXT NOT NULL DEFAULT '',
	time_in       TEXT,
	time_out      TEXT,
	language_code TEXT,
	source_tag    TEXT,
	batch_id      TEXT NOT NULL REFERENCES import_batches(id),
	loaded_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS closed_months (
	month      TEXT PRIMARY KEY,
	month_sort INTEGER NOT NULL,
	closed_by  TEXT NOT NULL,
	closed_at  TIMESTAMPTZ NOT NULL,
	notes      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS entities (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL,
	name_key   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE(kind, name)
);

CREATE TABLE IF NOT EXISTS entity_aliases (
	kind       TEXT NOT NULL,
	alias      TEXT NOT NULL,
	entity_id  TEXT NOT NULL REFERENCES entities(id),
	confidence DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	created_by TEXT NOT NULL DEFAULT '',
	notes      TEXT NOT NULL DEFAULT '',
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (kind, alias)
);

CREATE TABLE IF NOT EXISTS canonical_map (
	kind       TEXT NOT NULL,
	alias      TEXT NOT NULL,
	canonical  TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (kind, alias)
);

CREATE TABLE IF NOT EXISTS normalization_audit (
	id            TEXT PRIMARY KEY,
	batch_id      TEXT NOT NULL REFERENCES import_batches(id),
	kind          TEXT NOT NULL,
	raw_text      TEXT NOT NULL,
	resolved_name TEXT NOT NULL,
	entity_id     TEXT,
	method        TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS language_assignments (
	spot_id         TEXT PRIMARY KEY REFERENCES spots(id) ON DELETE CASCADE,
	language_code   TEXT NOT NULL DEFAULT '',
	language_name   TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL,
	status          TEXT NOT NULL,
	confidence      DOUBLE PRECISION NOT NULL,
	method          TEXT NOT NULL,
	requires_review BOOLEAN NOT NULL DEFAULT FALSE,
	notes           TEXT NOT NULL DEFAULT '',
	assigned_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_spots_month ON spots(month);
CREATE INDEX IF NOT EXISTS idx_spots_month_sort ON spots(month_sort);
CREATE INDEX IF NOT EXISTS idx_spots_batch ON spots(batch_id);
CREATE INDEX IF NOT EXISTS idx_entities_name_key ON entities(kind, name_key);
CREATE INDEX IF NOT EXISTS idx_audit_batch ON normalization_audit(batch_id);
CREATE INDEX IF NOT EXISTS idx_assignments_status ON language_assignments(status);
CREATE INDEX IF NOT EXISTS idx_assignments_review ON language_assignments(requires_review);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ReplaceMonth(ctx context.Context, month model.BroadcastMonth, w MonthWrite) (int, int, error) {
	var deleted int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM spots WHERE month = $1`, month.String())
		if err != nil {
			return eris.Wrapf(err, "postgres: delete spots %s", month)
		}
		deleted = tag.RowsAffected()

		spotRows := make([][]any, len(w.Spots))
		for i, spot := range w.Spots {
			spotRows[i] = []any{
				spot.ID, spot.Month.String(), spot.Month.SortKey(), spot.BillCode,
				spot.RawCustomer, spot.RawAgency,
				spot.CustomerName, nullString(spot.CustomerID), spot.AgencyName, nullString(spot.AgencyID),
				spot.GrossRate.String(), spot.StationNet.String(), spot.SpotType, spot.RevenueType,
				nullString(spot.TimeIn), nullString(spot.TimeOut), nullString(spot.LanguageCode),
				nullString(spot.SourceTag), spot.BatchID, spot.LoadedAt,
			}
		}
		if _, err := db.CopyInto(ctx, tx, "spots", []string{
			"id", "month", "month_sort", "bill_code", "raw_customer", "raw_agency",
			"customer_name", "customer_id", "agency_name", "agency_id",
			"gross_rate", "station_net", "spot_type", "revenue_type",
			"time_in", "time_out", "language_code", "source_tag", "batch_id", "loaded_at",
		}, spotRows); err != nil {
			return err
		}

		for _, audit := range w.Audits {
			if _, err := tx.Exec(ctx, `
				INSERT INTO normalization_audit (
					id, batch_id, kind, raw_text, resolved_name, entity_id, method, confidence, created_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				audit.ID, audit.BatchID, string(audit.Kind), audit.RawText, audit.ResolvedName,
				nullString(audit.EntityID), string(audit.Method), audit.Confidence, audit.CreatedAt,
			); err != nil {
				return eris.Wrapf(err, "postgres: insert audit for %s", month)
			}
		}

		for _, a := range w.Assignments {
			if _, err := tx.Exec(ctx, `
				INSERT INTO language_assignments (
					spot_id, language_code, language_name, category, status,
					confidence, method, requires_review, notes, assigned_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				a.SpotID, a.LanguageCode, a.LanguageName, string(a.Category), string(a.Status),
				a.Confidence, a.Method, a.RequiresReview, a.Notes, a.AssignedAt,
			); err != nil {
				return eris.Wrapf(err, "postgres: insert assignment for %s", month)
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return int(deleted), len(w.Spots), nil
}

func (s *PostgresStore) MonthStats(ctx context.Context, month model.BroadcastMonth) (*model.MonthStats, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(gross_rate), 0)::text FROM spots WHERE month = $1`,
		month.String(),
	)
	stats := &model.MonthStats{Month: month}
	var gross string
	if err := row.Scan(&stats.SpotCount, &gross); err != nil {
		return nil, eris.Wrapf(err, "postgres: month stats %s", month)
	}
	d, err := decimal.NewFromString(gross)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: bad gross sum %q", gross)
	}
	stats.GrossRevenue = d
	return stats, nil
}

func (s *PostgresStore) SpotMonths(ctx context.Context) ([]model.BroadcastMonth, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT month, month_sort FROM spots ORDER BY month_sort`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: spot months")
	}
	defer rows.Close()

	var out []model.BroadcastMonth
	for rows.Next() {
		var key string
		var sort int
		if err := rows.Scan(&key, &sort); err != nil {
			return nil, eris.Wrap(err, "postgres: scan month")
		}
		m, err := model.ParseBroadcastMonth(key)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: spot months iterate")
}

func (s *PostgresStore) ListSpots(ctx context.Context, month model.BroadcastMonth) ([]model.Spot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, month, bill_code, raw_customer, raw_agency, customer_name, customer_id,
			agency_name, agency_id, gross_rate::text, station_net::text, spot_type, revenue_type,
			time_in, time_out, language_code, source_tag, batch_id, loaded_at
		FROM spots WHERE month = $1 ORDER BY id`,
		month.String(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list spots %s", month)
	}
	defer rows.Close()

	var spots []model.Spot
	for rows.Next() {
		var spot model.Spot
		var monthKey, gross, net string
		var customerID, agencyID, timeIn, timeOut, langCode, sourceTag *string
		if err := rows.Scan(
			&spot.ID, &monthKey, &spot.BillCode, &spot.RawCustomer, &spot.RawAgency,
			&spot.CustomerName, &customerID, &spot.AgencyName, &agencyID,
			&gross, &net, &spot.SpotType, &spot.RevenueType,
			&timeIn, &timeOut, &langCode, &sourceTag, &spot.BatchID, &spot.LoadedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan spot")
		}
		m, err := model.ParseBroadcastMonth(monthKey)
		if err != nil {
			return nil, err
		}
		spot.Month = m
		if spot.GrossRate, err = decimal.NewFromString(gross); err != nil {
			return nil, eris.Wrapf(err, "postgres: bad gross rate %q", gross)
		}
		if spot.StationNet, err = decimal.NewFromString(net); err != nil {
			return nil, eris.Wrapf(err, "postgres: bad station net %q", net)
		}
		spot.CustomerID = deref(customerID)
		spot.AgencyID = deref(agencyID)
		spot.TimeIn = deref(timeIn)
		spot.TimeOut = deref(timeOut)
		spot.LanguageCode = deref(langCode)
		spot.SourceTag = deref(sourceTag)
		spots = append(spots, spot)
	}
	return spots, eris.Wrap(rows.Err(), "postgres: list spots iterate")
}

func (s *PostgresStore) CloseMonth(ctx context.Context, cp model.ClosedPeriod) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO closed_months (month, month_sort, closed_by, closed_at, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (month) DO NOTHING`,
		cp.Month.String(), cp.Month.SortKey(), cp.ClosedBy, cp.ClosedAt, cp.Notes,
	)
	return eris.Wrapf(err, "postgres: close month %s", cp.Month)
}

func (s *PostgresStore) ClosedMonths(ctx context.Context) ([]model.ClosedPeriod, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT month, closed_by, closed_at, notes FROM closed_months ORDER BY month_sort`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: closed months")
	}
	defer rows.Close()

	var out []model.ClosedPeriod
	for rows.Next() {
		var cp model.ClosedPeriod
		var key string
		if err := rows.Scan(&key, &cp.ClosedBy, &cp.ClosedAt, &cp.Notes); err != nil {
			return nil, eris.Wrap(err, "postgres: scan closed month")
		}
		m, err := model.ParseBroadcastMonth(key)
		if err != nil {
			return nil, err
		}
		cp.Month = m
		out = append(out, cp)
	}
	return out, eris.Wrap(rows.Err(), "postgres: closed months iterate")
}

func (s *PostgresStore) CreateBatch(ctx context.Context, b model.ImportBatch) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO import_batches (id, source_file, mode, actor, started_at)
		VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.SourceFile, string(b.Mode), b.Actor, b.StartedAt,
	)
	return eris.Wrapf(err, "postgres: create batch %s", b.ID)
}

func (s *PostgresStore) FinalizeBatch(ctx context.Context, batchID string, summary *model.BatchSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal batch summary")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_batches SET completed_at = $1, summary = $2 WHERE id = $3`,
		time.Now().UTC(), summaryJSON, batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize batch %s", batchID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("batch not found: %s", batchID)
	}
	return nil
}

func (s *PostgresStore) ListBatches(ctx context.Context, limit int) ([]model.ImportBatch, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, source_file, mode, actor, started_at, completed_at, summary
		FROM import_batches ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batches")
	}
	defer rows.Close()

	var out []model.ImportBatch
	for rows.Next() {
		var b model.ImportBatch
		var mode string
		var completed *time.Time
		var summaryJSON []byte
		if err := rows.Scan(&b.ID, &b.SourceFile, &mode, &b.Actor, &b.StartedAt, &completed, &summaryJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan batch")
		}
		b.Mode = model.ImportMode(mode)
		b.CompletedAt = completed
		if len(summaryJSON) > 0 {
			b.Summary = &model.BatchSummary{}
			if err := json.Unmarshal(summaryJSON, b.Summary); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal batch summary")
			}
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list batches iterate")
}

func (s *PostgresStore) LookupAlias(ctx context.Context, kind model.EntityKind, raw string) (*model.EntityAlias, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT kind, alias, entity_id, confidence, created_by, notes, active, created_at, updated_at
		FROM entity_aliases WHERE kind = $1 AND alias = $2`,
		string(kind), raw,
	)
	var a model.EntityAlias
	var k string
	err := row.Scan(&k, &a.Alias, &a.EntityID, &a.Confidence, &a.CreatedBy, &a.Notes, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lookup alias")
	}
	a.Kind = model.EntityKind(k)
	return &a, nil
}

func (s *PostgresStore) LookupCanonical(ctx context.Context, kind model.EntityKind, alias string) (string, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT canonical FROM canonical_map WHERE kind = $1 AND alias = $2`,
		string(kind), alias,
	)
	var canonical string
	err := row.Scan(&canonical)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "postgres: lookup canonical")
	}
	return canonical, true, nil
}

// FindEntityByName matches on the cleaned form of the display name, so
// suffix and punctuation variants of the same name find one entity.
func (s *PostgresStore) FindEntityByName(ctx context.Context, kind model.EntityKind, name string) (*model.Entity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, kind, name, created_at FROM entities WHERE kind = $1 AND name_key = $2`,
		string(kind), normalize.CleanForMatching(name),
	)
	return scanEntityPg(row)
}

func (s *PostgresStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, kind, name, created_at FROM entities WHERE id = $1`, id)
	return scanEntityPg(row)
}

func (s *PostgresStore) CreateEntity(ctx context.Context, kind model.EntityKind, name string) (*model.Entity, error) {
	e := &model.Entity{
		ID:        uuid.New().String(),
		Kind:      kind,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO entities (id, kind, name, name_key, created_at) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, string(e.Kind), e.Name, normalize.CleanForMatching(e.Name), e.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create entity %q", name)
	}
	return e, nil
}

func (s *PostgresStore) ListEntities(ctx context.Context, kind model.EntityKind) ([]model.Entity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, name, created_at FROM entities WHERE kind = $1 ORDER BY name`,
		string(kind),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entities")
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var e model.Entity
		var k string
		if err := rows.Scan(&e.ID, &k, &e.Name, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity")
		}
		e.Kind = model.EntityKind(k)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list entities iterate")
}

func (s *PostgresStore) BindAlias(ctx context.Context, alias model.EntityAlias, force bool) error {
	existing, err := s.LookupAlias(ctx, alias.Kind, alias.Alias)
	if err != nil {
		return err
	}
	if existing != nil && existing.EntityID != alias.EntityID && !force {
		return &model.AliasConflictError{
			Alias:            alias.Alias,
			Kind:             alias.Kind,
			ExistingEntityID: existing.EntityID,
			NewEntityID:      alias.EntityID,
		}
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO entity_aliases (kind, alias, entity_id, confidence, created_by, notes, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (kind, alias) DO UPDATE SET
			entity_id = EXCLUDED.entity_id,
			confidence = EXCLUDED.confidence,
			created_by = EXCLUDED.created_by,
			notes = EXCLUDED.notes,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		string(alias.Kind), alias.Alias, alias.EntityID, alias.Confidence,
		alias.CreatedBy, alias.Notes, alias.Active, now, now,
	)
	return eris.Wrapf(err, "postgres: bind alias %q", alias.Alias)
}

func (s *PostgresStore) ListAliases(ctx context.Context, kind model.EntityKind) ([]model.EntityAlias, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT kind, alias, entity_id, confidence, created_by, notes, active, created_at, updated_at
		FROM entity_aliases WHERE kind = $1 ORDER BY alias`,
		string(kind),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list aliases")
	}
	defer rows.Close()

	var out []model.EntityAlias
	for rows.Next() {
		var a model.EntityAlias
		var k string
		if err := rows.Scan(&k, &a.Alias, &a.EntityID, &a.Confidence, &a.CreatedBy, &a.Notes, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan alias")
		}
		a.Kind = model.EntityKind(k)
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list aliases iterate")
}

// UpsertCanonicalEntry stores the alias in its cleaned lookup form so an
// operator-typed mixed-case alias still matches at resolution time.
func (s *PostgresStore) UpsertCanonicalEntry(ctx context.Context, entry model.CanonicalMapEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO canonical_map (kind, alias, canonical, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (kind, alias) DO UPDATE SET
			canonical = EXCLUDED.canonical,
			updated_at = EXCLUDED.updated_at`,
		string(entry.Kind), normalize.CleanForMatching(entry.Alias), entry.Canonical, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert canonical entry %q", entry.Alias)
}

func (s *PostgresStore) ListCanonicalEntries(ctx context.Context, kind model.EntityKind) ([]model.CanonicalMapEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT kind, alias, canonical, updated_at FROM canonical_map WHERE kind = $1 ORDER BY alias`,
		string(kind),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list canonical entries")
	}
	defer rows.Close()

	var out []model.CanonicalMapEntry
	for rows.Next() {
		var e model.CanonicalMapEntry
		var k string
		if err := rows.Scan(&k, &e.Alias, &e.Canonical, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan canonical entry")
		}
		e.Kind = model.EntityKind(k)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list canonical entries iterate")
}

func (s *PostgresStore) ListAudit(ctx context.Context, batchID string) ([]model.NormalizationAudit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, batch_id, kind, raw_text, resolved_name, entity_id, method, confidence, created_at
		FROM normalization_audit WHERE batch_id = $1 ORDER BY created_at, id`,
		batchID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit")
	}
	defer rows.Close()

	var out []model.NormalizationAudit
	for rows.Next() {
		var a model.NormalizationAudit
		var kind, method string
		var entityID *string
		if err := rows.Scan(&a.ID, &a.BatchID, &kind, &a.RawText, &a.ResolvedName, &entityID, &method, &a.Confidence, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit row")
		}
		a.Kind = model.EntityKind(kind)
		a.Method = model.ResolutionMethod(method)
		a.EntityID = deref(entityID)
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list audit iterate")
}

func (s *PostgresStore) UpsertLanguageAssignment(ctx context.Context, a model.LanguageAssignment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO language_assignments (
			spot_id, language_code, language_name, category, status,
			confidence, method, requires_review, notes, assigned_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (spot_id) DO UPDATE SET
			language_code = EXCLUDED.language_code,
			language_name = EXCLUDED.language_name,
			category = EXCLUDED.category,
			status = EXCLUDED.status,
			confidence = EXCLUDED.confidence,
			method = EXCLUDED.method,
			requires_review = EXCLUDED.requires_review,
			notes = EXCLUDED.notes,
			assigned_at = EXCLUDED.assigned_at`,
		a.SpotID, a.LanguageCode, a.LanguageName, string(a.Category), string(a.Status),
		a.Confidence, a.Method, a.RequiresReview, a.Notes, a.AssignedAt,
	)
	return eris.Wrapf(err, "postgres: upsert assignment %s", a.SpotID)
}

func (s *PostgresStore) ListAssignments(ctx context.Context, f AssignmentFilter) ([]model.LanguageAssignment, error) {
	query := `
		SELECT la.spot_id, la.language_code, la.language_name, la.category, la.status,
			la.confidence, la.method, la.requires_review, la.notes, la.assigned_at
		FROM language_assignments la
		JOIN spots sp ON sp.id = la.spot_id
		WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Status != "" {
		query += ` AND la.status = ` + arg(string(f.Status))
	}
	if f.RequireReview {
		query += ` AND la.requires_review`
	}
	if f.Month != "" {
		query += ` AND sp.month = ` + arg(f.Month)
	}
	query += ` ORDER BY la.assigned_at DESC, la.spot_id`

	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}
	query += ` LIMIT ` + arg(limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assignments")
	}
	defer rows.Close()

	var out []model.LanguageAssignment
	for rows.Next() {
		var a model.LanguageAssignment
		var category, status string
		if err := rows.Scan(&a.SpotID, &a.LanguageCode, &a.LanguageName, &category, &status,
			&a.Confidence, &a.Method, &a.RequiresReview, &a.Notes, &a.AssignedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assignment")
		}
		a.Category = model.BusinessCategory(category)
		a.Status = model.AssignmentStatus(status)
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list assignments iterate")
}

// helpers

func scanEntityPg(row pgx.Row) (*model.Entity, error) {
	var e model.Entity
	var kind string
	err := row.Scan(&e.ID, &kind, &e.Name, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan entity")
	}
	e.Kind = model.EntityKind(kind)
	return &e, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

