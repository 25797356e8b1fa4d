package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/normalize"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode and foreign keys.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS import_batches (
	id           TEXT PRIMARY KEY,
	source_file  TEXT NOT NULL,
	mode         TEXT NOT NULL,
	actor        TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	summary      TEXT
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
	gross_rate    TEXT NOT NULL DEFAULT '0',
	station_net   TEXT NOT NULL DEFAULT '0',
	spot_type     TEXT NOT NULL DEFAULT '',
	revenue_type  TEXT NOT NULL DEFAULT '',
	time_in       TEXT,
	time_out      TEXT,
	language_code TEXT,
	source_tag    TEXT,
	batch_id      TEXT NOT NULL REFERENCES import_batches(id),
	loaded_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS closed_months (
	month      TEXT PRIMARY KEY,
	month_sort INTEGER NOT NULL,
	closed_by  TEXT NOT NULL,
	closed_at  DATETIME NOT NULL,
	notes      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS entities (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL,
	name_key   TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE(kind, name)
);

CREATE TABLE IF NOT EXISTS entity_aliases (
	kind       TEXT NOT NULL,
	alias      TEXT NOT NULL,
	entity_id  TEXT NOT NULL REFERENCES entities(id),
	confidence REAL NOT NULL DEFAULT 1.0,
	created_by TEXT NOT NULL DEFAULT '',
	notes      TEXT NOT NULL DEFAULT '',
	active     INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (kind, alias)
);

CREATE TABLE IF NOT EXISTS canonical_map (
	kind       TEXT NOT NULL,
	alias      TEXT NOT NULL,
	canonical  TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
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
	confidence    REAL NOT NULL,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS language_assignments (
	spot_id         TEXT PRIMARY KEY REFERENCES spots(id) ON DELETE CASCADE,
	language_code   TEXT NOT NULL DEFAULT '',
	language_name   TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL,
	status          TEXT NOT NULL,
	confidence      REAL NOT NULL,
	method          TEXT NOT NULL,
	requires_review INTEGER NOT NULL DEFAULT 0,
	notes           TEXT NOT NULL DEFAULT '',
	assigned_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_spots_month ON spots(month);
CREATE INDEX IF NOT EXISTS idx_spots_month_sort ON spots(month_sort);
CREATE INDEX IF NOT EXISTS idx_spots_batch ON spots(batch_id);
CREATE INDEX IF NOT EXISTS idx_entities_name_key ON entities(kind, name_key);
CREATE INDEX IF NOT EXISTS idx_audit_batch ON normalization_audit(batch_id);
CREATE INDEX IF NOT EXISTS idx_assignments_status ON language_assignments(status);
CREATE INDEX IF NOT EXISTS idx_assignments_review ON language_assignments(requires_review);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReplaceMonth deletes every existing spot for the month and inserts the
// incoming rows, audit trail, and language assignments in one transaction.
func (s *SQLiteStore) ReplaceMonth(ctx context.Context, month model.BroadcastMonth, w MonthWrite) (int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: begin replace month")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `DELETE FROM spots WHERE month = ?`, month.String())
	if err != nil {
		return 0, 0, eris.Wrapf(err, "sqlite: delete spots %s", month)
	}
	deleted64, err := res.RowsAffected()
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: rows affected")
	}

	for _, spot := range w.Spots {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO spots (
				id, month, month_sort, bill_code, raw_customer, raw_agency,
				customer_name, customer_id, agency_name, agency_id,
				gross_rate, station_net, spot_type, revenue_type,
				time_in, time_out, language_code, source_tag, batch_id, loaded_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			spot.ID, spot.Month.String(), spot.Month.SortKey(), spot.BillCode,
			spot.RawCustomer, spot.RawAgency,
			spot.CustomerName, nullString(spot.CustomerID), spot.AgencyName, nullString(spot.AgencyID),
			spot.GrossRate.String(), spot.StationNet.String(), spot.SpotType, spot.RevenueType,
			nullString(spot.TimeIn), nullString(spot.TimeOut), nullString(spot.LanguageCode),
			nullString(spot.SourceTag), spot.BatchID, spot.LoadedAt,
		); err != nil {
			return 0, 0, eris.Wrapf(err, "sqlite: insert spot for %s", month)
		}
	}

	for _, audit := range w.Audits {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO normalization_audit (
				id, batch_id, kind, raw_text, resolved_name, entity_id, method, confidence, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			audit.ID, audit.BatchID, string(audit.Kind), audit.RawText, audit.ResolvedName,
			nullString(audit.EntityID), string(audit.Method), audit.Confidence, audit.CreatedAt,
		); err != nil {
			return 0, 0, eris.Wrapf(err, "sqlite: insert audit for %s", month)
		}
	}

	for _, a := range w.Assignments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO language_assignments (
				spot_id, language_code, language_name, category, status,
				confidence, method, requires_review, notes, assigned_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.SpotID, a.LanguageCode, a.LanguageName, string(a.Category), string(a.Status),
			a.Confidence, a.Method, boolInt(a.RequiresReview), a.Notes, a.AssignedAt,
		); err != nil {
			return 0, 0, eris.Wrapf(err, "sqlite: insert assignment for %s", month)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, eris.Wrapf(err, "sqlite: commit replace month %s", month)
	}
	return int(deleted64), len(w.Spots), nil
}

func (s *SQLiteStore) MonthStats(ctx context.Context, month model.BroadcastMonth) (*model.MonthStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT gross_rate FROM spots WHERE month = ?`, month.String())
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: month stats %s", month)
	}
	defer rows.Close()

	stats := &model.MonthStats{Month: month, GrossRevenue: decimal.Zero}
	for rows.Next() {
		var gross string
		if err := rows.Scan(&gross); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan gross rate")
		}
		d, err := decimal.NewFromString(gross)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: bad gross rate %q", gross)
		}
		stats.SpotCount++
		stats.GrossRevenue = stats.GrossRevenue.Add(d)
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: month stats iterate")
}

func (s *SQLiteStore) SpotMonths(ctx context.Context) ([]model.BroadcastMonth, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT month FROM spots ORDER BY month_sort`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: spot months")
	}
	defer rows.Close()

	var out []model.BroadcastMonth
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan month")
		}
		m, err := model.ParseBroadcastMonth(key)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: spot months iterate")
}

const spotColumns = `id, month, bill_code, raw_customer, raw_agency, customer_name, customer_id,
	agency_name, agency_id, gross_rate, station_net, spot_type, revenue_type,
	time_in, time_out, language_code, source_tag, batch_id, loaded_at`

func (s *SQLiteStore) ListSpots(ctx context.Context, month model.BroadcastMonth) ([]model.Spot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+spotColumns+` FROM spots WHERE month = ? ORDER BY id`, month.String())
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list spots %s", month)
	}
	defer rows.Close()

	var spots []model.Spot
	for rows.Next() {
		spot, err := scanSpot(rows)
		if err != nil {
			return nil, err
		}
		spots = append(spots, *spot)
	}
	return spots, eris.Wrap(rows.Err(), "sqlite: list spots iterate")
}

func (s *SQLiteStore) CloseMonth(ctx context.Context, cp model.ClosedPeriod) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO closed_months (month, month_sort, closed_by, closed_at, notes)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(month) DO NOTHING`,
		cp.Month.String(), cp.Month.SortKey(), cp.ClosedBy, cp.ClosedAt, cp.Notes,
	)
	return eris.Wrapf(err, "sqlite: close month %s", cp.Month)
}

func (s *SQLiteStore) ClosedMonths(ctx context.Context) ([]model.ClosedPeriod, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT month, closed_by, closed_at, notes FROM closed_months ORDER BY month_sort`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: closed months")
	}
	defer rows.Close()

	var out []model.ClosedPeriod
	for rows.Next() {
		var cp model.ClosedPeriod
		var key string
		if err := rows.Scan(&key, &cp.ClosedBy, &cp.ClosedAt, &cp.Notes); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan closed month")
		}
		m, err := model.ParseBroadcastMonth(key)
		if err != nil {
			return nil, err
		}
		cp.Month = m
		out = append(out, cp)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: closed months iterate")
}

func (s *SQLiteStore) CreateBatch(ctx context.Context, b model.ImportBatch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_batches (id, source_file, mode, actor, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.SourceFile, string(b.Mode), b.Actor, b.StartedAt,
	)
	return eris.Wrapf(err, "sqlite: create batch %s", b.ID)
}

func (s *SQLiteStore) FinalizeBatch(ctx context.Context, batchID string, summary *model.BatchSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal batch summary")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_batches SET completed_at = ?, summary = ? WHERE id = ?`,
		time.Now().UTC(), string(summaryJSON), batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finalize batch %s", batchID)
	}
	return checkRowsAffected(res, "batch", batchID)
}

func (s *SQLiteStore) ListBatches(ctx context.Context, limit int) ([]model.ImportBatch, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_file, mode, actor, started_at, completed_at, summary
		FROM import_batches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	defer rows.Close()

	var out []model.ImportBatch
	for rows.Next() {
		var b model.ImportBatch
		var mode string
		var completed sql.NullTime
		var summaryJSON sql.NullString
		if err := rows.Scan(&b.ID, &b.SourceFile, &mode, &b.Actor, &b.StartedAt, &completed, &summaryJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan batch")
		}
		b.Mode = model.ImportMode(mode)
		if completed.Valid {
			t := completed.Time
			b.CompletedAt = &t
		}
		if summaryJSON.Valid {
			b.Summary = &model.BatchSummary{}
			if err := json.Unmarshal([]byte(summaryJSON.String), b.Summary); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal batch summary")
			}
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list batches iterate")
}

func (s *SQLiteStore) LookupAlias(ctx context.Context, kind model.EntityKind, raw string) (*model.EntityAlias, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT kind, alias, entity_id, confidence, created_by, notes, active, created_at, updated_at
		FROM entity_aliases WHERE kind = ? AND alias = ?`,
		string(kind), raw,
	)
	var a model.EntityAlias
	var k string
	var active int
	err := row.Scan(&k, &a.Alias, &a.EntityID, &a.Confidence, &a.CreatedBy, &a.Notes, &active, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: lookup alias")
	}
	a.Kind = model.EntityKind(k)
	a.Active = active != 0
	return &a, nil
}

func (s *SQLiteStore) LookupCanonical(ctx context.Context, kind model.EntityKind, alias string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT canonical FROM canonical_map WHERE kind = ? AND alias = ?`,
		string(kind), alias,
	)
	var canonical string
	err := row.Scan(&canonical)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "sqlite: lookup canonical")
	}
	return canonical, true, nil
}

// FindEntityByName matches on the cleaned form of the display name, so
// suffix and punctuation variants of the same name find one entity.
func (s *SQLiteStore) FindEntityByName(ctx context.Context, kind model.EntityKind, name string) (*model.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, name, created_at FROM entities WHERE kind = ? AND name_key = ?`,
		string(kind), normalize.CleanForMatching(name),
	)
	return scanEntity(row)
}

func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, name, created_at FROM entities WHERE id = ?`, id)
	return scanEntity(row)
}

func (s *SQLiteStore) CreateEntity(ctx context.Context, kind model.EntityKind, name string) (*model.Entity, error) {
	e := &model.Entity{
		ID:        uuid.New().String(),
		Kind:      kind,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entities (id, kind, name, name_key, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.Name, normalize.CleanForMatching(e.Name), e.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create entity %q", name)
	}
	return e, nil
}

func (s *SQLiteStore) ListEntities(ctx context.Context, kind model.EntityKind) ([]model.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, name, created_at FROM entities WHERE kind = ? ORDER BY name`,
		string(kind),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entities")
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var e model.Entity
		var k string
		if err := rows.Scan(&e.ID, &k, &e.Name, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity")
		}
		e.Kind = model.EntityKind(k)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list entities iterate")
}

// BindAlias creates or updates an alias binding. Rebinding an alias to a
// different entity fails with AliasConflictError unless force is set.
func (s *SQLiteStore) BindAlias(ctx context.Context, alias model.EntityAlias, force bool) error {
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entity_aliases (kind, alias, entity_id, confidence, created_by, notes, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, alias) DO UPDATE SET
			entity_id = excluded.entity_id,
			confidence = excluded.confidence,
			created_by = excluded.created_by,
			notes = excluded.notes,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		string(alias.Kind), alias.Alias, alias.EntityID, alias.Confidence,
		alias.CreatedBy, alias.Notes, boolInt(alias.Active), now, now,
	)
	return eris.Wrapf(err, "sqlite: bind alias %q", alias.Alias)
}

func (s *SQLiteStore) ListAliases(ctx context.Context, kind model.EntityKind) ([]model.EntityAlias, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, alias, entity_id, confidence, created_by, notes, active, created_at, updated_at
		FROM entity_aliases WHERE kind = ? ORDER BY alias`,
		string(kind),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list aliases")
	}
	defer rows.Close()

	var out []model.EntityAlias
	for rows.Next() {
		var a model.EntityAlias
		var k string
		var active int
		if err := rows.Scan(&k, &a.Alias, &a.EntityID, &a.Confidence, &a.CreatedBy, &a.Notes, &active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan alias")
		}
		a.Kind = model.EntityKind(k)
		a.Active = active != 0
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list aliases iterate")
}

// UpsertCanonicalEntry stores the alias in its cleaned lookup form so an
// operator-typed mixed-case alias still matches at resolution time.
func (s *SQLiteStore) UpsertCanonicalEntry(ctx context.Context, entry model.CanonicalMapEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO canonical_map (kind, alias, canonical, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, alias) DO UPDATE SET
			canonical = excluded.canonical,
			updated_at = excluded.updated_at`,
		string(entry.Kind), normalize.CleanForMatching(entry.Alias), entry.Canonical, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert canonical entry %q", entry.Alias)
}

func (s *SQLiteStore) ListCanonicalEntries(ctx context.Context, kind model.EntityKind) ([]model.CanonicalMapEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, alias, canonical, updated_at FROM canonical_map WHERE kind = ? ORDER BY alias`,
		string(kind),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list canonical entries")
	}
	defer rows.Close()

	var out []model.CanonicalMapEntry
	for rows.Next() {
		var e model.CanonicalMapEntry
		var k string
		if err := rows.Scan(&k, &e.Alias, &e.Canonical, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan canonical entry")
		}
		e.Kind = model.EntityKind(k)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list canonical entries iterate")
}

func (s *SQLiteStore) ListAudit(ctx context.Context, batchID string) ([]model.NormalizationAudit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, kind, raw_text, resolved_name, entity_id, method, confidence, created_at
		FROM normalization_audit WHERE batch_id = ? ORDER BY created_at, id`,
		batchID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close()

	var out []model.NormalizationAudit
	for rows.Next() {
		var a model.NormalizationAudit
		var kind, method string
		var entityID sql.NullString
		if err := rows.Scan(&a.ID, &a.BatchID, &kind, &a.RawText, &a.ResolvedName, &entityID, &method, &a.Confidence, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit row")
		}
		a.Kind = model.EntityKind(kind)
		a.Method = model.ResolutionMethod(method)
		a.EntityID = entityID.String
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list audit iterate")
}

func (s *SQLiteStore) UpsertLanguageAssignment(ctx context.Context, a model.LanguageAssignment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO language_assignments (
			spot_id, language_code, language_name, category, status,
			confidence, method, requires_review, notes, assigned_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(spot_id) DO UPDATE SET
			language_code = excluded.language_code,
			language_name = excluded.language_name,
			category = excluded.category,
			status = excluded.status,
			confidence = excluded.confidence,
			method = excluded.method,
			requires_review = excluded.requires_review,
			notes = excluded.notes,
			assigned_at = excluded.assigned_at`,
		a.SpotID, a.LanguageCode, a.LanguageName, string(a.Category), string(a.Status),
		a.Confidence, a.Method, boolInt(a.RequiresReview), a.Notes, a.AssignedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert assignment %s", a.SpotID)
}

func (s *SQLiteStore) ListAssignments(ctx context.Context, f AssignmentFilter) ([]model.LanguageAssignment, error) {
	query := `
		SELECT la.spot_id, la.language_code, la.language_name, la.category, la.status,
			la.confidence, la.method, la.requires_review, la.notes, la.assigned_at
		FROM language_assignments la
		JOIN spots sp ON sp.id = la.spot_id
		WHERE 1=1`
	var args []any

	if f.Status != "" {
		query += ` AND la.status = ?`
		args = append(args, string(f.Status))
	}
	if f.RequireReview {
		query += ` AND la.requires_review = 1`
	}
	if f.Month != "" {
		query += ` AND sp.month = ?`
		args = append(args, f.Month)
	}
	query += ` ORDER BY la.assigned_at DESC, la.spot_id`

	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assignments")
	}
	defer rows.Close()

	var out []model.LanguageAssignment
	for rows.Next() {
		var a model.LanguageAssignment
		var category, status string
		var review int
		if err := rows.Scan(&a.SpotID, &a.LanguageCode, &a.LanguageName, &category, &status,
			&a.Confidence, &a.Method, &review, &a.Notes, &a.AssignedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assignment")
		}
		a.Category = model.BusinessCategory(category)
		a.Status = model.AssignmentStatus(status)
		a.RequiresReview = review != 0
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list assignments iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntity(row scannable) (*model.Entity, error) {
	var e model.Entity
	var kind string
	err := row.Scan(&e.ID, &kind, &e.Name, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan entity")
	}
	e.Kind = model.EntityKind(kind)
	return &e, nil
}

func scanSpot(rows *sql.Rows) (*model.Spot, error) {
	var spot model.Spot
	var monthKey, gross, net string
	var customerID, agencyID, timeIn, timeOut, langCode, sourceTag sql.NullString
	if err := rows.Scan(
		&spot.ID, &monthKey, &spot.BillCode, &spot.RawCustomer, &spot.RawAgency,
		&spot.CustomerName, &customerID, &spot.AgencyName, &agencyID,
		&gross, &net, &spot.SpotType, &spot.RevenueType,
		&timeIn, &timeOut, &langCode, &sourceTag, &spot.BatchID, &spot.LoadedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan spot")
	}

	month, err := model.ParseBroadcastMonth(monthKey)
	if err != nil {
		return nil, err
	}
	spot.Month = month

	grossDec, err := decimal.NewFromString(gross)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: bad gross rate %q", gross)
	}
	netDec, err := decimal.NewFromString(net)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: bad station net %q", net)
	}
	spot.GrossRate = grossDec
	spot.StationNet = netDec

	spot.CustomerID = customerID.String
	spot.AgencyID = agencyID.String
	spot.TimeIn = timeIn.String
	spot.TimeOut = timeOut.String
	spot.LanguageCode = langCode.String
	spot.SourceTag = sourceTag.String
	return &spot, nil
}
