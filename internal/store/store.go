// Package store persists spots, closed months, canonical mappings, and
// language assignments behind a backend-agnostic interface.
package store

import (
	"context"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
)

// AssignmentFilter selects language assignments for review queues.
type AssignmentFilter struct {
	Status        model.AssignmentStatus `json:"status,omitempty"`
	RequireReview bool                   `json:"require_review,omitempty"`
	Month         string                 `json:"month,omitempty"`
	Limit         int                    `json:"limit,omitempty"`
}

// MonthWrite is the full payload of one atomic month replacement: the
// surviving spots plus the audit and assignment rows derived from them.
type MonthWrite struct {
	Spots       []model.Spot
	Audits      []model.NormalizationAudit
	Assignments []model.LanguageAssignment
}

// Store defines the persistence interface for the reconciliation engine.
//
// ReplaceMonth is the only spot write path and must be atomic: a failure
// leaves the month's prior spots, audit rows, and assignments intact.
type Store interface {
	// Spots and months
	ReplaceMonth(ctx context.Context, month model.BroadcastMonth, w MonthWrite) (deleted, inserted int, err error)
	MonthStats(ctx context.Context, month model.BroadcastMonth) (*model.MonthStats, error)
	SpotMonths(ctx context.Context) ([]model.BroadcastMonth, error)
	ListSpots(ctx context.Context, month model.BroadcastMonth) ([]model.Spot, error)

	// Closed months
	CloseMonth(ctx context.Context, cp model.ClosedPeriod) error
	ClosedMonths(ctx context.Context) ([]model.ClosedPeriod, error)

	// Import batches
	CreateBatch(ctx context.Context, b model.ImportBatch) error
	FinalizeBatch(ctx context.Context, batchID string, summary *model.BatchSummary) error
	ListBatches(ctx context.Context, limit int) ([]model.ImportBatch, error)

	// Canonicalization reads (resolver interfaces). FindEntityByName
	// matches on the CleanForMatching form of the display name, never the
	// raw text.
	LookupAlias(ctx context.Context, kind model.EntityKind, raw string) (*model.EntityAlias, error)
	LookupCanonical(ctx context.Context, kind model.EntityKind, alias string) (string, bool, error)
	FindEntityByName(ctx context.Context, kind model.EntityKind, name string) (*model.Entity, error)
	GetEntity(ctx context.Context, id string) (*model.Entity, error)

	// Operator writes
	CreateEntity(ctx context.Context, kind model.EntityKind, name string) (*model.Entity, error)
	ListEntities(ctx context.Context, kind model.EntityKind) ([]model.Entity, error)
	BindAlias(ctx context.Context, alias model.EntityAlias, force bool) error
	ListAliases(ctx context.Context, kind model.EntityKind) ([]model.EntityAlias, error)
	UpsertCanonicalEntry(ctx context.Context, entry model.CanonicalMapEntry) error
	ListCanonicalEntries(ctx context.Context, kind model.EntityKind) ([]model.CanonicalMapEntry, error)

	// Audit and language assignments
	ListAudit(ctx context.Context, batchID string) ([]model.NormalizationAudit, error)
	UpsertLanguageAssignment(ctx context.Context, a model.LanguageAssignment) error
	ListAssignments(ctx context.Context, f AssignmentFilter) ([]model.LanguageAssignment, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
