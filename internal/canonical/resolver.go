// Package canonical resolves raw extract strings into stable business
// entities with auditable confidence.
package canonical

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/normalize"
)

// AliasReader looks up an exact-raw-string entity binding.
type AliasReader interface {
	LookupAlias(ctx context.Context, kind model.EntityKind, raw string) (*model.EntityAlias, error)
}

// CanonicalReader looks up a cleaned alias in the canonical map.
type CanonicalReader interface {
	LookupCanonical(ctx context.Context, kind model.EntityKind, alias string) (string, bool, error)
}

// EntityReader finds existing entities by display name or id. Name lookup
// matches on the CleanForMatching form, so suffix and punctuation variants
// of the same display name land on one entity.
type EntityReader interface {
	FindEntityByName(ctx context.Context, kind model.EntityKind, name string) (*model.Entity, error)
	GetEntity(ctx context.Context, id string) (*model.Entity, error)
}

// Resolution is the auditable outcome of resolving one raw string.
type Resolution struct {
	RawText        string
	Kind           model.EntityKind
	Candidate      normalize.Candidate
	Resolved       bool
	EntityID       string
	CanonicalName  string
	Confidence     float64
	Method         model.ResolutionMethod
	RequiresReview bool
}

// AuditRow converts the resolution into its persisted audit form, stamped
// with the batch that produced it.
func (r *Resolution) AuditRow(batchID string, at time.Time) model.NormalizationAudit {
	return model.NormalizationAudit{
		ID:           uuid.New().String(),
		BatchID:      batchID,
		Kind:         r.Kind,
		RawText:      r.RawText,
		ResolvedName: r.CanonicalName,
		EntityID:     r.EntityID,
		Method:       r.Method,
		Confidence:   r.Confidence,
		CreatedAt:    at,
	}
}

// Resolver composes the normalization rules with the injected read
// interfaces. Resolution order, first match wins:
//
//  1. exact alias match (confidence 1.0, alias_exact)
//  2. canonical map match on the cleaned text (1.0, canonical_map)
//  3. cleaned text equals an existing entity's cleaned name (1.0, direct_match)
//  4. unresolved: cleaned text kept as display name (0.0, review flagged)
//
// Alias resolution deliberately precedes the canonical map so an operator
// alias binding always wins over a display-name mapping.
type Resolver struct {
	aliases     AliasReader
	canon       CanonicalReader
	entities    EntityReader
	maxSegments int
	log         *zap.Logger
}

// NewResolver wires a resolver. maxSegments <= 0 uses the package default.
func NewResolver(aliases AliasReader, canon CanonicalReader, entities EntityReader, maxSegments int) *Resolver {
	if maxSegments <= 0 {
		maxSegments = normalize.DefaultMaxSegments
	}
	return &Resolver{
		aliases:     aliases,
		canon:       canon,
		entities:    entities,
		maxSegments: maxSegments,
		log:         zap.L().With(zap.String("component", "resolver")),
	}
}

// Resolve maps one raw string to a canonical identity. A malformed input
// (unknown kind, ambiguous split) is returned as an error; callers in the
// batch path downgrade such records to review rather than aborting.
func (r *Resolver) Resolve(ctx context.Context, raw string, kind model.EntityKind) (*Resolution, error) {
	if !kind.Valid() {
		return nil, eris.Wrapf(model.ErrUnknownEntityKind, "resolve %q", kind)
	}

	candidate, err := normalize.SplitBillCode(raw, r.maxSegments)
	if err != nil {
		return nil, err
	}

	target := candidate.CustomerCandidate
	if kind == model.EntityKindAgency {
		target = candidate.AgencyCandidate
		if target == "" {
			// Uncompounded codes carry no agency; nothing to resolve.
			target = candidate.CleanedRaw
		}
	}

	res := &Resolution{RawText: raw, Kind: kind, Candidate: candidate}

	// 1. Exact alias match against the untouched raw text.
	alias, err := r.aliases.LookupAlias(ctx, kind, raw)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: alias lookup")
	}
	if alias != nil && alias.Active {
		res.Resolved = true
		res.EntityID = alias.EntityID
		res.CanonicalName = target
		res.Confidence = 1.0
		res.Method = model.MethodAliasExact
		entity, err := r.entities.GetEntity(ctx, alias.EntityID)
		if err != nil {
			return nil, eris.Wrap(err, "resolve: get entity")
		}
		if entity != nil {
			res.CanonicalName = entity.Name
		}
		return res, nil
	}

	cleaned := normalize.CleanForMatching(target)

	// 2. Canonical map match on the cleaned candidate.
	canonical, ok, err := r.canon.LookupCanonical(ctx, kind, cleaned)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: canonical map lookup")
	}
	if ok {
		res.Resolved = true
		res.CanonicalName = canonical
		res.Confidence = 1.0
		res.Method = model.MethodCanonicalMap
		entity, err := r.entities.FindEntityByName(ctx, kind, canonical)
		if err != nil {
			return nil, eris.Wrap(err, "resolve: entity lookup")
		}
		if entity != nil {
			res.EntityID = entity.ID
		}
		return res, nil
	}

	// 3. Cleaned candidate matches an existing entity's cleaned name.
	entity, err := r.entities.FindEntityByName(ctx, kind, cleaned)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: entity lookup")
	}
	if entity != nil {
		res.Resolved = true
		res.EntityID = entity.ID
		res.CanonicalName = entity.Name
		res.Confidence = 1.0
		res.Method = model.MethodDirectMatch
		return res, nil
	}

	// 4. Unresolved: keep the cleaned candidate for display, flag review.
	res.CanonicalName = target
	res.Confidence = 0.0
	res.Method = model.MethodUnresolved
	res.RequiresReview = true
	r.log.Debug("unresolved entity",
		zap.String("raw", raw),
		zap.String("kind", string(kind)),
	)
	return res, nil
}
