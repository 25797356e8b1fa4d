package model

import "time"

// EntityKind distinguishes the two canonical entity namespaces.
type EntityKind string

const (
	EntityKindCustomer EntityKind = "customer"
	EntityKindAgency   EntityKind = "agency"
)

// Valid reports whether k is a recognized entity kind.
func (k EntityKind) Valid() bool {
	return k == EntityKindCustomer || k == EntityKindAgency
}

// Entity is a stable canonical business identity that raw extract strings
// resolve to.
type Entity struct {
	ID        string     `json:"id"`
	Kind      EntityKind `json:"kind"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
}

// EntityAlias binds an exact raw string to a specific entity. Bindings are
// append/update-only: rebinding an alias to a different entity is rejected
// unless explicitly forced.
type EntityAlias struct {
	Alias      string     `json:"alias"`
	Kind       EntityKind `json:"kind"`
	EntityID   string     `json:"entity_id"`
	Confidence float64    `json:"confidence"`
	CreatedBy  string     `json:"created_by"`
	Notes      string     `json:"notes,omitempty"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CanonicalMapEntry maps a cleaned alias string to a canonical display
// name. The alias is the natural key within its kind.
type CanonicalMapEntry struct {
	Kind      EntityKind `json:"kind"`
	Alias     string     `json:"alias"`
	Canonical string     `json:"canonical"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ResolutionMethod tags how a raw string was resolved.
type ResolutionMethod string

const (
	MethodAliasExact   ResolutionMethod = "alias_exact"
	MethodCanonicalMap ResolutionMethod = "canonical_map"
	MethodDirectMatch  ResolutionMethod = "direct_match"
	MethodUnresolved   ResolutionMethod = "unresolved"
)

// NormalizationAudit is one row of the rebuilt resolution trail. Downstream
// reporting joins against this table, never against hand-edited mappings.
type NormalizationAudit struct {
	ID           string           `json:"id"`
	BatchID      string           `json:"batch_id"`
	Kind         EntityKind       `json:"kind"`
	RawText      string           `json:"raw_text"`
	ResolvedName string           `json:"resolved_name"`
	EntityID     string           `json:"entity_id,omitempty"`
	Method       ResolutionMethod `json:"method"`
	Confidence   float64          `json:"confidence"`
	CreatedAt    time.Time        `json:"created_at"`
}
