package model

import (
	"errors"
	"fmt"
)

// ErrUnknownEntityKind is returned when a resolution is requested for a
// kind other than customer or agency.
var ErrUnknownEntityKind = errors.New("unknown entity kind")

// AliasConflictError is returned when an alias bind would silently flip an
// alias from one entity to a different one. The caller must either keep the
// old binding or retry with an explicit force flag.
type AliasConflictError struct {
	Alias            string
	Kind             EntityKind
	ExistingEntityID string
	NewEntityID      string
}

func (e *AliasConflictError) Error() string {
	return fmt.Sprintf("alias %q (%s) already bound to entity %s, refusing rebind to %s",
		e.Alias, e.Kind, e.ExistingEntityID, e.NewEntityID)
}

// AmbiguousSplitError is returned when a compound bill code contains more
// delimited segments than the configured maximum.
type AmbiguousSplitError struct {
	Raw         string
	Segments    int
	MaxSegments int
}

func (e *AmbiguousSplitError) Error() string {
	return fmt.Sprintf("ambiguous split: %q has %d segments (max %d)", e.Raw, e.Segments, e.MaxSegments)
}

// ClosedMonthError aborts a MANUAL-mode run that carries data for one or
// more closed months. It is raised before any write occurs.
type ClosedMonthError struct {
	Months []string
}

func (e *ClosedMonthError) Error() string {
	return fmt.Sprintf("import touches closed months: %v", e.Months)
}
