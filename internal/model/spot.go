package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ImportMode selects the reconciliation policy for a run.
type ImportMode string

const (
	// ImportModeHistorical treats the incoming file as authoritative for
	// the entire range of months it covers, then closes every month it
	// touched.
	ImportModeHistorical ImportMode = "historical"
	// ImportModeWeekly replaces open months present in the file, skips
	// closed months, and preserves open months the file does not cover.
	ImportModeWeekly ImportMode = "weekly_update"
	// ImportModeManual behaves like weekly but aborts the whole run if the
	// file contains data for any closed month.
	ImportModeManual ImportMode = "manual"
)

// Valid reports whether m is a recognized import mode.
func (m ImportMode) Valid() bool {
	switch m {
	case ImportModeHistorical, ImportModeWeekly, ImportModeManual:
		return true
	}
	return false
}

// RawRecord is the uniform in-memory shape an extract row is mapped into
// before reconciliation. Column mapping happens in internal/extract; the
// reconciler never sees spreadsheet cells.
type RawRecord struct {
	Month        string          `json:"month" csv:"month"`
	BillCode     string          `json:"bill_code" csv:"bill_code"`
	RawAgency    string          `json:"raw_agency,omitempty" csv:"agency"`
	GrossRate    decimal.Decimal `json:"gross_rate" csv:"gross_rate"`
	StationNet   decimal.Decimal `json:"station_net" csv:"station_net"`
	SpotType     string          `json:"spot_type" csv:"spot_type"`
	RevenueType  string          `json:"revenue_type" csv:"revenue_type"`
	TimeIn       string          `json:"time_in,omitempty" csv:"time_in"`
	TimeOut      string          `json:"time_out,omitempty" csv:"time_out"`
	LanguageCode string          `json:"language_code,omitempty" csv:"language_code"`
	SourceTag    string          `json:"source_tag,omitempty" csv:"source_tag"`
}

// Spot is one placement record for one broadcast month. Spots are never
// mutated in place: a month is always replaced wholesale (delete+insert in
// one transaction) and never written at all once the month is closed.
type Spot struct {
	ID           string          `json:"id"`
	Month        BroadcastMonth  `json:"month"`
	BillCode     string          `json:"bill_code"`
	RawCustomer  string          `json:"raw_customer"`
	RawAgency    string          `json:"raw_agency,omitempty"`
	CustomerName string          `json:"customer_name"`
	CustomerID   string          `json:"customer_id,omitempty"`
	AgencyName   string          `json:"agency_name,omitempty"`
	AgencyID     string          `json:"agency_id,omitempty"`
	GrossRate    decimal.Decimal `json:"gross_rate"`
	StationNet   decimal.Decimal `json:"station_net"`
	SpotType     string          `json:"spot_type"`
	RevenueType  string          `json:"revenue_type"`
	TimeIn       string          `json:"time_in,omitempty"`
	TimeOut      string          `json:"time_out,omitempty"`
	LanguageCode string          `json:"language_code,omitempty"`
	SourceTag    string          `json:"source_tag,omitempty"`
	BatchID      string          `json:"batch_id"`
	LoadedAt     time.Time       `json:"loaded_at"`
}

// ImportBatch is the append-only audit record for one reconciler run.
type ImportBatch struct {
	ID          string        `json:"id"`
	SourceFile  string        `json:"source_file"`
	Mode        ImportMode    `json:"mode"`
	Actor       string        `json:"actor"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Summary     *BatchSummary `json:"summary,omitempty"`
}

// MonthAction is the outcome applied to one month during a run.
type MonthAction string

const (
	MonthReplaced  MonthAction = "replaced"
	MonthSkipped   MonthAction = "skipped"
	MonthPreserved MonthAction = "preserved"
	MonthCleared   MonthAction = "cleared"
	MonthClosed    MonthAction = "closed"
	MonthFailed    MonthAction = "failed"
)

// MonthOutcome records what happened to a single month in a run.
type MonthOutcome struct {
	Month    string      `json:"month"`
	Action   MonthAction `json:"action"`
	Deleted  int         `json:"deleted,omitempty"`
	Inserted int         `json:"inserted,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// PreservationEvent records a decision to leave an open month untouched
// because the incoming file carried no rows for it. This is the safeguard
// against a narrow extract silently erasing previously loaded months.
type PreservationEvent struct {
	Month        string          `json:"month"`
	SpotCount    int             `json:"spot_count"`
	GrossRevenue decimal.Decimal `json:"gross_revenue"`
}

// MonthStats summarizes the existing spots for one month.
type MonthStats struct {
	Month        BroadcastMonth  `json:"month"`
	SpotCount    int             `json:"spot_count"`
	GrossRevenue decimal.Decimal `json:"gross_revenue"`
}

// BatchSummary is the per-run result exposed to operators. It enumerates
// every month's resulting state and every abort reason; there is no bare
// success/failure boolean.
type BatchSummary struct {
	Mode             ImportMode          `json:"mode"`
	SourceFile       string              `json:"source_file"`
	RecordsIn        int                 `json:"records_in"`
	RecordsRejected  int                 `json:"records_rejected"`
	SpotsInserted    int                 `json:"spots_inserted"`
	SpotsDeleted     int                 `json:"spots_deleted"`
	MonthsReplaced   int                 `json:"months_replaced"`
	MonthsSkipped    int                 `json:"months_skipped"`
	MonthsPreserved  int                 `json:"months_preserved"`
	MonthsClosed     int                 `json:"months_closed"`
	Outcomes         []MonthOutcome      `json:"outcomes"`
	Preserved        []PreservationEvent `json:"preserved,omitempty"`
	AbortReasons     []string            `json:"abort_reasons,omitempty"`
	ReviewFlagged    int                 `json:"review_flagged"`
	DurationMillis   int64               `json:"duration_ms"`
}
