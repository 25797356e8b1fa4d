// Package reconcile applies one extract file to the spot store under the
// mode-specific month policies. Months are the unit of work: each month
// present in the file is replaced wholesale, and what happens to months
// that are closed or absent depends on the import mode.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/canonical"
	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/language"
	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/months"
	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/store"
)

const defaultConcurrency = 8

// Request is one reconciliation run.
type Request struct {
	Mode       model.ImportMode
	SourceFile string
	Actor      string
	Records    []model.RawRecord
}

// Reconciler drives an import run end to end: month grouping, closed-month
// gating, entity resolution, language assignment, and the per-month
// replace transactions.
type Reconciler struct {
	store       store.Store
	resolver    *canonical.Resolver
	engine      *language.Engine
	tracker     *months.Tracker
	concurrency int
	log         *zap.Logger
}

// New wires a reconciler. concurrency <= 0 uses the package default.
func New(st store.Store, resolver *canonical.Resolver, engine *language.Engine, tracker *months.Tracker, concurrency int) *Reconciler {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Reconciler{
		store:       st,
		resolver:    resolver,
		engine:      engine,
		tracker:     tracker,
		concurrency: concurrency,
		log:         zap.L().With(zap.String("component", "reconciler")),
	}
}

// monthGroup is the parsed records for a single incoming month.
type monthGroup struct {
	month   model.BroadcastMonth
	records []model.RawRecord
}

// Run executes the import. The returned summary is populated even on
// failure paths that produce no writes (notably the MANUAL closed-month
// abort), so callers always have the per-month account of what happened.
func (r *Reconciler) Run(ctx context.Context, req Request) (*model.BatchSummary, error) {
	started := time.Now().UTC()
	summary := &model.BatchSummary{
		Mode:       req.Mode,
		SourceFile: req.SourceFile,
		RecordsIn:  len(req.Records),
	}

	if !req.Mode.Valid() {
		return summary, eris.Errorf("reconcile: unknown import mode %q", req.Mode)
	}

	groups, rejected := groupByMonth(req.Records)
	summary.RecordsRejected = len(rejected)
	if len(rejected) > 0 {
		r.log.Warn("rejected records", zap.Strings("reasons", rejected))
	}

	closed, err := r.tracker.Snapshot(ctx)
	if err != nil {
		return summary, err
	}

	// MANUAL fails the whole run before any write when the file carries
	// rows for a closed month.
	if req.Mode == model.ImportModeManual {
		var locked []string
		for _, g := range groups {
			if closed.Contains(g.month) {
				locked = append(locked, g.month.String())
			}
		}
		if len(locked) > 0 {
			reason := fmt.Sprintf("manual import touches closed months: %v", locked)
			summary.AbortReasons = append(summary.AbortReasons, reason)
			for _, key := range locked {
				summary.Outcomes = append(summary.Outcomes, model.MonthOutcome{
					Month:  key,
					Action: model.MonthFailed,
					Error:  "month is closed",
				})
			}
			r.log.Warn("manual import aborted", zap.Strings("closed_months", locked))
			return summary, &model.ClosedMonthError{Months: locked}
		}
	}

	batch := model.ImportBatch{
		ID:         uuid.New().String(),
		SourceFile: req.SourceFile,
		Mode:       req.Mode,
		Actor:      req.Actor,
		StartedAt:  started,
	}
	if err := r.store.CreateBatch(ctx, batch); err != nil {
		return summary, err
	}

	switch req.Mode {
	case model.ImportModeHistorical:
		err = r.runHistorical(ctx, batch, groups, summary)
	default: // weekly_update and manual share the open-month policy
		err = r.runIncremental(ctx, batch, groups, closed, summary)
	}
	if err != nil {
		summary.AbortReasons = append(summary.AbortReasons, err.Error())
	}

	summary.DurationMillis = time.Since(started).Milliseconds()
	if finErr := r.store.FinalizeBatch(ctx, batch.ID, summary); finErr != nil && err == nil {
		err = finErr
	}

	r.log.Info("import run finished",
		zap.String("batch_id", batch.ID),
		zap.String("mode", string(req.Mode)),
		zap.Int("records_in", summary.RecordsIn),
		zap.Int("spots_inserted", summary.SpotsInserted),
		zap.Int("months_replaced", summary.MonthsReplaced),
		zap.Int("months_skipped", summary.MonthsSkipped),
		zap.Int("review_flagged", summary.ReviewFlagged),
		zap.Int64("duration_ms", summary.DurationMillis),
	)
	return summary, err
}

// runIncremental handles WEEKLY_UPDATE and the non-aborting MANUAL path:
// closed months in the file are skipped, open months in the file are
// replaced, and open months already in the store but absent from the file
// are preserved untouched.
func (r *Reconciler) runIncremental(ctx context.Context, batch model.ImportBatch, groups []monthGroup, closed months.ClosedSet, summary *model.BatchSummary) error {
	incoming := make(map[string]bool, len(groups))
	for _, g := range groups {
		incoming[g.month.String()] = true
	}

	for _, g := range groups {
		if closed.Contains(g.month) {
			summary.MonthsSkipped++
			summary.Outcomes = append(summary.Outcomes, model.MonthOutcome{
				Month:  g.month.String(),
				Action: model.MonthSkipped,
			})
			r.log.Info("skipping closed month",
				zap.String("month", g.month.String()),
				zap.Int("records_dropped", len(g.records)),
			)
			continue
		}
		if err := r.replaceMonth(ctx, batch, g, summary); err != nil {
			return err
		}
	}

	existing, err := r.store.SpotMonths(ctx)
	if err != nil {
		return err
	}
	for _, m := range existing {
		if incoming[m.String()] || closed.Contains(m) {
			continue
		}
		stats, err := r.store.MonthStats(ctx, m)
		if err != nil {
			return err
		}
		summary.MonthsPreserved++
		summary.Outcomes = append(summary.Outcomes, model.MonthOutcome{
			Month:  m.String(),
			Action: model.MonthPreserved,
		})
		summary.Preserved = append(summary.Preserved, model.PreservationEvent{
			Month:        m.String(),
			SpotCount:    stats.SpotCount,
			GrossRevenue: stats.GrossRevenue,
		})
	}
	return nil
}

// runHistorical treats the file as authoritative over the full month range
// it spans. Months inside the range with no rows are cleared, the closed
// set is ignored, and every touched month is closed afterwards.
func (r *Reconciler) runHistorical(ctx context.Context, batch model.ImportBatch, groups []monthGroup, summary *model.BatchSummary) error {
	if len(groups) == 0 {
		return nil
	}

	byKey := make(map[string]monthGroup, len(groups))
	lo, hi := groups[0].month, groups[0].month
	for _, g := range groups {
		byKey[g.month.String()] = g
		if g.month.Before(lo) {
			lo = g.month
		}
		if hi.Before(g.month) {
			hi = g.month
		}
	}

	var touched []model.BroadcastMonth
	for m := lo; !hi.Before(m); m = m.Next() {
		touched = append(touched, m)
		if g, ok := byKey[m.String()]; ok {
			if err := r.replaceMonth(ctx, batch, g, summary); err != nil {
				return err
			}
			continue
		}
		// Authoritative range, no rows: the month is emptied.
		deleted, _, err := r.store.ReplaceMonth(ctx, m, store.MonthWrite{})
		if err != nil {
			return err
		}
		summary.SpotsDeleted += deleted
		summary.Outcomes = append(summary.Outcomes, model.MonthOutcome{
			Month:   m.String(),
			Action:  model.MonthCleared,
			Deleted: deleted,
		})
	}

	closedAt := time.Now().UTC()
	for _, m := range touched {
		err := r.store.CloseMonth(ctx, model.ClosedPeriod{
			Month:    m,
			ClosedBy: batch.Actor,
			ClosedAt: closedAt,
			Notes:    "closed by historical import " + batch.ID,
		})
		if err != nil {
			return err
		}
		summary.MonthsClosed++
		summary.Outcomes = append(summary.Outcomes, model.MonthOutcome{
			Month:  m.String(),
			Action: model.MonthClosed,
		})
	}
	return nil
}

// replaceMonth resolves and classifies one month's records, then swaps the
// month in a single store transaction.
func (r *Reconciler) replaceMonth(ctx context.Context, batch model.ImportBatch, g monthGroup, summary *model.BatchSummary) error {
	write, review, err := r.buildWrite(ctx, batch, g)
	if err != nil {
		return err
	}

	deleted, inserted, err := r.store.ReplaceMonth(ctx, g.month, write)
	if err != nil {
		summary.Outcomes = append(summary.Outcomes, model.MonthOutcome{
			Month:  g.month.String(),
			Action: model.MonthFailed,
			Error:  err.Error(),
		})
		return err
	}

	summary.SpotsDeleted += deleted
	summary.SpotsInserted += inserted
	summary.MonthsReplaced++
	summary.ReviewFlagged += review
	summary.Outcomes = append(summary.Outcomes, model.MonthOutcome{
		Month:    g.month.String(),
		Action:   model.MonthReplaced,
		Deleted:  deleted,
		Inserted: inserted,
	})
	return nil
}

// recordResult is one record's resolved spot plus its side tables.
type recordResult struct {
	spot       model.Spot
	audits     []model.NormalizationAudit
	assignment model.LanguageAssignment
	review     bool
}

// buildWrite resolves entities and assigns languages for every record in
// the group. Resolution work fans out across a bounded worker group;
// results keep record order so re-runs produce identical writes.
func (r *Reconciler) buildWrite(ctx context.Context, batch model.ImportBatch, g monthGroup) (store.MonthWrite, int, error) {
	now := time.Now().UTC()
	results := make([]recordResult, len(g.records))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.concurrency)
	for i, rec := range g.records {
		eg.Go(func() error {
			res, err := r.processRecord(egCtx, batch, g.month, rec, now)
			if err != nil {
				return err
			}
			results[i] = *res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return store.MonthWrite{}, 0, err
	}

	write := store.MonthWrite{
		Spots:       make([]model.Spot, 0, len(results)),
		Assignments: make([]model.LanguageAssignment, 0, len(results)),
	}
	review := 0
	for _, res := range results {
		write.Spots = append(write.Spots, res.spot)
		write.Audits = append(write.Audits, res.audits...)
		write.Assignments = append(write.Assignments, res.assignment)
		if res.review {
			review++
		}
	}
	return write, review, nil
}

// processRecord turns one raw record into a spot, its normalization audit
// rows, and its language assignment. Malformed bill codes downgrade to an
// unresolved, review-flagged spot; only infrastructure errors propagate.
func (r *Reconciler) processRecord(ctx context.Context, batch model.ImportBatch, m model.BroadcastMonth, rec model.RawRecord, now time.Time) (*recordResult, error) {
	spotID := uuid.New().String()
	spot := model.Spot{
		ID:           spotID,
		Month:        m,
		BillCode:     rec.BillCode,
		RawCustomer:  rec.BillCode,
		RawAgency:    rec.RawAgency,
		GrossRate:    rec.GrossRate,
		StationNet:   rec.StationNet,
		SpotType:     rec.SpotType,
		RevenueType:  rec.RevenueType,
		TimeIn:       rec.TimeIn,
		TimeOut:      rec.TimeOut,
		LanguageCode: rec.LanguageCode,
		SourceTag:    rec.SourceTag,
		BatchID:      batch.ID,
		LoadedAt:     now,
	}

	result := &recordResult{}

	custRes, err := r.resolver.Resolve(ctx, rec.BillCode, model.EntityKindCustomer)
	if err != nil {
		var ambiguous *model.AmbiguousSplitError
		if !errors.As(err, &ambiguous) {
			return nil, err
		}
		// Too many segments to split safely: keep the raw text and route
		// the spot to review instead of failing the month.
		custRes = &canonical.Resolution{
			RawText:        rec.BillCode,
			Kind:           model.EntityKindCustomer,
			CanonicalName:  rec.BillCode,
			Method:         model.MethodUnresolved,
			RequiresReview: true,
		}
		r.log.Warn("ambiguous bill code routed to review",
			zap.String("bill_code", rec.BillCode),
			zap.String("month", m.String()),
		)
	}
	spot.CustomerName = custRes.CanonicalName
	spot.CustomerID = custRes.EntityID
	result.audits = append(result.audits, custRes.AuditRow(batch.ID, now))
	result.review = custRes.RequiresReview

	if custRes.Candidate.AgencyCandidate != "" {
		agencyRes, err := r.resolver.Resolve(ctx, rec.BillCode, model.EntityKindAgency)
		if err != nil {
			return nil, err
		}
		spot.AgencyName = agencyRes.CanonicalName
		spot.AgencyID = agencyRes.EntityID
		result.audits = append(result.audits, agencyRes.AuditRow(batch.ID, now))
		result.review = result.review || agencyRes.RequiresReview
	}

	assignment := r.engine.Assign(spotID, rec.RevenueType, rec.SpotType, rec.LanguageCode, now)
	result.review = result.review || assignment.RequiresReview

	result.spot = spot
	result.assignment = assignment
	return result, nil
}

// groupByMonth buckets records by their parsed broadcast month, in
// chronological order. Records with unparseable month keys are rejected
// with a reason rather than failing the run.
func groupByMonth(records []model.RawRecord) ([]monthGroup, []string) {
	byKey := make(map[string]*monthGroup)
	var rejected []string
	for i, rec := range records {
		m, err := model.ParseBroadcastMonth(rec.Month)
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("record %d: bad month %q", i+1, rec.Month))
			continue
		}
		key := m.String()
		g, ok := byKey[key]
		if !ok {
			g = &monthGroup{month: m}
			byKey[key] = g
		}
		g.records = append(g.records, rec)
	}

	groups := make([]monthGroup, 0, len(byKey))
	for _, g := range byKey {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].month.Before(groups[j].month) })
	return groups, rejected
}
