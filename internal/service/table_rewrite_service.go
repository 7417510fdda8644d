package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"site-cloner/internal/catalog"
	"site-cloner/internal/database"
	"site-cloner/internal/model"
	"site-cloner/internal/plan"
	"site-cloner/internal/rewrite"
)

// TableRewriteService rewrites identity strings across a tenant's tables.
type TableRewriteService interface {
	// RewriteTables applies the plan between two identities to every
	// eligible column of cat under dest's prefix and to the tenant's rows of
	// the global tables. On a store failure it stops and returns the partial
	// report together with the error.
	RewriteTables(ctx context.Context, dest model.Tenant, from, to model.Identity, cat catalog.Catalog, global []catalog.GlobalTable) (*model.RewriteReport, error)
}

// RewriteRecorder receives progress counters. Implementations must be safe
// for concurrent use.
type RewriteRecorder interface {
	RowsScanned(table string, n int)
	RowUpdated(table string, affected int64)
	RowFailed(table, reason string)
	TableFinished(table string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RowsScanned(string, int)             {}
func (nopRecorder) RowUpdated(string, int64)            {}
func (nopRecorder) RowFailed(string, string)            {}
func (nopRecorder) TableFinished(string, time.Duration) {}

// TableRewriteOptions tunes the driver.
type TableRewriteOptions struct {
	Rewrite rewrite.Options
	// Workers bounds concurrent row updates within one column scan. Values
	// below 2 process rows sequentially.
	Workers int
	// UpdatesPerSecond throttles updates; zero means unlimited.
	UpdatesPerSecond float64
	// Burst is the limiter burst, defaulting to Workers.
	Burst int
}

type tableRewriteService struct {
	store      database.Store
	rewriter   *rewrite.Rewriter
	newBuilder func() *plan.Builder
	workers    int
	limiter    *rate.Limiter
	logger     *zap.Logger
	recorder   RewriteRecorder
}

// NewTableRewriteService creates the driver over store. logger and recorder
// may be nil.
func NewTableRewriteService(store database.Store, opts TableRewriteOptions, logger *zap.Logger, recorder RewriteRecorder) TableRewriteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	s := &tableRewriteService{
		store:      store,
		rewriter:   rewrite.New(opts.Rewrite),
		newBuilder: plan.NewBuilder,
		workers:    opts.Workers,
		logger:     logger,
		recorder:   recorder,
	}
	if opts.UpdatesPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = opts.Workers
		}
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.UpdatesPerSecond), burst)
	}
	return s
}

// target is one physical table with its columns and optional row scope.
type target struct {
	table   string
	columns []string
	scope   *database.Scope
}

func targets(dest model.Tenant, cat catalog.Catalog, global []catalog.GlobalTable) []target {
	var out []target
	for _, t := range cat.Rewritable() {
		out = append(out, target{table: dest.Table(t.Suffix), columns: t.Columns})
	}
	for _, g := range global {
		if len(g.Columns) == 0 {
			continue
		}
		out = append(out, target{
			table:   g.Name,
			columns: g.Columns,
			scope: &database.Scope{
				Column: g.Scope.Column,
				Value:  g.Scope.Value,
				Prefix: g.Scope.Match == catalog.MatchPrefix,
			},
		})
	}
	return out
}

func (s *tableRewriteService) RewriteTables(ctx context.Context, dest model.Tenant, from, to model.Identity, cat catalog.Catalog, global []catalog.GlobalTable) (*model.RewriteReport, error) {
	pairs, err := s.newBuilder().Build(from, to)
	if err != nil {
		return nil, fmt.Errorf("build replacement plan: %w", err)
	}

	report := model.NewRewriteReport()
	report.Pairs = pairs.Strings()
	defer report.Finish()

	log := s.logger.With(zap.Int64("site_id", dest.SiteID), zap.String("prefix", dest.Prefix))
	log.Info("rewrite started", zap.Strings("pairs", report.Pairs))

	for _, tgt := range targets(dest, cat, global) {
		start := time.Now()
		for _, col := range tgt.columns {
			for _, pair := range pairs {
				if err := s.rewriteColumn(ctx, report, tgt, col, pair); err != nil {
					log.Error("rewrite aborted",
						zap.String("table", tgt.table),
						zap.String("column", col),
						zap.Error(err))
					return report, fmt.Errorf("rewrite %s.%s: %w", tgt.table, col, err)
				}
			}
		}
		report.TableDone()
		s.recorder.TableFinished(tgt.table, time.Since(start))
		log.Debug("table rewritten", zap.String("table", tgt.table), zap.Duration("took", time.Since(start)))
	}

	log.Info("rewrite finished",
		zap.Int("tables", report.TablesProcessed),
		zap.Int("rows_scanned", report.RowsScanned),
		zap.Int("rows_updated", report.RowsUpdated),
		zap.Int("rows_failed", len(report.RowsFailed)))
	return report, nil
}

// rewriteColumn scans one column for one pair and updates every row whose
// value changes. Only store and context errors are returned.
func (s *tableRewriteService) rewriteColumn(ctx context.Context, report *model.RewriteReport, tgt target, col string, pair plan.Pair) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows, err := s.store.SelectMatching(ctx, database.SelectQuery{
		Table:     tgt.table,
		Column:    col,
		Substring: pair.From,
		Scope:     tgt.scope,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	report.AddScanned(len(rows))
	s.recorder.RowsScanned(tgt.table, len(rows))

	single := []plan.Pair{pair}
	if s.workers < 2 {
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.rewriteRow(ctx, report, tgt, col, single, row); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, row := range rows {
		if gctx.Err() != nil {
			break
		}
		row := row
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return s.rewriteRow(gctx, report, tgt, col, single, row)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *tableRewriteService) rewriteRow(ctx context.Context, report *model.RewriteReport, tgt target, col string, pairs []plan.Pair, row database.Row) error {
	updated, err := s.rewriter.RewriteText(row.Value, pairs)
	if err != nil {
		report.AddFailure(model.RowFailure{Table: tgt.table, Column: col, Key: row.Value, Err: err})
		s.recorder.RowFailed(tgt.table, failureReason(err))
		s.logger.Warn("row skipped",
			zap.String("table", tgt.table),
			zap.String("column", col),
			zap.String("value", truncate(row.Value, 120)),
			zap.Error(err))
		return nil
	}
	if updated == row.Value {
		return nil
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	n, err := s.store.Update(ctx, database.UpdateQuery{
		Table:  tgt.table,
		Column: col,
		Old:    row.Value,
		New:    updated,
		Scope:  tgt.scope,
	})
	if err != nil {
		return err
	}
	report.AddUpdated(int(n))
	s.recorder.RowUpdated(tgt.table, n)
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, rewrite.ErrKeyCollision):
		return "key_collision"
	case errors.Is(err, rewrite.ErrTooManyLayers):
		return "too_many_layers"
	default:
		return "codec"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
