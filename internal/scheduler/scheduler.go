// Package scheduler drives periodic engine work on cron specs: analysis
// passes, TTL sweeps of the insight store and pruning of the journal.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trading-insights/internal/logger"
	"trading-insights/internal/model"

	"github.com/robfig/cron/v3"
)

// Analyzer is the engine surface the scheduler drives.
type Analyzer interface {
	AnalyzeAllSymbols() []model.Insight
	Sweep(now time.Time) int
}

// Pruner deletes journal rows older than a cutoff.
type Pruner interface {
	PruneInsights(ctx context.Context, beforeMs int64) (int64, error)
}

// Scheduler manages the cron tasks.
type Scheduler struct {
	Cron   *cron.Cron
	Engine Analyzer
	Ctx    context.Context

	// OnPass is called after each analysis pass with its completion time.
	OnPass func(done time.Time, insights int)

	now func() time.Time
	log *slog.Logger
}

// New creates a scheduler. Overlapping runs of the same task are skipped
// and panics inside a task are recovered.
func New(ctx context.Context, engine Analyzer) *Scheduler {
	cl := cron.DefaultLogger
	return &Scheduler{
		Cron:   cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		Engine: engine,
		Ctx:    ctx,
		now:    time.Now,
		log:    slog.Default().With("component", "scheduler"),
	}
}

// RegisterAll registers the analysis and sweep tasks. Specs use the
// standard five-field syntax or descriptors such as "@every 30s".
func (s *Scheduler) RegisterAll(analyzeSpec, sweepSpec string) error {
	if _, err := s.Cron.AddFunc(analyzeSpec, s.RunAnalysisNow); err != nil {
		return fmt.Errorf("register analysis task: %w", err)
	}
	if _, err := s.Cron.AddFunc(sweepSpec, s.sweep); err != nil {
		return fmt.Errorf("register sweep task: %w", err)
	}
	return nil
}

// RegisterPrune deletes journal rows older than retention on spec.
func (s *Scheduler) RegisterPrune(spec string, p Pruner, retention time.Duration) error {
	_, err := s.Cron.AddFunc(spec, func() {
		cutoff := s.now().Add(-retention).UnixMilli()
		n, err := p.PruneInsights(s.Ctx, cutoff)
		if err != nil {
			s.log.Error("journal prune failed", "err", err)
			return
		}
		s.log.Info("journal pruned", "rows", n, "retention", retention)
	})
	if err != nil {
		return fmt.Errorf("register prune task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started", "tasks", len(s.Cron.Entries()))
}

// Stop stops the scheduler and waits for running tasks to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunAnalysisNow executes one analysis pass immediately.
func (s *Scheduler) RunAnalysisNow() {
	start := s.now()
	ctx := logger.WithTraceID(s.Ctx, logger.GenerateTraceID("analyze", start))

	found := s.Engine.AnalyzeAllSymbols()
	done := s.now()

	attrs := append([]any{"insights", len(found), "took", done.Sub(start)}, logger.LogWithTrace(ctx)...)
	s.log.Info("analysis pass", attrs...)
	if s.OnPass != nil {
		s.OnPass(done, len(found))
	}
}

func (s *Scheduler) sweep() {
	if n := s.Engine.Sweep(s.now()); n > 0 {
		s.log.Info("expired insights swept", "removed", n)
	}
}
